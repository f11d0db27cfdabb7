// Package engine coordinates statement execution against a backend
// through its dialect.
//
// An Engine pairs a dialect with a connection URL. Connections obtained
// from it execute compiled statements or raw text through a fixed
// protocol: a per-execution context acquires a cursor, runs pre-execute
// hooks (client-side defaults, parameter-style conversion), invokes the
// dialect's execute adapter, runs post-execute hooks (rowcount,
// last-insert-id, postfetch recording, out-parameter extraction), and
// binds the cursor to a result strategy: direct fetching from the live
// cursor, or a buffered replay when the cursor cannot outlive execution.
//
// Failures at any step are classified through the dialect and a
// registered handler chain before reaching the caller; disconnect
// conditions invalidate the connection and, unless a handler vetoes it,
// signal pool-wide invalidation.
//
// A connection and everything derived from it are single-owner resources:
// one execution at a time, and no internal locking against concurrent use
// from multiple goroutines; that protection is the caller's.
package engine
