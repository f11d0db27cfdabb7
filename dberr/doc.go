// Package dberr defines the typed error taxonomy raised by strata and the
// exception-context machinery the engine uses to classify raw driver
// errors.
//
// Raw driver errors are never surfaced directly. The engine wraps them in a
// *dberr.Error carrying the classified kind, the statement and parameters
// that were executing, and the original error as a preserved cause. A
// registered handler chain may reclassify the error, substitute a
// replacement, or veto pool-wide invalidation; the chain is evaluated as a
// fold over immutable decision records rather than shared mutable state.
package dberr
