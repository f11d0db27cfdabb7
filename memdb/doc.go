// Package memdb provides an in-memory driver and dialect used to exercise
// the execution protocol without a network backend.
//
// The driver is scriptable: statements are registered up front with the
// result (or error) they should produce, and every call is recorded for
// assertions. Transaction control is real, not canned: connections keep a
// statement journal with BEGIN/COMMIT/ROLLBACK semantics, a savepoint stack
// with standard pop behavior, and a driver-level store of prepared
// two-phase transactions that survives connection close, so recovery
// scenarios behave like a real backend's.
//
// A schema registry feeds the dialect's catalog introspection methods.
package memdb
