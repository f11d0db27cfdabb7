// Package dialect defines the per-backend policy contract and its default
// implementation.
//
// A Dialect isolates everything that varies between database backends:
// parameter style, identifier quoting, type mapping, transaction control
// (including savepoints and two-phase commit), catalog introspection, and
// the recognition of backend-specific error conditions. The engine composes
// these primitives; it never talks to a driver except through a dialect.
//
// Base is the optional default backend. Concrete dialects embed *Base,
// inherit common-case behavior (standard savepoint SQL, two-phase SQL,
// driver-category error classification, the HasIndex fallback) and override
// what their backend does differently. Capabilities the backend lacks
// surface as dberr.NotImplemented errors.
//
// Dialects register themselves by name; an engine looks its dialect up from
// the registry and gives it a chance to substitute a different
// implementation based on URL contents via ForURL.
package dialect
