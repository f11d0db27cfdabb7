// Package core provides the leaf types shared across strata.
//
// The package defines the generic type system, column descriptors, the
// compiled-statement contract consumed from the statement compiler, parsed
// connection URLs, and the record shapes returned by catalog introspection.
//
// # Column Types
//
// Generic column types map onto backend-specific types through a dialect's
// type descriptor:
//   - IntegerType, BigIntegerType: integers
//   - FloatType, NumericType: floating point and exact decimals
//   - StringType, TextType: short strings and long text
//   - BooleanType: booleans (emulated on backends without a native bool)
//   - DateTimeType, DateType: temporal values
//   - BlobType: raw bytes
//
// # Compiled Statements
//
// A Compiled value is produced by a statement compiler outside this module.
// It carries the final SQL text in named-parameter form plus the bind
// metadata the execution layer needs: parameter ordering, per-parameter
// generic types, output-parameter names, and the column lists for
// client-side and server-side defaults.
package core
