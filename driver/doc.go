// Package driver defines the capability boundary strata consumes from a
// database driver: connect, cursor, execute and fetch primitives plus a
// minimal partitioning of raw errors into integrity, operational and
// programming categories.
//
// The boundary is deliberately small and protocol-agnostic. Real backends
// plug in through driver/sqladapter, which bridges any registered
// database/sql driver; memdb provides an in-memory implementation for
// tests. Optional capabilities (output parameters) are discovered by type
// assertion, in the style of database/sql's optional interfaces.
package driver
