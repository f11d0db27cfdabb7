package driver

import "github.com/RamonWill/strata/core"

// Driver opens raw connections to one backend.
type Driver interface {
	Connect(args core.ConnectArgs) (Conn, error)
}

// Conn is a single raw connection. A connection and everything derived
// from it (cursors, transactions) belong to one owner at a time; concurrent
// use from multiple goroutines is the caller's responsibility to prevent.
type Conn interface {
	// Cursor returns a new cursor over this connection.
	Cursor() (Cursor, error)

	// Begin, Commit and Rollback control the connection-level
	// transaction. Drivers with implicit transaction start may make
	// Begin a no-op.
	Begin() error
	Commit() error
	Rollback() error

	Close() error
}

// ColumnDesc describes one column of a cursor's result set.
type ColumnDesc struct {
	Name     string
	TypeName string
	Nullable bool
}

// Cursor executes statements and fetches rows. Cursors are scoped
// resources: acquired per execution and closed when the result is
// exhausted or the execution fails.
type Cursor interface {
	// Execute runs a statement with positional parameters.
	Execute(stmt string, args []any) error

	// ExecuteMany runs a statement once per parameter set.
	ExecuteMany(stmt string, argSets [][]any) error

	// ExecuteNoParams runs a statement without passing any parameter
	// collection, for drivers that treat presence and absence
	// differently.
	ExecuteNoParams(stmt string) error

	// Description describes the result columns of the last Execute, or
	// nil if the statement returned no rows.
	Description() []ColumnDesc

	// RowCount is the driver-reported affected-row count, or -1 when the
	// driver cannot determine one.
	RowCount() int64

	// LastInsertID reports the row id generated by the last insert, when
	// the driver supports it.
	LastInsertID() (int64, bool)

	// FetchOne returns the next row, or io.EOF when the result set is
	// exhausted.
	FetchOne() ([]any, error)

	// FetchMany returns up to n rows; a short (possibly empty) slice
	// signals exhaustion.
	FetchMany(n int) ([][]any, error)

	// FetchAll drains the remaining rows.
	FetchAll() ([][]any, error)

	Close() error
}

// OutParamCursor is an optional cursor capability for backends that
// support output parameters. Values are returned raw, positionally matched
// to names; type coercion is the execution context's job.
type OutParamCursor interface {
	OutParamValues(names []string) ([]any, error)
}
