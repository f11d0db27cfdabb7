package dialect

import (
	"github.com/jmoiron/sqlx"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/dberr"
	"github.com/RamonWill/strata/driver"
)

// Paramstyle is the convention a driver expects for bound parameters.
type Paramstyle int

const (
	// ParamQuestion uses ? placeholders (sqlite, duckdb, mysql).
	ParamQuestion Paramstyle = iota

	// ParamDollar uses $1, $2, ... placeholders (postgres).
	ParamDollar

	// ParamNamed uses :name placeholders (oracle-style).
	ParamNamed

	// ParamAt uses @name placeholders (sqlserver-style).
	ParamAt
)

// BindType maps the paramstyle onto sqlx's bindvar constants, used when
// rebinding named statement text into driver form.
func (p Paramstyle) BindType() int {
	switch p {
	case ParamDollar:
		return sqlx.DOLLAR
	case ParamNamed:
		return sqlx.NAMED
	case ParamAt:
		return sqlx.AT
	default:
		return sqlx.QUESTION
	}
}

// Positional reports whether the style supplies parameters by position
// rather than by name.
func (p Paramstyle) Positional() bool {
	return p == ParamQuestion || p == ParamDollar
}

// Querier runs a statement on a live connection and returns the buffered
// result: column names plus all rows. Catalog introspection methods take a
// Querier so they can run against an engine connection without depending on
// the engine package.
type Querier interface {
	Query(stmt string, args ...any) (cols []string, rows [][]any, err error)
}

// Engine is the slice of an assembled engine visible to dialect hooks.
type Engine interface {
	URL() *core.URL
	Dialect() Dialect
}

// Dialect is the per-backend policy and factory contract.
//
// Every method is either overridden by a concrete backend or inherited from
// Base, whose defaults implement the common case or fail with
// dberr.NotImplemented where no generic behavior exists.
type Dialect interface {
	// Name identifies the backend ("sqlite", "postgres"); DriverName
	// identifies the driver in use for that backend.
	Name() string
	DriverName() string

	// Capability flags.
	SupportsSequences() bool
	SupportsNativeBoolean() bool
	SupportsSavepoints() bool
	SupportsTwoPhase() bool
	ImplicitReturning() bool
	Positional() bool
	Paramstyle() Paramstyle
	MaxIdentifierLength() int

	// Quote wraps an identifier in backend quoting.
	Quote(name string) string

	// NormalizeName lowercases a name the backend reports as
	// case-insensitive; DenormalizeName is the inverse.
	NormalizeName(name string) string
	DenormalizeName(name string) string

	// CreateConnectArgs translates a parsed URL into driver connect
	// arguments. Implementations must accept any syntactically valid URL
	// for their backend; unsupported fields are dropped or passed through
	// as options.
	CreateConnectArgs(u *core.URL) (core.ConnectArgs, error)

	// TypeDescriptor maps a generic type to this backend's type. The
	// result is cached per dialect (by name, never per instance) and so
	// must not depend on instance state.
	TypeDescriptor(t core.Type) Descriptor

	// Connect establishes a raw connection; the default passes the
	// arguments straight through to the wired driver.
	Connect(args core.ConnectArgs) (driver.Conn, error)

	// OnConnect returns a callback run once on every newly established
	// raw connection, including the very first, or nil if the backend
	// needs none.
	OnConnect() func(conn driver.Conn) error

	// Initialize is called exactly once per engine, on the first
	// successful connection; it populates ServerVersionInfo and
	// DefaultSchemaName. Backends layer additional setup by invoking the
	// base implementation first.
	Initialize(q Querier) error
	ServerVersionInfo() []int
	DefaultSchemaName() string

	// Catalog introspection. Methods return dberr.NotImplemented when the
	// backend lacks the corresponding facility.
	GetColumns(q Querier, table, schema string) ([]core.ColumnInfo, error)
	GetPrimaryKey(q Querier, table, schema string) (core.PrimaryKeyInfo, error)
	GetForeignKeys(q Querier, table, schema string) ([]core.ForeignKeyInfo, error)
	GetTableNames(q Querier, schema string) ([]string, error)
	GetTempTableNames(q Querier, schema string) ([]string, error)
	GetViewNames(q Querier, schema string) ([]string, error)
	GetTempViewNames(q Querier, schema string) ([]string, error)
	GetViewDefinition(q Querier, view, schema string) (string, error)
	GetIndexes(q Querier, table, schema string) ([]core.IndexInfo, error)
	GetUniqueConstraints(q Querier, table, schema string) ([]core.UniqueConstraintInfo, error)
	GetCheckConstraints(q Querier, table, schema string) ([]core.CheckConstraintInfo, error)
	GetTableComment(q Querier, table, schema string) (core.TableComment, error)
	HasTable(q Querier, table, schema string) (bool, error)
	HasIndex(q Querier, table, index, schema string) (bool, error)
	HasSequence(q Querier, sequence, schema string) (bool, error)

	// Transaction primitives over the raw driver connection. The
	// transaction manager composes these; it never calls driver methods
	// directly.
	DoBegin(c driver.Conn) error
	DoRollback(c driver.Conn) error
	DoCommit(c driver.Conn) error
	DoClose(c driver.Conn) error

	// Savepoint primitives. Callers must not invoke these on a dialect
	// advertising SupportsSavepoints() == false.
	DoSavepoint(c driver.Conn, name string) error
	DoRollbackToSavepoint(c driver.Conn, name string) error
	DoReleaseSavepoint(c driver.Conn, name string) error

	// Two-phase primitives. CreateXid generates the opaque distributed
	// transaction id passed unchanged through the rest. isPrepared=false
	// signals the transaction never reached the prepare phase;
	// recover=true signals the caller is resolving a transaction it did
	// not originate.
	CreateXid() core.Xid
	DoBeginTwoPhase(c driver.Conn, xid core.Xid) error
	DoPrepareTwoPhase(c driver.Conn, xid core.Xid) error
	DoRollbackTwoPhase(c driver.Conn, xid core.Xid, isPrepared, recover bool) error
	DoCommitTwoPhase(c driver.Conn, xid core.Xid, isPrepared, recover bool) error
	DoRecoverTwoPhase(c driver.Conn) ([]core.Xid, error)

	// Thin adapters over the driver's execute calls.
	DoExecute(cur driver.Cursor, stmt string, args []any) error
	DoExecuteMany(cur driver.Cursor, stmt string, argSets [][]any) error
	DoExecuteNoParams(cur driver.Cursor, stmt string) error

	// IsDisconnect decides whether a raw error indicates a dead
	// connection. Cursor and connection may be nil.
	IsDisconnect(err error, c driver.Conn, cur driver.Cursor) bool

	// ClassifyError picks the most specific error kind for a raw driver
	// error. It is the dialect half of exception translation; the engine
	// applies the handler chain on top.
	ClassifyError(err error) dberr.Kind

	// Isolation-level hooks over the raw driver connection.
	GetIsolationLevel(c driver.Conn) (core.IsolationLevel, error)
	SetIsolationLevel(c driver.Conn, level core.IsolationLevel) error
	ResetIsolationLevel(c driver.Conn) error

	// ForURL lets a wrapper dialect substitute a different implementation
	// based on URL contents. The default returns the dialect unchanged.
	ForURL(u *core.URL) Dialect

	// EngineCreated runs once the engine is fully assembled. When ForURL
	// substituted a dialect, the hook fires on the substituted dialect
	// first, then on the original.
	EngineCreated(e Engine)
}
