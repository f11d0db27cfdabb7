package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/dberr"
	"github.com/RamonWill/strata/driver"
)

// Options configures a Base dialect.
type Options struct {
	Name       string
	DriverName string

	// Driver, when set, backs the default Connect passthrough.
	Driver driver.Driver

	Paramstyle          Paramstyle
	MaxIdentifierLength int

	SupportsSequences     bool
	SupportsNativeBoolean bool
	SupportsSavepoints    bool
	SupportsTwoPhase      bool
	ImplicitReturning     bool

	// TypeCompiler overrides the generic type rendering. Must be a pure
	// function; results are cached per dialect name.
	TypeCompiler TypeCompiler
}

// Base is the default backend implementation. Concrete dialects embed
// *Base and override what their backend does differently; methods with no
// generic behavior return dberr.NotImplemented.
type Base struct {
	opts Options

	// self is the concrete dialect embedding this Base, so generic
	// fallbacks (HasIndex) dispatch to overridden catalog methods.
	self Dialect

	serverVersion []int
	defaultSchema string
	initialized   bool
}

// NewBase builds a Base from options, applying defaults.
func NewBase(opts Options) *Base {
	if opts.MaxIdentifierLength == 0 {
		opts.MaxIdentifierLength = 255
	}
	if opts.TypeCompiler == nil {
		opts.TypeCompiler = GenericTypeCompiler
	}
	return &Base{opts: opts}
}

// Bind points the base at its concrete dialect. Constructors of embedding
// dialects call this once so that generic fallbacks dispatch virtually.
func (b *Base) Bind(d Dialect) { b.self = d }

// dispatch returns the concrete dialect when bound, else the base itself.
func (b *Base) dispatch() Dialect {
	if b.self != nil {
		return b.self
	}
	return b
}

func (b *Base) Name() string               { return b.opts.Name }
func (b *Base) DriverName() string         { return b.opts.DriverName }
func (b *Base) SupportsSequences() bool    { return b.opts.SupportsSequences }
func (b *Base) SupportsNativeBoolean() bool { return b.opts.SupportsNativeBoolean }
func (b *Base) SupportsSavepoints() bool   { return b.opts.SupportsSavepoints }
func (b *Base) SupportsTwoPhase() bool     { return b.opts.SupportsTwoPhase }
func (b *Base) ImplicitReturning() bool    { return b.opts.ImplicitReturning }
func (b *Base) Paramstyle() Paramstyle     { return b.opts.Paramstyle }
func (b *Base) Positional() bool           { return b.opts.Paramstyle.Positional() }
func (b *Base) MaxIdentifierLength() int   { return b.opts.MaxIdentifierLength }

// Quote wraps an identifier in ANSI double quotes, doubling embedded
// quotes.
func (b *Base) Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (b *Base) NormalizeName(name string) string   { return strings.ToLower(name) }
func (b *Base) DenormalizeName(name string) string { return name }

func (b *Base) CreateConnectArgs(u *core.URL) (core.ConnectArgs, error) {
	return core.ConnectArgs{}, dberr.NotImplemented("CreateConnectArgs")
}

func (b *Base) TypeDescriptor(t core.Type) Descriptor {
	return cachedDescriptor(b.opts.Name, t, b.opts.TypeCompiler)
}

// Connect passes the arguments straight through to the wired driver.
func (b *Base) Connect(args core.ConnectArgs) (driver.Conn, error) {
	if b.opts.Driver == nil {
		return nil, dberr.NotImplemented("Connect")
	}
	return b.opts.Driver.Connect(args)
}

// OnConnect returns nil: no per-connection setup. The engine invokes a
// non-nil callback exactly once per new raw connection, including the
// first.
func (b *Base) OnConnect() func(conn driver.Conn) error { return nil }

// Initialize records first-connection state. Backends override this,
// calling the base implementation first, then populating server version
// and default schema via SetServerVersionInfo / SetDefaultSchemaName.
func (b *Base) Initialize(q Querier) error {
	b.initialized = true
	return nil
}

func (b *Base) ServerVersionInfo() []int   { return b.serverVersion }
func (b *Base) DefaultSchemaName() string  { return b.defaultSchema }

// SetServerVersionInfo populates the lazily-derived server version. It is
// set once, on first connection, and read-only afterward.
func (b *Base) SetServerVersionInfo(v []int) {
	if b.serverVersion == nil {
		b.serverVersion = v
	}
}

// SetDefaultSchemaName populates the lazily-derived default schema name.
func (b *Base) SetDefaultSchemaName(name string) {
	if b.defaultSchema == "" {
		b.defaultSchema = name
	}
}

// Catalog introspection defaults: no generic implementation.

func (b *Base) GetColumns(q Querier, table, schema string) ([]core.ColumnInfo, error) {
	return nil, dberr.NotImplemented("GetColumns")
}

func (b *Base) GetPrimaryKey(q Querier, table, schema string) (core.PrimaryKeyInfo, error) {
	return core.PrimaryKeyInfo{}, dberr.NotImplemented("GetPrimaryKey")
}

func (b *Base) GetForeignKeys(q Querier, table, schema string) ([]core.ForeignKeyInfo, error) {
	return nil, dberr.NotImplemented("GetForeignKeys")
}

func (b *Base) GetTableNames(q Querier, schema string) ([]string, error) {
	return nil, dberr.NotImplemented("GetTableNames")
}

func (b *Base) GetTempTableNames(q Querier, schema string) ([]string, error) {
	return nil, dberr.NotImplemented("GetTempTableNames")
}

func (b *Base) GetViewNames(q Querier, schema string) ([]string, error) {
	return nil, dberr.NotImplemented("GetViewNames")
}

func (b *Base) GetTempViewNames(q Querier, schema string) ([]string, error) {
	return nil, dberr.NotImplemented("GetTempViewNames")
}

func (b *Base) GetViewDefinition(q Querier, view, schema string) (string, error) {
	return "", dberr.NotImplemented("GetViewDefinition")
}

func (b *Base) GetIndexes(q Querier, table, schema string) ([]core.IndexInfo, error) {
	return nil, dberr.NotImplemented("GetIndexes")
}

func (b *Base) GetUniqueConstraints(q Querier, table, schema string) ([]core.UniqueConstraintInfo, error) {
	return nil, dberr.NotImplemented("GetUniqueConstraints")
}

func (b *Base) GetCheckConstraints(q Querier, table, schema string) ([]core.CheckConstraintInfo, error) {
	return nil, dberr.NotImplemented("GetCheckConstraints")
}

func (b *Base) GetTableComment(q Querier, table, schema string) (core.TableComment, error) {
	return core.TableComment{}, dberr.NotImplemented("GetTableComment")
}

func (b *Base) HasTable(q Querier, table, schema string) (bool, error) {
	return false, dberr.NotImplemented("HasTable")
}

// HasIndex is the generic fallback: the table must exist and one of its
// indexes must carry the requested name. Backends with a cheaper direct
// query override this.
func (b *Base) HasIndex(q Querier, table, index, schema string) (bool, error) {
	d := b.dispatch()
	ok, err := d.HasTable(q, table, schema)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	indexes, err := d.GetIndexes(q, table, schema)
	if err != nil {
		return false, err
	}
	for _, ix := range indexes {
		if ix.Name == index {
			return true, nil
		}
	}
	return false, nil
}

func (b *Base) HasSequence(q Querier, sequence, schema string) (bool, error) {
	return false, dberr.NotImplemented("HasSequence")
}

// Transaction primitives map directly onto the raw connection.

func (b *Base) DoBegin(c driver.Conn) error    { return c.Begin() }
func (b *Base) DoRollback(c driver.Conn) error { return c.Rollback() }
func (b *Base) DoCommit(c driver.Conn) error   { return c.Commit() }
func (b *Base) DoClose(c driver.Conn) error    { return c.Close() }

// execOnConn runs one statement on a throwaway cursor, without parameters.
func (b *Base) execOnConn(c driver.Conn, stmt string) error {
	cur, err := c.Cursor()
	if err != nil {
		return err
	}
	defer cur.Close()
	return b.dispatch().DoExecuteNoParams(cur, stmt)
}

func (b *Base) DoSavepoint(c driver.Conn, name string) error {
	if !b.opts.SupportsSavepoints {
		return dberr.NotImplemented("DoSavepoint")
	}
	return b.execOnConn(c, "SAVEPOINT "+b.dispatch().Quote(name))
}

func (b *Base) DoRollbackToSavepoint(c driver.Conn, name string) error {
	if !b.opts.SupportsSavepoints {
		return dberr.NotImplemented("DoRollbackToSavepoint")
	}
	return b.execOnConn(c, "ROLLBACK TO SAVEPOINT "+b.dispatch().Quote(name))
}

func (b *Base) DoReleaseSavepoint(c driver.Conn, name string) error {
	if !b.opts.SupportsSavepoints {
		return dberr.NotImplemented("DoReleaseSavepoint")
	}
	return b.execOnConn(c, "RELEASE SAVEPOINT "+b.dispatch().Quote(name))
}

// CreateXid generates an opaque distributed transaction id.
func (b *Base) CreateXid() core.Xid {
	return core.Xid("strata_" + uuid.NewString())
}

// Two-phase defaults emit the standard PREPARE TRANSACTION / COMMIT
// PREPARED / ROLLBACK PREPARED statements for backends that flag support.

func (b *Base) DoBeginTwoPhase(c driver.Conn, xid core.Xid) error {
	if !b.opts.SupportsTwoPhase {
		return dberr.NotImplemented("DoBeginTwoPhase")
	}
	return b.dispatch().DoBegin(c)
}

func (b *Base) DoPrepareTwoPhase(c driver.Conn, xid core.Xid) error {
	if !b.opts.SupportsTwoPhase {
		return dberr.NotImplemented("DoPrepareTwoPhase")
	}
	return b.execOnConn(c, fmt.Sprintf("PREPARE TRANSACTION '%s'", xid))
}

func (b *Base) DoRollbackTwoPhase(c driver.Conn, xid core.Xid, isPrepared, recover bool) error {
	if !b.opts.SupportsTwoPhase {
		return dberr.NotImplemented("DoRollbackTwoPhase")
	}
	if !isPrepared {
		return b.dispatch().DoRollback(c)
	}
	return b.execOnConn(c, fmt.Sprintf("ROLLBACK PREPARED '%s'", xid))
}

func (b *Base) DoCommitTwoPhase(c driver.Conn, xid core.Xid, isPrepared, recover bool) error {
	if !b.opts.SupportsTwoPhase {
		return dberr.NotImplemented("DoCommitTwoPhase")
	}
	if !isPrepared {
		return b.dispatch().DoCommit(c)
	}
	return b.execOnConn(c, fmt.Sprintf("COMMIT PREPARED '%s'", xid))
}

func (b *Base) DoRecoverTwoPhase(c driver.Conn) ([]core.Xid, error) {
	return nil, dberr.NotImplemented("DoRecoverTwoPhase")
}

// Execute adapters.

func (b *Base) DoExecute(cur driver.Cursor, stmt string, args []any) error {
	return cur.Execute(stmt, args)
}

func (b *Base) DoExecuteMany(cur driver.Cursor, stmt string, argSets [][]any) error {
	return cur.ExecuteMany(stmt, argSets)
}

// DoExecuteNoParams must not pass a parameter collection, even an empty
// one; some drivers treat presence and absence differently.
func (b *Base) DoExecuteNoParams(cur driver.Cursor, stmt string) error {
	return cur.ExecuteNoParams(stmt)
}

// IsDisconnect has no generic heuristic; backends match their driver's
// error codes or message signatures.
func (b *Base) IsDisconnect(err error, c driver.Conn, cur driver.Cursor) bool {
	return false
}

// ClassifyError maps the driver error categories onto the typed taxonomy.
// Backends refine this with native error types.
func (b *Base) ClassifyError(err error) dberr.Kind {
	var de *driver.Error
	if !errors.As(err, &de) {
		return dberr.KindUnknown
	}
	switch de.Category {
	case driver.CategoryIntegrity:
		return dberr.KindIntegrity
	case driver.CategoryOperational:
		return dberr.KindOperational
	case driver.CategoryProgramming:
		return dberr.KindProgramming
	case driver.CategoryInternal:
		return dberr.KindInternal
	default:
		return dberr.KindUnknown
	}
}

func (b *Base) GetIsolationLevel(c driver.Conn) (core.IsolationLevel, error) {
	return "", dberr.NotImplemented("GetIsolationLevel")
}

func (b *Base) SetIsolationLevel(c driver.Conn, level core.IsolationLevel) error {
	return dberr.NotImplemented("SetIsolationLevel")
}

func (b *Base) ResetIsolationLevel(c driver.Conn) error {
	return dberr.NotImplemented("ResetIsolationLevel")
}

// ForURL returns the dialect unchanged; wrapper dialects override it to
// substitute an implementation based on URL contents.
func (b *Base) ForURL(u *core.URL) Dialect { return b.dispatch() }

func (b *Base) EngineCreated(e Engine) {}
