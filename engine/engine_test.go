package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/dberr"
	"github.com/RamonWill/strata/dialect"
	"github.com/RamonWill/strata/driver"
	"github.com/RamonWill/strata/memdb"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memdb.Driver) {
	t.Helper()
	drv := memdb.New()
	return New(memdb.NewDialect(drv), &core.URL{Database: "test"}, opts...), drv
}

func connect(t *testing.T, e *Engine) *Connection {
	t.Helper()
	conn, err := e.Connect()
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestOpenUnknownDialect(t *testing.T) {
	_, err := Open("no-such-backend", &core.URL{})
	if err == nil {
		t.Fatal("expected error for unknown dialect")
	}
	if !strings.Contains(err.Error(), "no-such-backend") {
		t.Errorf("error should name the dialect: %v", err)
	}
}

func TestOpenRegisteredDialect(t *testing.T) {
	e, err := Open("mem", &core.URL{Database: "test"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if e.Dialect().Name() != "mem" {
		t.Errorf("dialect name = %q, want mem", e.Dialect().Name())
	}
}

func TestInitializeRunsOncePerEngine(t *testing.T) {
	e, _ := newTestEngine(t)

	c1 := connect(t, e)
	c2 := connect(t, e)
	_ = c1
	_ = c2

	v := e.Dialect().ServerVersionInfo()
	if len(v) != 2 || v[0] != 1 || v[1] != 0 {
		t.Errorf("ServerVersionInfo = %v, want [1 0]", v)
	}
	if e.Dialect().DefaultSchemaName() != "main" {
		t.Errorf("DefaultSchemaName = %q, want main", e.Dialect().DefaultSchemaName())
	}
}

// flakyInitDialect fails its first Initialize and defers to memdb after
// that, modelling a backend whose catalog is briefly unavailable.
type flakyInitDialect struct {
	*memdb.Dialect
	calls int
}

func (d *flakyInitDialect) ForURL(u *core.URL) dialect.Dialect { return d }

func (d *flakyInitDialect) Initialize(q dialect.Querier) error {
	d.calls++
	if d.calls == 1 {
		return errors.New("catalog warmup failed")
	}
	return d.Dialect.Initialize(q)
}

func TestInitializeRetriedAfterFailure(t *testing.T) {
	drv := memdb.New()
	d := &flakyInitDialect{Dialect: memdb.NewDialect(drv)}
	e := New(d, &core.URL{Database: "test"})

	if _, err := e.Connect(); err == nil {
		t.Fatal("first Connect should surface the Initialize failure")
	}

	conn, err := e.Connect()
	if err != nil {
		t.Fatalf("Connect after transient Initialize failure: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if d.calls != 2 {
		t.Fatalf("Initialize ran %d times, want 2", d.calls)
	}
	if v := e.Dialect().ServerVersionInfo(); len(v) != 2 {
		t.Errorf("ServerVersionInfo = %v, want populated after retry", v)
	}

	// Once it has succeeded, later connections must not run it again.
	connect(t, e)
	if d.calls != 2 {
		t.Errorf("Initialize ran %d times after success, want 2", d.calls)
	}
}

func TestConnectFailureTranslated(t *testing.T) {
	e, drv := newTestEngine(t)
	drv.FailConnect(driver.Errorf(driver.CategoryOperational, "57P01", "connection reset by peer"))

	_, err := e.Connect()
	if err == nil {
		t.Fatal("expected connect failure")
	}
	if dberr.KindOf(err) != dberr.KindDisconnect {
		t.Errorf("kind = %v, want DisconnectError", dberr.KindOf(err))
	}
}

func TestConnectFailureNonDisconnect(t *testing.T) {
	e, drv := newTestEngine(t)
	drv.FailConnect(driver.Errorf(driver.CategoryOperational, "53300", "too many connections"))

	_, err := e.Connect()
	if err == nil {
		t.Fatal("expected connect failure")
	}
	if dberr.KindOf(err) != dberr.KindOperational {
		t.Errorf("kind = %v, want OperationalError", dberr.KindOf(err))
	}
}

func TestExecuteTextFetch(t *testing.T) {
	e, drv := newTestEngine(t)
	drv.On("SELECT id, name FROM users", memdb.Result{
		Cols: []string{"id", "name"},
		Rows: [][]any{{1, "alice"}, {2, "bob"}},
	})
	conn := connect(t, e)

	res, err := conn.ExecuteText("SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("ExecuteText: %v", err)
	}
	defer res.Close()

	rows, err := res.FetchAll()
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0][1] != "alice" {
		t.Errorf("rows[0][1] = %v, want alice", rows[0][1])
	}
}

func TestExecuteCompiledNamedParams(t *testing.T) {
	e, drv := newTestEngine(t)
	drv.On("SELECT name FROM users WHERE id = ?", memdb.Result{
		Cols: []string{"name"},
		Rows: [][]any{{"alice"}},
	})
	conn := connect(t, e)

	compiled := &core.Compiled{
		Text:      "SELECT name FROM users WHERE id = :id",
		BindNames: []string{"id"},
	}
	res, err := conn.Execute(compiled, map[string]any{"id": 1})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer res.Close()

	calls := drv.Calls()
	last := calls[len(calls)-1]
	if last.Statement != "SELECT name FROM users WHERE id = ?" {
		t.Errorf("statement = %q", last.Statement)
	}
	if len(last.Args) != 1 || last.Args[0] != 1 {
		t.Errorf("args = %v, want [1]", last.Args)
	}
}

func TestExecuteMany(t *testing.T) {
	e, drv := newTestEngine(t)
	drv.On("INSERT INTO t (v) VALUES (?)", memdb.Result{RowCount: 1})
	conn := connect(t, e)

	compiled := &core.Compiled{
		Text:      "INSERT INTO t (v) VALUES (:v)",
		BindNames: []string{"v"},
		IsInsert:  true,
	}
	res, err := conn.ExecuteMany(compiled, []map[string]any{
		{"v": "a"}, {"v": "b"}, {"v": "c"},
	})
	if err != nil {
		t.Fatalf("ExecuteMany: %v", err)
	}
	defer res.Close()

	if res.RowCount() != 3 {
		t.Errorf("RowCount = %d, want 3", res.RowCount())
	}
	if got := len(drv.Committed()); got != 3 {
		t.Errorf("committed %d statements, want 3", got)
	}
}

func TestExecuteManyRequiresParamSets(t *testing.T) {
	e, _ := newTestEngine(t)
	conn := connect(t, e)

	compiled := &core.Compiled{
		Text:      "INSERT INTO t (v) VALUES (:v)",
		BindNames: []string{"v"},
		IsInsert:  true,
	}
	if _, err := conn.ExecuteMany(compiled, nil); err == nil {
		t.Error("nil parameter sets should be rejected")
	}
	if _, err := conn.ExecuteMany(compiled, []map[string]any{}); err == nil {
		t.Error("empty parameter sets should be rejected")
	}
}

func TestAutocommitWithoutTransaction(t *testing.T) {
	e, drv := newTestEngine(t)
	drv.On("INSERT INTO t (v) VALUES (?)", memdb.Result{RowCount: 1})
	conn := connect(t, e)

	res, err := conn.ExecuteText("INSERT INTO t (v) VALUES (?)", "x")
	if err != nil {
		t.Fatalf("ExecuteText: %v", err)
	}
	res.Close()

	if got := len(drv.Committed()); got != 1 {
		t.Fatalf("committed %d statements, want 1", got)
	}
}

func TestNoAutocommitInsideTransaction(t *testing.T) {
	e, drv := newTestEngine(t)
	drv.On("INSERT INTO t (v) VALUES (?)", memdb.Result{RowCount: 1})
	conn := connect(t, e)

	txn, err := conn.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	res, err := conn.ExecuteText("INSERT INTO t (v) VALUES (?)", "x")
	if err != nil {
		t.Fatalf("ExecuteText: %v", err)
	}
	res.Close()

	if got := len(drv.Committed()); got != 0 {
		t.Fatalf("committed %d statements before commit, want 0", got)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := len(drv.Committed()); got != 1 {
		t.Fatalf("committed %d statements after commit, want 1", got)
	}
}

func TestNewExecutionClosesPreviousResult(t *testing.T) {
	e, drv := newTestEngine(t)
	drv.On("SELECT 1", memdb.Result{Cols: []string{"a"}, Rows: [][]any{{1}}})
	drv.On("SELECT 2", memdb.Result{Cols: []string{"b"}, Rows: [][]any{{2}}})
	conn := connect(t, e)

	first, err := conn.ExecuteText("SELECT 1")
	if err != nil {
		t.Fatalf("first execute: %v", err)
	}
	second, err := conn.ExecuteText("SELECT 2")
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	defer second.Close()

	if _, err := first.FetchOne(); !errors.Is(err, ErrResultClosed) {
		t.Errorf("fetch on superseded result: err = %v, want ErrResultClosed", err)
	}
}

func TestConnectionQuery(t *testing.T) {
	e, drv := newTestEngine(t)
	drv.On("SELECT a, b FROM t", memdb.Result{
		Cols: []string{"a", "b"},
		Rows: [][]any{{1, 2}},
	})
	conn := connect(t, e)

	cols, rows, err := conn.Query("SELECT a, b FROM t")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(cols) != 2 || cols[0] != "a" {
		t.Errorf("cols = %v", cols)
	}
	if len(rows) != 1 || rows[0][1] != 2 {
		t.Errorf("rows = %v", rows)
	}
}

func TestClosedConnectionRejectsWork(t *testing.T) {
	e, _ := newTestEngine(t)
	conn, err := e.Connect()
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn.Close()

	if _, err := conn.ExecuteText("SELECT 1"); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("err = %v, want ErrConnectionClosed", err)
	}
	if _, err := conn.Begin(); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Begin err = %v, want ErrConnectionClosed", err)
	}
}

func TestInvalidatedConnectionRejectsWork(t *testing.T) {
	e, _ := newTestEngine(t)
	conn := connect(t, e)
	conn.Invalidate()

	if _, err := conn.ExecuteText("SELECT 1"); !errors.Is(err, ErrConnectionInvalid) {
		t.Errorf("err = %v, want ErrConnectionInvalid", err)
	}
}

func TestIntrospectionThroughConnection(t *testing.T) {
	e, drv := newTestEngine(t)
	drv.AddTable(memdb.Table{
		Name:   "users",
		Schema: "main",
		Columns: []core.ColumnInfo{
			{Name: "id", Type: core.Integer},
			{Name: "name", Type: core.Text, Nullable: true},
		},
		PrimaryKey: core.PrimaryKeyInfo{ConstrainedColumns: []string{"id"}},
		Indexes:    []core.IndexInfo{{Name: "ix_users_name", ColumnNames: []string{"name"}}},
	})
	conn := connect(t, e)

	ok, err := conn.HasTable("users", "")
	if err != nil || !ok {
		t.Fatalf("HasTable = %v, %v", ok, err)
	}
	names, err := conn.TableNames("")
	if err != nil {
		t.Fatalf("TableNames: %v", err)
	}
	if len(names) != 1 || names[0] != "users" {
		t.Errorf("TableNames = %v", names)
	}
	cols, err := conn.Columns("users", "")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if len(cols) != 2 || cols[0].Name != "id" {
		t.Errorf("Columns = %v", cols)
	}
	ok, err = conn.HasIndex("users", "ix_users_name", "")
	if err != nil || !ok {
		t.Fatalf("HasIndex = %v, %v", ok, err)
	}
}
