package sqlite

import (
	"errors"
	"io"
	"strings"
	"testing"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/dberr"
	"github.com/RamonWill/strata/driver"
)

func TestCreateConnectArgs(t *testing.T) {
	d := New()

	args, err := d.CreateConnectArgs(&core.URL{})
	if err != nil {
		t.Fatalf("CreateConnectArgs: %v", err)
	}
	if args.DSN() != ":memory:" {
		t.Errorf("empty database DSN = %q, want :memory:", args.DSN())
	}

	args, err = d.CreateConnectArgs(&core.URL{Database: "/tmp/app.db"})
	if err != nil {
		t.Fatalf("CreateConnectArgs: %v", err)
	}
	if args.DSN() != "/tmp/app.db" {
		t.Errorf("DSN = %q", args.DSN())
	}

	args, err = d.CreateConnectArgs(&core.URL{
		Database: "app.db",
		Options:  map[string]string{"mode": "ro"},
	})
	if err != nil {
		t.Fatalf("CreateConnectArgs: %v", err)
	}
	if args.DSN() != "app.db?mode=ro" {
		t.Errorf("DSN with options = %q", args.DSN())
	}
}

func TestClassifyError(t *testing.T) {
	d := New()
	cases := []struct {
		err  error
		want dberr.Kind
	}{
		{sqlite3.Error{Code: sqlite3.ErrConstraint}, dberr.KindIntegrity},
		{sqlite3.Error{Code: sqlite3.ErrError}, dberr.KindProgramming},
		{sqlite3.Error{Code: sqlite3.ErrBusy}, dberr.KindOperational},
		{sqlite3.Error{Code: sqlite3.ErrLocked}, dberr.KindOperational},
		{sqlite3.Error{Code: sqlite3.ErrIoErr}, dberr.KindOperational},
		{sqlite3.Error{Code: sqlite3.ErrFull}, dberr.KindOperational},
		{sqlite3.Error{Code: sqlite3.ErrCorrupt}, dberr.KindInternal},
		{sqlite3.Error{Code: sqlite3.ErrInternal}, dberr.KindInternal},
		{errors.New("opaque"), dberr.KindUnknown},
	}
	for _, c := range cases {
		if got := d.ClassifyError(c.err); got != c.want {
			t.Errorf("ClassifyError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestIsDisconnect(t *testing.T) {
	d := New()
	if !d.IsDisconnect(sqlite3.Error{Code: sqlite3.ErrCantOpen}, nil, nil) {
		t.Error("ErrCantOpen should be a disconnect")
	}
	if !d.IsDisconnect(sqlite3.Error{Code: sqlite3.ErrNotADB}, nil, nil) {
		t.Error("ErrNotADB should be a disconnect")
	}
	if d.IsDisconnect(sqlite3.Error{Code: sqlite3.ErrBusy}, nil, nil) {
		t.Error("ErrBusy is not a disconnect")
	}
	if d.IsDisconnect(errors.New("opaque"), nil, nil) {
		t.Error("non-sqlite errors are not disconnects")
	}
}

func TestTypeFromName(t *testing.T) {
	cases := []struct {
		name string
		want core.TypeKind
	}{
		{"INTEGER", core.IntegerType},
		{"int", core.IntegerType},
		{"BIGINT", core.IntegerType},
		{"VARCHAR(80)", core.StringType},
		{"NVARCHAR(80)", core.StringType},
		{"CLOB", core.StringType},
		{"TEXT", core.TextType},
		{"BLOB", core.BlobType},
		{"", core.BlobType},
		{"REAL", core.FloatType},
		{"DOUBLE", core.FloatType},
		{"FLOAT", core.FloatType},
		{"BOOLEAN", core.BooleanType},
		{"DATETIME", core.DateTimeType},
		{"DATE", core.DateTimeType},
		{"DECIMAL(10,5)", core.NumericType},
	}
	for _, c := range cases {
		if got := typeFromName(c.name); got.Kind != c.want {
			t.Errorf("typeFromName(%q) = %v, want %v", c.name, got.Kind, c.want)
		}
	}
}

func TestCompileType(t *testing.T) {
	cases := []struct {
		typ  core.Type
		want string
	}{
		{core.Integer, "INTEGER"},
		{core.BigInteger, "INTEGER"},
		{core.Boolean, "INTEGER"},
		{core.Float, "REAL"},
		{core.Text, "TEXT"},
		{core.String(32), "VARCHAR(32)"},
		{core.DateTime, "TIMESTAMP"},
		{core.Blob, "BLOB"},
	}
	for _, c := range cases {
		if got := compileType(c.typ); got.SQL != c.want {
			t.Errorf("compileType(%v) = %q, want %q", c.typ, got.SQL, c.want)
		}
	}
}

func TestParseVersion(t *testing.T) {
	v := parseVersion("3.45.1")
	if len(v) != 3 || v[0] != 3 || v[1] != 45 || v[2] != 1 {
		t.Errorf("parseVersion = %v", v)
	}
}

func TestMasterTable(t *testing.T) {
	if masterTable("") != "sqlite_master" {
		t.Errorf("masterTable() = %q", masterTable(""))
	}
	if masterTable("aux") != "aux.sqlite_master" {
		t.Errorf("masterTable(aux) = %q", masterTable("aux"))
	}
}

func TestDialectCapabilities(t *testing.T) {
	d := New()
	if d.Name() != "sqlite" || d.DriverName() != "sqlite3" {
		t.Errorf("identity = %s/%s", d.Name(), d.DriverName())
	}
	if !d.SupportsSavepoints() {
		t.Error("sqlite supports savepoints")
	}
	if d.SupportsTwoPhase() {
		t.Error("sqlite does not support two-phase commit")
	}
	if d.OnConnect() == nil {
		t.Error("sqlite needs an OnConnect callback for foreign keys")
	}
}

// connStub satisfies driver.Conn with a do-nothing cursor.
type connStub struct{}

func (connStub) Cursor() (driver.Cursor, error) { return cursorStub{}, nil }
func (connStub) Begin() error                   { return nil }
func (connStub) Commit() error                  { return nil }
func (connStub) Rollback() error                { return nil }
func (connStub) Close() error                   { return nil }

type cursorStub struct{}

func (cursorStub) Execute(stmt string, args []any) error          { return nil }
func (cursorStub) ExecuteMany(stmt string, argSets [][]any) error { return nil }
func (cursorStub) ExecuteNoParams(stmt string) error              { return nil }
func (cursorStub) Description() []driver.ColumnDesc               { return nil }
func (cursorStub) RowCount() int64                                { return 0 }
func (cursorStub) LastInsertID() (int64, bool)                    { return 0, false }
func (cursorStub) FetchOne() ([]any, error)                       { return nil, io.EOF }
func (cursorStub) FetchMany(n int) ([][]any, error)               { return nil, nil }
func (cursorStub) FetchAll() ([][]any, error)                     { return nil, nil }
func (cursorStub) Close() error                                   { return nil }

func TestIsolationLevelRejectsUnsupported(t *testing.T) {
	d := New()
	err := d.SetIsolationLevel(connStub{}, core.RepeatableRead)
	if !errors.Is(err, dberr.ErrNotSupported) {
		t.Errorf("SetIsolationLevel = %v, want ErrNotSupported", err)
	}
	if !strings.Contains(err.Error(), "REPEATABLE READ") {
		t.Errorf("error should name the level: %v", err)
	}
}
