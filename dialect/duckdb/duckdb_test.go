package duckdb

import (
	"errors"
	"testing"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/dberr"
)

func TestCreateConnectArgs(t *testing.T) {
	d := New()

	args, err := d.CreateConnectArgs(&core.URL{})
	if err != nil {
		t.Fatalf("CreateConnectArgs: %v", err)
	}
	if args.DSN() != "" {
		t.Errorf("empty database DSN = %q, want empty (in-memory)", args.DSN())
	}

	args, err = d.CreateConnectArgs(&core.URL{Database: "warehouse.db"})
	if err != nil {
		t.Fatalf("CreateConnectArgs: %v", err)
	}
	if args.DSN() != "warehouse.db" {
		t.Errorf("DSN = %q", args.DSN())
	}

	args, err = d.CreateConnectArgs(&core.URL{
		Database: "warehouse.db",
		Options:  map[string]string{"access_mode": "read_only"},
	})
	if err != nil {
		t.Fatalf("CreateConnectArgs: %v", err)
	}
	if args.DSN() != "warehouse.db?access_mode=read_only" {
		t.Errorf("DSN with options = %q", args.DSN())
	}
}

func TestClassifyError(t *testing.T) {
	d := New()
	cases := []struct {
		msg  string
		want dberr.Kind
	}{
		{"Constraint Error: Duplicate key violates primary key constraint", dberr.KindIntegrity},
		{"Parser Error: syntax error at or near", dberr.KindProgramming},
		{"Binder Error: Referenced column not found", dberr.KindProgramming},
		{"Catalog Error: Table with name t does not exist", dberr.KindProgramming},
		{"Out of Memory Error: could not allocate block", dberr.KindOperational},
		{"IO Error: could not read from file", dberr.KindOperational},
		{"TransactionContext Error: cannot commit", dberr.KindOperational},
		{"INTERNAL Error: assertion failed", dberr.KindInternal},
		{"something else entirely", dberr.KindUnknown},
	}
	for _, c := range cases {
		if got := d.ClassifyError(errors.New(c.msg)); got != c.want {
			t.Errorf("ClassifyError(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}

func TestIsDisconnect(t *testing.T) {
	d := New()
	if !d.IsDisconnect(errors.New("database has been invalidated"), nil, nil) {
		t.Error("invalidated database should be a disconnect")
	}
	if !d.IsDisconnect(errors.New("connection was closed"), nil, nil) {
		t.Error("closed connection should be a disconnect")
	}
	if d.IsDisconnect(errors.New("Constraint Error: duplicate"), nil, nil) {
		t.Error("constraint violation is not a disconnect")
	}
}

func TestTypeFromName(t *testing.T) {
	cases := []struct {
		name string
		want core.TypeKind
	}{
		{"INTEGER", core.IntegerType},
		{"SMALLINT", core.IntegerType},
		{"TINYINT", core.IntegerType},
		{"BIGINT", core.BigIntegerType},
		{"HUGEINT", core.BigIntegerType},
		{"VARCHAR", core.StringType},
		{"BOOLEAN", core.BooleanType},
		{"DECIMAL(18,3)", core.NumericType},
		{"DOUBLE", core.FloatType},
		{"FLOAT", core.FloatType},
		{"TIMESTAMP", core.DateTimeType},
		{"DATE", core.DateType},
		{"BLOB", core.BlobType},
		{"STRUCT(a INTEGER)", core.NullType},
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
		{core.Float, "DOUBLE"},
		{core.Blob, "BLOB"},
		{core.Integer, "INTEGER"},
		{core.Boolean, "BOOLEAN"},
	}
	for _, c := range cases {
		if got := compileType(c.typ); got.SQL != c.want {
			t.Errorf("compileType(%v) = %q, want %q", c.typ, got.SQL, c.want)
		}
	}
}

func TestAsStrings(t *testing.T) {
	if got := asStrings([]any{"a", "b"}); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("asStrings([]any) = %v", got)
	}
	if got := asStrings([]string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Errorf("asStrings([]string) = %v", got)
	}
	if got := asStrings(nil); got != nil {
		t.Errorf("asStrings(nil) = %v, want nil", got)
	}
	if got := asStrings("solo"); len(got) != 1 || got[0] != "solo" {
		t.Errorf("asStrings(scalar) = %v", got)
	}
}

func TestParseVersion(t *testing.T) {
	v := parseVersion("v1.3.2")
	if len(v) != 3 || v[0] != 1 || v[1] != 3 || v[2] != 2 {
		t.Errorf("parseVersion = %v", v)
	}
}

func TestDialectCapabilities(t *testing.T) {
	d := New()
	if d.Name() != "duckdb" || d.DriverName() != "duckdb" {
		t.Errorf("identity = %s/%s", d.Name(), d.DriverName())
	}
	if d.SupportsSavepoints() || d.SupportsTwoPhase() {
		t.Error("duckdb supports neither savepoints nor two-phase commit")
	}
	if !d.SupportsSequences() || !d.SupportsNativeBoolean() {
		t.Error("duckdb supports sequences and native booleans")
	}
}
