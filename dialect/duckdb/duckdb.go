// Package duckdb implements the duckdb backend over the duckdb-go
// database/sql driver.
package duckdb

import (
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/dberr"
	"github.com/RamonWill/strata/dialect"
	"github.com/RamonWill/strata/driver"
	"github.com/RamonWill/strata/driver/sqladapter"
)

// Dialect is the duckdb policy object. No savepoints and no two-phase
// commit; plain transactions only.
type Dialect struct {
	*dialect.Base
}

// New builds the duckdb dialect.
func New() *Dialect {
	d := &Dialect{
		Base: dialect.NewBase(dialect.Options{
			Name:                  "duckdb",
			DriverName:            "duckdb",
			Driver:                sqladapter.New("duckdb"),
			Paramstyle:            dialect.ParamQuestion,
			MaxIdentifierLength:   255,
			SupportsSequences:     true,
			SupportsNativeBoolean: true,
			TypeCompiler:          compileType,
		}),
	}
	d.Bind(d)
	return d
}

func compileType(t core.Type) dialect.Descriptor {
	switch t.Kind {
	case core.FloatType:
		return dialect.Descriptor{SQL: "DOUBLE", Kind: t.Kind}
	case core.BlobType:
		return dialect.Descriptor{SQL: "BLOB", Kind: t.Kind}
	default:
		return dialect.GenericTypeCompiler(t)
	}
}

// CreateConnectArgs: the database field is the file path, empty for an
// in-memory database.
func (d *Dialect) CreateConnectArgs(u *core.URL) (core.ConnectArgs, error) {
	dsn := u.Database
	var params []string
	for k, v := range u.Options {
		params = append(params, k+"="+v)
	}
	if len(params) > 0 {
		dsn += "?" + strings.Join(params, "&")
	}
	return core.ConnectArgs{Args: []any{dsn}}, nil
}

func (d *Dialect) Initialize(q dialect.Querier) error {
	if err := d.Base.Initialize(q); err != nil {
		return err
	}
	_, rows, err := q.Query("SELECT version()")
	if err != nil {
		return err
	}
	if len(rows) == 1 && len(rows[0]) == 1 {
		d.SetServerVersionInfo(parseVersion(fmt.Sprint(rows[0][0])))
	}
	d.SetDefaultSchemaName("main")
	return nil
}

func parseVersion(s string) []int {
	s = strings.TrimPrefix(s, "v")
	var v []int
	for _, part := range strings.Split(s, ".") {
		var n int
		fmt.Sscanf(part, "%d", &n)
		v = append(v, n)
	}
	return v
}

func orMain(schema string) string {
	if schema == "" {
		return "main"
	}
	return schema
}

func (d *Dialect) HasTable(q dialect.Querier, table, schema string) (bool, error) {
	_, rows, err := q.Query(
		"SELECT 1 FROM duckdb_tables() WHERE table_name = ? AND schema_name = ?",
		table, orMain(schema))
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (d *Dialect) HasSequence(q dialect.Querier, sequence, schema string) (bool, error) {
	_, rows, err := q.Query(
		"SELECT 1 FROM duckdb_sequences() WHERE sequence_name = ? AND schema_name = ?",
		sequence, orMain(schema))
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (d *Dialect) GetTableNames(q dialect.Querier, schema string) ([]string, error) {
	_, rows, err := q.Query(
		"SELECT table_name FROM duckdb_tables() WHERE schema_name = ? ORDER BY table_name",
		orMain(schema))
	if err != nil {
		return nil, err
	}
	return firstColumn(rows), nil
}

func (d *Dialect) GetViewNames(q dialect.Querier, schema string) ([]string, error) {
	_, rows, err := q.Query(
		"SELECT view_name FROM duckdb_views() WHERE schema_name = ? AND NOT internal ORDER BY view_name",
		orMain(schema))
	if err != nil {
		return nil, err
	}
	return firstColumn(rows), nil
}

func (d *Dialect) GetViewDefinition(q dialect.Querier, view, schema string) (string, error) {
	_, rows, err := q.Query(
		"SELECT sql FROM duckdb_views() WHERE view_name = ? AND schema_name = ?",
		view, orMain(schema))
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no such view: %s", view)
	}
	return fmt.Sprint(rows[0][0]), nil
}

func (d *Dialect) GetColumns(q dialect.Querier, table, schema string) ([]core.ColumnInfo, error) {
	_, rows, err := q.Query(
		"SELECT column_name, data_type, is_nullable, column_default"+
			" FROM duckdb_columns() WHERE table_name = ? AND schema_name = ?"+
			" ORDER BY column_index",
		table, orMain(schema))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no such table: %s", table)
	}
	cols := make([]core.ColumnInfo, 0, len(rows))
	for _, r := range rows {
		info := core.ColumnInfo{
			Name:     fmt.Sprint(r[0]),
			Type:     typeFromName(fmt.Sprint(r[1])),
			Nullable: r[2] == true,
		}
		if r[3] != nil {
			info.Default = fmt.Sprint(r[3])
			if strings.HasPrefix(info.Default, "nextval(") {
				info.Autoincrement = true
			}
		}
		cols = append(cols, info)
	}
	return cols, nil
}

func typeFromName(name string) core.Type {
	upper := strings.ToUpper(name)
	switch {
	case strings.HasPrefix(upper, "BIGINT"), strings.HasPrefix(upper, "HUGEINT"):
		return core.BigInteger
	case strings.HasPrefix(upper, "INTEGER"), strings.HasPrefix(upper, "SMALLINT"),
		strings.HasPrefix(upper, "TINYINT"):
		return core.Integer
	case strings.HasPrefix(upper, "VARCHAR"):
		return core.Type{Kind: core.StringType}
	case strings.HasPrefix(upper, "BOOLEAN"):
		return core.Boolean
	case strings.HasPrefix(upper, "DECIMAL"), strings.HasPrefix(upper, "NUMERIC"):
		return core.Type{Kind: core.NumericType}
	case strings.HasPrefix(upper, "DOUBLE"), strings.HasPrefix(upper, "FLOAT"),
		strings.HasPrefix(upper, "REAL"):
		return core.Float
	case strings.HasPrefix(upper, "TIMESTAMP"):
		return core.DateTime
	case strings.HasPrefix(upper, "DATE"):
		return core.Type{Kind: core.DateType}
	case strings.HasPrefix(upper, "BLOB"):
		return core.Blob
	default:
		return core.Type{}
	}
}

func (d *Dialect) GetPrimaryKey(q dialect.Querier, table, schema string) (core.PrimaryKeyInfo, error) {
	_, rows, err := q.Query(
		"SELECT constraint_name, constraint_column_names FROM duckdb_constraints()"+
			" WHERE table_name = ? AND schema_name = ? AND constraint_type = 'PRIMARY KEY'",
		table, orMain(schema))
	if err != nil {
		return core.PrimaryKeyInfo{}, err
	}
	if len(rows) == 0 {
		return core.PrimaryKeyInfo{}, nil
	}
	pk := core.PrimaryKeyInfo{Name: fmt.Sprint(rows[0][0])}
	pk.ConstrainedColumns = asStrings(rows[0][1])
	return pk, nil
}

func (d *Dialect) GetIndexes(q dialect.Querier, table, schema string) ([]core.IndexInfo, error) {
	_, rows, err := q.Query(
		"SELECT index_name, is_unique, expressions FROM duckdb_indexes()"+
			" WHERE table_name = ? AND schema_name = ? ORDER BY index_name",
		table, orMain(schema))
	if err != nil {
		return nil, err
	}
	indexes := make([]core.IndexInfo, 0, len(rows))
	for _, r := range rows {
		indexes = append(indexes, core.IndexInfo{
			Name:        fmt.Sprint(r[0]),
			Unique:      r[1] == true,
			ColumnNames: asStrings(r[2]),
		})
	}
	return indexes, nil
}

func (d *Dialect) GetUniqueConstraints(q dialect.Querier, table, schema string) ([]core.UniqueConstraintInfo, error) {
	_, rows, err := q.Query(
		"SELECT constraint_name, constraint_column_names FROM duckdb_constraints()"+
			" WHERE table_name = ? AND schema_name = ? AND constraint_type = 'UNIQUE'",
		table, orMain(schema))
	if err != nil {
		return nil, err
	}
	ucs := make([]core.UniqueConstraintInfo, 0, len(rows))
	for _, r := range rows {
		ucs = append(ucs, core.UniqueConstraintInfo{
			Name:        fmt.Sprint(r[0]),
			ColumnNames: asStrings(r[1]),
		})
	}
	return ucs, nil
}

func (d *Dialect) GetCheckConstraints(q dialect.Querier, table, schema string) ([]core.CheckConstraintInfo, error) {
	_, rows, err := q.Query(
		"SELECT constraint_name, constraint_text FROM duckdb_constraints()"+
			" WHERE table_name = ? AND schema_name = ? AND constraint_type = 'CHECK'",
		table, orMain(schema))
	if err != nil {
		return nil, err
	}
	ccs := make([]core.CheckConstraintInfo, 0, len(rows))
	for _, r := range rows {
		ccs = append(ccs, core.CheckConstraintInfo{
			Name:    fmt.Sprint(r[0]),
			SQLText: fmt.Sprint(r[1]),
		})
	}
	return ccs, nil
}

// asStrings flattens a driver-reported list value (duckdb LIST columns
// scan as []any) into strings.
func asStrings(v any) []string {
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case []string:
		return list
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(v)}
	}
}

func firstColumn(rows [][]any) []string {
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, fmt.Sprint(r[0]))
	}
	return names
}

func (d *Dialect) IsDisconnect(err error, c driver.Conn, cur driver.Cursor) bool {
	msg := err.Error()
	return strings.Contains(msg, "database has been invalidated") ||
		strings.Contains(msg, "connection was closed")
}

// ClassifyError keys off duckdb's message prefixes; the driver exposes no
// structured error codes.
func (d *Dialect) ClassifyError(err error) dberr.Kind {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Constraint Error"):
		return dberr.KindIntegrity
	case strings.Contains(msg, "Parser Error"),
		strings.Contains(msg, "Binder Error"),
		strings.Contains(msg, "Catalog Error"):
		return dberr.KindProgramming
	case strings.Contains(msg, "Out of Memory Error"),
		strings.Contains(msg, "IO Error"),
		strings.Contains(msg, "TransactionContext Error"):
		return dberr.KindOperational
	case strings.Contains(msg, "INTERNAL Error"):
		return dberr.KindInternal
	default:
		return d.Base.ClassifyError(err)
	}
}

func init() {
	dialect.Register("duckdb", func() dialect.Dialect { return New() })
}
