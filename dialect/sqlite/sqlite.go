// Package sqlite implements the sqlite backend over mattn/go-sqlite3.
package sqlite

import (
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/dberr"
	"github.com/RamonWill/strata/dialect"
	"github.com/RamonWill/strata/driver"
	"github.com/RamonWill/strata/driver/sqladapter"
)

// Dialect is the sqlite policy object. Savepoints are supported;
// two-phase commit is not.
type Dialect struct {
	*dialect.Base
}

// New builds the sqlite dialect.
func New() *Dialect {
	d := &Dialect{
		Base: dialect.NewBase(dialect.Options{
			Name:                "sqlite",
			DriverName:          "sqlite3",
			Driver:              sqladapter.New("sqlite3"),
			Paramstyle:          dialect.ParamQuestion,
			MaxIdentifierLength: 255,
			SupportsSavepoints:  true,
			TypeCompiler:        compileType,
		}),
	}
	d.Bind(d)
	return d
}

// compileType renders generic types with sqlite's affinity names.
func compileType(t core.Type) dialect.Descriptor {
	switch t.Kind {
	case core.IntegerType, core.BigIntegerType, core.BooleanType:
		return dialect.Descriptor{SQL: "INTEGER", Kind: t.Kind}
	case core.FloatType:
		return dialect.Descriptor{SQL: "REAL", Kind: t.Kind}
	case core.NumericType:
		return dialect.Descriptor{SQL: t.String(), Kind: t.Kind}
	case core.StringType, core.TextType:
		return dialect.Descriptor{SQL: t.String(), Kind: t.Kind}
	case core.DateTimeType:
		return dialect.Descriptor{SQL: "TIMESTAMP", Kind: t.Kind}
	case core.BlobType:
		return dialect.Descriptor{SQL: "BLOB", Kind: t.Kind}
	default:
		return dialect.GenericTypeCompiler(t)
	}
}

// CreateConnectArgs builds the sqlite DSN: the database field is the file
// path, or :memory: when empty.
func (d *Dialect) CreateConnectArgs(u *core.URL) (core.ConnectArgs, error) {
	dsn := u.Database
	if dsn == "" {
		dsn = ":memory:"
	}
	var params []string
	for k, v := range u.Options {
		params = append(params, k+"="+v)
	}
	if len(params) > 0 {
		dsn += "?" + strings.Join(params, "&")
	}
	return core.ConnectArgs{Args: []any{dsn}}, nil
}

// OnConnect enables foreign-key enforcement on every new connection;
// sqlite ships with it off.
func (d *Dialect) OnConnect() func(conn driver.Conn) error {
	return func(conn driver.Conn) error {
		cur, err := conn.Cursor()
		if err != nil {
			return err
		}
		defer cur.Close()
		return cur.ExecuteNoParams("PRAGMA foreign_keys=ON")
	}
}

func (d *Dialect) Initialize(q dialect.Querier) error {
	if err := d.Base.Initialize(q); err != nil {
		return err
	}
	_, rows, err := q.Query("SELECT sqlite_version()")
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
	var v []int
	for _, part := range strings.Split(s, ".") {
		var n int
		fmt.Sscanf(part, "%d", &n)
		v = append(v, n)
	}
	return v
}

func qualify(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}

func masterTable(schema string) string {
	if schema == "" {
		return "sqlite_master"
	}
	return schema + ".sqlite_master"
}

func (d *Dialect) HasTable(q dialect.Querier, table, schema string) (bool, error) {
	_, rows, err := q.Query(
		"SELECT name FROM "+masterTable(schema)+" WHERE type='table' AND name=?", table)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (d *Dialect) GetTableNames(q dialect.Querier, schema string) ([]string, error) {
	_, rows, err := q.Query(
		"SELECT name FROM " + masterTable(schema) +
			" WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, fmt.Sprint(r[0]))
	}
	return names, nil
}

func (d *Dialect) GetViewNames(q dialect.Querier, schema string) ([]string, error) {
	_, rows, err := q.Query(
		"SELECT name FROM " + masterTable(schema) + " WHERE type='view' ORDER BY name")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, fmt.Sprint(r[0]))
	}
	return names, nil
}

func (d *Dialect) GetViewDefinition(q dialect.Querier, view, schema string) (string, error) {
	_, rows, err := q.Query(
		"SELECT sql FROM "+masterTable(schema)+" WHERE type='view' AND name=?", view)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no such view: %s", view)
	}
	return fmt.Sprint(rows[0][0]), nil
}

// GetColumns introspects through PRAGMA table_info: cid, name, type,
// notnull, dflt_value, pk.
func (d *Dialect) GetColumns(q dialect.Querier, table, schema string) ([]core.ColumnInfo, error) {
	_, rows, err := q.Query("PRAGMA " + qualify(schema, "table_info("+d.Quote(table)+")"))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no such table: %s", table)
	}
	cols := make([]core.ColumnInfo, 0, len(rows))
	for _, r := range rows {
		info := core.ColumnInfo{
			Name:     fmt.Sprint(r[1]),
			Type:     typeFromName(fmt.Sprint(r[2])),
			Nullable: asInt(r[3]) == 0,
		}
		if r[4] != nil {
			info.Default = fmt.Sprint(r[4])
		}
		cols = append(cols, info)
	}
	return cols, nil
}

// typeFromName maps a declared sqlite column type back to a generic type
// by affinity.
func typeFromName(name string) core.Type {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "INT"):
		return core.Integer
	case strings.Contains(upper, "CHAR"), strings.Contains(upper, "CLOB"):
		return core.Type{Kind: core.StringType}
	case strings.Contains(upper, "TEXT"):
		return core.Text
	case strings.Contains(upper, "BLOB"), upper == "":
		return core.Blob
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "FLOA"),
		strings.Contains(upper, "DOUB"):
		return core.Float
	case strings.Contains(upper, "BOOL"):
		return core.Boolean
	case strings.Contains(upper, "TIME"), strings.Contains(upper, "DATE"):
		return core.DateTime
	default:
		return core.Type{Kind: core.NumericType}
	}
}

func (d *Dialect) GetPrimaryKey(q dialect.Querier, table, schema string) (core.PrimaryKeyInfo, error) {
	_, rows, err := q.Query("PRAGMA " + qualify(schema, "table_info("+d.Quote(table)+")"))
	if err != nil {
		return core.PrimaryKeyInfo{}, err
	}
	var pk core.PrimaryKeyInfo
	for _, r := range rows {
		if asInt(r[5]) > 0 {
			pk.ConstrainedColumns = append(pk.ConstrainedColumns, fmt.Sprint(r[1]))
		}
	}
	return pk, nil
}

// GetIndexes introspects through PRAGMA index_list / index_info.
func (d *Dialect) GetIndexes(q dialect.Querier, table, schema string) ([]core.IndexInfo, error) {
	_, rows, err := q.Query("PRAGMA " + qualify(schema, "index_list("+d.Quote(table)+")"))
	if err != nil {
		return nil, err
	}
	var indexes []core.IndexInfo
	for _, r := range rows {
		name := fmt.Sprint(r[1])
		if strings.HasPrefix(name, "sqlite_autoindex") {
			continue
		}
		ix := core.IndexInfo{Name: name, Unique: asInt(r[2]) != 0}
		_, infoRows, err := q.Query("PRAGMA " + qualify(schema, "index_info("+d.Quote(name)+")"))
		if err != nil {
			return nil, err
		}
		for _, ir := range infoRows {
			ix.ColumnNames = append(ix.ColumnNames, fmt.Sprint(ir[2]))
		}
		indexes = append(indexes, ix)
	}
	return indexes, nil
}

// GetForeignKeys introspects through PRAGMA foreign_key_list: id, seq,
// table, from, to, on_update, on_delete, match.
func (d *Dialect) GetForeignKeys(q dialect.Querier, table, schema string) ([]core.ForeignKeyInfo, error) {
	_, rows, err := q.Query("PRAGMA " + qualify(schema, "foreign_key_list("+d.Quote(table)+")"))
	if err != nil {
		return nil, err
	}
	byID := map[int]*core.ForeignKeyInfo{}
	var order []int
	for _, r := range rows {
		id := asInt(r[0])
		fk, ok := byID[id]
		if !ok {
			fk = &core.ForeignKeyInfo{ReferredTable: fmt.Sprint(r[2])}
			byID[id] = fk
			order = append(order, id)
		}
		fk.ConstrainedColumns = append(fk.ConstrainedColumns, fmt.Sprint(r[3]))
		fk.ReferredColumns = append(fk.ReferredColumns, fmt.Sprint(r[4]))
	}
	fks := make([]core.ForeignKeyInfo, 0, len(order))
	for _, id := range order {
		fks = append(fks, *byID[id])
	}
	return fks, nil
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		var i int
		fmt.Sscanf(n, "%d", &i)
		return i
	default:
		return 0
	}
}

// IsDisconnect: sqlite has no server to lose, but a corrupted or removed
// database file presents the same way.
func (d *Dialect) IsDisconnect(err error, c driver.Conn, cur driver.Cursor) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrCantOpen || se.Code == sqlite3.ErrNotADB
	}
	return false
}

// ClassifyError maps sqlite3 result codes onto the typed taxonomy.
func (d *Dialect) ClassifyError(err error) dberr.Kind {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return d.Base.ClassifyError(err)
	}
	switch se.Code {
	case sqlite3.ErrConstraint:
		return dberr.KindIntegrity
	case sqlite3.ErrError:
		return dberr.KindProgramming
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr,
		sqlite3.ErrFull, sqlite3.ErrCantOpen, sqlite3.ErrNotADB:
		return dberr.KindOperational
	case sqlite3.ErrInternal, sqlite3.ErrCorrupt:
		return dberr.KindInternal
	default:
		return dberr.KindUnknown
	}
}

// GetIsolationLevel: sqlite runs SERIALIZABLE unless read_uncommitted is
// set on the connection.
func (d *Dialect) GetIsolationLevel(c driver.Conn) (core.IsolationLevel, error) {
	cur, err := c.Cursor()
	if err != nil {
		return "", err
	}
	defer cur.Close()
	if err := cur.ExecuteNoParams("PRAGMA read_uncommitted"); err != nil {
		return "", err
	}
	row, err := cur.FetchOne()
	if err != nil {
		return "", err
	}
	if len(row) == 1 && asInt(row[0]) != 0 {
		return core.ReadUncommitted, nil
	}
	return core.Serializable, nil
}

func (d *Dialect) SetIsolationLevel(c driver.Conn, level core.IsolationLevel) error {
	cur, err := c.Cursor()
	if err != nil {
		return err
	}
	defer cur.Close()
	switch level {
	case core.ReadUncommitted:
		return cur.ExecuteNoParams("PRAGMA read_uncommitted=1")
	case core.Serializable:
		return cur.ExecuteNoParams("PRAGMA read_uncommitted=0")
	default:
		return dberr.NotImplemented(fmt.Sprintf("isolation level %s on sqlite", level))
	}
}

func (d *Dialect) ResetIsolationLevel(c driver.Conn) error {
	return d.SetIsolationLevel(c, core.Serializable)
}

func init() {
	dialect.Register("sqlite", func() dialect.Dialect { return New() })
}
