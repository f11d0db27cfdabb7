// Package postgres implements the postgres backend over lib/pq.
package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/dberr"
	"github.com/RamonWill/strata/dialect"
	"github.com/RamonWill/strata/driver"
	"github.com/RamonWill/strata/driver/sqladapter"
)

// Dialect is the postgres policy object: dollar paramstyle, savepoints,
// two-phase commit, implicit RETURNING.
type Dialect struct {
	*dialect.Base
}

// New builds the postgres dialect.
func New() *Dialect {
	d := &Dialect{
		Base: dialect.NewBase(dialect.Options{
			Name:                  "postgres",
			DriverName:            "pq",
			Driver:                sqladapter.New("postgres"),
			Paramstyle:            dialect.ParamDollar,
			MaxIdentifierLength:   63,
			SupportsSequences:     true,
			SupportsNativeBoolean: true,
			SupportsSavepoints:    true,
			SupportsTwoPhase:      true,
			ImplicitReturning:     true,
			TypeCompiler:          compileType,
		}),
	}
	d.Bind(d)
	return d
}

func compileType(t core.Type) dialect.Descriptor {
	switch t.Kind {
	case core.FloatType:
		return dialect.Descriptor{SQL: "DOUBLE PRECISION", Kind: t.Kind}
	case core.DateTimeType:
		return dialect.Descriptor{SQL: "TIMESTAMP WITHOUT TIME ZONE", Kind: t.Kind}
	case core.BlobType:
		return dialect.Descriptor{SQL: "BYTEA", Kind: t.Kind}
	default:
		return dialect.GenericTypeCompiler(t)
	}
}

// CreateConnectArgs renders the keyword/value DSN lib/pq expects.
func (d *Dialect) CreateConnectArgs(u *core.URL) (core.ConnectArgs, error) {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("host", u.Host)
	if u.Port != 0 {
		parts = append(parts, fmt.Sprintf("port=%d", u.Port))
	}
	add("user", u.Username)
	add("password", u.Password)
	add("dbname", u.Database)
	if _, ok := u.Options["sslmode"]; !ok {
		parts = append(parts, "sslmode=disable")
	}
	for k, v := range u.Options {
		add(k, v)
	}
	return core.ConnectArgs{Args: []any{strings.Join(parts, " ")}}, nil
}

func (d *Dialect) Initialize(q dialect.Querier) error {
	if err := d.Base.Initialize(q); err != nil {
		return err
	}
	_, rows, err := q.Query("SELECT current_setting('server_version')")
	if err != nil {
		return err
	}
	if len(rows) == 1 && len(rows[0]) == 1 {
		d.SetServerVersionInfo(parseVersion(fmt.Sprint(rows[0][0])))
	}
	_, rows, err = q.Query("SELECT current_schema()")
	if err != nil {
		return err
	}
	if len(rows) == 1 && len(rows[0]) == 1 {
		d.SetDefaultSchemaName(fmt.Sprint(rows[0][0]))
	}
	return nil
}

func parseVersion(s string) []int {
	// "16.2 (Debian 16.2-1)" -> [16, 2]
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	var v []int
	for _, part := range strings.Split(s, ".") {
		var n int
		fmt.Sscanf(part, "%d", &n)
		v = append(v, n)
	}
	return v
}

func schemaOrCurrent(schema string) string {
	if schema == "" {
		return "current_schema()"
	}
	return "$2"
}

func (d *Dialect) schemaArgs(first any, schema string) []any {
	if schema == "" {
		return []any{first}
	}
	return []any{first, schema}
}

func (d *Dialect) HasTable(q dialect.Querier, table, schema string) (bool, error) {
	_, rows, err := q.Query(
		"SELECT 1 FROM pg_catalog.pg_class c"+
			" JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace"+
			" WHERE c.relkind IN ('r','p') AND c.relname = $1 AND n.nspname = "+schemaOrCurrent(schema),
		d.schemaArgs(table, schema)...)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (d *Dialect) HasSequence(q dialect.Querier, sequence, schema string) (bool, error) {
	_, rows, err := q.Query(
		"SELECT 1 FROM pg_catalog.pg_class c"+
			" JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace"+
			" WHERE c.relkind = 'S' AND c.relname = $1 AND n.nspname = "+schemaOrCurrent(schema),
		d.schemaArgs(sequence, schema)...)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (d *Dialect) GetTableNames(q dialect.Querier, schema string) ([]string, error) {
	stmt := "SELECT c.relname FROM pg_catalog.pg_class c" +
		" JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace" +
		" WHERE c.relkind IN ('r','p') AND n.nspname = "
	var rows [][]any
	var err error
	if schema == "" {
		_, rows, err = q.Query(stmt + "current_schema() ORDER BY c.relname")
	} else {
		_, rows, err = q.Query(stmt+"$1 ORDER BY c.relname", schema)
	}
	if err != nil {
		return nil, err
	}
	return firstColumn(rows), nil
}

func (d *Dialect) GetViewNames(q dialect.Querier, schema string) ([]string, error) {
	stmt := "SELECT c.relname FROM pg_catalog.pg_class c" +
		" JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace" +
		" WHERE c.relkind IN ('v','m') AND n.nspname = "
	var rows [][]any
	var err error
	if schema == "" {
		_, rows, err = q.Query(stmt + "current_schema() ORDER BY c.relname")
	} else {
		_, rows, err = q.Query(stmt+"$1 ORDER BY c.relname", schema)
	}
	if err != nil {
		return nil, err
	}
	return firstColumn(rows), nil
}

func (d *Dialect) GetViewDefinition(q dialect.Querier, view, schema string) (string, error) {
	_, rows, err := q.Query(
		"SELECT pg_get_viewdef(c.oid) FROM pg_catalog.pg_class c"+
			" JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace"+
			" WHERE c.relname = $1 AND n.nspname = "+schemaOrCurrent(schema),
		d.schemaArgs(view, schema)...)
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
		"SELECT a.attname, pg_catalog.format_type(a.atttypid, a.atttypmod),"+
			" NOT a.attnotnull, pg_catalog.pg_get_expr(ad.adbin, ad.adrelid)"+
			" FROM pg_catalog.pg_attribute a"+
			" JOIN pg_catalog.pg_class c ON c.oid = a.attrelid"+
			" JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace"+
			" LEFT JOIN pg_catalog.pg_attrdef ad ON ad.adrelid = a.attrelid AND ad.adnum = a.attnum"+
			" WHERE c.relname = $1 AND n.nspname = "+schemaOrCurrent(schema)+
			" AND a.attnum > 0 AND NOT a.attisdropped ORDER BY a.attnum",
		d.schemaArgs(table, schema)...)
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
	case strings.HasPrefix(upper, "BIGINT"), strings.HasPrefix(upper, "BIGSERIAL"):
		return core.BigInteger
	case strings.HasPrefix(upper, "INT"), strings.HasPrefix(upper, "SMALLINT"),
		strings.HasPrefix(upper, "SERIAL"):
		return core.Integer
	case strings.HasPrefix(upper, "CHARACTER VARYING"), strings.HasPrefix(upper, "VARCHAR"):
		return core.Type{Kind: core.StringType}
	case strings.HasPrefix(upper, "TEXT"):
		return core.Text
	case strings.HasPrefix(upper, "BOOLEAN"):
		return core.Boolean
	case strings.HasPrefix(upper, "NUMERIC"), strings.HasPrefix(upper, "DECIMAL"):
		return core.Type{Kind: core.NumericType}
	case strings.HasPrefix(upper, "DOUBLE"), strings.HasPrefix(upper, "REAL"):
		return core.Float
	case strings.HasPrefix(upper, "TIMESTAMP"):
		return core.DateTime
	case strings.HasPrefix(upper, "DATE"):
		return core.Type{Kind: core.DateType}
	case strings.HasPrefix(upper, "BYTEA"):
		return core.Blob
	default:
		return core.Type{}
	}
}

func (d *Dialect) GetPrimaryKey(q dialect.Querier, table, schema string) (core.PrimaryKeyInfo, error) {
	_, rows, err := q.Query(
		"SELECT con.conname, a.attname"+
			" FROM pg_catalog.pg_constraint con"+
			" JOIN pg_catalog.pg_class c ON c.oid = con.conrelid"+
			" JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace"+
			" JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(con.conkey)"+
			" WHERE con.contype = 'p' AND c.relname = $1 AND n.nspname = "+schemaOrCurrent(schema)+
			" ORDER BY array_position(con.conkey, a.attnum)",
		d.schemaArgs(table, schema)...)
	if err != nil {
		return core.PrimaryKeyInfo{}, err
	}
	var pk core.PrimaryKeyInfo
	for _, r := range rows {
		pk.Name = fmt.Sprint(r[0])
		pk.ConstrainedColumns = append(pk.ConstrainedColumns, fmt.Sprint(r[1]))
	}
	return pk, nil
}

func (d *Dialect) GetIndexes(q dialect.Querier, table, schema string) ([]core.IndexInfo, error) {
	_, rows, err := q.Query(
		"SELECT ic.relname, ix.indisunique, a.attname"+
			" FROM pg_catalog.pg_index ix"+
			" JOIN pg_catalog.pg_class c ON c.oid = ix.indrelid"+
			" JOIN pg_catalog.pg_class ic ON ic.oid = ix.indexrelid"+
			" JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace"+
			" JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(ix.indkey)"+
			" WHERE NOT ix.indisprimary AND c.relname = $1 AND n.nspname = "+schemaOrCurrent(schema)+
			" ORDER BY ic.relname, array_position(ix.indkey, a.attnum)",
		d.schemaArgs(table, schema)...)
	if err != nil {
		return nil, err
	}
	var indexes []core.IndexInfo
	byName := map[string]int{}
	for _, r := range rows {
		name := fmt.Sprint(r[0])
		i, ok := byName[name]
		if !ok {
			i = len(indexes)
			byName[name] = i
			indexes = append(indexes, core.IndexInfo{Name: name, Unique: r[1] == true})
		}
		indexes[i].ColumnNames = append(indexes[i].ColumnNames, fmt.Sprint(r[2]))
	}
	return indexes, nil
}

func (d *Dialect) GetForeignKeys(q dialect.Querier, table, schema string) ([]core.ForeignKeyInfo, error) {
	_, rows, err := q.Query(
		"SELECT con.conname, rc.relname, rn.nspname,"+
			" a.attname, ra.attname"+
			" FROM pg_catalog.pg_constraint con"+
			" JOIN pg_catalog.pg_class c ON c.oid = con.conrelid"+
			" JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace"+
			" JOIN pg_catalog.pg_class rc ON rc.oid = con.confrelid"+
			" JOIN pg_catalog.pg_namespace rn ON rn.oid = rc.relnamespace"+
			" JOIN LATERAL unnest(con.conkey, con.confkey) AS k(attnum, fattnum) ON TRUE"+
			" JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum"+
			" JOIN pg_catalog.pg_attribute ra ON ra.attrelid = rc.oid AND ra.attnum = k.fattnum"+
			" WHERE con.contype = 'f' AND c.relname = $1 AND n.nspname = "+schemaOrCurrent(schema)+
			" ORDER BY con.conname",
		d.schemaArgs(table, schema)...)
	if err != nil {
		return nil, err
	}
	var fks []core.ForeignKeyInfo
	byName := map[string]int{}
	for _, r := range rows {
		name := fmt.Sprint(r[0])
		i, ok := byName[name]
		if !ok {
			i = len(fks)
			byName[name] = i
			fks = append(fks, core.ForeignKeyInfo{
				Name:           name,
				ReferredTable:  fmt.Sprint(r[1]),
				ReferredSchema: fmt.Sprint(r[2]),
			})
		}
		fks[i].ConstrainedColumns = append(fks[i].ConstrainedColumns, fmt.Sprint(r[3]))
		fks[i].ReferredColumns = append(fks[i].ReferredColumns, fmt.Sprint(r[4]))
	}
	return fks, nil
}

func (d *Dialect) GetUniqueConstraints(q dialect.Querier, table, schema string) ([]core.UniqueConstraintInfo, error) {
	_, rows, err := q.Query(
		"SELECT con.conname, a.attname"+
			" FROM pg_catalog.pg_constraint con"+
			" JOIN pg_catalog.pg_class c ON c.oid = con.conrelid"+
			" JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace"+
			" JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(con.conkey)"+
			" WHERE con.contype = 'u' AND c.relname = $1 AND n.nspname = "+schemaOrCurrent(schema)+
			" ORDER BY con.conname, array_position(con.conkey, a.attnum)",
		d.schemaArgs(table, schema)...)
	if err != nil {
		return nil, err
	}
	var ucs []core.UniqueConstraintInfo
	byName := map[string]int{}
	for _, r := range rows {
		name := fmt.Sprint(r[0])
		i, ok := byName[name]
		if !ok {
			i = len(ucs)
			byName[name] = i
			ucs = append(ucs, core.UniqueConstraintInfo{Name: name})
		}
		ucs[i].ColumnNames = append(ucs[i].ColumnNames, fmt.Sprint(r[1]))
	}
	return ucs, nil
}

func (d *Dialect) GetCheckConstraints(q dialect.Querier, table, schema string) ([]core.CheckConstraintInfo, error) {
	_, rows, err := q.Query(
		"SELECT con.conname, pg_get_constraintdef(con.oid)"+
			" FROM pg_catalog.pg_constraint con"+
			" JOIN pg_catalog.pg_class c ON c.oid = con.conrelid"+
			" JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace"+
			" WHERE con.contype = 'c' AND c.relname = $1 AND n.nspname = "+schemaOrCurrent(schema)+
			" ORDER BY con.conname",
		d.schemaArgs(table, schema)...)
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

func (d *Dialect) GetTableComment(q dialect.Querier, table, schema string) (core.TableComment, error) {
	_, rows, err := q.Query(
		"SELECT obj_description(c.oid, 'pg_class')"+
			" FROM pg_catalog.pg_class c"+
			" JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace"+
			" WHERE c.relname = $1 AND n.nspname = "+schemaOrCurrent(schema),
		d.schemaArgs(table, schema)...)
	if err != nil {
		return core.TableComment{}, err
	}
	if len(rows) == 0 || rows[0][0] == nil {
		return core.TableComment{}, nil
	}
	return core.TableComment{Text: fmt.Sprint(rows[0][0])}, nil
}

func firstColumn(rows [][]any) []string {
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, fmt.Sprint(r[0]))
	}
	return names
}

// DoRecoverTwoPhase lists outstanding prepared transactions from
// pg_prepared_xacts.
func (d *Dialect) DoRecoverTwoPhase(c driver.Conn) ([]core.Xid, error) {
	cur, err := c.Cursor()
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	if err := cur.ExecuteNoParams("SELECT gid FROM pg_prepared_xacts"); err != nil {
		return nil, err
	}
	rows, err := cur.FetchAll()
	if err != nil {
		return nil, err
	}
	xids := make([]core.Xid, 0, len(rows))
	for _, r := range rows {
		xids = append(xids, core.Xid(fmt.Sprint(r[0])))
	}
	return xids, nil
}

// disconnect SQLSTATEs: class 08 (connection exceptions) plus the
// admin-initiated shutdown family.
var disconnectCodes = map[string]bool{
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

func (d *Dialect) IsDisconnect(err error, c driver.Conn, cur driver.Cursor) bool {
	var pe *pq.Error
	if errors.As(err, &pe) {
		code := string(pe.Code)
		return strings.HasPrefix(code, "08") || disconnectCodes[code]
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "EOF")
}

// ClassifyError maps SQLSTATE classes onto the typed taxonomy.
func (d *Dialect) ClassifyError(err error) dberr.Kind {
	var pe *pq.Error
	if !errors.As(err, &pe) {
		return d.Base.ClassifyError(err)
	}
	code := string(pe.Code)
	if len(code) < 2 {
		return dberr.KindUnknown
	}
	switch code[:2] {
	case "23":
		return dberr.KindIntegrity
	case "42", "26", "34":
		return dberr.KindProgramming
	case "08", "53", "54", "55", "57", "58":
		return dberr.KindOperational
	case "XX":
		return dberr.KindInternal
	default:
		return dberr.KindUnknown
	}
}

func (d *Dialect) GetIsolationLevel(c driver.Conn) (core.IsolationLevel, error) {
	cur, err := c.Cursor()
	if err != nil {
		return "", err
	}
	defer cur.Close()
	if err := cur.ExecuteNoParams("SHOW TRANSACTION ISOLATION LEVEL"); err != nil {
		return "", err
	}
	row, err := cur.FetchOne()
	if err != nil {
		return "", err
	}
	if len(row) != 1 {
		return "", fmt.Errorf("unexpected isolation level row: %v", row)
	}
	return core.IsolationLevel(strings.ToUpper(fmt.Sprint(row[0]))), nil
}

func (d *Dialect) SetIsolationLevel(c driver.Conn, level core.IsolationLevel) error {
	cur, err := c.Cursor()
	if err != nil {
		return err
	}
	defer cur.Close()
	return cur.ExecuteNoParams(
		"SET SESSION CHARACTERISTICS AS TRANSACTION ISOLATION LEVEL " + string(level))
}

func (d *Dialect) ResetIsolationLevel(c driver.Conn) error {
	return d.SetIsolationLevel(c, core.ReadCommitted)
}

func init() {
	dialect.Register("postgres", func() dialect.Dialect { return New() })
}
