package memdb

import (
	"sort"
	"strings"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/dialect"
	"github.com/RamonWill/strata/driver"
)

// Dialect is the policy object for the in-memory backend. It supports
// savepoints and two-phase commit so the full transaction protocol is
// exercisable in tests.
type Dialect struct {
	*dialect.Base
	drv *Driver

	// DirectHasIndex switches HasIndex from the generic
	// HasTable+GetIndexes fallback to a direct registry lookup.
	DirectHasIndex bool
}

// NewDialect builds a dialect over drv.
func NewDialect(drv *Driver) *Dialect {
	d := &Dialect{
		Base: dialect.NewBase(dialect.Options{
			Name:                  "mem",
			DriverName:            "memdb",
			Driver:                drv,
			Paramstyle:            dialect.ParamQuestion,
			MaxIdentifierLength:   64,
			SupportsSavepoints:    true,
			SupportsTwoPhase:      true,
			SupportsNativeBoolean: true,
			ImplicitReturning:     true,
		}),
		drv: drv,
	}
	d.Bind(d)
	return d
}

func (d *Dialect) CreateConnectArgs(u *core.URL) (core.ConnectArgs, error) {
	return core.ConnectArgs{Args: []any{u.Database}}, nil
}

func (d *Dialect) Initialize(q dialect.Querier) error {
	if err := d.Base.Initialize(q); err != nil {
		return err
	}
	d.SetServerVersionInfo([]int{1, 0})
	d.SetDefaultSchemaName("main")
	return nil
}

// IsDisconnect matches the connection-reset signature the in-memory
// driver raises when the simulated network drops.
func (d *Dialect) IsDisconnect(err error, c driver.Conn, cur driver.Cursor) bool {
	return err != nil && strings.Contains(err.Error(), "connection reset")
}

func (d *Dialect) DoRecoverTwoPhase(c driver.Conn) ([]core.Xid, error) {
	return d.drv.PreparedXids(), nil
}

func (d *Dialect) table(table, schema string) (Table, bool) {
	d.drv.mu.Lock()
	defer d.drv.mu.Unlock()
	t, ok := d.drv.tables[tableKey(schema, table)]
	return t, ok
}

func (d *Dialect) HasTable(q dialect.Querier, table, schema string) (bool, error) {
	_, ok := d.table(table, schema)
	return ok, nil
}

func (d *Dialect) GetColumns(q dialect.Querier, table, schema string) ([]core.ColumnInfo, error) {
	t, ok := d.table(table, schema)
	if !ok {
		return nil, driver.Errorf(driver.CategoryProgramming, "", "no such table: %s", table)
	}
	return append([]core.ColumnInfo(nil), t.Columns...), nil
}

func (d *Dialect) GetPrimaryKey(q dialect.Querier, table, schema string) (core.PrimaryKeyInfo, error) {
	t, ok := d.table(table, schema)
	if !ok {
		return core.PrimaryKeyInfo{}, driver.Errorf(driver.CategoryProgramming, "", "no such table: %s", table)
	}
	return t.PrimaryKey, nil
}

func (d *Dialect) GetIndexes(q dialect.Querier, table, schema string) ([]core.IndexInfo, error) {
	t, ok := d.table(table, schema)
	if !ok {
		return nil, driver.Errorf(driver.CategoryProgramming, "", "no such table: %s", table)
	}
	return append([]core.IndexInfo(nil), t.Indexes...), nil
}

func (d *Dialect) GetTableNames(q dialect.Querier, schema string) ([]string, error) {
	d.drv.mu.Lock()
	defer d.drv.mu.Unlock()
	var names []string
	for _, t := range d.drv.tables {
		if t.Schema == schema || (schema == "" && (t.Schema == "" || t.Schema == "main")) {
			names = append(names, t.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (d *Dialect) GetTableComment(q dialect.Querier, table, schema string) (core.TableComment, error) {
	t, ok := d.table(table, schema)
	if !ok {
		return core.TableComment{}, driver.Errorf(driver.CategoryProgramming, "", "no such table: %s", table)
	}
	return core.TableComment{Text: t.Comment}, nil
}

func (d *Dialect) HasIndex(q dialect.Querier, table, index, schema string) (bool, error) {
	if !d.DirectHasIndex {
		return d.Base.HasIndex(q, table, index, schema)
	}
	t, ok := d.table(table, schema)
	if !ok {
		return false, nil
	}
	for _, ix := range t.Indexes {
		if ix.Name == index {
			return true, nil
		}
	}
	return false, nil
}

func init() {
	dialect.Register("mem", func() dialect.Dialect {
		return NewDialect(New())
	})
}
