package memdb

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/driver"
)

// Result is the scripted outcome of one statement.
type Result struct {
	Cols         []string
	Rows         [][]any
	RowCount     int64
	LastInsertID int64
	OutParams    map[string]any

	// Err, when set, is returned instead of executing the statement.
	Err error
}

// Call records one execute invocation for assertions.
type Call struct {
	Statement string
	Args      []any

	// HadParams distinguishes Execute with an empty slice from
	// ExecuteNoParams.
	HadParams bool
}

// Table describes a table in the schema registry backing introspection.
type Table struct {
	Name       string
	Schema     string
	Columns    []core.ColumnInfo
	PrimaryKey core.PrimaryKeyInfo
	Indexes    []core.IndexInfo
	Comment    string
}

// Driver is the in-memory driver. One Driver models one backend database:
// scripted results, the committed-statement journal and the prepared
// two-phase store are shared by all connections.
type Driver struct {
	mu        sync.Mutex
	scripts   map[string]Result
	calls     []Call
	committed []string
	prepared  map[core.Xid][]string
	tables    map[string]Table
	connectErr error
}

// New creates an empty in-memory driver.
func New() *Driver {
	return &Driver{
		scripts:  make(map[string]Result),
		prepared: make(map[core.Xid][]string),
		tables:   make(map[string]Table),
	}
}

// On scripts the result for an exact statement text.
func (d *Driver) On(stmt string, res Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts[stmt] = res
}

// FailConnect makes subsequent Connect calls return err.
func (d *Driver) FailConnect(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectErr = err
}

// AddTable registers a table in the schema registry.
func (d *Driver) AddTable(t Table) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[tableKey(t.Schema, t.Name)] = t
}

func tableKey(schema, name string) string {
	if schema == "" {
		schema = "main"
	}
	return schema + "." + name
}

// Calls returns every recorded execute invocation.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Committed returns the journal of committed statements.
func (d *Driver) Committed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.committed...)
}

// PreparedXids lists two-phase transactions prepared but not yet resolved,
// in sorted order.
func (d *Driver) PreparedXids() []core.Xid {
	d.mu.Lock()
	defer d.mu.Unlock()
	xids := make([]core.Xid, 0, len(d.prepared))
	for xid := range d.prepared {
		xids = append(xids, xid)
	}
	sort.Slice(xids, func(i, j int) bool { return xids[i] < xids[j] })
	return xids
}

// Connect opens a new connection.
func (d *Driver) Connect(args core.ConnectArgs) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connectErr != nil {
		return nil, d.connectErr
	}
	return &Conn{drv: d}, nil
}

type savepoint struct {
	name string
	mark int // journal length when created
}

// Conn is one in-memory connection.
type Conn struct {
	drv        *Driver
	mu         sync.Mutex
	closed     bool
	broken     bool
	inTxn      bool
	journal    []string
	savepoints []savepoint
}

// BreakNetwork makes every subsequent operation on the connection fail
// with a connection-reset error, simulating a dropped backend.
func (c *Conn) BreakNetwork() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broken = true
}

var errConnReset = driver.Errorf(driver.CategoryOperational, "57P01", "connection reset by peer")

// errExhausted signals cursor exhaustion on fetch.
var errExhausted = io.EOF

func (c *Conn) check() error {
	if c.closed {
		return driver.Errorf(driver.CategoryProgramming, "", "connection is closed")
	}
	if c.broken {
		return errConnReset
	}
	return nil
}

func (c *Conn) Cursor() (driver.Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return nil, err
	}
	return &Cursor{conn: c}, nil
}

func (c *Conn) beginLocked() error {
	if err := c.check(); err != nil {
		return err
	}
	if c.inTxn {
		return driver.Errorf(driver.CategoryProgramming, "", "transaction already in progress")
	}
	c.inTxn = true
	c.journal = nil
	c.savepoints = nil
	return nil
}

func (c *Conn) commitLocked() error {
	if err := c.check(); err != nil {
		return err
	}
	c.drv.mu.Lock()
	c.drv.committed = append(c.drv.committed, c.journal...)
	c.drv.mu.Unlock()
	c.inTxn = false
	c.journal = nil
	c.savepoints = nil
	return nil
}

func (c *Conn) rollbackLocked() error {
	if err := c.check(); err != nil {
		return err
	}
	c.inTxn = false
	c.journal = nil
	c.savepoints = nil
	return nil
}

func (c *Conn) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginLocked()
}

func (c *Conn) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitLocked()
}

func (c *Conn) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollbackLocked()
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// record adds a data statement to the journal, or straight to the
// committed journal outside a transaction.
func (c *Conn) record(entry string) {
	if c.inTxn {
		c.journal = append(c.journal, entry)
		return
	}
	c.drv.mu.Lock()
	c.drv.committed = append(c.drv.committed, entry)
	c.drv.mu.Unlock()
}

func (c *Conn) findSavepoint(name string) int {
	for i := len(c.savepoints) - 1; i >= 0; i-- {
		if c.savepoints[i].name == name {
			return i
		}
	}
	return -1
}

func (c *Conn) savepointStmt(stmt string) (bool, error) {
	upper := strings.ToUpper(stmt)
	switch {
	case strings.HasPrefix(upper, "SAVEPOINT "):
		name := unquote(strings.TrimSpace(stmt[len("SAVEPOINT "):]))
		c.savepoints = append(c.savepoints, savepoint{name: name, mark: len(c.journal)})
		return true, nil

	case strings.HasPrefix(upper, "ROLLBACK TO SAVEPOINT "):
		name := unquote(strings.TrimSpace(stmt[len("ROLLBACK TO SAVEPOINT "):]))
		i := c.findSavepoint(name)
		if i < 0 {
			return true, driver.Errorf(driver.CategoryProgramming, "", "no such savepoint: %s", name)
		}
		// Later savepoints vanish; the target stays active.
		c.journal = c.journal[:c.savepoints[i].mark]
		c.savepoints = c.savepoints[:i+1]
		return true, nil

	case strings.HasPrefix(upper, "RELEASE SAVEPOINT "):
		name := unquote(strings.TrimSpace(stmt[len("RELEASE SAVEPOINT "):]))
		i := c.findSavepoint(name)
		if i < 0 {
			return true, driver.Errorf(driver.CategoryProgramming, "", "no such savepoint: %s", name)
		}
		c.savepoints = c.savepoints[:i]
		return true, nil
	}
	return false, nil
}

func (c *Conn) twophaseStmt(stmt string) (bool, error) {
	upper := strings.ToUpper(stmt)
	switch {
	case strings.HasPrefix(upper, "PREPARE TRANSACTION "):
		xid := core.Xid(unquoteSingle(strings.TrimSpace(stmt[len("PREPARE TRANSACTION "):])))
		if !c.inTxn {
			return true, driver.Errorf(driver.CategoryProgramming, "", "PREPARE TRANSACTION outside a transaction")
		}
		c.drv.mu.Lock()
		c.drv.prepared[xid] = append([]string(nil), c.journal...)
		c.drv.mu.Unlock()
		c.inTxn = false
		c.journal = nil
		c.savepoints = nil
		return true, nil

	case strings.HasPrefix(upper, "COMMIT PREPARED "):
		xid := core.Xid(unquoteSingle(strings.TrimSpace(stmt[len("COMMIT PREPARED "):])))
		c.drv.mu.Lock()
		defer c.drv.mu.Unlock()
		journal, ok := c.drv.prepared[xid]
		if !ok {
			return true, driver.Errorf(driver.CategoryOperational, "", "no prepared transaction: %s", xid)
		}
		c.drv.committed = append(c.drv.committed, journal...)
		delete(c.drv.prepared, xid)
		return true, nil

	case strings.HasPrefix(upper, "ROLLBACK PREPARED "):
		xid := core.Xid(unquoteSingle(strings.TrimSpace(stmt[len("ROLLBACK PREPARED "):])))
		c.drv.mu.Lock()
		defer c.drv.mu.Unlock()
		if _, ok := c.drv.prepared[xid]; !ok {
			return true, driver.Errorf(driver.CategoryOperational, "", "no prepared transaction: %s", xid)
		}
		delete(c.drv.prepared, xid)
		return true, nil
	}
	return false, nil
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}

func unquoteSingle(s string) string {
	return strings.Trim(s, `'`)
}

// Cursor executes statements on its connection.
type Cursor struct {
	conn   *Conn
	closed bool

	res      Result
	pos      int
	rowcount int64
	lastID   int64
	hasLast  bool
	hasRows  bool
}

func (cur *Cursor) exec(stmt string, args []any, hadParams bool) error {
	c := cur.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur.closed {
		return driver.Errorf(driver.CategoryProgramming, "", "cursor is closed")
	}
	if err := c.check(); err != nil {
		return err
	}

	c.drv.mu.Lock()
	c.drv.calls = append(c.drv.calls, Call{Statement: stmt, Args: args, HadParams: hadParams})
	c.drv.mu.Unlock()

	upper := strings.ToUpper(strings.TrimSpace(stmt))
	switch upper {
	case "BEGIN":
		return c.beginLocked()
	case "COMMIT":
		return c.commitLocked()
	case "ROLLBACK":
		return c.rollbackLocked()
	}

	if handled, err := c.savepointStmt(strings.TrimSpace(stmt)); handled {
		return err
	}
	if handled, err := c.twophaseStmt(strings.TrimSpace(stmt)); handled {
		return err
	}

	c.drv.mu.Lock()
	res, ok := c.drv.scripts[stmt]
	c.drv.mu.Unlock()
	if !ok {
		return driver.Errorf(driver.CategoryProgramming, "", "unscripted statement: %s", stmt)
	}
	if res.Err != nil {
		return res.Err
	}

	c.record(renderEntry(stmt, args))

	cur.res = res
	cur.pos = 0
	cur.hasRows = res.Cols != nil
	cur.rowcount = res.RowCount
	cur.lastID = res.LastInsertID
	cur.hasLast = res.LastInsertID != 0
	return nil
}

// renderEntry normalizes a statement plus its arguments into one journal
// line, so journals from different execution paths compare equal.
func renderEntry(stmt string, args []any) string {
	if len(args) == 0 {
		return stmt
	}
	return fmt.Sprintf("%s %v", stmt, args)
}

func (cur *Cursor) Execute(stmt string, args []any) error {
	return cur.exec(stmt, args, true)
}

func (cur *Cursor) ExecuteMany(stmt string, argSets [][]any) error {
	var total int64
	for _, args := range argSets {
		if err := cur.exec(stmt, args, true); err != nil {
			return err
		}
		total += cur.rowcount
	}
	cur.rowcount = total
	return nil
}

func (cur *Cursor) ExecuteNoParams(stmt string) error {
	return cur.exec(stmt, nil, false)
}

func (cur *Cursor) Description() []driver.ColumnDesc {
	if !cur.hasRows {
		return nil
	}
	desc := make([]driver.ColumnDesc, len(cur.res.Cols))
	for i, name := range cur.res.Cols {
		desc[i] = driver.ColumnDesc{Name: name}
	}
	return desc
}

func (cur *Cursor) RowCount() int64 { return cur.rowcount }

func (cur *Cursor) LastInsertID() (int64, bool) { return cur.lastID, cur.hasLast }

func (cur *Cursor) FetchOne() ([]any, error) {
	if cur.closed {
		return nil, driver.Errorf(driver.CategoryProgramming, "", "cursor is closed")
	}
	if cur.conn.broken {
		return nil, errConnReset
	}
	if cur.pos >= len(cur.res.Rows) {
		return nil, errExhausted
	}
	row := cur.res.Rows[cur.pos]
	cur.pos++
	return row, nil
}

func (cur *Cursor) FetchMany(n int) ([][]any, error) {
	var rows [][]any
	for len(rows) < n {
		row, err := cur.FetchOne()
		if err == errExhausted {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (cur *Cursor) FetchAll() ([][]any, error) {
	return cur.FetchMany(len(cur.res.Rows) - cur.pos + 1)
}

// OutParamValues returns raw scripted output-parameter values, matched
// positionally to names.
func (cur *Cursor) OutParamValues(names []string) ([]any, error) {
	values := make([]any, len(names))
	for i, name := range names {
		v, ok := cur.res.OutParams[name]
		if !ok {
			return nil, driver.Errorf(driver.CategoryProgramming, "", "no out parameter: %s", name)
		}
		values[i] = v
	}
	return values, nil
}

func (cur *Cursor) Close() error {
	cur.closed = true
	return nil
}
