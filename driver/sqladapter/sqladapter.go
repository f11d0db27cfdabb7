// Package sqladapter bridges database/sql drivers into the raw driver
// contract. Each connection pins a one-connection sqlx.DB so that
// transaction state and session settings stay on the same underlying
// connection, the way the execution layer assumes.
package sqladapter

import (
	"fmt"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/driver"
)

// Driver opens connections through a registered database/sql driver.
type Driver struct {
	driverName string
}

// New returns a Driver over the named database/sql driver.
func New(driverName string) *Driver {
	return &Driver{driverName: driverName}
}

// Connect opens a single-connection pool on the DSN.
func (d *Driver) Connect(args core.ConnectArgs) (driver.Conn, error) {
	db, err := sqlx.Connect(d.driverName, args.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", d.driverName, err)
	}
	// One underlying connection, held forever: session and transaction
	// state must not hop between pooled connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &Conn{db: db}, nil
}

// Conn is one bridged connection.
type Conn struct {
	db *sqlx.DB
}

// DB exposes the underlying sqlx handle for dialect-level session setup.
func (c *Conn) DB() *sqlx.DB { return c.db }

func (c *Conn) Cursor() (driver.Cursor, error) {
	return &Cursor{db: c.db}, nil
}

// Begin starts a transaction by statement: the pinned connection makes
// BEGIN/COMMIT/ROLLBACK behave like database/sql's Tx without losing the
// cursor model.
func (c *Conn) Begin() error {
	_, err := c.db.Exec("BEGIN")
	return err
}

func (c *Conn) Commit() error {
	_, err := c.db.Exec("COMMIT")
	return err
}

func (c *Conn) Rollback() error {
	_, err := c.db.Exec("ROLLBACK")
	return err
}

func (c *Conn) Close() error { return c.db.Close() }

// Cursor executes over the bridged connection. Row-returning statements
// buffer eagerly: database/sql holds the connection while sql.Rows is
// open, which would wedge the single-connection pool.
type Cursor struct {
	db *sqlx.DB

	desc     []driver.ColumnDesc
	rows     [][]any
	pos      int
	rowcount int64
	insertID int64
	hasID    bool
	closed   bool
}

// returnsRows sniffs whether the statement produces a result set.
func returnsRows(stmt string) bool {
	head := strings.ToUpper(strings.TrimSpace(stmt))
	for _, kw := range []string{"SELECT", "WITH", "VALUES", "PRAGMA", "SHOW", "EXPLAIN", "DESCRIBE"} {
		if strings.HasPrefix(head, kw) {
			return true
		}
	}
	return strings.Contains(head, " RETURNING ")
}

func (c *Cursor) reset() {
	c.desc = nil
	c.rows = nil
	c.pos = 0
	c.rowcount = -1
	c.insertID = 0
	c.hasID = false
}

func (c *Cursor) Execute(stmt string, args []any) error {
	c.reset()
	if returnsRows(stmt) {
		return c.query(stmt, args)
	}
	res, err := c.db.Exec(stmt, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil {
		c.rowcount = n
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		c.insertID = id
		c.hasID = true
	}
	return nil
}

func (c *Cursor) query(stmt string, args []any) error {
	rows, err := c.db.Queryx(stmt, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	c.desc = make([]driver.ColumnDesc, len(cols))
	if types, err := rows.ColumnTypes(); err == nil && len(types) == len(cols) {
		for i, t := range types {
			nullable, _ := t.Nullable()
			c.desc[i] = driver.ColumnDesc{
				Name:     cols[i],
				TypeName: t.DatabaseTypeName(),
				Nullable: nullable,
			}
		}
	} else {
		for i, name := range cols {
			c.desc[i] = driver.ColumnDesc{Name: name}
		}
	}

	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return err
		}
		c.rows = append(c.rows, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	c.rowcount = int64(len(c.rows))
	return nil
}

func (c *Cursor) ExecuteMany(stmt string, argSets [][]any) error {
	c.reset()
	var total int64
	for _, args := range argSets {
		res, err := c.db.Exec(stmt, args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	c.rowcount = total
	return nil
}

func (c *Cursor) ExecuteNoParams(stmt string) error {
	return c.Execute(stmt, nil)
}

func (c *Cursor) Description() []driver.ColumnDesc { return c.desc }

func (c *Cursor) RowCount() int64 { return c.rowcount }

func (c *Cursor) LastInsertID() (int64, bool) { return c.insertID, c.hasID }

func (c *Cursor) FetchOne() ([]any, error) {
	if c.closed {
		return nil, fmt.Errorf("cursor is closed")
	}
	if c.pos >= len(c.rows) {
		return nil, io.EOF
	}
	row := c.rows[c.pos]
	c.pos++
	return row, nil
}

func (c *Cursor) FetchMany(n int) ([][]any, error) {
	if c.closed {
		return nil, fmt.Errorf("cursor is closed")
	}
	end := c.pos + n
	if end > len(c.rows) {
		end = len(c.rows)
	}
	rows := c.rows[c.pos:end]
	c.pos = end
	return rows, nil
}

func (c *Cursor) FetchAll() ([][]any, error) {
	if c.closed {
		return nil, fmt.Errorf("cursor is closed")
	}
	rows := c.rows[c.pos:]
	c.pos = len(c.rows)
	return rows, nil
}

func (c *Cursor) Close() error {
	c.closed = true
	c.rows = nil
	return nil
}
