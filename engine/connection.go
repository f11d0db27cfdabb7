package engine

import (
	"errors"
	"fmt"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/dberr"
	"github.com/RamonWill/strata/dialect"
	"github.com/RamonWill/strata/driver"
)

// ErrConnectionClosed is returned when executing on a closed connection.
var ErrConnectionClosed = errors.New("connection is closed")

// ErrConnectionInvalid is returned when executing on an invalidated
// connection.
var ErrConnectionInvalid = errors.New("connection was invalidated")

// Connection is a single checked-out raw connection with execution,
// transaction and introspection entry points layered on top. It is a
// single-owner resource: one execution at a time, and starting a new
// execution closes the previous connection-owned result.
type Connection struct {
	engine *Engine
	raw    driver.Conn

	txn          *Transaction
	activeResult *Result

	invalid  bool
	detached bool
	closed   bool
}

// Engine returns the owning engine.
func (c *Connection) Engine() *Engine { return c.engine }

// Raw exposes the underlying driver connection.
func (c *Connection) Raw() driver.Conn { return c.raw }

// Invalidated reports whether the connection has been marked unusable.
func (c *Connection) Invalidated() bool { return c.invalid }

func (c *Connection) usable() error {
	switch {
	case c.closed:
		return ErrConnectionClosed
	case c.invalid:
		return ErrConnectionInvalid
	}
	return nil
}

// Execute runs a compiled statement with one named parameter set.
func (c *Connection) Execute(compiled *core.Compiled, params map[string]any) (*Result, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]any{}
	}
	ec := newExecContext(c, compiled, params)
	return c.run(ec)
}

// ExecuteMany runs a compiled statement once per parameter set; at least
// one set is required. The returned result carries no rows; rowcount
// aggregation is driver dependent.
func (c *Connection) ExecuteMany(compiled *core.Compiled, paramSets []map[string]any) (*Result, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	if len(paramSets) == 0 {
		return nil, errors.New("executemany requires at least one parameter set")
	}
	ec := newExecContext(c, compiled, nil)
	ec.paramSets = paramSets
	return c.run(ec)
}

// ExecuteText runs raw statement text with positional parameters, passed
// through to the driver untouched.
func (c *Connection) ExecuteText(stmt string, args ...any) (*Result, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	ec := newTextExecContext(c, stmt, args)
	return c.run(ec)
}

// run walks the execution protocol. Every failure funnels through
// handleError so classification and invalidation are uniform.
func (c *Connection) run(ec *ExecContext) (*Result, error) {
	if c.activeResult != nil {
		c.activeResult.Close()
		c.activeResult = nil
	}

	if err := ec.createCursor(); err != nil {
		return nil, c.handleError(err, ec, nil)
	}
	if err := ec.preExec(); err != nil {
		ec.cursor.Close()
		return nil, c.handleError(err, ec, ec.cursor)
	}

	c.engine.logExec(ec.statement, ec.execParams())

	if err := ec.execute(); err != nil {
		ec.cursor.Close()
		return nil, c.handleError(err, ec, ec.cursor)
	}
	if err := ec.postExec(); err != nil {
		ec.cursor.Close()
		return nil, c.handleError(err, ec, ec.cursor)
	}

	res, err := ec.bindResult()
	if err != nil {
		ec.cursor.Close()
		return nil, c.handleError(err, ec, ec.cursor)
	}
	c.activeResult = res

	// Committable statements commit immediately when no explicit
	// transaction is active.
	if ec.shouldAutocommit && c.txn == nil {
		if err := c.engine.dialect.DoCommit(c.raw); err != nil {
			res.Close()
			return nil, c.handleError(err, ec, nil)
		}
	}
	return res, nil
}

func (ec *ExecContext) execParams() any {
	if ec.argSets != nil {
		return ec.argSets
	}
	return ec.args
}

// Query implements dialect.Querier: it executes text and buffers the
// entire result, so introspection queries never hold a cursor open.
func (c *Connection) Query(stmt string, args ...any) ([]string, [][]any, error) {
	res, err := c.ExecuteText(stmt, args...)
	if err != nil {
		return nil, nil, err
	}
	defer res.Close()
	cols := res.Columns()
	rows, err := res.FetchAll()
	if err != nil {
		return nil, nil, err
	}
	return cols, rows, nil
}

// Begin opens an explicit transaction. Nested Begin calls return
// savepoint-backed nested transactions when the dialect supports them.
func (c *Connection) Begin() (*Transaction, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	if c.txn != nil {
		return nil, errors.New("transaction already in progress")
	}
	if err := c.engine.dialect.DoBegin(c.raw); err != nil {
		return nil, c.handleError(err, nil, nil)
	}
	t := &Transaction{conn: c, state: txnActive}
	c.txn = t
	return t, nil
}

// BeginTwoPhase opens a two-phase transaction with a freshly created xid.
func (c *Connection) BeginTwoPhase() (*TwoPhaseTransaction, error) {
	return c.BeginTwoPhaseXid(c.engine.dialect.CreateXid())
}

// BeginTwoPhaseXid opens a two-phase transaction under the caller's xid.
func (c *Connection) BeginTwoPhaseXid(xid core.Xid) (*TwoPhaseTransaction, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	if !c.engine.dialect.SupportsTwoPhase() {
		return nil, dberr.NotImplemented("two-phase transactions")
	}
	if c.txn != nil {
		return nil, errors.New("transaction already in progress")
	}
	if err := c.engine.dialect.DoBeginTwoPhase(c.raw, xid); err != nil {
		return nil, c.handleError(err, nil, nil)
	}
	t := &TwoPhaseTransaction{
		Transaction: Transaction{conn: c, state: txnActive},
		xid:         xid,
	}
	c.txn = &t.Transaction
	return t, nil
}

// RecoverTwoPhase lists the xids of prepared transactions awaiting
// resolution on the backend.
func (c *Connection) RecoverTwoPhase() ([]core.Xid, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	xids, err := c.engine.dialect.DoRecoverTwoPhase(c.raw)
	if err != nil {
		return nil, c.handleError(err, nil, nil)
	}
	return xids, nil
}

// CommitPrepared resolves a recovered prepared transaction by committing
// it.
func (c *Connection) CommitPrepared(xid core.Xid) error {
	if err := c.usable(); err != nil {
		return err
	}
	if err := c.engine.dialect.DoCommitTwoPhase(c.raw, xid, true, true); err != nil {
		return c.handleError(err, nil, nil)
	}
	return nil
}

// RollbackPrepared resolves a recovered prepared transaction by rolling
// it back.
func (c *Connection) RollbackPrepared(xid core.Xid) error {
	if err := c.usable(); err != nil {
		return err
	}
	if err := c.engine.dialect.DoRollbackTwoPhase(c.raw, xid, true, true); err != nil {
		return c.handleError(err, nil, nil)
	}
	return nil
}

// InTransaction reports whether an explicit transaction is active.
func (c *Connection) InTransaction() bool { return c.txn != nil }

// GetIsolationLevel reads the backend's current isolation level.
func (c *Connection) GetIsolationLevel() (core.IsolationLevel, error) {
	if err := c.usable(); err != nil {
		return "", err
	}
	return c.engine.dialect.GetIsolationLevel(c.raw)
}

// SetIsolationLevel sets the backend's isolation level for this
// connection.
func (c *Connection) SetIsolationLevel(level core.IsolationLevel) error {
	if err := c.usable(); err != nil {
		return err
	}
	return c.engine.dialect.SetIsolationLevel(c.raw, level)
}

// ResetIsolationLevel restores the backend's default isolation level.
func (c *Connection) ResetIsolationLevel() error {
	if err := c.usable(); err != nil {
		return err
	}
	return c.engine.dialect.ResetIsolationLevel(c.raw)
}

// TableNames lists table names in schema through the dialect catalog.
func (c *Connection) TableNames(schema string) ([]string, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	return c.engine.dialect.GetTableNames(c, schema)
}

// Columns describes table's columns through the dialect catalog.
func (c *Connection) Columns(table, schema string) ([]core.ColumnInfo, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	return c.engine.dialect.GetColumns(c, table, schema)
}

// HasTable reports whether table exists in schema.
func (c *Connection) HasTable(table, schema string) (bool, error) {
	if err := c.usable(); err != nil {
		return false, err
	}
	return c.engine.dialect.HasTable(c, table, schema)
}

// Indexes describes table's indexes through the dialect catalog.
func (c *Connection) Indexes(table, schema string) ([]core.IndexInfo, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	return c.engine.dialect.GetIndexes(c, table, schema)
}

// HasIndex reports whether index exists on table.
func (c *Connection) HasIndex(table, index, schema string) (bool, error) {
	if err := c.usable(); err != nil {
		return false, err
	}
	return c.engine.dialect.HasIndex(c, table, index, schema)
}

// Invalidate marks the connection unusable without touching the raw
// connection; the pool boundary decides what to do with it.
func (c *Connection) Invalidate() {
	c.invalid = true
	c.txn = nil
}

// Detach dissociates the connection from pool management: Close will
// still close the raw connection, but invalidation signals no longer
// reach the pool for it.
func (c *Connection) Detach() { c.detached = true }

// Close releases the connection. Closing with an active transaction
// rolls it back first.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.activeResult != nil {
		c.activeResult.Close()
		c.activeResult = nil
	}
	var txnErr error
	if c.txn != nil && !c.invalid {
		txnErr = c.engine.dialect.DoRollback(c.raw)
		c.txn = nil
	}
	if err := c.engine.dialect.DoClose(c.raw); err != nil {
		return err
	}
	if txnErr != nil {
		return fmt.Errorf("rollback on close: %w", txnErr)
	}
	return nil
}

var _ dialect.Querier = (*Connection)(nil)
