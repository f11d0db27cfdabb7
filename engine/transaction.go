package engine

import (
	"errors"
	"fmt"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/dberr"
)

type txnState int

const (
	txnNotStarted txnState = iota
	txnActive
	txnPrepared
	txnCommitted
	txnRolledBack
)

func (s txnState) String() string {
	switch s {
	case txnNotStarted:
		return "not-started"
	case txnActive:
		return "active"
	case txnPrepared:
		return "prepared"
	case txnCommitted:
		return "committed"
	case txnRolledBack:
		return "rolled-back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transaction is an explicit connection-level transaction. Exactly one
// may be active per connection; nested scopes are savepoints obtained
// from it.
type Transaction struct {
	conn  *Connection
	state txnState

	savepoints []*Savepoint
	spSeq      int
}

// Active reports whether the transaction can still accept work.
func (t *Transaction) Active() bool { return t.state == txnActive }

func (t *Transaction) require(states ...txnState) error {
	for _, s := range states {
		if t.state == s {
			return nil
		}
	}
	return fmt.Errorf("transaction is %s", t.state)
}

// Commit commits the transaction. Open savepoints are released
// implicitly by the backend's commit.
func (t *Transaction) Commit() error {
	if err := t.require(txnActive); err != nil {
		return err
	}
	if err := t.conn.engine.dialect.DoCommit(t.conn.raw); err != nil {
		return t.conn.handleError(err, nil, nil)
	}
	t.finish(txnCommitted)
	return nil
}

// Rollback rolls the transaction back. Rolling back a finished
// transaction is a no-op.
func (t *Transaction) Rollback() error {
	if t.state != txnActive {
		return nil
	}
	if err := t.conn.engine.dialect.DoRollback(t.conn.raw); err != nil {
		t.finish(txnRolledBack)
		return t.conn.handleError(err, nil, nil)
	}
	t.finish(txnRolledBack)
	return nil
}

func (t *Transaction) finish(s txnState) {
	for _, sp := range t.savepoints {
		sp.released = true
	}
	t.savepoints = nil
	t.state = s
	if t.conn.txn == t {
		t.conn.txn = nil
	}
}

// Savepoint establishes a new savepoint inside the transaction. Names
// are generated; callers treat the savepoint as an opaque nested scope.
func (t *Transaction) Savepoint() (*Savepoint, error) {
	if err := t.require(txnActive); err != nil {
		return nil, err
	}
	d := t.conn.engine.dialect
	if !d.SupportsSavepoints() {
		return nil, dberr.NotImplemented("savepoints")
	}
	t.spSeq++
	name := fmt.Sprintf("strata_savepoint_%d", t.spSeq)
	if err := d.DoSavepoint(t.conn.raw, name); err != nil {
		return nil, t.conn.handleError(err, nil, nil)
	}
	sp := &Savepoint{txn: t, name: name}
	t.savepoints = append(t.savepoints, sp)
	return sp, nil
}

// Savepoint is a nested transaction scope. Rolling back to it keeps it
// active; releasing it ends it.
type Savepoint struct {
	txn      *Transaction
	name     string
	released bool
}

// Name returns the generated savepoint name.
func (s *Savepoint) Name() string { return s.name }

// Active reports whether the savepoint still exists on the backend.
func (s *Savepoint) Active() bool { return !s.released }

// Rollback rolls the transaction back to this savepoint. The savepoint
// itself survives and may be rolled back to again; savepoints
// established after it are destroyed.
func (s *Savepoint) Rollback() error {
	if s.released {
		return errors.New("savepoint no longer exists")
	}
	t := s.txn
	if err := t.require(txnActive); err != nil {
		return err
	}
	if err := t.conn.engine.dialect.DoRollbackToSavepoint(t.conn.raw, s.name); err != nil {
		return t.conn.handleError(err, nil, nil)
	}
	t.dropAfter(s)
	return nil
}

// Release releases this savepoint, and with it every savepoint
// established after it.
func (s *Savepoint) Release() error {
	if s.released {
		return errors.New("savepoint no longer exists")
	}
	t := s.txn
	if err := t.require(txnActive); err != nil {
		return err
	}
	if err := t.conn.engine.dialect.DoReleaseSavepoint(t.conn.raw, s.name); err != nil {
		return t.conn.handleError(err, nil, nil)
	}
	s.released = true
	t.dropAfter(s)
	t.remove(s)
	return nil
}

// dropAfter marks savepoints established after s as gone.
func (t *Transaction) dropAfter(s *Savepoint) {
	for i, sp := range t.savepoints {
		if sp == s {
			for _, later := range t.savepoints[i+1:] {
				later.released = true
			}
			t.savepoints = t.savepoints[:i+1]
			return
		}
	}
}

func (t *Transaction) remove(s *Savepoint) {
	for i, sp := range t.savepoints {
		if sp == s {
			t.savepoints = append(t.savepoints[:i], t.savepoints[i+1:]...)
			return
		}
	}
}

// TwoPhaseTransaction is a transaction participating in a distributed
// commit. It interposes a prepare phase between work and commit; commit
// and rollback account for whether prepare ever ran.
type TwoPhaseTransaction struct {
	Transaction
	xid      core.Xid
	prepared bool
}

// Xid returns the distributed transaction id.
func (t *TwoPhaseTransaction) Xid() core.Xid { return t.xid }

// Prepare runs the first phase. After a successful prepare the
// transaction accepts only Commit or Rollback.
func (t *TwoPhaseTransaction) Prepare() error {
	if err := t.require(txnActive); err != nil {
		return err
	}
	if err := t.conn.engine.dialect.DoPrepareTwoPhase(t.conn.raw, t.xid); err != nil {
		return t.conn.handleError(err, nil, nil)
	}
	t.prepared = true
	t.state = txnPrepared
	return nil
}

// Commit completes the transaction. Without a prior Prepare this is a
// plain single-phase commit.
func (t *TwoPhaseTransaction) Commit() error {
	if err := t.require(txnActive, txnPrepared); err != nil {
		return err
	}
	if err := t.conn.engine.dialect.DoCommitTwoPhase(t.conn.raw, t.xid, t.prepared, false); err != nil {
		return t.conn.handleError(err, nil, nil)
	}
	t.finish(txnCommitted)
	return nil
}

// Rollback abandons the transaction, prepared or not.
func (t *TwoPhaseTransaction) Rollback() error {
	if t.state != txnActive && t.state != txnPrepared {
		return nil
	}
	if err := t.conn.engine.dialect.DoRollbackTwoPhase(t.conn.raw, t.xid, t.prepared, false); err != nil {
		t.finish(txnRolledBack)
		return t.conn.handleError(err, nil, nil)
	}
	t.finish(txnRolledBack)
	return nil
}
