package driver

import (
	log "github.com/sirupsen/logrus"
)

// TxBehavior selects how a transaction acquires its locks.
type TxBehavior string

const (
	// TxDeferred defers lock acquisition to the first statement which
	// needs one.
	TxDeferred TxBehavior = "deferred"
	// TxImmediate acquires a write lock at begin.
	TxImmediate TxBehavior = "immediate"
	// TxExclusive acquires an exclusive lock at begin.
	TxExclusive TxBehavior = "exclusive"
	// TxReadOnly begins a read-only transaction; writes within it fail.
	TxReadOnly TxBehavior = "readonly"
)

// IsolationLevel selects the isolation of a transaction. The engine
// supports serializable (its default) and read-uncommitted only.
type IsolationLevel int

const (
	IsolationDefault IsolationLevel = iota
	IsolationSerializable
	IsolationReadUncommitted
)

var beginForms = map[TxBehavior]string{
	TxDeferred:  "BEGIN DEFERRED",
	TxImmediate: "BEGIN IMMEDIATE",
	TxExclusive: "BEGIN EXCLUSIVE",
	TxReadOnly:  "BEGIN READONLY",
}

type txnState int

const (
	txnActive txnState = iota
	txnCommitted
	txnRolledBack
)

// Transaction is an explicit transaction of a Connection. At most one
// Transaction may be active on a Connection at a time; a second Begin
// while one is active fails rather than nesting or queueing.
type Transaction struct {
	conn  *Connection
	state txnState
	// dirtyRead is set when the transaction began read-uncommitted,
	// and requires the pragma be restored on completion.
	dirtyRead bool
}

// Begin starts a deferred transaction at default isolation.
func (c *Connection) Begin() (*Transaction, error) {
	return c.BeginTx(TxDeferred, IsolationDefault)
}

// BeginTx starts a transaction with the given behavior and isolation.
// Isolation is validated before any state is examined: requesting an
// unsupported level fails identically on open, closed, and busy
// connections.
func (c *Connection) BeginTx(behavior TxBehavior, level IsolationLevel) (*Transaction, error) {
	switch level {
	case IsolationDefault, IsolationSerializable, IsolationReadUncommitted:
		// Pass.
	default:
		return nil, validationErrorf("unsupported isolation level (%d)", level)
	}
	var form, ok = beginForms[behavior]
	if !ok {
		return nil, validationErrorf("unknown transaction behavior %q", behavior)
	}

	if c.state != Open {
		return nil, stateErrorf("connection is %s", c.state)
	} else if c.txn != nil {
		return nil, stateErrorf("a transaction is already in progress")
	}

	if level == IsolationReadUncommitted {
		if err := c.conn.Exec("PRAGMA read_uncommitted = 1"); err != nil {
			return nil, engineErr("PRAGMA read_uncommitted = 1", err)
		}
	}
	if err := c.conn.Exec(form); err != nil {
		if level == IsolationReadUncommitted {
			c.restoreIsolation()
		}
		return nil, engineErr(form, err)
	}

	c.txn = &Transaction{conn: c, dirtyRead: level == IsolationReadUncommitted}
	return c.txn, nil
}

// InTransaction reports whether an explicit transaction is active.
func (c *Connection) InTransaction() bool { return c.txn != nil }

func (c *Connection) restoreIsolation() {
	if err := c.conn.Exec("PRAGMA read_uncommitted = 0"); err != nil {
		log.WithField("err", err).Warn("failed to restore isolation level")
	}
}

// Active reports whether the Transaction has neither committed nor
// rolled back.
func (t *Transaction) Active() bool { return t.state == txnActive }

// Commit commits the Transaction. On failure the Transaction remains
// active and may be rolled back.
func (t *Transaction) Commit() error {
	if t.state != txnActive {
		return stateErrorf("transaction has already completed")
	}
	if err := t.conn.conn.Exec("COMMIT"); err != nil {
		return engineErr("COMMIT", err)
	}
	t.finish(txnCommitted, "commit")
	return nil
}

// Rollback rolls back the Transaction.
func (t *Transaction) Rollback() error {
	if t.state != txnActive {
		return stateErrorf("transaction has already completed")
	}
	if err := t.conn.conn.Exec("ROLLBACK"); err != nil {
		return engineErr("ROLLBACK", err)
	}
	t.finish(txnRolledBack, "rollback")
	return nil
}

// Close rolls back the Transaction if it is still active, and otherwise
// does nothing. It never fails, making it suitable for deferral: a
// rollback error is logged, and the transaction slot is freed regardless.
func (t *Transaction) Close() {
	if t.state != txnActive {
		return
	}
	if err := t.conn.conn.Exec("ROLLBACK"); err != nil {
		log.WithField("err", err).Warn("failed to roll back abandoned transaction")
	}
	t.finish(txnRolledBack, "abandoned")
}

func (t *Transaction) finish(state txnState, outcome string) {
	t.state = state
	txnTotal.WithLabelValues(outcome).Inc()

	if t.dirtyRead {
		t.conn.restoreIsolation()
	}
	t.conn.txn = nil
}
