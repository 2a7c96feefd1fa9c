package driver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.tessdb.dev/client/engine"
	"go.tessdb.dev/client/engine/enginetest"
)

func TestBeginForms(t *testing.T) {
	var cases = []struct {
		behavior TxBehavior
		form     string
	}{
		{TxDeferred, "BEGIN DEFERRED"},
		{TxImmediate, "BEGIN IMMEDIATE"},
		{TxExclusive, "BEGIN EXCLUSIVE"},
		{TxReadOnly, "BEGIN READONLY"},
	}
	for _, tc := range cases {
		var eng enginetest.Engine
		var c = newTestConn(t, &eng)

		var txn, err = c.BeginTx(tc.behavior, IsolationDefault)
		require.NoError(t, err)
		require.Equal(t, []string{tc.form}, eng.Execs)
		require.True(t, txn.Active())

		require.NoError(t, txn.Commit())
		require.Equal(t, []string{tc.form, "COMMIT"}, eng.Execs)
	}
}

func TestTransactionSingleSlot(t *testing.T) {
	var eng enginetest.Engine
	var c = newTestConn(t, &eng)

	var txn, err = c.Begin()
	require.NoError(t, err)
	require.True(t, c.InTransaction())

	// A second begin is refused without reaching the engine: no
	// nesting, no queueing.
	_, err = c.BeginTx(TxImmediate, IsolationDefault)
	var serr, ok = AsStateError(err)
	require.True(t, ok)
	require.Equal(t, "a transaction is already in progress", serr.Msg)
	require.Equal(t, []string{"BEGIN DEFERRED"}, eng.Execs)

	// The original transaction is unaffected, and completing it frees
	// the slot.
	require.NoError(t, txn.Commit())
	require.False(t, c.InTransaction())

	_, err = c.Begin()
	require.NoError(t, err)
}

func TestIsolationValidatedBeforeState(t *testing.T) {
	var eng enginetest.Engine
	var c = newTestConn(t, &eng)
	require.NoError(t, c.Close())

	// An unsupported isolation level fails identically on closed and
	// open connections: validation precedes the state check.
	var _, err = c.BeginTx(TxDeferred, IsolationLevel(42))
	var _, ok = AsValidationError(err)
	require.True(t, ok)

	c = newTestConn(t, &eng)
	var txn, _ = c.Begin()

	_, err = c.BeginTx(TxDeferred, IsolationLevel(42))
	_, ok = AsValidationError(err)
	require.True(t, ok)
	require.True(t, txn.Active())

	_, err = c.BeginTx(TxBehavior("snapshot"), IsolationDefault)
	_, ok = AsValidationError(err)
	require.True(t, ok)
}

func TestReadUncommittedPragmaLifecycle(t *testing.T) {
	var eng enginetest.Engine
	var c = newTestConn(t, &eng)

	var txn, err = c.BeginTx(TxDeferred, IsolationReadUncommitted)
	require.NoError(t, err)
	require.Equal(t, []string{
		"PRAGMA read_uncommitted = 1",
		"BEGIN DEFERRED",
	}, eng.Execs)

	require.NoError(t, txn.Commit())
	require.Equal(t, []string{
		"PRAGMA read_uncommitted = 1",
		"BEGIN DEFERRED",
		"COMMIT",
		"PRAGMA read_uncommitted = 0",
	}, eng.Execs)
}

func TestReadUncommittedRestoredAfterBeginFailure(t *testing.T) {
	var eng = enginetest.Engine{
		ExecErr: map[string]error{
			"BEGIN EXCLUSIVE": &engine.Error{Code: engine.StatusBusy, Message: "database is locked"},
		},
	}
	var c = newTestConn(t, &eng)

	var _, err = c.BeginTx(TxExclusive, IsolationReadUncommitted)
	require.True(t, IsBusy(err))
	require.False(t, c.InTransaction())
	require.Equal(t, []string{
		"PRAGMA read_uncommitted = 1",
		"BEGIN EXCLUSIVE",
		"PRAGMA read_uncommitted = 0",
	}, eng.Execs)
}

func TestCompletedTransactionRefusesFurtherUse(t *testing.T) {
	var eng enginetest.Engine
	var c = newTestConn(t, &eng)

	var txn, _ = c.Begin()
	require.NoError(t, txn.Rollback())
	require.False(t, txn.Active())

	var err = txn.Commit()
	var _, ok = AsStateError(err)
	require.True(t, ok)

	err = txn.Rollback()
	_, ok = AsStateError(err)
	require.True(t, ok)

	// Close of a completed transaction is a no-op.
	txn.Close()
	require.Equal(t, []string{"BEGIN DEFERRED", "ROLLBACK"}, eng.Execs)
}

func TestTransactionCloseAbandons(t *testing.T) {
	var eng enginetest.Engine
	var c = newTestConn(t, &eng)

	var txn, _ = c.Begin()
	txn.Close()

	require.False(t, txn.Active())
	require.False(t, c.InTransaction())
	require.Equal(t, []string{"BEGIN DEFERRED", "ROLLBACK"}, eng.Execs)

	// Close never fails, even when the rollback does.
	eng.ExecErr = map[string]error{
		"ROLLBACK": &engine.Error{Code: engine.StatusError, Message: "cannot rollback"},
	}
	txn, _ = c.Begin()
	txn.Close()
	require.False(t, txn.Active())
	require.False(t, c.InTransaction())
}

func TestCommitFailureKeepsTransactionActive(t *testing.T) {
	var eng = enginetest.Engine{
		ExecErr: map[string]error{
			"COMMIT": &engine.Error{Code: engine.StatusBusy, Message: "database is locked"},
		},
	}
	var c = newTestConn(t, &eng)

	var txn, _ = c.Begin()
	var err = txn.Commit()
	require.True(t, IsBusy(err))

	// The caller may still resolve the transaction.
	require.True(t, txn.Active())
	require.True(t, c.InTransaction())
	require.NoError(t, txn.Rollback())
	require.False(t, c.InTransaction())
}

func TestBeginFailureLeavesSlotFree(t *testing.T) {
	var eng = enginetest.Engine{
		ExecErr: map[string]error{
			"BEGIN IMMEDIATE": &engine.Error{Code: engine.StatusBusy, Message: "database is locked"},
		},
	}
	var c = newTestConn(t, &eng)

	var _, err = c.BeginTx(TxImmediate, IsolationDefault)
	require.True(t, IsBusy(err))
	require.False(t, c.InTransaction())

	// A deferred begin still succeeds.
	_, err = c.Begin()
	require.NoError(t, err)
}

func TestBeginOnClosedConnection(t *testing.T) {
	var eng enginetest.Engine
	var c = newTestConn(t, &eng)
	require.NoError(t, c.Close())

	var _, err = c.Begin()
	var serr, ok = AsStateError(err)
	require.True(t, ok)
	require.Equal(t, "connection is closed", serr.Msg)
	require.Empty(t, eng.Execs)
}
