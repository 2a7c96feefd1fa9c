package driver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.tessdb.dev/client/engine"
	"go.tessdb.dev/client/engine/enginetest"
)

func TestConnectionLifecycle(t *testing.T) {
	var eng enginetest.Engine
	var c, err = NewConnection(&eng, NewMemoryConfig())
	require.NoError(t, err)
	require.Equal(t, Created, c.State())
	require.Equal(t, 0, eng.Calls("Open"))

	require.NoError(t, c.Open())
	require.Equal(t, Open, c.State())
	require.Equal(t, 1, eng.Calls("Open"))
	require.Equal(t, 1, eng.Calls("Connect"))

	// Opening an open connection fails, without further engine calls.
	err = c.Open()
	var serr, ok = AsStateError(err)
	require.True(t, ok)
	require.Equal(t, "connection is open", serr.Msg)
	require.Equal(t, 1, eng.Calls("Open"))

	require.NoError(t, c.Close())
	require.Equal(t, Closed, c.State())
	require.Equal(t, 1, eng.Calls("CloseConn"))
	require.Equal(t, 1, eng.Calls("CloseDB"))

	// Close is idempotent, and a closed connection never reopens.
	require.NoError(t, c.Close())
	require.Equal(t, 1, eng.Calls("CloseConn"))
	require.Equal(t, 1, eng.Calls("CloseDB"))

	err = c.Open()
	_, ok = AsStateError(err)
	require.True(t, ok)
}

func TestCloseOfCreatedConnection(t *testing.T) {
	var eng enginetest.Engine
	var c, err = NewConnection(&eng, NewMemoryConfig())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.Equal(t, Closed, c.State())
	require.Equal(t, 0, eng.Calls("Open"))
}

func TestOpenConnectFailureClosesDatabase(t *testing.T) {
	var boom = &engine.Error{Code: engine.StatusCantOpen, Message: "unable to open database file"}
	var eng = enginetest.Engine{ConnectErr: boom}

	var c, err = NewConnection(&eng, NewConfig("testdata/fake.db"))
	require.NoError(t, err)

	err = c.Open()
	require.Error(t, err)
	require.Equal(t, Created, c.State())

	// The database handle acquired before the failure was released.
	require.Equal(t, 1, eng.Calls("CloseDB"))
}

func TestCloseReleasesEverythingInOrder(t *testing.T) {
	var sqlA = "SELECT a FROM t WHERE a = :a"
	var sqlB = "SELECT b FROM t WHERE b = :b"
	var eng = enginetest.Engine{
		Results: map[string]enginetest.Result{
			sqlA: {Columns: []string{"a"}},
			sqlB: {Columns: []string{"b"}},
		},
		BindIndexes: map[string]map[string]int{
			sqlA: {":a": 1},
			sqlB: {":b": 1},
		},
	}
	var c = newTestConn(t, &eng, func(cfg *Config) { cfg.Cache.Capacity = 1 })

	// Fill the single cache slot twice: the first handle is evicted and
	// finalized when the second statement caches.
	var _, err = c.Command(sqlA).BindNamed(":a", int64(1)).ExecuteScalar()
	require.NoError(t, err)
	_, err = c.Command(sqlB).BindNamed(":b", int64(2)).ExecuteScalar()
	require.NoError(t, err)
	require.Equal(t, 1, eng.FinalizeCount(sqlA))
	require.Equal(t, 0, eng.FinalizeCount(sqlB))

	_, err = c.Begin()
	require.NoError(t, err)

	require.NoError(t, c.Close())

	// The active transaction rolled back, every cached handle was
	// finalized exactly once, and the engine handles closed.
	require.Equal(t, "ROLLBACK", eng.Execs[len(eng.Execs)-1])
	require.Equal(t, 1, eng.FinalizeCount(sqlA))
	require.Equal(t, 1, eng.FinalizeCount(sqlB))
	require.Equal(t, 1, eng.Calls("CloseConn"))
	require.Equal(t, 1, eng.Calls("CloseDB"))
	require.False(t, c.InTransaction())
}

func TestCachingDisabled(t *testing.T) {
	var sql = "SELECT a FROM t WHERE a = :a"
	var eng = enginetest.Engine{
		Results:     map[string]enginetest.Result{sql: {Columns: []string{"a"}}},
		BindIndexes: map[string]map[string]int{sql: {":a": 1}},
	}
	var c = newTestConn(t, &eng, func(cfg *Config) { cfg.Cache.Disable = true })
	require.Nil(t, c.stmts)

	// Cacheable text runs transient when the cache is disabled.
	for i := 0; i != 2; i++ {
		var _, err = c.Command(sql).BindNamed(":a", int64(i)).ExecuteScalar()
		require.NoError(t, err)
	}
	require.Equal(t, 2, eng.Calls("Prepare"))
	require.Equal(t, 2, eng.FinalizeCount(sql))
}

func TestSyncRequiresReplicaMode(t *testing.T) {
	var eng enginetest.Engine
	var c = newTestConn(t, &eng)

	var err = c.Sync()
	var _, ok = AsValidationError(err)
	require.True(t, ok)
	require.Equal(t, 0, eng.Calls("Sync"))
}

func TestConnectionConfigIsValidatedUpFront(t *testing.T) {
	var eng enginetest.Engine
	var cfg = NewConfig("")

	var _, err = NewConnection(&eng, cfg)
	var _, ok = AsValidationError(err)
	require.True(t, ok)
	require.Equal(t, 0, eng.Calls("Open"))
}
