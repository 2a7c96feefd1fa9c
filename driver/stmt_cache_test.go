package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.tessdb.dev/client/engine"
	"go.tessdb.dev/client/engine/enginetest"
)

func TestStmtCacheRoundTrip(t *testing.T) {
	var eng enginetest.Engine
	var conn = testEngineConn(t, &eng)

	var sc, err = newStmtCache(4)
	require.NoError(t, err)

	var _, ok = sc.tryGet("SELECT :a")
	require.False(t, ok)

	var st, _ = conn.Prepare("SELECT :a")
	sc.add("SELECT :a", st)
	require.Equal(t, 1, sc.len())

	var got engine.Stmt
	got, ok = sc.tryGet("SELECT :a")
	require.True(t, ok)
	require.Equal(t, st, got)

	// Keys are exact text: differing case or whitespace miss.
	_, ok = sc.tryGet("select :a")
	require.False(t, ok)
	_, ok = sc.tryGet(" SELECT :a")
	require.False(t, ok)
}

func TestStmtCacheTracksUsage(t *testing.T) {
	defer func(fn func() time.Time) { timeNow = fn }(timeNow)

	var now = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return now }

	var eng enginetest.Engine
	var conn = testEngineConn(t, &eng)
	var sc, _ = newStmtCache(4)

	var st, _ = conn.Prepare("SELECT :a")
	sc.add("SELECT :a", st)

	now = now.Add(time.Minute)
	sc.tryGet("SELECT :a")
	now = now.Add(time.Minute)
	sc.tryGet("SELECT :a")

	var v, ok = sc.c.Get("SELECT :a")
	require.True(t, ok)
	var e = v.(*cacheEntry)
	require.Equal(t, int64(2), e.useCount)
	require.Equal(t, now, e.lastUsedAt)
	require.Equal(t, now.Add(-2*time.Minute), e.createdAt)
}

func TestStmtCacheEvictionFinalizes(t *testing.T) {
	var eng enginetest.Engine
	var conn = testEngineConn(t, &eng)
	var sc, _ = newStmtCache(1)

	var st1, _ = conn.Prepare("SELECT :a")
	var st2, _ = conn.Prepare("SELECT :b")

	sc.add("SELECT :a", st1)
	sc.add("SELECT :b", st2) // Evicts and finalizes st1.

	require.Equal(t, 1, sc.len())
	require.Equal(t, 1, eng.FinalizeCount("SELECT :a"))
	require.Equal(t, 0, eng.FinalizeCount("SELECT :b"))
}

func TestStmtCacheRemoveAndDispose(t *testing.T) {
	var eng enginetest.Engine
	var conn = testEngineConn(t, &eng)
	var sc, _ = newStmtCache(4)

	var st1, _ = conn.Prepare("SELECT :a")
	var st2, _ = conn.Prepare("SELECT :b")
	sc.add("SELECT :a", st1)
	sc.add("SELECT :b", st2)

	require.True(t, sc.remove("SELECT :a"))
	require.False(t, sc.remove("SELECT :a"))
	require.Equal(t, 1, eng.FinalizeCount("SELECT :a"))

	sc.dispose()
	require.Equal(t, 0, sc.len())
	require.Equal(t, 1, eng.FinalizeCount("SELECT :b"))
	// Already-removed handles are not finalized again.
	require.Equal(t, 1, eng.FinalizeCount("SELECT :a"))
}

func TestStmtCacheCapacityValidated(t *testing.T) {
	var _, err = newStmtCache(0)
	require.Error(t, err)
}

// testEngineConn opens a raw engine connection against the fake.
func testEngineConn(t *testing.T, eng *enginetest.Engine) engine.Conn {
	var db, err = eng.Open(engine.OpenConfig{})
	require.NoError(t, err)
	var conn engine.Conn
	conn, err = db.Connect()
	require.NoError(t, err)
	return conn
}
