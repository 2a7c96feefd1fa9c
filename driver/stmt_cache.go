package driver

import (
	"time"

	log "github.com/sirupsen/logrus"

	"go.tessdb.dev/client/cache"
	"go.tessdb.dev/client/engine"
)

// cacheEntry is a cached statement handle plus its usage metadata. Once
// inserted, the entry (and the handle within it) is owned solely by the
// cache: callers holding a reference to the handle never own it.
type cacheEntry struct {
	stmt       engine.Stmt
	createdAt  time.Time
	lastUsedAt time.Time
	useCount   int64
}

// stmtCache is the prepared-statement cache of a Connection, keyed by
// exact SQL text (case-sensitive and unnormalized).
type stmtCache struct {
	c *cache.Cache
}

func newStmtCache(capacity int) (*stmtCache, error) {
	var c, err = cache.New(capacity, releaseEntry)
	if err != nil {
		return nil, err
	}
	return &stmtCache{c: c}, nil
}

// releaseEntry finalizes a statement leaving the cache. It is a disposal
// path: failures are logged and swallowed.
func releaseEntry(key, value interface{}) {
	stmtCacheDisposalsTotal.Inc()

	if err := value.(*cacheEntry).stmt.Finalize(); err != nil {
		log.WithFields(log.Fields{
			"sql": key,
			"err": err,
		}).Warn("failed to finalize cached statement")
	}
}

// tryGet returns the statement cached under sql, if any, bumping its
// usage metadata and promoting it to most-recently-used.
func (sc *stmtCache) tryGet(sql string) (engine.Stmt, bool) {
	var v, ok = sc.c.Get(sql)
	if !ok {
		stmtCacheMissesTotal.Inc()
		return nil, false
	}
	var e = v.(*cacheEntry)
	e.useCount++
	e.lastUsedAt = timeNow()

	stmtCacheHitsTotal.Inc()
	return e.stmt, true
}

// add inserts stmt under sql, transferring ownership of the handle to the
// cache. At capacity, the least-recently-used entry is first evicted and
// its handle released.
func (sc *stmtCache) add(sql string, stmt engine.Stmt) {
	var now = timeNow()
	sc.c.Put(sql, &cacheEntry{stmt: stmt, createdAt: now, lastUsedAt: now})
}

// remove drops the entry cached under sql, releasing its handle.
func (sc *stmtCache) remove(sql string) bool { return sc.c.Remove(sql) }

// dispose releases every remaining handle and empties the cache. It is
// invoked exactly once, from Connection close.
func (sc *stmtCache) dispose() { sc.c.Clear() }

func (sc *stmtCache) len() int { return sc.c.Len() }

var timeNow = time.Now
