// Package driver implements the execution core of the TessDB client:
// it turns SQL text plus bound parameters into running engine statements,
// manages the lifetime of the native handles backing them, and coordinates
// transactional boundaries around execution.
//
// A Connection owns its engine database and connection handles, a
// prepared-statement cache, and the single slot for its current
// Transaction. Commands are created from a Connection and executed in one
// of three shapes: ExecuteNonQuery (affected-row count), ExecuteScalar
// (first column of the first row), and ExecuteCursor (a forward-only Rows
// iterator). A Connection and everything it owns is not safe for
// concurrent use: callers must sequence operations, one in flight at a
// time.
package driver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	executeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tessdb_execute_total",
		Help: "Total number of command executions, by shape & status.",
	}, []string{"shape", "status"})
	executeDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "tessdb_execute_duration_seconds",
		Help: "Duration of command executions.",
	})
	stmtCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tessdb_stmt_cache_hits_total",
		Help: "Total number of statement-cache hits.",
	})
	stmtCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tessdb_stmt_cache_misses_total",
		Help: "Total number of statement-cache misses.",
	})
	stmtCacheDisposalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tessdb_stmt_cache_disposals_total",
		Help: "Total number of cached statements released by eviction, removal, or cache disposal.",
	})
	txnTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tessdb_txn_total",
		Help: "Total number of completed transactions, by outcome.",
	}, []string{"outcome"})
	replicaSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tessdb_replica_sync_total",
		Help: "Total number of embedded-replica synchronization attempts, by status.",
	}, []string{"status"})
)
