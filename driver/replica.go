package driver

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// replicaSyncer periodically synchronizes an embedded replica against its
// primary. It runs until stopped by Connection close.
type replicaSyncer struct {
	stopCh chan struct{}
	doneCh chan struct{}
}

func newReplicaSyncer(c *Connection, interval time.Duration) *replicaSyncer {
	var rs = &replicaSyncer{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go rs.run(c, interval)
	return rs
}

func (rs *replicaSyncer) run(c *Connection, interval time.Duration) {
	defer close(rs.doneCh)

	var ticker = time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.syncNow(); err != nil {
				log.WithFields(log.Fields{
					"syncURL": c.cfg.SyncURL,
					"err":     err,
				}).Warn("replica synchronization failed")
			}
		case <-rs.stopCh:
			return
		}
	}
}

// stop halts background synchronization and blocks until an in-flight
// pass, if any, completes.
func (rs *replicaSyncer) stop() {
	close(rs.stopCh)
	<-rs.doneCh
}

// RegisterSyncObserver registers a hook invoked after each replica
// synchronization pass with its outcome. Observers must be registered
// before background synchronization begins, and may be invoked from the
// synchronization goroutine.
func (c *Connection) RegisterSyncObserver(fn func(error)) {
	c.syncObservers = append(c.syncObservers, fn)
}

// syncNow runs one synchronization pass. Concurrent passes coalesce:
// while one is in flight, further calls return immediately.
func (c *Connection) syncNow() error {
	if !atomic.CompareAndSwapInt32(&c.syncFlight, 0, 1) {
		return nil
	}
	defer atomic.StoreInt32(&c.syncFlight, 0)

	var err = c.db.Sync()

	var status = "ok"
	if err != nil {
		status = "error"
	}
	replicaSyncTotal.WithLabelValues(status).Inc()

	for _, fn := range c.syncObservers {
		fn(err)
	}
	if err != nil {
		return errors.WithMessage(err, "syncing replica")
	}
	return nil
}
