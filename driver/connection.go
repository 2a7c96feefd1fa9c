package driver

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.tessdb.dev/client/engine"
)

// ConnState is the lifecycle state of a Connection.
type ConnState int

const (
	// Created connections hold a validated Config but no engine handles.
	Created ConnState = iota
	// Open connections may execute commands and begin transactions.
	Open
	// Closed connections have released all engine handles. A Connection
	// ends Closed even if steps of its release sequence fail, and never
	// reopens.
	Closed
)

func (s ConnState) String() string {
	switch s {
	case Created:
		return "created"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

// Connection is a single database connection: a pair of engine handles
// plus this driver's statement cache and transaction slot. A Connection
// runs one operation at a time and is not safe for concurrent use; open
// multiple Connections for parallelism.
type Connection struct {
	cfg   Config
	eng   engine.Engine
	state ConnState

	db   engine.DB
	conn engine.Conn

	stmts   *stmtCache
	txn     *Transaction
	replica *replicaSyncer

	// syncFlight coalesces concurrent replica synchronizations.
	syncFlight    int32
	syncObservers []func(error)

	beforeExecute []func(ExecEvent) error
	afterExecute  []func(ExecEvent)
}

// NewConnection returns a Connection over the given engine and Config.
// The Connection is Created but not yet Open.
func NewConnection(eng engine.Engine, cfg Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Connection{cfg: cfg, eng: eng}, nil
}

// OpenConnection returns an already-Open Connection over the given engine
// and Config.
func OpenConnection(eng engine.Engine, cfg Config) (*Connection, error) {
	var c, err = NewConnection(eng, cfg)
	if err != nil {
		return nil, err
	}
	if err = c.Open(); err != nil {
		return nil, err
	}
	return c, nil
}

// State returns the Connection's lifecycle state.
func (c *Connection) State() ConnState { return c.state }

// Config returns the Connection's configuration.
func (c *Connection) Config() Config { return c.cfg }

// Open acquires the Connection's engine handles. A Connection opens at
// most once; a Closed Connection never reopens.
func (c *Connection) Open() error {
	if c.state != Created {
		return stateErrorf("connection is %s", c.state)
	}

	var db, err = c.eng.Open(c.cfg.openConfig())
	if err != nil {
		return errors.WithMessage(err, "opening database")
	}
	var conn engine.Conn
	if conn, err = db.Connect(); err != nil {
		if cerr := db.Close(); cerr != nil {
			log.WithField("err", cerr).Warn("failed to close database after connect error")
		}
		return errors.WithMessage(err, "connecting")
	}

	c.db, c.conn = db, conn

	if !c.cfg.Cache.Disable {
		// Capacity was checked by Validate.
		c.stmts, _ = newStmtCache(c.cfg.Cache.Capacity)
	}
	if c.cfg.Mode == ModeReplica && c.cfg.SyncInterval > 0 {
		c.replica = newReplicaSyncer(c, c.cfg.SyncInterval)
	}
	c.state = Open
	return nil
}

func (c *Connection) cachingEnabled() bool { return c.stmts != nil }

// RegisterBeforeExecute registers a hook invoked before each execution,
// after validation but before any engine call. A hook returning an error
// vetoes the execution.
func (c *Connection) RegisterBeforeExecute(fn func(ExecEvent) error) {
	c.beforeExecute = append(c.beforeExecute, fn)
}

// RegisterAfterExecute registers a hook invoked after each execution,
// successful or not.
func (c *Connection) RegisterAfterExecute(fn func(ExecEvent)) {
	c.afterExecute = append(c.afterExecute, fn)
}

func (c *Connection) fireBeforeExecute(ev ExecEvent) error {
	for _, fn := range c.beforeExecute {
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) fireAfterExecute(ev ExecEvent) {
	for _, fn := range c.afterExecute {
		fn(ev)
	}
}

// Sync runs an immediate synchronization of an embedded replica against
// its primary, independent of any background synchronization interval.
func (c *Connection) Sync() error {
	if c.cfg.Mode != ModeReplica {
		return validationErrorf("sync is only valid in mode %q", ModeReplica)
	} else if c.state != Open {
		return stateErrorf("connection is %s", c.state)
	}
	return c.syncNow()
}

// Close releases the Connection. Background synchronization is stopped,
// an active transaction is rolled back, cached statements are finalized,
// and the engine handles are closed, in that order. Close runs the full
// sequence even when a step fails, returns the first error encountered,
// and always leaves the Connection Closed. It is idempotent.
func (c *Connection) Close() error {
	if c.state == Closed {
		return nil
	} else if c.state == Created {
		c.state = Closed
		return nil
	}
	var firstErr error

	if c.replica != nil {
		c.replica.stop()
		c.replica = nil
	}
	if c.txn != nil {
		c.txn.Close() // Rolls back; never fails.
	}
	if c.stmts != nil {
		c.stmts.dispose()
	}
	if err := c.conn.Close(); err != nil {
		firstErr = errors.WithMessage(err, "closing connection")
	}
	if err := c.db.Close(); err != nil {
		if firstErr == nil {
			firstErr = errors.WithMessage(err, "closing database")
		} else {
			log.WithField("err", err).Warn("failed to close database")
		}
	}
	c.state = Closed
	return firstErr
}
