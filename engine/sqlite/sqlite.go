// Package sqlite adapts zombiezen.com/go/sqlite to the engine call
// surface. It serves local-file, in-memory, and the local side of
// embedded-replica databases. Remote databases require a transport
// engine and are rejected here.
package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"go.tessdb.dev/client/engine"
	zsqlite "zombiezen.com/go/sqlite"
)

// Engine is the embedded-SQLite implementation of engine.Engine.
// The zero value is ready to use for local and in-memory databases.
type Engine struct {
	// SyncFn, when set, implements embedded-replica synchronization: it is
	// invoked by DB.Sync with the database's OpenConfig and is expected to
	// pull the remote primary's state into the local file at cfg.Path.
	// Opening a database with a SyncURL fails if SyncFn is nil.
	SyncFn func(cfg engine.OpenConfig) error
}

var _ engine.Engine = (*Engine)(nil)

// New returns an Engine serving local and in-memory databases.
func New() *Engine { return &Engine{} }

// Open acquires a database handle for the local data source.
func (e *Engine) Open(cfg engine.OpenConfig) (engine.DB, error) {
	if strings.Contains(cfg.Path, "://") {
		return nil, errors.Errorf("remote database %q requires a transport engine", cfg.Path)
	}
	if cfg.EncryptionKey != "" {
		return nil, errors.New("engine is built without at-rest encryption support")
	}
	if cfg.SyncURL != "" && e.SyncFn == nil {
		return nil, errors.Errorf("embedded replica of %q requires a sync implementation", cfg.SyncURL)
	}
	return &db{cfg: cfg, eng: e}, nil
}

type db struct {
	cfg    engine.OpenConfig
	eng    *Engine
	closed bool
}

func (d *db) Connect() (engine.Conn, error) {
	if d.closed {
		return nil, errors.New("database handle is closed")
	}

	var flags = zsqlite.OpenReadWrite | zsqlite.OpenCreate | zsqlite.OpenURI | zsqlite.OpenNoMutex
	if isMemory(d.cfg.Path) {
		flags |= zsqlite.OpenMemory
	} else {
		flags |= zsqlite.OpenWAL
	}

	var c, err = zsqlite.OpenConn(d.cfg.Path, flags)
	if err != nil {
		return nil, translate(err)
	}
	if d.cfg.BusyTimeoutMS > 0 {
		c.SetBusyTimeout(time.Duration(d.cfg.BusyTimeoutMS) * time.Millisecond)
	}
	return &conn{conn: c}, nil
}

func (d *db) Sync() error {
	if d.cfg.SyncURL == "" {
		return nil
	}
	return d.eng.SyncFn(d.cfg)
}

func (d *db) Close() error {
	d.closed = true
	return nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

type conn struct {
	conn   *zsqlite.Conn
	closed bool
}

func (c *conn) Prepare(sql string) (engine.Stmt, error) {
	// PrepareTransient keeps the statement out of the underlying
	// library's own cache; this driver owns statement reuse.
	var s, _, err = c.conn.PrepareTransient(sql)
	if err != nil {
		return nil, translate(err)
	}
	return &stmt{stmt: s}, nil
}

func (c *conn) Exec(sql string) error {
	// Compile and run each semicolon-separated statement in turn.
	for {
		if strings.TrimSpace(sql) == "" {
			return nil
		}
		var s, trailing, err = c.conn.PrepareTransient(sql)
		if err != nil {
			return translate(err)
		}
		for {
			var hasRow, err = s.Step()
			if err != nil {
				_ = s.Finalize()
				return translate(err)
			} else if !hasRow {
				break
			}
		}
		if err = s.Finalize(); err != nil {
			return translate(err)
		}
		sql = sql[len(sql)-trailing:]
	}
}

func (c *conn) Changes() int64      { return int64(c.conn.Changes()) }
func (c *conn) LastInsertID() int64 { return c.conn.LastInsertRowID() }

func (c *conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return translate(c.conn.Close())
}

type stmt struct {
	stmt      *zsqlite.Stmt
	finalized bool
}

func (s *stmt) BindCount() int { return s.stmt.BindParamCount() }

func (s *stmt) BindIndex(name string) int {
	for i := 1; i <= s.stmt.BindParamCount(); i++ {
		if s.stmt.BindParamName(i) == name {
			return i
		}
	}
	return 0
}

func (s *stmt) checkOrd(ord int) error {
	if ord < 1 || ord > s.stmt.BindParamCount() {
		return &engine.Error{
			Code:    engine.StatusRange,
			Message: fmt.Sprintf("bind ordinal %d out of range [1, %d]", ord, s.stmt.BindParamCount()),
		}
	}
	return nil
}

func (s *stmt) BindInt64(ord int, v int64) error {
	if err := s.checkOrd(ord); err != nil {
		return err
	}
	s.stmt.BindInt64(ord, v)
	return nil
}

func (s *stmt) BindFloat(ord int, v float64) error {
	if err := s.checkOrd(ord); err != nil {
		return err
	}
	s.stmt.BindFloat(ord, v)
	return nil
}

func (s *stmt) BindText(ord int, v string) error {
	if err := s.checkOrd(ord); err != nil {
		return err
	}
	s.stmt.BindText(ord, v)
	return nil
}

func (s *stmt) BindBlob(ord int, v []byte) error {
	if err := s.checkOrd(ord); err != nil {
		return err
	}
	// The library copies the buffer during the call, upholding the
	// caller-owned buffer contract of the engine surface.
	s.stmt.BindBytes(ord, v)
	return nil
}

func (s *stmt) BindNull(ord int) error {
	if err := s.checkOrd(ord); err != nil {
		return err
	}
	s.stmt.BindNull(ord)
	return nil
}

func (s *stmt) Step() (bool, error) {
	var hasRow, err = s.stmt.Step()
	return hasRow, translate(err)
}

func (s *stmt) Reset() error {
	// The library's Reset dereferences connection state which Finalize
	// tears down, so a finalized handle must not reach it.
	if s.finalized {
		return nil
	}
	var err = s.stmt.Reset()
	s.stmt.ClearBindings()
	return translate(err)
}

func (s *stmt) ColumnCount() int          { return s.stmt.ColumnCount() }
func (s *stmt) ColumnName(i int) string   { return s.stmt.ColumnName(i) }
func (s *stmt) ColumnInt64(i int) int64   { return s.stmt.ColumnInt64(i) }
func (s *stmt) ColumnFloat(i int) float64 { return s.stmt.ColumnFloat(i) }
func (s *stmt) ColumnText(i int) string   { return s.stmt.ColumnText(i) }

func (s *stmt) ColumnType(i int) engine.ColumnType {
	switch s.stmt.ColumnType(i) {
	case zsqlite.TypeInteger:
		return engine.TypeInteger
	case zsqlite.TypeFloat:
		return engine.TypeFloat
	case zsqlite.TypeText:
		return engine.TypeText
	case zsqlite.TypeBlob:
		return engine.TypeBlob
	default:
		return engine.TypeNull
	}
}

func (s *stmt) ColumnBlob(i int) []byte {
	var buf = make([]byte, s.stmt.ColumnLen(i))
	s.stmt.ColumnBytes(i, buf)
	return buf
}

func (s *stmt) Finalize() error {
	if s.finalized {
		return nil
	}
	s.finalized = true
	return translate(s.stmt.Finalize())
}

// translate maps a library error onto the engine's Status taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	return &engine.Error{
		Code:    engine.Status(zsqlite.ErrCode(err).ToPrimary()),
		Message: err.Error(),
	}
}
