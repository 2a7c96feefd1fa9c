// Package enginetest provides a scripted, in-memory implementation of the
// engine call surface for driver tests. Every call against the fake is
// counted, so tests can assert not only on outcomes but on exactly which
// collaborator calls were (or were not) issued.
package enginetest

import (
	"sync"

	"go.tessdb.dev/client/engine"
)

// Result scripts the behavior of statements prepared or executed with a
// given SQL text.
type Result struct {
	// Columns of rows served by the statement.
	Columns []string
	// Rows served by successive Steps. Values must be one of
	// int64, float64, string, []byte or nil.
	Rows [][]interface{}
	// Changes reported by the connection after the statement runs.
	Changes int64
	// LastInsertID reported by the connection after the statement runs.
	LastInsertID int64
	// StepErr, if set, is returned by the first Step.
	StepErr error
}

// Engine is a fake engine.Engine. Its zero value opens successfully and
// serves empty results for all SQL. Tests may script per-SQL results and
// failures, and may inspect calls and created statements afterward.
type Engine struct {
	// OpenErr, ConnectErr and SyncErr fail the corresponding calls.
	OpenErr    error
	ConnectErr error
	SyncErr    error
	// SyncFn, if set, is invoked by DB.Sync (after SyncErr is consulted).
	// It may block, to exercise overlap handling.
	SyncFn func() error
	// ExecFn, if set, is invoked by Conn.Exec before scripted results are
	// served. It may block, to exercise cancellation veneers.
	ExecFn func(sql string) error
	// PrepareErr fails Prepare of the given SQL text.
	PrepareErr map[string]error
	// ExecErr fails direct Exec of the given SQL text.
	ExecErr map[string]error
	// Results scripts statements by exact SQL text.
	Results map[string]Result
	// BindCounts overrides the parameter count reported for a SQL text.
	// If unset, markers of the text are counted naively.
	BindCounts map[string]int
	// BindIndexes scripts named-parameter resolution per SQL text.
	BindIndexes map[string]map[string]int

	mu    sync.Mutex
	calls map[string]int
	// Execs is the ordered log of SQL passed to Conn.Exec.
	Execs []string
	// Stmts is the ordered log of statements created by Prepare.
	Stmts []*Stmt

	changes      int64
	lastInsertID int64
}

var _ engine.Engine = (*Engine)(nil)

func (e *Engine) record(method string) {
	e.mu.Lock()
	if e.calls == nil {
		e.calls = make(map[string]int)
	}
	e.calls[method]++
	e.mu.Unlock()
}

// Calls reports the number of times the named method ("Open", "Connect",
// "Prepare", "Exec", "Step", "Finalize", "Sync", ...) was invoked.
func (e *Engine) Calls(method string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[method]
}

// FinalizeCount reports how many times statements prepared from sql were
// finalized, counting repeated finalizations of the same handle.
func (e *Engine) FinalizeCount(sql string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	var n int
	for _, s := range e.Stmts {
		if s.SQL == sql {
			n += s.Finalizes
		}
	}
	return n
}

// Open implements engine.Engine.
func (e *Engine) Open(engine.OpenConfig) (engine.DB, error) {
	e.record("Open")
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	return &DB{eng: e}, nil
}

// DB is the fake database handle.
type DB struct {
	eng    *Engine
	Closed int
}

func (d *DB) Connect() (engine.Conn, error) {
	d.eng.record("Connect")
	if d.eng.ConnectErr != nil {
		return nil, d.eng.ConnectErr
	}
	return &Conn{eng: d.eng}, nil
}

func (d *DB) Sync() error {
	d.eng.record("Sync")
	if d.eng.SyncErr != nil {
		return d.eng.SyncErr
	}
	if d.eng.SyncFn != nil {
		return d.eng.SyncFn()
	}
	return nil
}

func (d *DB) Close() error {
	d.eng.record("CloseDB")
	d.Closed++
	return nil
}

// Conn is the fake connection handle.
type Conn struct {
	eng    *Engine
	Closed int
}

func (c *Conn) Prepare(sql string) (engine.Stmt, error) {
	c.eng.record("Prepare")
	if err := c.eng.PrepareErr[sql]; err != nil {
		return nil, err
	}
	var s = &Stmt{eng: c.eng, conn: c, SQL: sql, Binds: make(map[int]interface{})}
	c.eng.mu.Lock()
	c.eng.Stmts = append(c.eng.Stmts, s)
	c.eng.mu.Unlock()
	return s, nil
}

func (c *Conn) Exec(sql string) error {
	c.eng.record("Exec")
	c.eng.mu.Lock()
	c.eng.Execs = append(c.eng.Execs, sql)
	c.eng.mu.Unlock()

	if err := c.eng.ExecErr[sql]; err != nil {
		return err
	}
	if c.eng.ExecFn != nil {
		if err := c.eng.ExecFn(sql); err != nil {
			return err
		}
	}
	var r = c.eng.Results[sql]
	c.eng.changes, c.eng.lastInsertID = r.Changes, r.LastInsertID
	return nil
}

func (c *Conn) Changes() int64      { return c.eng.changes }
func (c *Conn) LastInsertID() int64 { return c.eng.lastInsertID }

func (c *Conn) Close() error {
	c.eng.record("CloseConn")
	c.Closed++
	return nil
}

// Stmt is the fake statement handle. Its bookkeeping fields are exported
// for test assertions.
type Stmt struct {
	eng  *Engine
	conn *Conn

	SQL       string
	Binds     map[int]interface{}
	Resets    int
	Steps     int
	Finalizes int

	row int
}

func (s *Stmt) result() Result { return s.eng.Results[s.SQL] }

func (s *Stmt) BindCount() int {
	if n, ok := s.eng.BindCounts[s.SQL]; ok {
		return n
	}
	return countMarkers(s.SQL)
}

func (s *Stmt) BindIndex(name string) int {
	return s.eng.BindIndexes[s.SQL][name]
}

func (s *Stmt) BindInt64(ord int, v int64) error   { return s.bind(ord, v) }
func (s *Stmt) BindFloat(ord int, v float64) error { return s.bind(ord, v) }
func (s *Stmt) BindText(ord int, v string) error   { return s.bind(ord, v) }
func (s *Stmt) BindBlob(ord int, v []byte) error   { return s.bind(ord, append([]byte(nil), v...)) }
func (s *Stmt) BindNull(ord int) error             { return s.bind(ord, nil) }

func (s *Stmt) bind(ord int, v interface{}) error {
	s.eng.record("Bind")
	if ord < 1 || ord > s.BindCount() {
		return &engine.Error{Code: engine.StatusRange, Message: "bind ordinal out of range"}
	}
	s.Binds[ord] = v
	return nil
}

func (s *Stmt) Step() (bool, error) {
	s.eng.record("Step")
	s.Steps++

	var r = s.result()
	if r.StepErr != nil && s.Steps == 1 {
		return false, r.StepErr
	}
	if s.row < len(r.Rows) {
		s.row++
		return true, nil
	}
	s.eng.changes, s.eng.lastInsertID = r.Changes, r.LastInsertID
	return false, nil
}

func (s *Stmt) Reset() error {
	s.eng.record("Reset")
	s.Resets++
	s.row = 0
	for k := range s.Binds {
		delete(s.Binds, k)
	}
	return nil
}

func (s *Stmt) current() []interface{} {
	var r = s.result()
	if s.row == 0 || s.row > len(r.Rows) {
		return nil
	}
	return r.Rows[s.row-1]
}

func (s *Stmt) ColumnCount() int { return len(s.result().Columns) }

func (s *Stmt) ColumnName(i int) string { return s.result().Columns[i] }

func (s *Stmt) ColumnType(i int) engine.ColumnType {
	switch s.current()[i].(type) {
	case int64:
		return engine.TypeInteger
	case float64:
		return engine.TypeFloat
	case string:
		return engine.TypeText
	case []byte:
		return engine.TypeBlob
	default:
		return engine.TypeNull
	}
}

func (s *Stmt) ColumnInt64(i int) int64 {
	var v, _ = s.current()[i].(int64)
	return v
}

func (s *Stmt) ColumnFloat(i int) float64 {
	var v, _ = s.current()[i].(float64)
	return v
}

func (s *Stmt) ColumnText(i int) string {
	var v, _ = s.current()[i].(string)
	return v
}

func (s *Stmt) ColumnBlob(i int) []byte {
	var v, _ = s.current()[i].([]byte)
	return v
}

func (s *Stmt) Finalize() error {
	s.eng.record("Finalize")
	s.Finalizes++
	return nil
}

// countMarkers naively counts parameter markers of a SQL text. Tests
// needing exact counts for tricky texts should set Engine.BindCounts.
func countMarkers(sql string) int {
	var n int
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '?':
			n++
		case ':', '@', '$':
			if i+1 < len(sql) && isWordByte(sql[i+1]) {
				n++
				for i+1 < len(sql) && isWordByte(sql[i+1]) {
					i++
				}
			}
		}
	}
	return n
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
