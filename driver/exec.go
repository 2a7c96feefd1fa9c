package driver

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"go.tessdb.dev/client/engine"
)

// Shape is the result shape of an execution.
type Shape int

const (
	// ShapeNonQuery runs the statement to completion and reports the
	// count of affected rows.
	ShapeNonQuery Shape = iota
	// ShapeScalar extracts the first column of the first row.
	ShapeScalar
	// ShapeCursor returns a forward-only Rows iterator.
	ShapeCursor
)

func (s Shape) String() string {
	switch s {
	case ShapeNonQuery:
		return "non_query"
	case ShapeScalar:
		return "scalar"
	default:
		return "cursor"
	}
}

// ExecResult is the outcome of a non-query execution.
type ExecResult struct {
	// RowsAffected is the count of rows changed by the most recent
	// INSERT, UPDATE or DELETE.
	RowsAffected int64
	// LastInsertID is the rowid of the most recent successful INSERT.
	LastInsertID int64
}

// ExecEvent describes an execution to registered hooks.
type ExecEvent struct {
	SQL   string
	Shape Shape
	// Duration and Err are populated for after-execution hooks only.
	Duration time.Duration
	Err      error
}

// ExecuteNonQuery runs the Command to completion and returns its affected
// row count and last insert rowid.
func (cmd *Command) ExecuteNonQuery() (ExecResult, error) {
	var out, err = cmd.execute(ShapeNonQuery)
	if err != nil {
		return ExecResult{}, err
	}
	return out.(ExecResult), nil
}

// ExecuteScalar runs the Command and returns the first column of its first
// row, or nil if it produced no rows. The value is an int64, float64,
// string, []byte, or nil, per the column's storage type.
func (cmd *Command) ExecuteScalar() (interface{}, error) {
	return cmd.execute(ShapeScalar)
}

// ExecuteCursor runs the Command and returns a forward-only Rows iterator
// over its result set. The Rows must be closed before the Connection runs
// another operation.
func (cmd *Command) ExecuteCursor() (*Rows, error) {
	var out, err = cmd.execute(ShapeCursor)
	if err != nil {
		return nil, err
	}
	return out.(*Rows), nil
}

func (cmd *Command) validate() error {
	if strings.TrimSpace(cmd.text) == "" {
		return validationErrorf("command text is empty")
	} else if cmd.conn.state != Open {
		return stateErrorf("connection is %s", cmd.conn.state)
	}
	return nil
}

func (cmd *Command) execute(shape Shape) (result interface{}, err error) {
	var conn = cmd.conn

	if err = cmd.validate(); err != nil {
		return nil, err
	}
	var started = timeNow()

	if err = conn.fireBeforeExecute(ExecEvent{SQL: cmd.text, Shape: shape}); err != nil {
		return nil, err
	}
	defer func() {
		var status = "ok"
		if err != nil {
			status = "error"
		}
		executeTotal.WithLabelValues(shape.String(), status).Inc()
		executeDurationSeconds.Observe(time.Since(started).Seconds())

		conn.fireAfterExecute(ExecEvent{
			SQL:      cmd.text,
			Shape:    shape,
			Duration: time.Since(started),
			Err:      err,
		})
	}()

	var st engine.Stmt
	var ownStmt bool // transient statement which this call must finalize
	var handoff bool // ownership was handed to a Rows iterator

	switch {
	case cmd.stmt != nil:
		// The Command holds a private prepared statement.
		if err = cmd.stmt.Reset(); err != nil {
			return nil, engineErr(cmd.text, err)
		}
		st = cmd.stmt

	case conn.cachingEnabled() && !cmd.noCache && cacheableText(cmd.text):
		// Shared statement cache, keyed by exact text.
		if hit, ok := conn.stmts.tryGet(cmd.text); ok {
			if rerr := hit.Reset(); rerr == nil {
				st = hit
			} else {
				// A handle which fails to reset is unsafe to reuse.
				// Drop it and fall through to a fresh prepare.
				conn.stmts.remove(cmd.text)
			}
		}
		if st == nil {
			if st, err = conn.conn.Prepare(cmd.text); err != nil {
				return nil, engineErr(cmd.text, err)
			}
			conn.stmts.add(cmd.text, st)
		}

	case len(cmd.params) > 0:
		// Transient statement: prepared, used once, and finalized.
		if st, err = conn.conn.Prepare(cmd.text); err != nil {
			return nil, engineErr(cmd.text, err)
		}
		ownStmt = true

	default:
		// No params and no cache participation. Non-query shapes run
		// directly without a separate prepare step; row-returning
		// shapes must still walk the result set, and use a transient
		// statement to do so.
		if shape == ShapeNonQuery {
			if err = conn.conn.Exec(cmd.text); err != nil {
				return nil, engineErr(cmd.text, err)
			}
			return ExecResult{
				RowsAffected: conn.conn.Changes(),
				LastInsertID: conn.conn.LastInsertID(),
			}, nil
		}
		if st, err = conn.conn.Prepare(cmd.text); err != nil {
			return nil, engineErr(cmd.text, err)
		}
		ownStmt = true
	}

	defer func() {
		if handoff {
			return // the Rows iterator now releases the statement.
		}
		if ownStmt {
			if ferr := st.Finalize(); ferr != nil && err == nil {
				err = engineErr(cmd.text, ferr)
			}
		} else {
			// Park the reusable handle so it holds no row locks
			// between executions.
			_ = st.Reset()
		}
	}()

	if err = cmd.bindAll(st); err != nil {
		return nil, err
	}

	switch shape {
	case ShapeNonQuery:
		for {
			var hasRow, serr = st.Step()
			if serr != nil {
				return nil, engineErr(cmd.text, serr)
			} else if !hasRow {
				break
			}
		}
		return ExecResult{
			RowsAffected: conn.conn.Changes(),
			LastInsertID: conn.conn.LastInsertID(),
		}, nil

	case ShapeScalar:
		var hasRow, serr = st.Step()
		if serr != nil {
			return nil, engineErr(cmd.text, serr)
		} else if !hasRow {
			return nil, nil
		}
		return columnValue(st, 0), nil

	default: // ShapeCursor
		handoff = true
		return &Rows{conn: conn, stmt: st, sql: cmd.text, owned: ownStmt}, nil
	}
}

// bindAll applies the Command's parameters to st. Positional params bind
// at their 1-based position in the parameter list; named params resolve
// through the statement's marker table.
func (cmd *Command) bindAll(st engine.Stmt) error {
	for i, p := range cmd.params {
		var ord = i + 1

		if p.Name != "" {
			if ord = st.BindIndex(p.Name); ord == 0 {
				return validationErrorf("statement has no parameter %q", p.Name)
			}
		} else if ord > st.BindCount() {
			return validationErrorf(
				"parameter ordinal %d is out of range [1, %d]", ord, st.BindCount())
		}

		if err := bindValue(st, ord, p); err != nil {
			if _, ok := AsValidationError(err); ok {
				return err
			}
			return errors.WithMessagef(engineErr(cmd.text, err), "binding parameter %d", ord)
		}
	}
	return nil
}

func bindValue(st engine.Stmt, ord int, p Param) error {
	if p.Value == nil {
		return st.BindNull(ord)
	}
	switch p.Type {
	case ParamInteger:
		var v, ok = asInt64(p.Value)
		if !ok {
			return validationErrorf("parameter %d: cannot bind %T as INTEGER", ord, p.Value)
		}
		return st.BindInt64(ord, v)
	case ParamReal:
		var v, ok = asFloat64(p.Value)
		if !ok {
			return validationErrorf("parameter %d: cannot bind %T as REAL", ord, p.Value)
		}
		return st.BindFloat(ord, v)
	case ParamText:
		var v, ok = p.Value.(string)
		if !ok {
			return validationErrorf("parameter %d: cannot bind %T as TEXT", ord, p.Value)
		}
		return st.BindText(ord, v)
	case ParamBlob:
		var v, ok = p.Value.([]byte)
		if !ok {
			return validationErrorf("parameter %d: cannot bind %T as BLOB", ord, p.Value)
		}
		return st.BindBlob(ord, v)
	}

	// ParamAuto: infer from the Go type.
	switch v := p.Value.(type) {
	case string:
		return st.BindText(ord, v)
	case []byte:
		return st.BindBlob(ord, v)
	case float64:
		return st.BindFloat(ord, v)
	case float32:
		return st.BindFloat(ord, float64(v))
	case bool:
		if v {
			return st.BindInt64(ord, 1)
		}
		return st.BindInt64(ord, 0)
	case time.Time:
		return st.BindText(ord, v.Format(time.RFC3339Nano))
	default:
		if i, ok := asInt64(p.Value); ok {
			return st.BindInt64(ord, i)
		}
		return validationErrorf("parameter %d: unsupported type %T", ord, p.Value)
	}
}

func asInt64(v interface{}) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint8:
		return int64(v), true
	default:
		return 0, false
	}
}

func asFloat64(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// columnValue extracts column i of the statement's current row as the Go
// type matching its storage class.
func columnValue(st engine.Stmt, i int) interface{} {
	switch st.ColumnType(i) {
	case engine.TypeInteger:
		return st.ColumnInt64(i)
	case engine.TypeFloat:
		return st.ColumnFloat(i)
	case engine.TypeText:
		return st.ColumnText(i)
	case engine.TypeBlob:
		return st.ColumnBlob(i)
	default:
		return nil
	}
}
