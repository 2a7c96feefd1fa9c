package driver

import (
	"go.tessdb.dev/client/engine"
)

// Rows is a forward-only iterator over the result set of a cursor
// execution. A Rows must be closed before its Connection runs another
// operation. Rows over a cached or Command-private statement release only
// their claim on the handle when closed; Rows over a transient statement
// finalize it.
type Rows struct {
	conn *Connection
	stmt engine.Stmt
	sql  string

	owned  bool // statement is transient and finalized by Close
	onRow  bool
	done   bool
	closed bool
}

// Next advances to the next row. It returns false with a nil error when
// the result set is exhausted.
func (r *Rows) Next() (bool, error) {
	if r.closed {
		return false, stateErrorf("rows are closed")
	} else if r.done {
		return false, nil
	} else if r.conn.state != Open {
		return false, stateErrorf("connection is %s", r.conn.state)
	}

	var hasRow, err = r.stmt.Step()
	if err != nil {
		r.onRow, r.done = false, true
		return false, engineErr(r.sql, err)
	}
	r.onRow = hasRow
	r.done = !hasRow
	return hasRow, nil
}

// ColumnCount returns the number of result columns.
func (r *Rows) ColumnCount() int { return r.stmt.ColumnCount() }

// Columns returns the names of the result columns.
func (r *Rows) Columns() []string {
	var out = make([]string, r.stmt.ColumnCount())
	for i := range out {
		out[i] = r.stmt.ColumnName(i)
	}
	return out
}

// ColumnType returns the storage class of column i of the current row.
func (r *Rows) ColumnType(i int) engine.ColumnType { return r.stmt.ColumnType(i) }

// Value extracts column i of the current row as the Go type matching its
// storage class: int64, float64, string, []byte, or nil.
func (r *Rows) Value(i int) (interface{}, error) {
	if !r.onRow {
		return nil, stateErrorf("rows have no current row")
	} else if i < 0 || i >= r.stmt.ColumnCount() {
		return nil, validationErrorf(
			"column index %d is out of range [0, %d)", i, r.stmt.ColumnCount())
	}
	return columnValue(r.stmt, i), nil
}

// Values extracts every column of the current row.
func (r *Rows) Values() ([]interface{}, error) {
	if !r.onRow {
		return nil, stateErrorf("rows have no current row")
	}
	var out = make([]interface{}, r.stmt.ColumnCount())
	for i := range out {
		out[i] = columnValue(r.stmt, i)
	}
	return out, nil
}

// Scan extracts columns of the current row into the pointed-to
// destinations, converting per the column storage class. Supported
// destinations are *int64, *float64, *string, *[]byte, *bool, and
// *interface{}.
func (r *Rows) Scan(dests ...interface{}) error {
	if !r.onRow {
		return stateErrorf("rows have no current row")
	} else if len(dests) > r.stmt.ColumnCount() {
		return validationErrorf("%d destinations for %d columns",
			len(dests), r.stmt.ColumnCount())
	}
	for i, d := range dests {
		switch d := d.(type) {
		case *int64:
			*d = r.stmt.ColumnInt64(i)
		case *float64:
			*d = r.stmt.ColumnFloat(i)
		case *string:
			*d = r.stmt.ColumnText(i)
		case *[]byte:
			*d = r.stmt.ColumnBlob(i)
		case *bool:
			*d = r.stmt.ColumnInt64(i) != 0
		case *interface{}:
			*d = columnValue(r.stmt, i)
		default:
			return validationErrorf("unsupported scan destination %T for column %d", d, i)
		}
	}
	return nil
}

// Close releases the Rows. It is idempotent. Closing a Rows over a
// transient statement finalizes it; over a cached or Command-private
// statement, the handle is reset for reuse.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed, r.onRow, r.done = true, false, true

	if r.owned {
		if err := r.stmt.Finalize(); err != nil {
			return engineErr(r.sql, err)
		}
	} else if r.conn.state == Open {
		// Park the shared handle for reuse. Once the Connection has
		// closed, the cache has already finalized it.
		_ = r.stmt.Reset()
	}
	return nil
}
