package driver

import (
	"context"
)

// Context-accepting veneers over the execution shapes. Cancellation
// abandons the call rather than interrupting the engine: the underlying
// operation runs to completion in the background and its result is
// discarded. The Connection must not run further operations until it
// does, so cancellation is best paired with closing the Connection.

// ExecuteNonQueryContext is ExecuteNonQuery, abandoned if ctx is
// cancelled first.
func (cmd *Command) ExecuteNonQueryContext(ctx context.Context) (ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return ExecResult{}, err
	}
	type result struct {
		res ExecResult
		err error
	}
	var ch = make(chan result, 1)
	go func() {
		var res, err = cmd.ExecuteNonQuery()
		ch <- result{res, err}
	}()

	select {
	case <-ctx.Done():
		return ExecResult{}, ctx.Err()
	case r := <-ch:
		return r.res, r.err
	}
}

// ExecuteScalarContext is ExecuteScalar, abandoned if ctx is cancelled
// first.
func (cmd *Command) ExecuteScalarContext(ctx context.Context) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type result struct {
		val interface{}
		err error
	}
	var ch = make(chan result, 1)
	go func() {
		var val, err = cmd.ExecuteScalar()
		ch <- result{val, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.val, r.err
	}
}

// ExecuteCursorContext is ExecuteCursor, abandoned if ctx is cancelled
// first. Rows produced by an abandoned execution are closed when it
// completes.
func (cmd *Command) ExecuteCursorContext(ctx context.Context) (*Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type result struct {
		rows *Rows
		err  error
	}
	var ch = make(chan result, 1)
	go func() {
		var rows, err = cmd.ExecuteCursor()
		ch <- result{rows, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.rows != nil {
				_ = r.rows.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		return r.rows, r.err
	}
}

// SyncContext is Sync, abandoned if ctx is cancelled first.
func (c *Connection) SyncContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var ch = make(chan error, 1)
	go func() { ch <- c.Sync() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-ch:
		return err
	}
}
