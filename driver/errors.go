package driver

import (
	"fmt"

	"github.com/pkg/errors"

	"go.tessdb.dev/client/engine"
)

// StateError reports an operation attempted against an entity in the
// wrong state: a closed connection, a cursor with no current row, an
// already-completed transaction.
type StateError struct {
	Msg string
}

func (e *StateError) Error() string { return e.Msg }

// ValidationError reports input rejected before any engine call:
// malformed command text, an out-of-range or unknown parameter, an
// unsupported isolation level, a non-positive cache capacity.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// EngineError reports a nonzero engine status. It carries the engine's
// code and message plus the offending SQL text.
type EngineError struct {
	Code    engine.Status
	Message string
	SQL     string
}

func (e *EngineError) Error() string {
	if e.SQL != "" {
		return fmt.Sprintf("engine %s: %s (%q)", e.Code, e.Message, e.SQL)
	}
	return fmt.Sprintf("engine %s: %s", e.Code, e.Message)
}

// AsStateError unwraps err to a *StateError, if it is one.
func AsStateError(err error) (*StateError, bool) {
	var e, ok = errors.Cause(err).(*StateError)
	return e, ok
}

// AsValidationError unwraps err to a *ValidationError, if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var e, ok = errors.Cause(err).(*ValidationError)
	return e, ok
}

// AsEngineError unwraps err to an *EngineError, if it is one.
func AsEngineError(err error) (*EngineError, bool) {
	var e, ok = errors.Cause(err).(*EngineError)
	return e, ok
}

// IsBusy reports whether err is an EngineError caused by transient lock
// contention, for which callers may reasonably apply a retry policy.
// This driver itself never retries.
func IsBusy(err error) bool {
	var e, ok = AsEngineError(err)
	return ok && (e.Code == engine.StatusBusy || e.Code == engine.StatusLocked)
}

// IsConstraint reports whether err is an EngineError caused by a
// constraint violation.
func IsConstraint(err error) bool {
	var e, ok = AsEngineError(err)
	return ok && e.Code == engine.StatusConstraint
}

func stateErrorf(format string, args ...interface{}) error {
	return &StateError{Msg: fmt.Sprintf(format, args...)}
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// engineErr translates a collaborator error into an *EngineError carrying
// the offending SQL. Errors already bearing a Status pass their code
// through; anything else is reported as a generic engine error.
func engineErr(sql string, err error) error {
	if err == nil {
		return nil
	}
	if ee, ok := errors.Cause(err).(*engine.Error); ok {
		return &EngineError{Code: ee.Code, Message: ee.Message, SQL: sql}
	}
	if ee, ok := errors.Cause(err).(*EngineError); ok {
		return ee
	}
	return &EngineError{Code: engine.StatusError, Message: err.Error(), SQL: sql}
}
