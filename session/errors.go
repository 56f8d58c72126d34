package session

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrPrecondition is matched by every *PreconditionError.
var ErrPrecondition = errors.New("precondition failed")

// PreconditionError reports a call that can never succeed as made: an empty
// batch, an unknown parameter, mismatched collection sizes within a batch
// or a generated key count that differs from the input count.
type PreconditionError struct {
	Op     string
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

func (e *PreconditionError) Unwrap() error { return e.Err }

func precondition(op, format string, args ...interface{}) error {
	return &PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// BindingError reports a parameter value that could not be converted into
// something the driver accepts.
type BindingError struct {
	Param string
	Err   error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Param, e.Err)
}

func (e *BindingError) Unwrap() error { return e.Err }

// ExecutionError wraps a driver failure together with the stage it
// happened in and the SQL sent to the driver.
type ExecutionError struct {
	Stage Stage
	SQL   string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Stage, e.SQL, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
