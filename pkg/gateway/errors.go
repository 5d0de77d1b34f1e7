package gateway

import (
	"errors"
	"fmt"
)

// ErrExecutionTimeout marks a job that exceeded the polling wait budget, as
// opposed to one the backend reported as failed.
var ErrExecutionTimeout = errors.New("execution wait budget exceeded")

// InferenceError wraps any transport or model failure from the inference
// service.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return fmt.Sprintf("inference failure: %v", e.Err) }
func (e *InferenceError) Unwrap() error { return e.Err }

// ExecutionError wraps a failed or unsubmittable job.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string { return fmt.Sprintf("execution failure: %v", e.Err) }
func (e *ExecutionError) Unwrap() error { return e.Err }

// QueryError wraps warehouse query failures, syntax and connectivity alike.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return fmt.Sprintf("query failure: %v", e.Err) }
func (e *QueryError) Unwrap() error { return e.Err }

// InvocationError wraps a failed cross-component invocation.
type InvocationError struct {
	Target string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation of %s failed: %v", e.Target, e.Err)
}
func (e *InvocationError) Unwrap() error { return e.Err }
