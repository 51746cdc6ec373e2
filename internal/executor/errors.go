package executor

import (
	"errors"
	"fmt"
)

// ErrOutsideExecRoot is returned when a binary to collect does not live
// under the configured test execution root
var ErrOutsideExecRoot = errors.New("binary is not under the test execution root")

// UnsupportedError reports a request the executor cannot implement.
// Executors surface it to callers as a Result with the unsupported exit code.
type UnsupportedError struct {
	Op     string
	Reason string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// AllocationError reports a failure to create remote staging resources
type AllocationError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *AllocationError) Error() string {
	msg := "failed to allocate remote temporary"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}
