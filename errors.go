package parallel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum-optimism/infra/op-parallel/exitcodes"
)

// RuntimeError is a failure of the runner itself rather than of a scenario: bad
// configuration, an unreadable catalog, a cancelled run. It exits with code 2.
type RuntimeError struct {
	Err error
}

func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// ExitCode implements cli.ExitCoder
func (e *RuntimeError) ExitCode() int {
	return exitcodes.RuntimeErr
}

// IsRuntimeError reports whether err is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return errors.As(err, &runtimeErr)
}

// TestFailureError lists the scenarios that still failed after their retries. It exits with code 1.
type TestFailureError struct {
	Failed []string
}

func NewTestFailureError(failed ...string) *TestFailureError {
	return &TestFailureError{Failed: failed}
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %d scenario(s) failed after retries: %s",
		len(e.Failed), strings.Join(e.Failed, ", "))
}

// ExitCode implements cli.ExitCoder
func (e *TestFailureError) ExitCode() int {
	return exitcodes.TestFailure
}

// IsTestFailureError reports whether err is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return errors.As(err, &testErr)
}
