package parallel

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum-optimism/infra/op-parallel/exitcodes"
	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"
)

func TestRuntimeError(t *testing.T) {
	cause := errors.New("catalog not found")
	err := fmt.Errorf("failed to create op-parallel: %w", NewRuntimeError(cause))

	assert.True(t, IsRuntimeError(err))
	assert.False(t, IsTestFailureError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "runtime error: catalog not found")

	var coder cli.ExitCoder
	assert.ErrorAs(t, err, &coder)
	assert.Equal(t, exitcodes.RuntimeErr, coder.ExitCode())
}

func TestTestFailureError(t *testing.T) {
	err := NewTestFailureError("features/a.feature:3", "features/b.feature:9")

	assert.True(t, IsTestFailureError(err))
	assert.False(t, IsRuntimeError(err))
	assert.Equal(t, "test failure: 2 scenario(s) failed after retries: features/a.feature:3, features/b.feature:9", err.Error())
	assert.Equal(t, exitcodes.TestFailure, err.ExitCode())

	joined := errors.Join(errors.New("shutdown"), err)
	assert.True(t, IsTestFailureError(joined))
}

func TestIsErrorNil(t *testing.T) {
	assert.False(t, IsRuntimeError(nil))
	assert.False(t, IsTestFailureError(nil))
}
