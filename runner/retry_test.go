package runner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum-optimism/infra/op-parallel/reporting"
	"github.com/ethereum-optimism/infra/op-parallel/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	ref := types.ScenarioRef{URI: "features/a.feature", Line: 1}

	passed := filepath.Join(dir, "passed.json")
	writeScenarioArtifact(passed, ref, "passed")
	undefined := filepath.Join(dir, "undefined.json")
	writeScenarioArtifact(undefined, ref, reporting.StepStatusUndefined)
	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("not json"), 0644))

	tests := []struct {
		name      string
		exitCode  int
		launchErr error
		artifact  string
		want      types.OutcomeKind
	}{
		{name: "clean exit", artifact: passed, want: types.OutcomeSuccess},
		{name: "non-zero exit", exitCode: 1, artifact: passed, want: types.OutcomeProcessError},
		{name: "launch error", launchErr: errors.New("exec: not found"), artifact: passed, want: types.OutcomeProcessError},
		{name: "undefined step", artifact: undefined, want: types.OutcomeUndefinedStep},
		{name: "non-zero exit wins over undefined step", exitCode: 2, artifact: undefined, want: types.OutcomeProcessError},
		{name: "missing artifact", artifact: filepath.Join(dir, "missing.json"), want: types.OutcomeSuccess},
		{name: "corrupt artifact", artifact: corrupt, want: types.OutcomeSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.exitCode, tt.launchErr, tt.artifact))
		})
	}
}

func TestRetryPolicy_Decide(t *testing.T) {
	ref := types.ScenarioRef{URI: "features/a.feature", Line: 1, Weight: 3}

	tests := []struct {
		name      string
		limit     int
		attempt   int
		kind      types.OutcomeKind
		passed    bool
		retry     int // expected attempt of the queued retry, -1 for none
		exhausted bool
	}{
		{name: "success", limit: 2, kind: types.OutcomeSuccess, passed: true, retry: -1},
		{name: "success on retry", limit: 2, attempt: 2, kind: types.OutcomeSuccess, passed: true, retry: -1},
		{name: "first failure with retries", limit: 2, kind: types.OutcomeProcessError, retry: 1},
		{name: "retry failure with retries left", limit: 2, attempt: 1, kind: types.OutcomeProcessError, retry: 2},
		{name: "last retry fails", limit: 2, attempt: 2, kind: types.OutcomeProcessError, retry: -1, exhausted: true},
		{name: "no retries configured", limit: 0, kind: types.OutcomeProcessError, retry: -1, exhausted: true},
		{name: "undefined step is retried", limit: 1, kind: types.OutcomeUndefinedStep, retry: 1},
		{name: "undefined step exhausted", limit: 1, attempt: 1, kind: types.OutcomeUndefinedStep, retry: -1, exhausted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, err := NewRetryPolicy(tt.limit)
			require.NoError(t, err)

			current := ref
			current.Attempt = tt.attempt
			d := policy.Decide(types.ExecutionOutcome{Ref: current, Kind: tt.kind})

			assert.Equal(t, tt.passed, d.Passed)
			assert.Equal(t, tt.exhausted, d.Exhausted)
			if tt.retry < 0 {
				assert.Nil(t, d.Retry)
				return
			}
			require.NotNil(t, d.Retry)
			assert.Equal(t, tt.retry, d.Retry.Attempt)
			assert.Equal(t, ref.ID(), d.Retry.ID())
			assert.Equal(t, ref.Weight, d.Retry.Weight)
		})
	}
}

func TestRetryPolicy_AlwaysFailingProducesLimitPlusOneAttempts(t *testing.T) {
	for limit := 0; limit <= 4; limit++ {
		policy, err := NewRetryPolicy(limit)
		require.NoError(t, err)

		attempts := 0
		next := &types.ScenarioRef{URI: "features/x.feature", Line: 9}
		for next != nil {
			attempts++
			d := policy.Decide(types.ExecutionOutcome{Ref: *next, Kind: types.OutcomeProcessError})
			next = d.Retry
		}
		assert.Equal(t, limit+1, attempts)
	}
}

func TestNewRetryPolicy_Negative(t *testing.T) {
	_, err := NewRetryPolicy(-1)
	require.Error(t, err)
}
