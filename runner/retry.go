package runner

import (
	"fmt"

	"github.com/ethereum-optimism/infra/op-parallel/reporting"
	"github.com/ethereum-optimism/infra/op-parallel/types"
)

// Classify determines the outcome of one execution. A non-zero exit or a launch failure is
// a process error. A clean exit whose artifact reports an undefined step is an undefined step.
// A clean exit with an unreadable artifact counts as success; the report merge reports the
// artifact problem separately.
func Classify(exitCode int, launchErr error, artifactPath string) types.OutcomeKind {
	if launchErr != nil || exitCode != 0 {
		return types.OutcomeProcessError
	}
	undefined, err := reporting.HasUndefinedStep(artifactPath)
	if err == nil && undefined {
		return types.OutcomeUndefinedStep
	}
	return types.OutcomeSuccess
}

// Decision is the result of applying the RetryPolicy to one outcome
type Decision struct {
	// Passed is the result recorded for the scenario by this attempt
	Passed bool
	// Retry is the next attempt to queue, nil if none
	Retry *types.ScenarioRef
	// Exhausted is set when the attempt failed and no retries are left
	Exhausted bool
}

// RetryPolicy re-queues failed scenarios until they have used Limit retries.
type RetryPolicy struct {
	Limit int
}

// NewRetryPolicy creates a policy granting limit retries per scenario
func NewRetryPolicy(limit int) (RetryPolicy, error) {
	if limit < 0 {
		return RetryPolicy{}, fmt.Errorf("retry limit must not be negative, got %d", limit)
	}
	return RetryPolicy{Limit: limit}, nil
}

// Decide applies the policy to a finished execution.
func (p RetryPolicy) Decide(outcome types.ExecutionOutcome) Decision {
	if !outcome.Kind.Failed() {
		return Decision{Passed: true}
	}
	if outcome.Ref.Attempt < p.Limit {
		next := outcome.Ref.Retry()
		return Decision{Retry: &next}
	}
	return Decision{Exhausted: true}
}
