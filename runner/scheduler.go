package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum-optimism/infra/op-parallel/logging"
	"github.com/ethereum-optimism/infra/op-parallel/metrics"
	"github.com/ethereum-optimism/infra/op-parallel/reporting"
	"github.com/ethereum-optimism/infra/op-parallel/summary"
	"github.com/ethereum-optimism/infra/op-parallel/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// SchedulerConfig holds the configuration for a Scheduler
type SchedulerConfig struct {
	Concurrency int    // Maximum number of executions in flight
	Retries     int    // Retries granted to each failing scenario
	TempDir     string // Folder for partial report artifacts
	RunID       string

	Launcher    Launcher
	Accumulator *reporting.Accumulator
	Progress    ProgressIndicator   // Optional, defaults to a no-op indicator
	FileLogger  *logging.FileLogger // Optional, receives copies of logs of failed scenarios
	Clock       func() time.Time    // Optional, defaults to time.Now
	Log         log.Logger
}

// Scheduler dispatches scenario attempts onto a bounded pool of executions. Completions are
// handled one at a time by a single loop; executions only overlap in wall-clock time.
type Scheduler struct {
	concurrency int
	policy      RetryPolicy
	tempDir     string
	runID       string
	launcher    Launcher
	accumulator *reporting.Accumulator
	progress    ProgressIndicator
	fileLogger  *logging.FileLogger
	clock       func() time.Time
	log         log.Logger
}

// schedulerState is owned by the Run loop; nothing else reads or writes it.
type schedulerState struct {
	active  int
	pending *types.PendingQueue
}

// NewScheduler validates the configuration and creates a Scheduler
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.Concurrency > MaxReasonableConcurrency {
		return nil, fmt.Errorf("concurrency %d exceeds the maximum of %d", cfg.Concurrency, MaxReasonableConcurrency)
	}
	policy, err := NewRetryPolicy(cfg.Retries)
	if err != nil {
		return nil, err
	}
	if cfg.Launcher == nil {
		return nil, errors.New("launcher is required")
	}
	if cfg.Accumulator == nil {
		return nil, errors.New("report accumulator is required")
	}
	if cfg.TempDir == "" {
		return nil, errors.New("temporary report folder is required")
	}

	logger := cfg.Log
	if logger == nil {
		logger = log.New()
	}
	progress := cfg.Progress
	if progress == nil {
		progress = NewNoOpProgressIndicator()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Scheduler{
		concurrency: cfg.Concurrency,
		policy:      policy,
		tempDir:     cfg.TempDir,
		runID:       cfg.RunID,
		launcher:    cfg.Launcher,
		accumulator: cfg.Accumulator,
		progress:    progress,
		fileLogger:  cfg.FileLogger,
		clock:       clock,
		log:         logger.New("component", "scheduler"),
	}, nil
}

// Run executes refs, heaviest first, until every scenario has passed or used all of its
// retries, then finalizes the report. If ctx is cancelled no further attempts are launched;
// executions already in flight still run to completion, the report is finalized, and ctx.Err()
// is returned together with the summary.
func (s *Scheduler) Run(ctx context.Context, refs []types.ScenarioRef) (*summary.Summary, error) {
	sum := summary.New(s.clock)
	state := &schedulerState{pending: types.NewPendingQueue(refs)}
	completions := make(chan types.ExecutionOutcome, s.concurrency)
	var wg conc.WaitGroup

	sum.Start()
	s.progress.StartRun(len(refs))
	s.log.Info("Starting scenario run",
		"scenarios", len(refs),
		"concurrency", s.concurrency,
		"retries", s.policy.Limit,
		"tempDir", s.tempDir)

	var runErr error
	for {
		if runErr == nil && ctx.Err() != nil {
			runErr = ctx.Err()
			s.log.Warn("Run cancelled, waiting for running scenarios",
				"running", state.active, "notStarted", state.pending.Len())
		}
		if runErr == nil {
			s.fill(ctx, state, sum, completions, &wg)
		}
		if state.active == 0 && (state.pending.Len() == 0 || runErr != nil) {
			break
		}

		outcome := <-completions
		state.active--
		metrics.SetActiveWorkers(s.runID, state.active)
		s.handle(state, sum, outcome)
	}
	wg.Wait()

	if err := s.finalize(sum); err != nil {
		return sum, errors.Join(runErr, err)
	}
	return sum, runErr
}

// fill launches pending scenarios until the pool is full or the queue is empty
func (s *Scheduler) fill(ctx context.Context, state *schedulerState, sum *summary.Summary, completions chan<- types.ExecutionOutcome, wg *conc.WaitGroup) {
	for state.active < s.concurrency {
		ref, ok := state.pending.Pop()
		if !ok {
			return
		}
		state.active++
		sum.RecordLaunch()
		metrics.SetActiveWorkers(s.runID, state.active)

		artifactPath := ArtifactPath(s.tempDir, ref)
		if err := os.MkdirAll(filepath.Dir(artifactPath), 0755); err != nil {
			// The execution still runs; its artifact will be missing from the report.
			s.log.Error("Failed to create artifact folder", "scenario", ref.ID(), "path", artifactPath, "error", err)
			metrics.RecordErrorDetails("folder_creation", err)
		}
		// Stale artifacts from earlier runs must never be merged as this attempt's result
		if err := os.Remove(artifactPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("Failed to remove stale artifact", "path", artifactPath, "error", err)
		}

		s.progress.StartScenario(ref.String())
		s.log.Info("Launching scenario", "scenario", ref.ID(), "attempt", ref.Attempt, "active", state.active, "pending", state.pending.Len())

		wg.Go(func() {
			completions <- s.execute(ctx, ref, artifactPath)
		})
	}
}

// execute runs one attempt. A panicking launcher is reported as a process error so the
// completion is always delivered.
func (s *Scheduler) execute(ctx context.Context, ref types.ScenarioRef, artifactPath string) types.ExecutionOutcome {
	var res LaunchResult
	var pc panics.Catcher
	pc.Try(func() {
		res = s.launcher.Launch(ctx, ref, artifactPath)
	})
	if r := pc.Recovered(); r != nil {
		res = LaunchResult{ExitCode: -1, Err: r.AsError()}
	}

	return types.ExecutionOutcome{
		Ref:          ref,
		ExitCode:     res.ExitCode,
		Err:          res.Err,
		ArtifactPath: artifactPath,
		LogPath:      res.LogPath,
		OutputTail:   res.OutputTail,
		Duration:     res.Duration,
	}
}

// handle applies the bookkeeping for one completed attempt
func (s *Scheduler) handle(state *schedulerState, sum *summary.Summary, outcome types.ExecutionOutcome) {
	ref := outcome.Ref
	outcome.Kind = Classify(outcome.ExitCode, outcome.Err, outcome.ArtifactPath)
	decision := s.policy.Decide(outcome)

	sum.RecordResult(ref.ID(), decision.Passed)
	metrics.RecordAttempt(s.runID, outcome.Kind, outcome.Duration)

	switch {
	case decision.Passed:
		s.log.Info("Scenario passed", "scenario", ref.ID(), "attempt", ref.Attempt, "duration", outcome.Duration)
	case decision.Retry != nil:
		state.pending.Push(*decision.Retry)
		metrics.RecordRetry(s.runID)
		s.log.Warn("Scenario failed, queued retry",
			"scenario", ref.ID(), "attempt", ref.Attempt, "outcome", outcome.Kind,
			"exitCode", outcome.ExitCode, "error", outcome.Err)
	case decision.Exhausted:
		s.log.Error("Scenario failed",
			"scenario", ref.ID(), "attempt", ref.Attempt, "outcome", outcome.Kind,
			"exitCode", outcome.ExitCode, "error", outcome.Err, "log", outcome.LogPath)
		if s.fileLogger != nil {
			if err := s.fileLogger.MarkFailed(outcome.LogPath); err != nil {
				s.log.Warn("Failed to keep log of failed scenario", "scenario", ref.ID(), "error", err)
			}
		}
	}
	if outcome.Kind.Failed() && outcome.OutputTail != "" {
		s.log.Debug("Output of failed attempt", "scenario", ref.ID(), "attempt", ref.Attempt, "output", outcome.OutputTail)
	}

	if err := s.accumulator.Merge(outcome.ArtifactPath, ref.Attempt); err != nil {
		// The run continues; the report just lacks this attempt.
		s.log.Warn("Failed to merge report artifact", "scenario", ref.ID(), "attempt", ref.Attempt, "path", outcome.ArtifactPath, "error", err)
		metrics.RecordErrorDetails("artifact_parse", err)
	}

	s.progress.CompleteScenario(ref.String(), outcome.Kind, decision.Retry != nil)
}

func (s *Scheduler) finalize(sum *summary.Summary) error {
	sum.Finish()
	s.progress.CompleteRun()

	totals := sum.Totals()
	s.log.Info("Scenario run finished",
		"attempted", totals.Attempted,
		"passed", totals.Passed,
		"failed", totals.Failed,
		"failedAfterRetry", len(sum.FailedAfterRetry()),
		"duration", sum.Duration())

	if err := s.accumulator.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize report: %w", err)
	}
	return nil
}
