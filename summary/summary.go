// Package summary aggregates the outcome of a parallel scenario run.
package summary

import (
	"fmt"
	"io"
	"time"

	"github.com/ethereum-optimism/infra/op-parallel/exitcodes"
)

// Totals are per-attempt counters. Once a run has finished, Attempted == Passed + Failed.
type Totals struct {
	Attempted int
	Passed    int
	Failed    int
}

type scenarioResult struct {
	passed   bool
	attempts int
}

// Summary tracks run totals and the last recorded result of every scenario. It is not safe
// for concurrent use; the scheduler updates it from its completion-handling loop only.
type Summary struct {
	now    func() time.Time
	start  time.Time
	end    time.Time
	totals Totals

	results map[string]*scenarioResult
	order   []string // scenario identities in first-seen order
}

// New creates a summary that reads time from now, which defaults to time.Now.
func New(now func() time.Time) *Summary {
	if now == nil {
		now = time.Now
	}
	return &Summary{
		now:     now,
		results: make(map[string]*scenarioResult),
	}
}

// Start marks the beginning of the run
func (s *Summary) Start() {
	s.start = s.now()
}

// RecordLaunch counts one attempt as started
func (s *Summary) RecordLaunch() {
	s.totals.Attempted++
}

// RecordResult records the result of one attempt of scenario id. A later result for the same
// scenario overwrites the earlier one.
func (s *Summary) RecordResult(id string, passed bool) {
	if passed {
		s.totals.Passed++
	} else {
		s.totals.Failed++
	}

	res, ok := s.results[id]
	if !ok {
		res = &scenarioResult{}
		s.results[id] = res
		s.order = append(s.order, id)
	}
	res.passed = passed
	res.attempts++
}

// Finish marks the end of the run
func (s *Summary) Finish() {
	s.end = s.now()
}

// Totals returns the attempt counters recorded so far.
func (s *Summary) Totals() Totals {
	return s.totals
}

// FailedAfterRetry returns the scenarios whose last recorded result is a failure, in the
// order they were first seen.
func (s *Summary) FailedAfterRetry() []string {
	var failed []string
	for _, id := range s.order {
		if !s.results[id].passed {
			failed = append(failed, id)
		}
	}
	return failed
}

// Passed reports the last recorded result of scenario id, and whether it was seen at all
func (s *Summary) Passed(id string) (passed bool, ok bool) {
	res, ok := s.results[id]
	if !ok {
		return false, false
	}
	return res.passed, true
}

// Attempts returns how many results were recorded for scenario id
func (s *Summary) Attempts(id string) int {
	if res, ok := s.results[id]; ok {
		return res.attempts
	}
	return 0
}

// Scenarios returns all scenario identities in first-seen order
func (s *Summary) Scenarios() []string {
	return append([]string(nil), s.order...)
}

// Duration is the wall-clock time from Start to Finish, or to now while the run is ongoing.
func (s *Summary) Duration() time.Duration {
	if s.start.IsZero() {
		return 0
	}
	if s.end.IsZero() {
		return s.now().Sub(s.start)
	}
	return s.end.Sub(s.start)
}

// ExitCode is non-zero if and only if some scenario failed after all of its retries.
func (s *Summary) ExitCode() int {
	if len(s.FailedAfterRetry()) > 0 {
		return exitcodes.TestFailure
	}
	return exitcodes.Success
}

// Render writes the plain-text run summary.
func (s *Summary) Render(w io.Writer) error {
	failed := s.FailedAfterRetry()
	d := s.Duration()

	lines := []string{
		fmt.Sprintf("All tests:                 %d", s.totals.Attempted),
		fmt.Sprintf("Passed tests:              %d", s.totals.Passed),
		fmt.Sprintf("Failed tests:              %d", s.totals.Failed),
	}
	for _, id := range failed {
		lines = append(lines, fmt.Sprintf("%s has failed", id))
	}
	lines = append(lines,
		fmt.Sprintf("Failed tests (retry):      %d", len(failed)),
		fmt.Sprintf("Execution time (%dms):   %s", d.Milliseconds(), formatMinutesSeconds(d)),
	)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// formatMinutesSeconds formats d as "<m>m <s>s", truncating to whole seconds
func formatMinutesSeconds(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}
