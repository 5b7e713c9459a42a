// Package runner executes cucumber scenarios on a bounded pool of external runner processes.
//
// The main components are:
//   - Scheduler: Drains the pending scenario queue into the worker pool and handles completions one at a time
//   - RetryPolicy: Classifies execution outcomes and decides whether a scenario is queued again
//   - Launcher: Starts one runner process per scenario attempt and captures its output
//   - ProgressIndicator: Periodically reports which scenarios are still running
//
// Each attempt writes its own partial report artifact, named after the scenario identity and the
// attempt number. The scheduler merges every artifact into a reporting.Accumulator and records the
// outcome in a summary.Summary.
package runner
