package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RetryMarker separates a scenario name from its retry number in artifact names and merged
// report records.
const RetryMarker = "_RETRY_"

// ScenarioRef identifies one execution of a scenario. The identity is (URI, Line); Attempt is
// 0 for the first run and N for the Nth retry.
type ScenarioRef struct {
	URI     string
	Line    int
	Weight  float64
	Attempt int
}

// ID returns the "uri:line" identity of the scenario, independent of the attempt.
func (r ScenarioRef) ID() string {
	return r.URI + ":" + strconv.Itoa(r.Line)
}

// IsRetry returns true if this is not the first attempt of the scenario
func (r ScenarioRef) IsRetry() bool {
	return r.Attempt > 0
}

// Retry returns the reference for the next attempt of the same scenario.
func (r ScenarioRef) Retry() ScenarioRef {
	next := r
	next.Attempt++
	return next
}

// RetrySuffix returns the "_RETRY_<n>" marker for retries and an empty string for first attempts.
func (r ScenarioRef) RetrySuffix() string {
	if !r.IsRetry() {
		return ""
	}
	return RetryMarker + strconv.Itoa(r.Attempt)
}

func (r ScenarioRef) String() string {
	if r.IsRetry() {
		return fmt.Sprintf("%s (retry %d)", r.ID(), r.Attempt)
	}
	return r.ID()
}

// ParseScenarioID parses a "uri:line" identity. The line is taken after the last colon so
// that URIs containing a drive letter or scheme still parse.
func ParseScenarioID(id string) (ScenarioRef, error) {
	id = strings.TrimSpace(id)
	idx := strings.LastIndex(id, ":")
	if idx <= 0 || idx == len(id)-1 {
		return ScenarioRef{}, fmt.Errorf("invalid scenario identity %q: expected uri:line", id)
	}
	line, err := strconv.Atoi(id[idx+1:])
	if err != nil || line <= 0 {
		return ScenarioRef{}, fmt.Errorf("invalid line in scenario identity %q", id)
	}
	return ScenarioRef{URI: id[:idx], Line: line}, nil
}

// SortByWeight orders refs by weight, largest first. Equal weights keep their input order.
func SortByWeight(refs []ScenarioRef) {
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Weight > refs[j].Weight
	})
}

// PendingQueue holds scenarios waiting for a free worker slot.
type PendingQueue struct {
	items []ScenarioRef
}

// NewPendingQueue creates a queue from refs, sorted once by weight. Entries pushed later are
// appended to the tail and never re-sorted.
func NewPendingQueue(refs []ScenarioRef) *PendingQueue {
	items := make([]ScenarioRef, len(refs))
	copy(items, refs)
	SortByWeight(items)
	return &PendingQueue{items: items}
}

// Push appends ref to the tail of the queue
func (q *PendingQueue) Push(ref ScenarioRef) {
	q.items = append(q.items, ref)
}

// Pop removes and returns the head of the queue. ok is false when the queue is empty.
func (q *PendingQueue) Pop() (ref ScenarioRef, ok bool) {
	if len(q.items) == 0 {
		return ScenarioRef{}, false
	}
	ref = q.items[0]
	q.items[0] = ScenarioRef{}
	q.items = q.items[1:]
	return ref, true
}

// Len returns the number of scenarios waiting to be launched.
func (q *PendingQueue) Len() int {
	return len(q.items)
}

// OutcomeKind classifies the terminal state of one execution
type OutcomeKind string

const (
	OutcomeProcessError  OutcomeKind = "process_error"
	OutcomeUndefinedStep OutcomeKind = "undefined_step"
	OutcomeSuccess       OutcomeKind = "success"
)

// Failed reports whether the outcome counts as a failed attempt.
func (k OutcomeKind) Failed() bool {
	return k != OutcomeSuccess
}

// ExecutionOutcome is the result of running one ScenarioRef.
type ExecutionOutcome struct {
	Ref          ScenarioRef
	Kind         OutcomeKind
	ExitCode     int
	Err          error
	ArtifactPath string
	LogPath      string
	OutputTail   string
	Duration     time.Duration
}
