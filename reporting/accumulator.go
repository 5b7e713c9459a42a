package reporting

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ethereum-optimism/infra/op-parallel/types"
	"github.com/ethereum/go-ethereum/log"
)

// ErrAlreadyFinalized is returned by Finalize when the report has already been written.
var ErrAlreadyFinalized = errors.New("report already finalized")

// Accumulator merges partial report artifacts into one ordered final report.
//
// It holds exactly one canonical record per (id, line) identity declared by the artifacts,
// in first-insertion order. Later artifacts with the same identity append their scenario
// element to the canonical record; element lists only grow, in merge order.
//
// An Accumulator is not safe for concurrent use. The scheduler calls it from its single
// completion-handling loop.
type Accumulator struct {
	path      string
	log       log.Logger
	records   []*Record
	index     map[recordKey]*Record
	finalized bool
}

// NewAccumulator creates an accumulator that finalizes into the report file at path.
func NewAccumulator(path string, logger log.Logger) *Accumulator {
	if logger == nil {
		logger = log.New()
	}
	return &Accumulator{
		path:  path,
		log:   logger.New("component", "report-accumulator"),
		index: make(map[recordKey]*Record),
	}
}

// Merge parses the artifact written by one attempt and merges it into the report. Parse
// failures are returned wrapped in ErrArtifactParse and leave the report unchanged.
func (a *Accumulator) Merge(artifactPath string, attempt int) error {
	if a.finalized {
		return ErrAlreadyFinalized
	}
	rec, err := ReadArtifact(artifactPath)
	if err != nil {
		return err
	}
	a.MergeRecord(rec, attempt)
	return nil
}

// MergeRecord merges an already parsed record produced by the given attempt. Elements of
// retries carry the retry marker; a record keeps its declared id and name even when a retry
// is the first attempt to report for it, since elements of other scenarios of the same
// feature are merged under it later.
func (a *Accumulator) MergeRecord(rec *Record, attempt int) {
	key := rec.key()
	if attempt > 0 {
		rec.Elements[0] = elementWithSuffix(rec.Elements[0], types.RetryMarker+strconv.Itoa(attempt))
	}

	if canonical, ok := a.index[key]; ok {
		canonical.Elements = append(canonical.Elements, rec.Elements[0])
		a.log.Debug("Merged element into existing record", "id", canonical.ID, "line", canonical.Line,
			"elements", len(canonical.Elements), "attempt", attempt)
		return
	}
	a.insert(key, rec)
}

func (a *Accumulator) insert(key recordKey, rec *Record) {
	a.records = append(a.records, rec)
	a.index[key] = rec
	a.log.Debug("Added record", "id", rec.ID, "line", rec.Line, "records", len(a.records))
}

// Records returns the canonical records in report order.
func (a *Accumulator) Records() []*Record {
	return a.records
}

// Len returns the number of canonical records.
func (a *Accumulator) Len() int {
	return len(a.records)
}

// Finalize writes the merged report exactly once. The file is written to a temporary path in
// the same folder and renamed into place, so readers never observe a partial report.
func (a *Accumulator) Finalize() error {
	if a.finalized {
		return ErrAlreadyFinalized
	}
	a.finalized = true

	records := a.records
	if records == nil {
		records = []*Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(a.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary report file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), a.path); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}

	a.log.Info("Report written", "path", a.path, "records", len(a.records))
	return nil
}
