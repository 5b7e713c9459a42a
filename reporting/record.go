package reporting

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// StepStatusUndefined is the step result status emitted for steps without a definition
const StepStatusUndefined = "undefined"

// ErrArtifactParse is returned when a partial report artifact is missing or malformed.
var ErrArtifactParse = errors.New("artifact parse error")

// Record is one top-level feature entry of a cucumber JSON report. Only the fields the
// accumulator needs are typed; all other fields are kept as raw JSON and written back
// unchanged.
type Record struct {
	ID       string
	Line     int
	Name     string
	Elements []json.RawMessage

	extra map[string]json.RawMessage
}

// recordKey is the composite identity a record is merged under
type recordKey struct {
	id   string
	line int
}

func (r *Record) key() recordKey {
	return recordKey{id: r.ID, line: r.Line}
}

// UnmarshalJSON decodes a record, requiring id, line, name and a non-empty elements list.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("record is null")
	}

	var rec Record
	if err := decodeRequired(fields, "id", &rec.ID); err != nil {
		return err
	}
	if err := decodeRequired(fields, "line", &rec.Line); err != nil {
		return err
	}
	if err := decodeRequired(fields, "name", &rec.Name); err != nil {
		return err
	}
	if err := decodeRequired(fields, "elements", &rec.Elements); err != nil {
		return err
	}
	if len(rec.Elements) == 0 {
		return errors.New("field \"elements\" is empty")
	}

	for _, k := range []string{"id", "line", "name", "elements"} {
		delete(fields, k)
	}
	rec.extra = fields
	*r = rec
	return nil
}

// MarshalJSON encodes the record with its preserved fields. Keys come out sorted, so the
// encoding of a record is deterministic.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.extra)+4)
	for k, v := range r.extra {
		out[k] = v
	}
	elements := r.Elements
	if elements == nil {
		elements = []json.RawMessage{}
	}
	out["id"] = r.ID
	out["line"] = r.Line
	out["name"] = r.Name
	out["elements"] = elements
	return json.Marshal(out)
}

func decodeRequired(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("missing required field %q", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid field %q: %w", name, err)
	}
	return nil
}

// ReadArtifact reads a partial report artifact: a JSON array whose first entry is the record
// for the executed scenario. Any deviation is reported as ErrArtifactParse.
func ReadArtifact(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactParse, err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactParse, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s: no records", ErrArtifactParse, path)
	}
	return &records[0], nil
}

type stepResult struct {
	Result struct {
		Status string `json:"status"`
	} `json:"result"`
}

type element struct {
	Steps []stepResult `json:"steps"`
}

// HasUndefinedStep reports whether any step of the artifact's scenario has the undefined
// status, which means the runner exited cleanly without actually running the step.
func HasUndefinedStep(path string) (bool, error) {
	rec, err := ReadArtifact(path)
	if err != nil {
		return false, err
	}
	return rec.HasUndefinedStep(), nil
}

// HasUndefinedStep reports whether any step in the record's elements is undefined.
func (r *Record) HasUndefinedStep() bool {
	for _, raw := range r.Elements {
		var el element
		if err := json.Unmarshal(raw, &el); err != nil {
			continue
		}
		for _, step := range el.Steps {
			if step.Result.Status == StepStatusUndefined {
				return true
			}
		}
	}
	return false
}

// elementWithSuffix renames an element's id and name by appending suffix. Elements that are not
// JSON objects are returned unchanged.
func elementWithSuffix(raw json.RawMessage, suffix string) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return raw
	}
	for _, k := range []string{"id", "name"} {
		var s string
		if v, ok := fields[k]; ok && json.Unmarshal(v, &s) == nil {
			encoded, err := json.Marshal(s + suffix)
			if err != nil {
				return raw
			}
			fields[k] = encoded
		}
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return raw
	}
	return out
}
