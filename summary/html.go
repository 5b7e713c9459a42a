package summary

import (
	"fmt"
	"io"
	"time"

	"github.com/ethereum-optimism/infra/op-parallel/templates"
)

type htmlScenario struct {
	ID       string
	Attempts int
	Passed   bool
}

type htmlFeature struct {
	URI       string
	Attempts  int
	Passed    bool
	Scenarios []htmlScenario
}

type htmlData struct {
	Title            string
	RunID            string
	Passed           bool
	Duration         time.Duration
	Totals           Totals
	Scenarios        int
	FailedAfterRetry int
	Features         []htmlFeature
}

// HTML writes the results page of the run
func (s *Summary) HTML(w io.Writer, runID string) error {
	tmpl, err := templates.GetHTMLTemplate(templates.ResultsTemplate)
	if err != nil {
		return fmt.Errorf("failed to load results template: %w", err)
	}

	failed := len(s.FailedAfterRetry())
	data := htmlData{
		Title:            "Parallel Scenario Results",
		RunID:            runID,
		Passed:           failed == 0,
		Duration:         s.Duration(),
		Totals:           s.totals,
		Scenarios:        len(s.order),
		FailedAfterRetry: failed,
	}
	for _, g := range s.byFeature() {
		feature := htmlFeature{URI: g.uri, Passed: true}
		for _, id := range g.ids {
			res := s.results[id]
			feature.Attempts += res.attempts
			feature.Passed = feature.Passed && res.passed
			feature.Scenarios = append(feature.Scenarios, htmlScenario{ID: id, Attempts: res.attempts, Passed: res.passed})
		}
		data.Features = append(data.Features, feature)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render results page: %w", err)
	}
	return nil
}
