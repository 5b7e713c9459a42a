package summary

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-parallel/ui"
)

const failureBoxWidth = 100

type featureGroup struct {
	uri string
	ids []string
}

// byFeature groups scenario identities by feature file, both in first-seen order
func (s *Summary) byFeature() []featureGroup {
	var groups []featureGroup
	index := make(map[string]int)
	for _, id := range s.order {
		uri := id
		if i := strings.LastIndex(id, ":"); i > 0 {
			uri = id[:i]
		}
		gi, ok := index[uri]
		if !ok {
			gi = len(groups)
			index[uri] = gi
			groups = append(groups, featureGroup{uri: uri})
		}
		groups[gi].ids = append(groups[gi].ids, id)
	}
	return groups
}

// Table writes a per-scenario results table, grouped by feature file.
func (s *Summary) Table(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Parallel Scenario Results (%s)", formatDuration(s.Duration())))

	t.AppendHeader(table.Row{"Type", "Scenario", "Attempts", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "Scenario", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Attempts", Align: text.AlignRight},
	})

	groups := s.byFeature()
	for gi, g := range groups {
		lastFeature := gi == len(groups)-1
		attempts := 0
		passed := true
		for _, id := range g.ids {
			attempts += s.results[id].attempts
			passed = passed && s.results[id].passed
		}
		t.AppendRow(table.Row{
			"Feature",
			ui.BuildTreePrefix(1, lastFeature, nil) + g.uri,
			attempts,
			getResultString(passed),
		})

		for si, id := range g.ids {
			res := s.results[id]
			t.AppendRow(table.Row{
				"Scenario",
				ui.BuildTreePrefix(2, si == len(g.ids)-1, []bool{lastFeature}) + id,
				res.attempts,
				getResultString(res.passed),
			})
		}
	}

	failed := len(s.FailedAfterRetry())
	if failed == 0 {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("TOTAL (%d scenarios, %d failed after retry)", len(s.order), failed),
		s.totals.Attempted,
		getResultString(failed == 0),
	})

	t.Render()
}

// FailureBox writes a box listing the scenarios that failed after all retries. Nothing is
// written when every scenario passed.
func (s *Summary) FailureBox(w io.Writer) error {
	failed := s.FailedAfterRetry()
	if len(failed) == 0 {
		return nil
	}
	lines := make([]string, 0, len(failed))
	for _, id := range failed {
		lines = append(lines, fmt.Sprintf("%s (%d attempts)", id, s.Attempts(id)))
	}
	_, err := io.WriteString(w, ui.BuildBox("FAILED AFTER RETRY", lines, failureBoxWidth))
	return err
}

func getResultString(passed bool) string {
	if passed {
		return "✓ pass"
	}
	return "✗ fail"
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
