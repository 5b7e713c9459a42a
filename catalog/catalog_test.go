package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum-optimism/infra/op-parallel/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "scenarios.yaml", `
scenarios:
  - uri: features/login.feature
    line: 3
    tags: ["@smoke", "@duration_S"]
  - uri: features/search.feature
    line: 10
    tags: ["@duration_XL"]
  - uri: features/login.feature
    line: 3
`)
	cat, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len(), "duplicates are dropped")
	assert.Equal(t, "features/login.feature:3", cat.Scenarios[0].ID())
	assert.Equal(t, []string{"@smoke", "@duration_S"}, cat.Scenarios[0].Tags)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "scenarios.json", `{"scenarios": [{"uri": "features/a.feature", "line": 1, "tags": []}]}`)
	cat, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, cat.Len())
	assert.Equal(t, "features/a.feature:1", cat.Scenarios[0].ID())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing uri", content: "scenarios:\n  - line: 3\n"},
		{name: "missing line", content: "scenarios:\n  - uri: features/a.feature\n"},
		{name: "negative line", content: "scenarios:\n  - uri: features/a.feature\n    line: -1\n"},
		{name: "not yaml", content: "scenarios: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.yaml", tt.content))
			require.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestFromIdentities(t *testing.T) {
	cat, err := FromIdentities([]string{"features/a.feature:1", "features/b.feature:22", "features/a.feature:1"})
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())
	assert.Equal(t, Scenario{URI: "features/b.feature", Line: 22}, cat.Scenarios[1])

	_, err = FromIdentities([]string{"features/a.feature"})
	require.Error(t, err)
}

func TestCatalog_Add(t *testing.T) {
	cat := New(Scenario{URI: "a", Line: 1})
	cat.Add(Scenario{URI: "a", Line: 1}, Scenario{URI: "a", Line: 2})
	assert.Equal(t, 2, cat.Len())
}

func TestCatalog_RefsSortedByWeight(t *testing.T) {
	cat := New(
		Scenario{URI: "features/small.feature", Line: 1, Tags: []string{"@duration_S"}},
		Scenario{URI: "features/plain.feature", Line: 1},
		Scenario{URI: "features/huge.feature", Line: 1, Tags: []string{"@duration_XL"}},
		Scenario{URI: "features/plain2.feature", Line: 1, Tags: []string{"@duration_unknown"}},
	)
	w := Weighting{Pattern: "@duration_", Default: 25, Values: map[string]float64{"XL": 100, "S": 10}}

	refs := cat.Refs(w)
	var order []string
	for _, ref := range refs {
		order = append(order, ref.URI)
		assert.Equal(t, 0, ref.Attempt)
	}
	assert.Equal(t, []string{
		"features/huge.feature",
		"features/plain.feature",
		"features/plain2.feature",
		"features/small.feature",
	}, order)
	assert.Equal(t, 100.0, refs[0].Weight)
	assert.Equal(t, 25.0, refs[2].Weight, "unknown weighting tags fall back to the default")
}

func TestWeighting_WeightOf(t *testing.T) {
	w := Weighting{Pattern: "@duration_", Default: 5, Values: map[string]float64{"L": 50, "M": 25}}

	assert.Equal(t, 5.0, w.WeightOf(nil))
	assert.Equal(t, 50.0, w.WeightOf([]string{"@duration_L"}))
	assert.Equal(t, 25.0, w.WeightOf([]string{"@duration_L", "@duration_M"}), "last matching tag wins")
	assert.Equal(t, 50.0, w.WeightOf([]string{"@duration_L", "@duration_XXL"}), "unknown values keep the current weight")

	// Without a pattern every scenario has the default weight
	assert.Equal(t, 0.0, Weighting{}.WeightOf([]string{"@duration_L"}))
}

func TestWeighting_UnmarshalYAML(t *testing.T) {
	t.Run("flat form", func(t *testing.T) {
		var w Weighting
		require.NoError(t, yaml.Unmarshal([]byte("pattern: \"@duration_\"\ndefault: 25\nXL: 100\nS: 10.5\n"), &w))
		assert.Equal(t, "@duration_", w.Pattern)
		assert.Equal(t, 25.0, w.Default)
		assert.Equal(t, map[string]float64{"XL": 100, "S": 10.5}, w.Values)
	})

	t.Run("values map", func(t *testing.T) {
		var w Weighting
		require.NoError(t, yaml.Unmarshal([]byte("pattern: \"@size_\"\nvalues:\n  big: 3\n"), &w))
		assert.Equal(t, "@size_", w.Pattern)
		assert.Equal(t, map[string]float64{"big": 3}, w.Values)
	})

	t.Run("non-numeric value", func(t *testing.T) {
		var w Weighting
		require.Error(t, yaml.Unmarshal([]byte("pattern: x\nXL: huge\n"), &w))
	})
}

func TestParseIdentity(t *testing.T) {
	s, err := ParseIdentity("features/a.feature:7")
	require.NoError(t, err)
	assert.Equal(t, Scenario{URI: "features/a.feature", Line: 7}, s)

	ref, err := types.ParseScenarioID("features/a.feature:7")
	require.NoError(t, err)
	assert.Equal(t, ref.ID(), s.ID())
}
