// Package catalog loads the list of scenarios to run. Scenario discovery and tag filtering
// happen upstream; the catalog only carries already selected scenarios and their tags, which
// are used to weight the schedule.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum-optimism/infra/op-parallel/types"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// Scenario is one selected scenario of the catalog
type Scenario struct {
	URI  string   `yaml:"uri"`
	Line int      `yaml:"line"`
	Tags []string `yaml:"tags,omitempty"`
}

// ID returns the "uri:line" identity of the scenario
func (s Scenario) ID() string {
	return fmt.Sprintf("%s:%d", s.URI, s.Line)
}

// Catalog is an ordered list of scenarios without duplicate identities
type Catalog struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Load reads a catalog file. JSON files are accepted as well since they are valid YAML.
func Load(path string) (*Catalog, error) {
	log.Debug("Reading scenario catalog", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	for i, s := range cat.Scenarios {
		if strings.TrimSpace(s.URI) == "" {
			return nil, fmt.Errorf("scenario %d in %s has no uri", i, path)
		}
		if s.Line <= 0 {
			return nil, fmt.Errorf("scenario %s in %s has invalid line %d", s.URI, path, s.Line)
		}
	}

	return New(cat.Scenarios...), nil
}

// ParseIdentity parses a "uri:line" scenario identity
func ParseIdentity(id string) (Scenario, error) {
	ref, err := types.ParseScenarioID(id)
	if err != nil {
		return Scenario{}, err
	}
	return Scenario{URI: ref.URI, Line: ref.Line}, nil
}

// FromIdentities builds a catalog from "uri:line" identities, e.g. positional CLI arguments
func FromIdentities(ids []string) (*Catalog, error) {
	scenarios := make([]Scenario, 0, len(ids))
	for _, id := range ids {
		s, err := ParseIdentity(id)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return New(scenarios...), nil
}

// New creates a catalog from scenarios. Later duplicates of an identity are dropped.
func New(scenarios ...Scenario) *Catalog {
	cat := &Catalog{}
	cat.Add(scenarios...)
	return cat
}

// Add appends scenarios whose identity is not in the catalog yet
func (c *Catalog) Add(scenarios ...Scenario) {
	seen := make(map[string]bool, len(c.Scenarios))
	for _, s := range c.Scenarios {
		seen[s.ID()] = true
	}
	for _, s := range scenarios {
		if seen[s.ID()] {
			log.Debug("Skipping duplicate scenario", "scenario", s.ID())
			continue
		}
		seen[s.ID()] = true
		c.Scenarios = append(c.Scenarios, s)
	}
}

// Len returns the number of scenarios in the catalog
func (c *Catalog) Len() int {
	return len(c.Scenarios)
}

// Refs returns one first-attempt reference per scenario, weighted by w and ordered by weight,
// largest first. Scenarios of equal weight keep their catalog order.
func (c *Catalog) Refs(w Weighting) []types.ScenarioRef {
	refs := make([]types.ScenarioRef, 0, len(c.Scenarios))
	for _, s := range c.Scenarios {
		refs = append(refs, types.ScenarioRef{
			URI:    s.URI,
			Line:   s.Line,
			Weight: w.WeightOf(s.Tags),
		})
	}
	types.SortByWeight(refs)
	return refs
}
