package catalog

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Weighting derives scheduling weights from scenario tags. A scenario tagged with
// Pattern+"XL" gets Values["XL"]; scenarios without a known weighting tag get Default.
type Weighting struct {
	Pattern string
	Default float64
	Values  map[string]float64
}

// WeightOf returns the weight for a scenario with the given tags. When several tags match,
// the last one with a known value wins.
func (w Weighting) WeightOf(tags []string) float64 {
	weight := w.Default
	if w.Pattern == "" {
		return weight
	}
	for _, tag := range tags {
		if !strings.Contains(tag, w.Pattern) {
			continue
		}
		if v, ok := w.Values[strings.Replace(tag, w.Pattern, "", 1)]; ok {
			weight = v
		}
	}
	return weight
}

// UnmarshalYAML accepts both an explicit values map
//
//	pattern: "@duration_"
//	default: 25
//	values: {XL: 100, S: 10}
//
// and the flat form where every key other than pattern and default is a value.
func (w *Weighting) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]yaml.Node
	if err := node.Decode(&raw); err != nil {
		return err
	}

	out := Weighting{Values: make(map[string]float64)}
	for key, value := range raw {
		switch key {
		case "pattern":
			if err := value.Decode(&out.Pattern); err != nil {
				return fmt.Errorf("weighting pattern: %w", err)
			}
		case "default":
			if err := value.Decode(&out.Default); err != nil {
				return fmt.Errorf("weighting default: %w", err)
			}
		case "values":
			var values map[string]float64
			if err := value.Decode(&values); err != nil {
				return fmt.Errorf("weighting values: %w", err)
			}
			for k, v := range values {
				out.Values[k] = v
			}
		default:
			var v float64
			if err := value.Decode(&v); err != nil {
				return fmt.Errorf("weighting value %q: %w", key, err)
			}
			out.Values[key] = v
		}
	}

	*w = out
	return nil
}
