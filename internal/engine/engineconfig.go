package engine

import (
	"embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed config/engine.yaml
var engineYAML embed.FS

// effortGroup is one weighted synonym group for ranking-effort scoring.
// A requirement entry earns the weight at most once per group.
type effortGroup struct {
	Keywords []string `yaml:"keywords"`
	Weight   int      `yaml:"weight"`
}

type effortConfig struct {
	RankingWeights  []effortGroup `yaml:"ranking_weights"`
	DisplayKeywords []string      `yaml:"display_keywords"`
}

// Level is one bracket of the progression ladder: a contiguous range of
// saved-opportunity counts mapped to a named level.
type Level struct {
	Min   int    `yaml:"min" json:"min"`
	Max   int    `yaml:"max" json:"max"`
	Name  string `yaml:"name" json:"name"`
	Emoji string `yaml:"emoji" json:"emoji"`
}

type engineConfig struct {
	Effort effortConfig `yaml:"effort"`
	Levels []Level      `yaml:"levels"`
}

var cfg = mustLoadConfig()

func mustLoadConfig() engineConfig {
	data, err := engineYAML.ReadFile("config/engine.yaml")
	if err != nil {
		panic(fmt.Sprintf("engine: embedded config missing: %v", err))
	}

	var c engineConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		panic(fmt.Sprintf("engine: malformed embedded config: %v", err))
	}

	if err := validateLevels(c.Levels); err != nil {
		panic(fmt.Sprintf("engine: bad ladder config: %v", err))
	}

	return c
}

// validateLevels enforces the bracket invariants: ascending by min,
// non-overlapping, and contiguous (max[i] + 1 == min[i+1]).
func validateLevels(levels []Level) error {
	if len(levels) == 0 {
		return fmt.Errorf("no levels defined")
	}

	sorted := sort.SliceIsSorted(levels, func(i, j int) bool {
		return levels[i].Min < levels[j].Min
	})
	if !sorted {
		return fmt.Errorf("levels not ordered by ascending min")
	}

	for i, lvl := range levels {
		if lvl.Max < lvl.Min {
			return fmt.Errorf("level %q has max < min", lvl.Name)
		}
		if i > 0 && levels[i-1].Max+1 != lvl.Min {
			return fmt.Errorf("gap or overlap between %q and %q", levels[i-1].Name, lvl.Name)
		}
	}

	return nil
}
