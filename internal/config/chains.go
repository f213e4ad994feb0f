package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChainConfig is the ordered model list for each provider tier.
type ChainConfig struct {
	Primary   []string `yaml:"primary"`
	Secondary []string `yaml:"secondary"`
}

// ModelChains groups the fallback lists used by each pipeline stage.
type ModelChains struct {
	Notes       ChainConfig `yaml:"notes"`
	FactCheck   ChainConfig `yaml:"fact_check"`
	Translation ChainConfig `yaml:"translation"`
}

// DefaultModelChains returns the built-in known-good model lists.
func DefaultModelChains() ModelChains {
	return ModelChains{
		Notes: ChainConfig{
			Primary:   []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-1.5-flash"},
			Secondary: []string{"gpt-4o-mini"},
		},
		FactCheck: ChainConfig{
			Primary:   []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-1.5-flash"},
			Secondary: []string{"gpt-4o-mini"},
		},
		Translation: ChainConfig{
			Primary:   []string{"gemini-2.0-flash"},
			Secondary: []string{"gpt-4o-mini"},
		},
	}
}

// LoadModelChains starts from the defaults, replaces any list named in the
// YAML file at path, then prepends the operator override to the notes and
// fact-check primary lists.
func LoadModelChains(path, override string) (ModelChains, error) {
	chains := DefaultModelChains()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return chains, fmt.Errorf("failed to read model chains file: %w", err)
		}
		var file ModelChains
		if err := yaml.Unmarshal(data, &file); err != nil {
			return chains, fmt.Errorf("failed to parse model chains file: %w", err)
		}
		chains.Notes = mergeChain(chains.Notes, file.Notes)
		chains.FactCheck = mergeChain(chains.FactCheck, file.FactCheck)
		chains.Translation = mergeChain(chains.Translation, file.Translation)
	}

	if override = strings.TrimSpace(override); override != "" {
		chains.Notes.Primary = withOverride(override, chains.Notes.Primary)
		chains.FactCheck.Primary = withOverride(override, chains.FactCheck.Primary)
	}
	return chains, nil
}

func mergeChain(base, file ChainConfig) ChainConfig {
	if len(file.Primary) > 0 {
		base.Primary = file.Primary
	}
	if len(file.Secondary) > 0 {
		base.Secondary = file.Secondary
	}
	return base
}

func withOverride(override string, models []string) []string {
	out := []string{override}
	for _, m := range models {
		if m != override {
			out = append(out, m)
		}
	}
	return out
}
