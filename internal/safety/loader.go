package safety

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/autopilotstack/autopilot-core/internal/models"
)

// RulePackFile is the YAML root structure for a safety rule pack.
type RulePackFile struct {
	Rules []models.SafetyRule `yaml:"rules"`
}

// LoadRulePack reads additional safety rules from a YAML file and registers
// them on the evaluator. A missing file is not an error; operators may run
// with the built-in set only.
func LoadRulePack(ctx context.Context, path string, evaluator *Evaluator) (int, error) {
	if path == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read rule pack: %w", err)
	}

	var pack RulePackFile
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return 0, fmt.Errorf("parse rule pack: %w", err)
	}

	loaded := 0
	for _, rule := range pack.Rules {
		if err := evaluator.AddRule(ctx, rule); err != nil {
			return loaded, fmt.Errorf("rule %q: %w", rule.ID, err)
		}
		loaded++
	}
	return loaded, nil
}
