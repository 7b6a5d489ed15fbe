package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/thushan/ladle/internal/core/domain"
)

// LoadRules reads the enhancement rule set. A missing file degrades to
// passthrough rules; a malformed one is fatal. Client names are
// case-significant, hence encoding/json instead of viper.
func LoadRules(path string) (*domain.EnhanceRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.PassthroughRules(), nil
		}
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}

	var rules domain.EnhanceRules
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	if rules.Default.IsEnabled() && rules.Default.Model == "" {
		return nil, fmt.Errorf("rules file %s: default rule enabled but names no model", path)
	}

	return &rules, nil
}
