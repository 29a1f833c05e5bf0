package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

type deltaRulesFile struct {
	Rules []deltaRuleEntry `yaml:"rules"`
}

type deltaRuleEntry struct {
	Metric domain.MetricID    `yaml:"metric"`
	Label  string             `yaml:"label"`
	Unit   string             `yaml:"unit"`
	Policy domain.DeltaPolicy `yaml:"policy"`
	// ShowFromTo defaults to true for the always policy when omitted.
	ShowFromTo *bool `yaml:"show_from_to"`
}

// LoadDeltaRules reads the comparison rule mapping from a YAML file. An empty
// path yields the built-in defaults.
func LoadDeltaRules(path string) ([]domain.DeltaRule, error) {
	if path == "" {
		return domain.DefaultDeltaRules(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read delta rules: %w", err)
	}
	return ParseDeltaRules(raw)
}

func ParseDeltaRules(raw []byte) ([]domain.DeltaRule, error) {
	var file deltaRulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse delta rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("delta rules: no rules defined")
	}

	rules := make([]domain.DeltaRule, 0, len(file.Rules))
	seen := make(map[domain.MetricID]struct{}, len(file.Rules))
	for i, entry := range file.Rules {
		rule := domain.DeltaRule{
			Metric: entry.Metric,
			Label:  entry.Label,
			Unit:   entry.Unit,
			Policy: entry.Policy,
		}
		info, ok := domain.LookupMetric(rule.Metric)
		if !ok {
			return nil, fmt.Errorf("delta rule %d: unknown metric %q", i, rule.Metric)
		}
		if _, dup := seen[rule.Metric]; dup {
			return nil, fmt.Errorf("delta rule %d: metric %q listed twice", i, rule.Metric)
		}
		seen[rule.Metric] = struct{}{}
		if rule.Policy == "" {
			rule.Policy = domain.PolicyAlways
		}
		if !rule.Policy.Valid() {
			return nil, fmt.Errorf("delta rule %d: unknown policy %q", i, rule.Policy)
		}
		if rule.Label == "" {
			rule.Label = info.Label
		}
		if rule.Unit == "" {
			rule.Unit = info.Unit
		}
		if entry.ShowFromTo != nil {
			rule.ShowFromTo = *entry.ShowFromTo
		} else {
			rule.ShowFromTo = rule.Policy == domain.PolicyAlways
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
