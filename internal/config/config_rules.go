// config_rules.go declares the structured sections: document code rules
// and pipeline stages.
//
// Separated from config.go because these sections are lists of records
// rather than scalar settings, and they are not reachable through the
// string key interface. They are edited in the YAML file directly.
//
// Design: the types mirror doccode.Rule and stages.Spec but stay local to
// this package so configuration can be loaded without pulling in the
// pipeline. The dms package converts them when it wires the service.

package config

// Rule declares a document code rule.
type Rule struct {
	ID            int    `yaml:"id"`
	Title         string `yaml:"title,omitempty"`
	Description   string `yaml:"description,omitempty"`
	Pattern       string `yaml:"pattern,omitempty"`
	Split         string `yaml:"split,omitempty"`
	Format        string `yaml:"format,omitempty"`
	Width         int    `yaml:"width,omitempty"`
	SequenceStart int64  `yaml:"sequence_start,omitempty"`
	NoDoccode     bool   `yaml:"no_doccode,omitempty"`
	Luhn          bool   `yaml:"luhn,omitempty"`
	// Active defaults to true.
	Active *bool `yaml:"active,omitempty"`
}

// IsActive reports whether the rule takes part in classification.
func (r Rule) IsActive() bool { return r.Active == nil || *r.Active }

// Stage declares a pipeline stage.
type Stage struct {
	Name    string            `yaml:"name,omitempty"`
	Kind    string            `yaml:"kind"`
	Points  []string          `yaml:"points,omitempty"`
	Order   *int              `yaml:"order,omitempty"`
	Active  *bool             `yaml:"active,omitempty"`
	Rules   []int             `yaml:"rules,omitempty"`
	Options map[string]string `yaml:"options,omitempty"`
}

// StageName returns the stage's name, which defaults to its kind.
func (s Stage) StageName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Kind
}

// DefaultRules is the rule set used when none is configured: Adlibre
// invoices plus a fallback for everything else. Uncategorized documents
// keep their filename as code and fan out by hash.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:            1,
			Title:         "Adlibre Invoices",
			Description:   "Invoices numbered ADL-0000",
			Pattern:       `ADL-[0-9]{4}`,
			Split:         "0:3,4:",
			Format:        "ADL-%s",
			Width:         4,
			SequenceStart: 1000,
		},
		{
			ID:          1000,
			Title:       "Uncategorized",
			Description: "Documents no other rule claims",
			NoDoccode:   true,
			Split:       "hash:2",
		},
	}
}

// RuleSet returns the configured rules, or DefaultRules when none are.
func (c *Config) RuleSet() []Rule {
	if len(c.Rules) == 0 {
		return DefaultRules()
	}
	return c.Rules
}
