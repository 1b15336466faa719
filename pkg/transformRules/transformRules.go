// Package transformRules declares how signals produced by transformers are
// turned into domain events.
package transformRules

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/spf13/viper"
)

//go:embed defaultRules.json
var defaultRulesJson []byte

type Cardinality string

const (
	Cardinality_OneToOne  Cardinality = "one_to_one"
	Cardinality_ManyToOne Cardinality = "many_to_one"
	Cardinality_OneToMany Cardinality = "one_to_many"
)

func (c Cardinality) IsValid() bool {
	switch c {
	case Cardinality_OneToOne, Cardinality_ManyToOne, Cardinality_OneToMany:
		return true
	}
	return false
}

type Rule struct {
	Name         string                 `mapstructure:"name"`
	SourceEvents []string               `mapstructure:"source_events"`
	TargetKind   domainEvents.EventKind `mapstructure:"target_kind"`
	Cardinality  Cardinality            `mapstructure:"cardinality"`
	// ContractScope is a contract role or address. Empty applies to every contract.
	ContractScope string `mapstructure:"contract_scope"`
	Priority      int    `mapstructure:"priority"`
}

func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule has no name")
	}
	if len(r.SourceEvents) == 0 {
		return fmt.Errorf("rule '%s' has no source events", r.Name)
	}
	if !r.TargetKind.IsValid() {
		return fmt.Errorf("rule '%s' has unknown target kind '%s'", r.Name, r.TargetKind)
	}
	if !r.Cardinality.IsValid() {
		return fmt.Errorf("rule '%s' has unknown cardinality '%s'", r.Name, r.Cardinality)
	}
	if r.Cardinality == Cardinality_ManyToOne && r.TargetKind != domainEvents.EventKind_Trade {
		return fmt.Errorf("rule '%s': many_to_one is only supported for Trade", r.Name)
	}
	return nil
}

func (r *Rule) Matches(sourceEvent string, role string, address string) bool {
	if r.ContractScope != "" {
		scope := strings.ToLower(r.ContractScope)
		if scope != strings.ToLower(role) && scope != strings.ToLower(address) {
			return false
		}
	}
	for _, e := range r.SourceEvents {
		if e == sourceEvent {
			return true
		}
	}
	return false
}

type RuleSet struct {
	Rules []*Rule `mapstructure:"rules"`
}

func (rs *RuleSet) Validate() error {
	names := make(map[string]bool, len(rs.Rules))
	for _, r := range rs.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
		if names[r.Name] {
			return fmt.Errorf("duplicate rule name '%s'", r.Name)
		}
		names[r.Name] = true
	}
	return nil
}

// RulesFor returns, for every target kind, the highest priority rule that
// applies to the signal. Equal priorities are broken by rule name. The
// result is ordered by target kind.
func (rs *RuleSet) RulesFor(sourceEvent string, role string, address string) []*Rule {
	best := make(map[domainEvents.EventKind]*Rule)
	for _, r := range rs.Rules {
		if !r.Matches(sourceEvent, role, address) {
			continue
		}
		current, ok := best[r.TargetKind]
		if !ok || r.Priority > current.Priority || (r.Priority == current.Priority && r.Name < current.Name) {
			best[r.TargetKind] = r
		}
	}
	rules := make([]*Rule, 0, len(best))
	for _, r := range best {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].TargetKind.Order() < rules[j].TargetKind.Order()
	})
	return rules
}

func decodeRuleSet(v *viper.Viper) (*RuleSet, error) {
	rs := &RuleSet{}
	if err := v.Unmarshal(rs); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	if len(rs.Rules) == 0 {
		return nil, fmt.Errorf("rule set is empty")
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

func ParseRuleSet(data []byte, configType string) (*RuleSet, error) {
	v := viper.New()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	return decodeRuleSet(v)
}

func LoadDefaultRuleSet() (*RuleSet, error) {
	return ParseRuleSet(defaultRulesJson, "json")
}

// LoadRuleSetFromFile reads a json or yaml rules file.
func LoadRuleSetFromFile(path string) (*RuleSet, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read rules file '%s': %w", path, err)
	}
	return decodeRuleSet(v)
}

// LoadRuleSet loads the override file when one is configured, otherwise the defaults.
func LoadRuleSet(path string) (*RuleSet, error) {
	if path == "" {
		return LoadDefaultRuleSet()
	}
	return LoadRuleSetFromFile(path)
}
