package transformRules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/stretchr/testify/assert"
)

func Test_RuleSet(t *testing.T) {
	rs, err := LoadDefaultRuleSet()
	if err != nil {
		t.Fatal(err)
	}

	t.Run("Should load the default rules", func(t *testing.T) {
		assert.Equal(t, 6, len(rs.Rules))
		assert.Equal(t, Cardinality_ManyToOne, rs.Rules[2].Cardinality)
		assert.Equal(t, domainEvents.EventKind_Trade, rs.Rules[2].TargetKind)
		assert.Equal(t, []string{"Swap", "Swapped"}, rs.Rules[2].SourceEvents)
	})
	t.Run("Should pick one rule per target kind for a pool swap", func(t *testing.T) {
		rules := rs.RulesFor("Swap", "pool_v2", "0xpool")
		assert.Equal(t, 2, len(rules))
		assert.Equal(t, domainEvents.EventKind_PoolSwap, rules[0].TargetKind)
		assert.Equal(t, domainEvents.EventKind_Trade, rules[1].TargetKind)
	})
	t.Run("Should respect contract scope", func(t *testing.T) {
		assert.Equal(t, 1, len(rs.RulesFor("Transfer", "token", "0xtoken")))
		assert.Equal(t, 0, len(rs.RulesFor("Transfer", "rewards", "0xrewards")))
		assert.Equal(t, 0, len(rs.RulesFor("Approval", "token", "0xtoken")))
		assert.Equal(t, "lp-transfer", rs.RulesFor("Transfer", "pool_v2", "0xpool")[0].Name)
	})
	t.Run("Should prefer the higher priority rule", func(t *testing.T) {
		custom := &RuleSet{Rules: []*Rule{
			{Name: "low", SourceEvents: []string{"Transfer"}, TargetKind: domainEvents.EventKind_Transfer, Cardinality: Cardinality_OneToOne, Priority: 1},
			{Name: "high", SourceEvents: []string{"Transfer"}, TargetKind: domainEvents.EventKind_Transfer, Cardinality: Cardinality_OneToOne, Priority: 5, ContractScope: "0xToken"},
		}}
		assert.Nil(t, custom.Validate())
		rules := custom.RulesFor("Transfer", "token", "0xtoken")
		assert.Equal(t, 1, len(rules))
		assert.Equal(t, "high", rules[0].Name)

		rules = custom.RulesFor("Transfer", "token", "0xother")
		assert.Equal(t, "low", rules[0].Name)
	})
	t.Run("Should reject invalid rules", func(t *testing.T) {
		invalid := []*Rule{
			{Name: "", SourceEvents: []string{"Transfer"}, TargetKind: domainEvents.EventKind_Transfer, Cardinality: Cardinality_OneToOne},
			{Name: "no-sources", TargetKind: domainEvents.EventKind_Transfer, Cardinality: Cardinality_OneToOne},
			{Name: "bad-kind", SourceEvents: []string{"Transfer"}, TargetKind: "Snapshot", Cardinality: Cardinality_OneToOne},
			{Name: "bad-cardinality", SourceEvents: []string{"Transfer"}, TargetKind: domainEvents.EventKind_Transfer, Cardinality: "some"},
			{Name: "bad-aggregate", SourceEvents: []string{"Transfer"}, TargetKind: domainEvents.EventKind_Transfer, Cardinality: Cardinality_ManyToOne},
		}
		for _, r := range invalid {
			assert.NotNil(t, r.Validate(), r.Name)
		}
		dup := &RuleSet{Rules: []*Rule{rs.Rules[0], rs.Rules[0]}}
		assert.NotNil(t, dup.Validate())
	})
	t.Run("Should load an override file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		yaml := `
rules:
  - name: all-transfers
    source_events: [Transfer]
    target_kind: Transfer
    cardinality: one_to_one
    priority: 1
`
		assert.Nil(t, os.WriteFile(path, []byte(yaml), 0644))
		loaded, err := LoadRuleSet(path)
		assert.Nil(t, err)
		assert.Equal(t, 1, len(loaded.Rules))
		assert.Equal(t, 1, len(loaded.RulesFor("Transfer", "rewards", "0xr")))
	})
	t.Run("Should fail on a missing file or an empty rule set", func(t *testing.T) {
		_, err := LoadRuleSet(filepath.Join(t.TempDir(), "missing.json"))
		assert.NotNil(t, err)

		_, err = ParseRuleSet([]byte(`{"rules": []}`), "json")
		assert.NotNil(t, err)
	})
}
