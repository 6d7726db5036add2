package rules

import "testing"

func TestOnEventReturnsDispatchResultAndUpdatesStats(t *testing.T) {
	cat := NewCatalog()
	rule := &RuleRecord{Name: "r1", Output: "something happened", PriorityNum: 4, Tags: map[string]struct{}{"b": {}, "a": {}}}
	cat.RulesByName["r1"] = rule
	cat.RulesByIdx = append(cat.RulesByIdx, rule)
	cat.NRules = 1

	stats := NewStats()
	result, err := OnEvent(cat, stats, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "*something happened" {
		t.Fatalf("expected output prefixed with '*', got %q", result.Output)
	}
	if result.Tags[0] != "a" || result.Tags[1] != "b" {
		t.Fatalf("expected sorted tags, got %v", result.Tags)
	}
	if stats.Total != 1 || stats.ByPriority[4] != 1 || stats.ByName["r1"] != 1 {
		t.Fatalf("expected counters updated, got %+v", stats)
	}
}

func TestOnEventUnknownIDIsInvariantViolation(t *testing.T) {
	cat := NewCatalog()
	stats := NewStats()
	if _, err := OnEvent(cat, stats, 5); err == nil {
		t.Fatalf("expected an error for an out-of-range rule id")
	}
}

func TestOnEventIndexedButMissingFromRulesByNameIsInvariantViolation(t *testing.T) {
	cat := NewCatalog()
	rule := &RuleRecord{Name: "ghost"}
	cat.RulesByIdx = append(cat.RulesByIdx, rule)
	stats := NewStats()
	if _, err := OnEvent(cat, stats, 1); err == nil {
		t.Fatalf("expected an error when the indexed rule is absent from rules_by_name")
	}
}
