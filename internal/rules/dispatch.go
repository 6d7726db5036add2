package rules

import "fmt"

// DispatchResult is what OnEvent hands back to the host for a matched rule:
// enough to render an alert and update the caller's own bookkeeping.
type DispatchResult struct {
	RuleName        string
	PriorityNum     int
	Output          string
	ExceptionFields map[string]struct{}
	Tags            []string
}

// Stats accumulates dispatch counters: total events dispatched, broken down
// by priority number and by rule name.
type Stats struct {
	Total      uint64
	ByPriority map[int]uint64
	ByName     map[string]uint64
}

// NewStats returns a zeroed Stats ready for accumulation.
func NewStats() *Stats {
	return &Stats{ByPriority: make(map[int]uint64), ByName: make(map[string]uint64)}
}

func (s *Stats) record(rule *RuleRecord) {
	s.Total++
	s.ByPriority[rule.PriorityNum]++
	s.ByName[rule.Name]++
}

// OnEvent looks up the rule assigned ruleID by the dense index table Pass 2b
// built and returns its dispatch payload, updating stats. A ruleID with no
// entry in RulesByIdx, or one whose rule record no longer appears in
// RulesByName, is an invariant violation rather than an ordinary error: the
// host is expected to only ever dispatch IDs it received from AddFilter.
func OnEvent(cat *Catalog, stats *Stats, ruleID int) (DispatchResult, error) {
	if ruleID <= 0 || ruleID >= len(cat.RulesByIdx) {
		return DispatchResult{}, fmt.Errorf("rules: invariant violation: dispatch for unknown rule id %d", ruleID)
	}
	rule := cat.RulesByIdx[ruleID]
	if rule == nil {
		return DispatchResult{}, fmt.Errorf("rules: invariant violation: rule id %d has no assigned rule", ruleID)
	}
	if _, ok := cat.RulesByName[rule.Name]; !ok {
		return DispatchResult{}, fmt.Errorf("rules: invariant violation: rule %q indexed but absent from rules_by_name", rule.Name)
	}

	stats.record(rule)

	return DispatchResult{
		RuleName:        rule.Name,
		PriorityNum:     rule.PriorityNum,
		Output:          "*" + rule.Output,
		ExceptionFields: rule.ExceptionFields,
		Tags:            rule.SortedTags(),
	}, nil
}
