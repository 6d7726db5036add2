package rules

import "testing"

func TestLoadPass1ParsesMacroListAndRule(t *testing.T) {
	content := `
- macro: known_binaries
  condition: proc.name in (known_list)
- list: known_list
  items: [apk, npm]
- rule: spawned process
  desc: a process was spawned
  condition: known_binaries
  output: "process spawned"
  priority: WARNING
`
	host := newFakeHost()
	cat := NewCatalog()
	result, err := loadPass1(content, host, LoadOptions{MinPriority: 7}, cat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings)
	}
	if _, ok := cat.MacrosByName["known_binaries"]; !ok {
		t.Fatalf("expected macro known_binaries to be recorded")
	}
	if _, ok := cat.ListsByName["known_list"]; !ok {
		t.Fatalf("expected list known_list to be recorded")
	}
	rule, ok := cat.RulesByName["spawned process"]
	if !ok {
		t.Fatalf("expected rule to be recorded")
	}
	if rule.PriorityNum != 4 {
		t.Fatalf("expected WARNING to resolve to priority 4, got %d", rule.PriorityNum)
	}
}

func TestLoadPass1MinPrioritySkipsLowerSeverityRules(t *testing.T) {
	content := `
- rule: noisy rule
  desc: debug noise
  condition: evt.type = open
  output: "noise"
  priority: DEBUG
`
	host := newFakeHost()
	cat := NewCatalog()
	_, err := loadPass1(content, host, LoadOptions{MinPriority: 4}, cat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cat.RulesByName["noisy rule"]; ok {
		t.Fatalf("expected rule to be skipped by priority threshold")
	}
	if _, ok := cat.SkippedRulesByName["noisy rule"]; !ok {
		t.Fatalf("expected rule recorded in skipped_rules_by_name")
	}
	if len(cat.OrderedRuleNames) != 0 {
		t.Fatalf("expected ordered_rule_names to exclude skipped rules, got %v", cat.OrderedRuleNames)
	}
}

func TestLoadPass1RuleMissingFieldIsFatal(t *testing.T) {
	content := `
- rule: broken rule
  condition: evt.type = open
`
	host := newFakeHost()
	cat := NewCatalog()
	if _, err := loadPass1(content, host, LoadOptions{}, cat); err == nil {
		t.Fatalf("expected an error for a rule missing required fields")
	}
}

func TestLoadPass1EnabledOnlyToggle(t *testing.T) {
	content := `
- rule: toggle me
  desc: a rule
  condition: evt.type = open
  output: "out"
  priority: INFO
- rule: toggle me
  enabled: false
`
	host := newFakeHost()
	cat := NewCatalog()
	if _, err := loadPass1(content, host, LoadOptions{MinPriority: 7}, cat); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rule, ok := cat.RulesByName["toggle me"]
	if !ok {
		t.Fatalf("expected rule to be recorded")
	}
	if rule.Enabled {
		t.Fatalf("expected rule to be disabled by the toggle item")
	}
}

func TestLoadPass1AppendToNonExistentRuleIsFatal(t *testing.T) {
	content := `
- rule: ghost
  append: true
  condition: evt.type = open
`
	host := newFakeHost()
	cat := NewCatalog()
	if _, err := loadPass1(content, host, LoadOptions{}, cat); err == nil {
		t.Fatalf("expected an error for appending to a non-existent rule")
	}
}

func TestLoadPass1AppendExtendsCondition(t *testing.T) {
	content := `
- rule: base rule
  desc: a rule
  condition: evt.type = open
  output: "out"
  priority: INFO
- rule: base rule
  append: true
  condition: and proc.name = apk
`
	host := newFakeHost()
	cat := NewCatalog()
	if _, err := loadPass1(content, host, LoadOptions{MinPriority: 7}, cat); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rule := cat.RulesByName["base rule"]
	want := "evt.type = open and proc.name = apk"
	if rule.Condition != want {
		t.Fatalf("got %q, want %q", rule.Condition, want)
	}
}

func TestLoadPass1AppendExceptionValues(t *testing.T) {
	content := `
- rule: base rule
  desc: a rule
  condition: evt.type = open
  output: "out"
  priority: INFO
  exceptions:
    - name: allowed
      fields: proc.name
      values: [a]
- rule: base rule
  append: true
  exceptions:
    - name: allowed
      values: [b]
`
	host := newFakeHost()
	cat := NewCatalog()
	if _, err := loadPass1(content, host, LoadOptions{MinPriority: 7}, cat); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rule := cat.RulesByName["base rule"]
	if len(rule.Exceptions) != 1 {
		t.Fatalf("expected one exception, got %d", len(rule.Exceptions))
	}
	exc := rule.Exceptions[0]
	if len(exc.SingleValues) != 2 || exc.SingleValues[0] != "a" || exc.SingleValues[1] != "b" {
		t.Fatalf("expected appended values [a b], got %v", exc.SingleValues)
	}
}

func TestLoadPass1AppendExceptionCannotAlterFields(t *testing.T) {
	content := `
- rule: base rule
  desc: a rule
  condition: evt.type = open
  output: "out"
  priority: INFO
  exceptions:
    - name: allowed
      fields: proc.name
      values: [a]
- rule: base rule
  append: true
  exceptions:
    - name: allowed
      fields: fd.name
      values: [b]
`
	host := newFakeHost()
	cat := NewCatalog()
	if _, err := loadPass1(content, host, LoadOptions{MinPriority: 7}, cat); err == nil {
		t.Fatalf("expected an error for an append redefining an exception's fields")
	}
}

func TestLoadPass1AppendValuesToUnknownExceptionWarns(t *testing.T) {
	content := `
- rule: base rule
  desc: a rule
  condition: evt.type = open
  output: "out"
  priority: INFO
- rule: base rule
  append: true
  exceptions:
    - name: never declared
      values: [b]
`
	host := newFakeHost()
	cat := NewCatalog()
	result, err := loadPass1(content, host, LoadOptions{MinPriority: 7}, cat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning for values targeting an unknown exception name, got %v", result.Warnings)
	}
}

func TestLoadPass1AppendToSkippedRuleIsSilentlyAccepted(t *testing.T) {
	content := `
- rule: quiet rule
  desc: debug noise
  condition: evt.type = open
  output: "out"
  priority: DEBUG
- rule: quiet rule
  append: true
  condition: and proc.name = apk
`
	host := newFakeHost()
	cat := NewCatalog()
	result, err := loadPass1(content, host, LoadOptions{MinPriority: 5}, cat)
	if err != nil {
		t.Fatalf("expected append targeting a priority-skipped rule to be accepted silently: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings)
	}
	skipped := cat.SkippedRulesByName["quiet rule"]
	if skipped == nil {
		t.Fatalf("expected rule recorded in skipped_rules_by_name")
	}
	if skipped.Condition != "evt.type = open" {
		t.Fatalf("expected the skipped rule's condition untouched by the dropped append, got %q", skipped.Condition)
	}
}

func TestLoadPass1MultiFieldExceptionTupleLengthMismatch(t *testing.T) {
	content := `
- rule: base rule
  desc: a rule
  condition: evt.type = open
  output: "out"
  priority: INFO
  exceptions:
    - name: pair
      fields: [proc.name, fd.directory]
      values:
        - [apk]
`
	host := newFakeHost()
	cat := NewCatalog()
	if _, err := loadPass1(content, host, LoadOptions{MinPriority: 7}, cat); err == nil {
		t.Fatalf("expected an error for a value tuple shorter than the fields list")
	}
}

func TestLoadPass1RequiredPluginVersionsAccumulate(t *testing.T) {
	content := `
- required_plugin_versions:
    - name: k8saudit
      version: 0.1.0
- required_plugin_versions:
    - name: k8saudit
      version: 0.2.0
`
	host := newFakeHost()
	cat := NewCatalog()
	result, err := loadPass1(content, host, LoadOptions{}, cat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := result.RequiredPluginVersions["k8saudit"]
	if len(got) != 2 || got[0] != "0.1.0" || got[1] != "0.2.0" {
		t.Fatalf("expected both versions accumulated in order, got %v", got)
	}
}

func TestLoadPass1UnrecognizedItemWarns(t *testing.T) {
	content := `
- something_else: true
`
	host := newFakeHost()
	cat := NewCatalog()
	result, err := loadPass1(content, host, LoadOptions{}, cat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}
}

func TestLoadPass1EmptyContent(t *testing.T) {
	host := newFakeHost()
	cat := NewCatalog()
	result, err := loadPass1("", host, LoadOptions{}, cat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings for empty content")
	}
}

func TestLoadPass1RequiredEngineVersionRejectsNewerThanHost(t *testing.T) {
	content := `
- required_engine_version: 99
`
	host := newFakeHost()
	host.version = 1
	cat := NewCatalog()
	if _, err := loadPass1(content, host, LoadOptions{}, cat); err == nil {
		t.Fatalf("expected an error when required_engine_version exceeds the host's version")
	}
}
