package config

import "testing"

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}

	invalidPort := cfg
	invalidPort.Engine.Listen.Port = -1
	if err := invalidPort.Validate(); err == nil {
		t.Fatalf("expected failure when port is invalid")
	}

	conflictingRules := cfg
	conflictingRules.Engine.Rules.RulesFile = "rules.yaml"
	if err := conflictingRules.Validate(); err == nil {
		t.Fatalf("expected failure when both rulesFolder and rulesFile are set")
	}

	badSink := cfg
	badSink.Engine.StatsSink.Backend = "memcached"
	if err := badSink.Validate(); err == nil {
		t.Fatalf("expected failure for unsupported statsSink backend")
	}

	redisNoAddress := cfg
	redisNoAddress.Engine.StatsSink.Backend = "redis"
	if err := redisNoAddress.Validate(); err == nil {
		t.Fatalf("expected failure when redis backend has no address")
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Engine.Listen.Address != "0.0.0.0" {
		t.Errorf("expected listen address 0.0.0.0, got %q", cfg.Engine.Listen.Address)
	}
	if cfg.Engine.Listen.Port != 9090 {
		t.Errorf("expected listen port 9090, got %d", cfg.Engine.Listen.Port)
	}
	if cfg.Engine.Logging.Level != "info" {
		t.Errorf("expected logging level info, got %q", cfg.Engine.Logging.Level)
	}
	if cfg.Engine.Rules.RulesFolder != "./rules" {
		t.Errorf("expected rules folder ./rules, got %q", cfg.Engine.Rules.RulesFolder)
	}
	if cfg.Engine.StatsSink.Backend != "memory" {
		t.Errorf("expected statsSink backend memory, got %q", cfg.Engine.StatsSink.Backend)
	}
	if cfg.Engine.StatsSink.IntervalSeconds != 30 {
		t.Errorf("expected statsSink interval 30, got %d", cfg.Engine.StatsSink.IntervalSeconds)
	}
}
