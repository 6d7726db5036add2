package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds every bootstrap option for the rules engine CLI plus the
// provenance the loader records once rule sources are resolved.
type Config struct {
	Engine EngineConfig `koanf:"engine"`

	// RuleSources records which files contributed rule documents once the
	// loader resolves the configured sources. Excluded from koanf so the
	// value only reflects runtime discovery, not static input.
	RuleSources []string `koanf:"-"`

	// SkippedSources captures configured rule files or folder entries the
	// loader could not read. Folder entries with an unsupported extension
	// are ignored without being recorded here. Downstream agents can surface
	// these in health checks without re-walking the filesystem.
	SkippedSources []DefinitionSkip `koanf:"-"`
}

// EngineConfig collects the bootstrap knobs owned by the engine's lifecycle:
// where its rule documents live, how it logs, how its metrics are served,
// and where dispatch stats are persisted between runs.
type EngineConfig struct {
	Listen    ListenConfig    `koanf:"listen"`
	Logging   LoggingConfig   `koanf:"logging"`
	Rules     RulesConfig     `koanf:"rules"`
	StatsSink StatsSinkConfig `koanf:"statsSink"`

	// RequiredEngineVersion overrides the version reported to loaded rule
	// documents' required_engine_version checks; zero means "report the
	// host's own version".
	RequiredEngineVersion uint64 `koanf:"requiredEngineVersion"`

	// MinPriority names the least severe priority still loaded: rules
	// strictly less severe are quarantined instead of compiled. The default
	// "debug" loads everything.
	MinPriority string `koanf:"minPriority"`

	// AllEvents suppresses the too-broad-event-type-match warning for hosts
	// that capture every event regardless.
	AllEvents bool `koanf:"allEvents"`

	// ExtraOutputTemplate is appended to (or substituted into, depending on
	// ReplaceContainerInfo) a rule's %container.info output placeholder.
	ExtraOutputTemplate  string `koanf:"extraOutputTemplate"`
	ReplaceContainerInfo bool   `koanf:"replaceContainerInfo"`
}

// ListenConfig instructs the metrics HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// RulesConfig announces how rule documents are sourced: exactly one of
// RulesFolder or RulesFile may be set.
type RulesConfig struct {
	RulesFolder string `koanf:"rulesFolder"`
	RulesFile   string `koanf:"rulesFile"`
}

// StatsSinkConfig controls where periodic dispatch-stats snapshots are
// persisted between engine runs.
type StatsSinkConfig struct {
	Backend         string      `koanf:"backend"` // memory|redis
	IntervalSeconds int         `koanf:"intervalSeconds"`
	KeyPrefix       string      `koanf:"keyPrefix"`
	Redis           RedisConfig `koanf:"redis"`
}

// RedisConfig describes how to reach a Redis- or Valkey-compatible store.
type RedisConfig struct {
	Address  string         `koanf:"address"`
	Username string         `koanf:"username"`
	Password string         `koanf:"password"`
	DB       int            `koanf:"db"`
	TLS      RedisTLSConfig `koanf:"tls"`
}

type RedisTLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// DefinitionSkip describes a configuration artifact that the loader
// intentionally ignored. Runtime agents can surface these in health checks
// so operators know which definitions were quarantined.
type DefinitionSkip struct {
	Kind    string   `json:"kind"`
	Name    string   `json:"name"`
	Reason  string   `json:"reason"`
	Sources []string `json:"sources"`
}

// Validate enforces invariants that keep the engine predictable before it
// loads its first rule document.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if c.Engine.Listen.Port < 0 || c.Engine.Listen.Port > 65535 {
		return fmt.Errorf("config: listen.port invalid: %d", c.Engine.Listen.Port)
	}
	if c.Engine.Rules.RulesFolder != "" && c.Engine.Rules.RulesFile != "" {
		return errors.New("config: rulesFolder and rulesFile are mutually exclusive")
	}
	if c.Engine.StatsSink.IntervalSeconds < 0 {
		return fmt.Errorf("config: statsSink.intervalSeconds invalid: %d", c.Engine.StatsSink.IntervalSeconds)
	}
	backend := strings.TrimSpace(strings.ToLower(c.Engine.StatsSink.Backend))
	switch backend {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(c.Engine.StatsSink.Redis.Address) == "" {
			return errors.New("config: statsSink.redis.address required for redis backend")
		}
	default:
		return fmt.Errorf("config: statsSink.backend unsupported: %s", c.Engine.StatsSink.Backend)
	}
	return nil
}

// DefaultConfig returns the baseline values the engine boots with absent
// any file or environment override.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			Listen: ListenConfig{
				Address: "0.0.0.0",
				Port:    9090,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
			Rules: RulesConfig{
				RulesFolder: "./rules",
			},
			MinPriority: "debug",
			StatsSink: StatsSinkConfig{
				Backend:         "memory",
				IntervalSeconds: 30,
				KeyPrefix:       "rulecore:stats",
			},
		},
	}
}
