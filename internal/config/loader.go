package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the runtime configuration while respecting env > file > default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a config hydrator that honors the env-first contract before touching files or defaults.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Load assembles the effective snapshot so the CLI can make decisions using the documented precedence rules.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	defaultCfg := DefaultConfig()
	k := koanf.New(".")

	// The default rules folder applies only when neither rulesFolder nor
	// rulesFile is configured, so it is filled in after the overrides below.
	seeded := defaultCfg
	seeded.Engine.Rules.RulesFolder = ""
	if err := k.Load(confmap.Provider(structToMap(seeded), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		canonical := map[string]string{
			"engine.rules.rulesfolder":          "engine.rules.rulesFolder",
			"engine.rules.rulesfile":            "engine.rules.rulesFile",
			"engine.statssink.intervalseconds":  "engine.statsSink.intervalSeconds",
			"engine.statssink.keyprefix":        "engine.statsSink.keyPrefix",
			"engine.statssink.redis.tls.cafile": "engine.statsSink.redis.tls.caFile",
			"engine.requiredengineversion":      "engine.requiredEngineVersion",
			"engine.minpriority":                "engine.minPriority",
			"engine.allevents":                  "engine.allEvents",
			"engine.extraoutputtemplate":        "engine.extraOutputTemplate",
			"engine.replacecontainerinfo":       "engine.replaceContainerInfo",
		}
		transform := func(s string) string {
			// Double underscores signal a nested path (ENGINE__LISTEN__PORT -> engine.listen.port).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			lower := strings.ToLower(key)
			if mapped, ok := canonical[lower]; ok {
				return mapped
			}
			// Single underscores are removed so LISTEN_PORT collapses into listenport when callers
			// choose not to use double underscores for object nesting.
			key = strings.ReplaceAll(key, "_", "")
			return strings.ToLower(key)
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.Engine.Rules.RulesFolder == "" && cfg.Engine.Rules.RulesFile == "" {
		cfg.Engine.Rules.RulesFolder = defaultCfg.Engine.Rules.RulesFolder
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	bundle, err := buildRuleBundle(ctx, cfg.Engine.Rules)
	if err != nil {
		return Config{}, err
	}
	cfg.RuleSources = bundle.Sources
	cfg.SkippedSources = bundle.Skipped
	return cfg, nil
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"engine": map[string]any{
			"listen": map[string]any{
				"address": cfg.Engine.Listen.Address,
				"port":    cfg.Engine.Listen.Port,
			},
			"logging": map[string]any{
				"level":  cfg.Engine.Logging.Level,
				"format": cfg.Engine.Logging.Format,
			},
			"rules": map[string]any{
				"rulesFolder": cfg.Engine.Rules.RulesFolder,
				"rulesFile":   cfg.Engine.Rules.RulesFile,
			},
			"statsSink": map[string]any{
				"backend":         cfg.Engine.StatsSink.Backend,
				"intervalSeconds": cfg.Engine.StatsSink.IntervalSeconds,
				"keyPrefix":       cfg.Engine.StatsSink.KeyPrefix,
				"redis": map[string]any{
					"address":  cfg.Engine.StatsSink.Redis.Address,
					"username": cfg.Engine.StatsSink.Redis.Username,
					"password": cfg.Engine.StatsSink.Redis.Password,
					"db":       cfg.Engine.StatsSink.Redis.DB,
					"tls": map[string]any{
						"enabled": cfg.Engine.StatsSink.Redis.TLS.Enabled,
						"caFile":  cfg.Engine.StatsSink.Redis.TLS.CAFile,
					},
				},
			},
			"requiredEngineVersion": cfg.Engine.RequiredEngineVersion,
			"minPriority":           cfg.Engine.MinPriority,
			"allEvents":             cfg.Engine.AllEvents,
			"extraOutputTemplate":   cfg.Engine.ExtraOutputTemplate,
			"replaceContainerInfo":  cfg.Engine.ReplaceContainerInfo,
		},
	}
}
