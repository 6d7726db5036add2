package config

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RuleBundle captures the concatenated rule-document content discovered
// from the configured source, along with provenance: which files
// contributed and which were skipped.
type RuleBundle struct {
	// Content is every discovered document joined by a YAML document
	// separator, ready to hand to rules.Engine.LoadRules in one call.
	Content string
	Sources []string
	Skipped []DefinitionSkip
}

// LoadRuleBundle resolves rulesCfg into a single concatenated document ready
// to hand to rules.Engine.LoadRules. Callers that need the rule-document
// content itself (rather than just its provenance) call this directly;
// Loader.Load only records the provenance on the returned Config.
func LoadRuleBundle(ctx context.Context, rulesCfg RulesConfig) (RuleBundle, error) {
	return buildRuleBundle(ctx, rulesCfg)
}

// buildRuleBundle resolves rulesCfg into a single concatenated document.
// A configured RulesFile is read as-is; a configured RulesFolder is walked
// for supported rule-document extensions, in sorted path order so loads
// stay deterministic across runs.
func buildRuleBundle(ctx context.Context, rulesCfg RulesConfig) (RuleBundle, error) {
	files, err := collectRuleSources(ctx, rulesCfg)
	if err != nil {
		return RuleBundle{}, err
	}

	var (
		builder strings.Builder
		sources []string
		skipped []DefinitionSkip
	)
	for _, path := range files {
		select {
		case <-ctx.Done():
			return RuleBundle{}, ctx.Err()
		default:
		}
		data, err := os.ReadFile(path)
		if err != nil {
			skipped = append(skipped, DefinitionSkip{
				Kind:    "ruleFile",
				Name:    filepath.Base(path),
				Reason:  fmt.Sprintf("unreadable: %v", err),
				Sources: []string{path},
			})
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n---\n")
		}
		builder.Write(data)
		sources = append(sources, path)
	}
	sort.Strings(sources)
	return RuleBundle{Content: builder.String(), Sources: sources, Skipped: skipped}, nil
}

func collectRuleSources(ctx context.Context, rulesCfg RulesConfig) ([]string, error) {
	if rulesCfg.RulesFile != "" {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := ensureFileExists(rulesCfg.RulesFile); err != nil {
			return nil, err
		}
		return []string{rulesCfg.RulesFile}, nil
	}
	if rulesCfg.RulesFolder == "" {
		return nil, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	stat, err := os.Stat(rulesCfg.RulesFolder)
	if err != nil {
		return nil, fmt.Errorf("config: rules folder %s: %w", rulesCfg.RulesFolder, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("config: rules folder %s is not a directory", rulesCfg.RulesFolder)
	}
	var files []string
	err = filepath.WalkDir(rulesCfg.RulesFolder, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !isSupportedRulesFile(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("config: walk rules folder %s: %w", rulesCfg.RulesFolder, err)
	}
	sort.Strings(files)
	return files, nil
}

func ensureFileExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("config: rules file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config: rules file %s: expected a file, found directory", path)
	}
	return nil
}

func isSupportedRulesFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
