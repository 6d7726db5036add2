// Command rulecheck loads an engine configuration, compiles one or more
// rules documents against a CEL-backed reference host, and reports what it
// found: rule descriptions, dispatch stats, and (if configured) live
// reloads as the watched rules file or folder changes.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ruleforge/rulecore/internal/celfilter"
	"github.com/ruleforge/rulecore/internal/config"
	"github.com/ruleforge/rulecore/internal/logging"
	"github.com/ruleforge/rulecore/internal/metrics"
	"github.com/ruleforge/rulecore/internal/rules"
	"github.com/ruleforge/rulecore/internal/statssink"
)

func main() {
	var (
		configFile  = flag.String("config", "", "path to engine configuration file")
		envPrefix   = flag.String("env-prefix", "RULECORE", "environment variable prefix")
		describeAll = flag.Bool("describe", true, "print a description of every loaded rule")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Engine.Logging, "rulecheck")
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	metricsRecorder := metrics.NewRecorder(promRegistry)

	sink := buildStatsSink(logger.With(slog.String("component", "statssink")), cfg.Engine.StatsSink)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := sink.Close(closeCtx); err != nil {
			logger.Error("stats sink shutdown failed", slog.Any("error", err))
		}
	}()

	host, err := celfilter.NewHost()
	if err != nil {
		log.Fatalf("failed to build filter host: %v", err)
	}
	var engineHost rules.RulesEngineHost = host
	if cfg.Engine.RequiredEngineVersion > 0 {
		engineHost = versionOverrideHost{RulesEngineHost: host, version: cfg.Engine.RequiredEngineVersion}
	}
	engine := rules.NewEngine(engineHost, celfilter.NewCompiler())

	minPriority, err := rules.ResolvePriority(cfg.Engine.MinPriority)
	if err != nil {
		log.Fatalf("invalid minPriority: %v", err)
	}
	loadOpts := rules.LoadOptions{
		AllEvents:            cfg.Engine.AllEvents,
		Extra:                cfg.Engine.ExtraOutputTemplate,
		ReplaceContainerInfo: cfg.Engine.ReplaceContainerInfo,
		MinPriority:          minPriority,
	}

	for _, skipped := range cfg.SkippedSources {
		logger.Warn("skipped rule source", slog.String("kind", skipped.Kind), slog.String("name", skipped.Name), slog.String("reason", skipped.Reason))
	}

	var watcher *config.RulesWatcher
	if cfg.Engine.Rules.RulesFile != "" || cfg.Engine.Rules.RulesFolder != "" {
		// WatchRules performs and dispatches the initial load synchronously
		// before returning, so no separate bootstrap load is needed here.
		w, err := loader.WatchRules(ctx, cfg, func(reloaded config.RuleBundle) {
			loadAndReport(engine, logger, metricsRecorder, reloaded.Content, loadOpts)
		}, func(err error) {
			if err != nil {
				logger.Error("rules watcher error", slog.Any("error", err))
			}
		})
		if err != nil {
			logger.Error("rules watcher setup failed", slog.Any("error", err))
			os.Exit(1)
		}
		watcher = w
		defer watcher.Stop()
	} else {
		bundle, err := config.LoadRuleBundle(ctx, cfg.Engine.Rules)
		if err != nil {
			logger.Error("failed to discover rule documents", slog.Any("error", err))
			os.Exit(1)
		}
		loadAndReport(engine, logger, metricsRecorder, bundle.Content, loadOpts)
	}
	seedStats(ctx, engine, sink, logger)

	if *describeAll {
		if err := engine.DescribeRule(os.Stdout, nil); err != nil {
			logger.Error("describe failed", slog.Any("error", err))
		}
	}
	engine.PrintStats(os.Stdout)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsRecorder.Handler())

	addr := strings.TrimSpace(cfg.Engine.Listen.Address)
	srv := &http.Server{
		Addr:    addr + ":" + strconv.Itoa(cfg.Engine.Listen.Port),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	statsTicker := startStatsPersistence(ctx, engine, sink, cfg.Engine.StatsSink, logger)
	defer statsTicker.Stop()

	logger.Info("serving metrics", slog.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server terminated unexpectedly", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("rulecheck shutdown complete")
}

// versionOverrideHost reports a configured engine version in place of the
// wrapped host's own, so operators can pin what required_engine_version
// checks are measured against.
type versionOverrideHost struct {
	rules.RulesEngineHost
	version uint64
}

func (h versionOverrideHost) EngineVersion() uint64 { return h.version }

// loadAndReport compiles content into engine, logging and recording the
// outcome either way. A failed load leaves the engine's previous catalog
// untouched.
func loadAndReport(engine *rules.Engine, logger *slog.Logger, rec *metrics.Recorder, content string, opts rules.LoadOptions) {
	start := time.Now()
	result, err := engine.LoadRules(content, opts)
	duration := time.Since(start)
	if err != nil {
		rec.ObserveLoad(metrics.LoadOutcomeError, 0, 0, 0, duration)
		logger.Error("rules load failed", slog.Any("error", err))
		return
	}
	rec.ObserveLoad(metrics.LoadOutcomeSuccess, result.NumRulesLoaded, result.NumRulesSkipped, len(result.Warnings), duration)
	for _, warning := range result.Warnings {
		logger.Warn("rules load warning", slog.String("warning", warning))
	}
	logger.Info("rules loaded",
		slog.Int("loaded", result.NumRulesLoaded),
		slog.Int("skipped", result.NumRulesSkipped),
		slog.Int("warnings", len(result.Warnings)),
		slog.Duration("duration", duration),
	)
}

// seedStats restores a previously persisted dispatch-stats snapshot, if
// any, onto the engine's freshly constructed Stats.
func seedStats(ctx context.Context, engine *rules.Engine, sink statssink.Sink, logger *slog.Logger) {
	snap, ok, err := sink.Load(ctx)
	if err != nil {
		logger.Warn("failed to load persisted stats snapshot", slog.Any("error", err))
		return
	}
	if !ok {
		return
	}
	st := engine.Stats()
	st.Total = snap.Total
	st.ByPriority = snap.ByPriority
	st.ByName = snap.ByName
	logger.Info("restored stats snapshot", slog.Uint64("total", snap.Total), slog.Time("saved_at", snap.SavedAt))
}

// startStatsPersistence periodically saves the engine's dispatch-stats
// snapshot to sink until ctx is cancelled, returning the ticker so the
// caller can stop it on shutdown.
func startStatsPersistence(ctx context.Context, engine *rules.Engine, sink statssink.Sink, cfg config.StatsSinkConfig, logger *slog.Logger) *time.Ticker {
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := engine.Stats()
				snap := statssink.Snapshot{Total: st.Total, ByPriority: st.ByPriority, ByName: st.ByName, SavedAt: time.Now().UTC()}
				if err := sink.Save(ctx, snap); err != nil {
					logger.Warn("failed to persist stats snapshot", slog.Any("error", err))
				}
			}
		}
	}()
	return ticker
}

func buildStatsSink(logger *slog.Logger, cfg config.StatsSinkConfig) statssink.Sink {
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	switch backend {
	case "", "memory":
		logger.Info("using in-memory stats sink")
		return statssink.NewMemory()
	case "redis":
		sink, err := statssink.NewRedis(statssink.RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS: statssink.RedisTLSConfig{
				Enabled: cfg.Redis.TLS.Enabled,
				CAFile:  cfg.Redis.TLS.CAFile,
			},
		}, cfg.KeyPrefix)
		if err != nil {
			logger.Error("redis stats sink initialization failed", slog.Any("error", err))
			logger.Info("falling back to in-memory stats sink")
			return statssink.NewMemory()
		}
		logger.Info("using redis stats sink", slog.String("address", cfg.Redis.Address))
		return sink
	default:
		logger.Warn("unsupported stats sink backend, defaulting to memory", slog.String("backend", cfg.Backend))
		return statssink.NewMemory()
	}
}

