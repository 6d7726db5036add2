package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LoadOutcome captures the result of a LoadRules call.
type LoadOutcome string

const (
	// LoadOutcomeSuccess indicates LoadRules returned without error.
	LoadOutcomeSuccess LoadOutcome = "success"
	// LoadOutcomeError indicates LoadRules returned an error and the
	// engine's previous catalog was left in place.
	LoadOutcomeError LoadOutcome = "error"
)

// Recorder publishes Prometheus metrics for the rules engine's load and
// dispatch activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	loadsTotal   *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec
	loadWarnings prometheus.Counter
	rulesLoaded  prometheus.Gauge
	rulesSkipped prometheus.Gauge

	dispatchTotal   *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a
// dedicated registry is created so multiple recorders can coexist without
// conflicting with the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	loadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rulecore",
		Subsystem: "rules",
		Name:      "loads_total",
		Help:      "Total LoadRules calls, by outcome.",
	}, []string{"outcome"})

	loadDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rulecore",
		Subsystem: "rules",
		Name:      "load_duration_seconds",
		Help:      "Latency distribution for LoadRules calls.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"outcome"})

	loadWarnings := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rulecore",
		Subsystem: "rules",
		Name:      "load_warnings_total",
		Help:      "Total non-fatal warnings raised across all LoadRules calls.",
	})

	rulesLoaded := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rulecore",
		Subsystem: "rules",
		Name:      "active",
		Help:      "Number of rules compiled and registered by the most recent load.",
	})

	rulesSkipped := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rulecore",
		Subsystem: "rules",
		Name:      "skipped",
		Help:      "Number of rules quarantined by priority gating in the most recent load.",
	})

	dispatchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rulecore",
		Subsystem: "dispatch",
		Name:      "events_total",
		Help:      "Total events dispatched to a matched rule.",
	}, []string{"rule", "priority"})

	dispatchLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rulecore",
		Subsystem: "dispatch",
		Name:      "lookup_duration_seconds",
		Help:      "Latency distribution for dispatch rule-id lookups.",
		Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"rule"})

	reg.MustRegister(loadsTotal, loadDuration, loadWarnings, rulesLoaded, rulesSkipped, dispatchTotal, dispatchLatency)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:        reg,
		handler:         handler,
		loadsTotal:      loadsTotal,
		loadDuration:    loadDuration,
		loadWarnings:    loadWarnings,
		rulesLoaded:     rulesLoaded,
		rulesSkipped:    rulesSkipped,
		dispatchTotal:   dispatchTotal,
		dispatchLatency: dispatchLatency,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveLoad records the outcome, latency and rule counts of a LoadRules
// call. numWarnings is added to a running total; numLoaded/numSkipped
// replace the gauges outright, since a load fully replaces the catalog.
func (r *Recorder) ObserveLoad(outcome LoadOutcome, numLoaded, numSkipped, numWarnings int, duration time.Duration) {
	if r == nil {
		return
	}
	outcomeLabel := normalizeLabel(string(outcome))
	r.loadsTotal.WithLabelValues(outcomeLabel).Inc()
	r.loadDuration.WithLabelValues(outcomeLabel).Observe(duration.Seconds())
	if numWarnings > 0 {
		r.loadWarnings.Add(float64(numWarnings))
	}
	if outcome == LoadOutcomeSuccess {
		r.rulesLoaded.Set(float64(numLoaded))
		r.rulesSkipped.Set(float64(numSkipped))
	}
}

// ObserveDispatch records a single rule-id dispatch lookup.
func (r *Recorder) ObserveDispatch(ruleName string, priorityNum int, duration time.Duration) {
	if r == nil {
		return
	}
	ruleLabel := normalizeLabel(ruleName)
	r.dispatchTotal.WithLabelValues(ruleLabel, strconv.Itoa(priorityNum)).Inc()
	r.dispatchLatency.WithLabelValues(ruleLabel).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
