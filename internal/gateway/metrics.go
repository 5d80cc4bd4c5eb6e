package gateway

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ctxengine "github.com/clamp-sh/clamp/internal/context"
)

// Metrics tracks compaction activity. It exports Prometheus collectors for
// scraping and keeps a small atomic snapshot for the /status endpoint.
type Metrics struct {
	registry *prometheus.Registry

	budgetChecks    prometheus.Counter
	compactions     *prometheus.CounterVec
	tokensReclaimed prometheus.Counter
	fallbacks       prometheus.Counter
	evictions       prometheus.Counter

	checks     atomic.Int64
	compacted  atomic.Int64
	reclaimed  atomic.Int64
	fallbackN  atomic.Int64
	evictionsN atomic.Int64
}

// NewMetrics creates the collectors on a fresh registry. sessionCount feeds
// the live-sessions gauge; nil disables it.
func NewMetrics(sessionCount func() int) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		budgetChecks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "clamp",
			Subsystem: "context",
			Name:      "budget_checks_total",
			Help:      "Budget checks run across all sessions.",
		}),
		compactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clamp",
			Subsystem: "context",
			Name:      "compactions_total",
			Help:      "Compaction strategy applications, by strategy.",
		}, []string{"strategy"}),
		tokensReclaimed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "clamp",
			Subsystem: "context",
			Name:      "tokens_reclaimed_total",
			Help:      "Estimated tokens removed by compaction.",
		}),
		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "clamp",
			Subsystem: "context",
			Name:      "message_fallbacks_total",
			Help:      "Times the message-level fallback summarizer ran.",
		}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "clamp",
			Subsystem: "context",
			Name:      "messages_cleared_total",
			Help:      "Messages hard-cleared by structural pruning.",
		}),
	}

	if sessionCount != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "clamp",
			Name:      "sessions_live",
			Help:      "Sessions currently held by the manager.",
		}, func() float64 { return float64(sessionCount()) })
	}

	return m
}

// RecordCheck implements session.CheckRecorder.
func (m *Metrics) RecordCheck(_ string, report ctxengine.Report) {
	m.budgetChecks.Inc()
	m.checks.Add(1)

	for _, strategy := range report.StrategiesUsed {
		m.compactions.WithLabelValues(strategy).Inc()
	}
	if report.Compacted() {
		m.compacted.Add(1)
	}
	if saved := report.TokensBefore - report.TokensAfter; saved > 0 {
		m.tokensReclaimed.Add(float64(saved))
		m.reclaimed.Add(int64(saved))
	}
	if report.UsedFallback {
		m.fallbacks.Inc()
		m.fallbackN.Add(1)
	}
	if report.ClearedCount > 0 {
		m.evictions.Add(float64(report.ClearedCount))
		m.evictionsN.Add(int64(report.ClearedCount))
	}
}

// Handler returns the Prometheus scrape handler for GET /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Snapshot returns a consistent point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		BudgetChecks:     m.checks.Load(),
		Compactions:      m.compacted.Load(),
		TokensReclaimed:  m.reclaimed.Load(),
		MessageFallbacks: m.fallbackN.Load(),
		MessagesCleared:  m.evictionsN.Load(),
	}
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	BudgetChecks     int64 `json:"budget_checks"`
	Compactions      int64 `json:"compactions"`
	TokensReclaimed  int64 `json:"tokens_reclaimed"`
	MessageFallbacks int64 `json:"message_fallbacks"`
	MessagesCleared  int64 `json:"messages_cleared"`
}
