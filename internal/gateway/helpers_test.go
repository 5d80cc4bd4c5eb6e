package gateway

import (
	"io"
	"log/slog"
	"time"

	"github.com/clamp-sh/clamp/internal/archive"
	ctxengine "github.com/clamp-sh/clamp/internal/context"
	"github.com/clamp-sh/clamp/internal/session"
)

// lenEstimator counts one token per character.
type lenEstimator struct{}

func (lenEstimator) Estimate(text string) int { return len(text) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager() *session.Manager {
	return session.NewManager(session.ManagerOptions{
		Estimator: lenEstimator{},
		Logger:    discardLogger(),
	})
}

// newTestGateway builds a gateway over freshly constructed dependencies.
func newTestGateway(cfg Config, mgr *session.Manager, store archive.Store) *Gateway {
	metrics := NewMetrics(mgr.Len)
	events := NewEventHub(discardLogger())
	g := New(cfg, mgr, store, metrics, events, discardLogger())
	g.startedAt = time.Now()
	return g
}

// compactedReport is a representative report of a check that did work.
func compactedReport() ctxengine.Report {
	return ctxengine.Report{
		TokensBefore:     1200,
		TokensAfter:      400,
		StrategiesUsed:   []string{ctxengine.StrategyHardClear, ctxengine.StrategyTruncate},
		ClearedCount:     2,
		ToolCallsCleared: []string{"tc-1"},
		CompressionRatio: 0.66,
	}
}
