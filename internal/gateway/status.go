package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// EngineStatus reports the thresholds sessions are created with. Zero
// values mean the engine default applies.
type EngineStatus struct {
	WarningTokens        int `json:"warning_tokens"`
	CriticalTokens       int `json:"critical_tokens"`
	MaxMessageTokens     int `json:"max_message_tokens"`
	FallbackTargetTokens int `json:"fallback_target_tokens"`
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds int64           `json:"uptime_seconds"`
	Sessions      int             `json:"sessions"`
	Subscribers   int             `json:"event_subscribers"`
	Engine        EngineStatus    `json:"engine"`
	Metrics       MetricsSnapshot `json:"metrics"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			UptimeSeconds: int64(time.Since(g.startedAt) / time.Second),
			Metrics:       g.metrics.Snapshot(),
		}

		if g.manager != nil {
			resp.Sessions = g.manager.Len()
			engine := g.manager.EngineConfig()
			resp.Engine = EngineStatus{
				WarningTokens:        engine.Thresholds.WarningTokens,
				CriticalTokens:       engine.Thresholds.CriticalTokens,
				MaxMessageTokens:     engine.MaxMessageTokens,
				FallbackTargetTokens: engine.FallbackTargetTokens,
			}
		}
		if g.events != nil {
			resp.Subscribers = g.events.SubscriberCount()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
