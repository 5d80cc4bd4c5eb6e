package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	ctxengine "github.com/clamp-sh/clamp/internal/context"
)

// Event is one compaction event streamed to /ws/events subscribers.
type Event struct {
	Type         string    `json:"type"`
	SessionID    string    `json:"session_id"`
	TokensBefore int       `json:"tokens_before"`
	TokensAfter  int       `json:"tokens_after"`
	Strategies   []string  `json:"strategies"`
	ClearedCount int       `json:"cleared_count"`
	UsedFallback bool      `json:"used_fallback"`
	Timestamp    time.Time `json:"timestamp"`
}

// EventHub broadcasts compaction events to WebSocket subscribers. Slow
// subscribers are dropped rather than allowed to block publishers.
type EventHub struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewEventHub creates an empty hub.
func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{
		logger: logger,
		subs:   make(map[chan Event]struct{}),
	}
}

// RecordCheck implements session.CheckRecorder: every compacting budget
// check becomes an event. No-op checks are not broadcast.
func (h *EventHub) RecordCheck(sessionID string, report ctxengine.Report) {
	if !report.Compacted() {
		return
	}
	h.publish(Event{
		Type:         "compaction",
		SessionID:    sessionID,
		TokensBefore: report.TokensBefore,
		TokensAfter:  report.TokensAfter,
		Strategies:   report.StrategiesUsed,
		ClearedCount: report.ClearedCount,
		UsedFallback: report.UsedFallback,
		Timestamp:    time.Now().UTC(),
	})
}

func (h *EventHub) publish(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		// Non-blocking send: a full buffer means the subscriber is behind,
		// and it loses the event rather than stalling the session.
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *EventHub) subscribe() chan Event {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// SubscriberCount returns the number of connected subscribers.
func (h *EventHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP upgrades the connection and streams events until the client
// disconnects.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case evt := <-ch:
			if err := h.writeEvent(ctx, conn, evt); err != nil {
				return
			}
		}
	}
}

func (h *EventHub) writeEvent(ctx context.Context, conn *websocket.Conn, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Warn("event marshal failed", "error", err)
		return nil
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
