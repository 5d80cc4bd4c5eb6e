package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clamp-sh/clamp/internal/archive"
)

// sessionJSON is a serializable session snapshot.
type sessionJSON struct {
	ID             string          `json:"id"`
	CreatedAt      string          `json:"created_at"`
	LastActiveAt   string          `json:"last_active_at"`
	Messages       int             `json:"messages"`
	LastCompaction *compactionJSON `json:"last_compaction,omitempty"`
}

// compactionJSON summarises the most recent budget check of a session.
type compactionJSON struct {
	TokensBefore int      `json:"tokens_before"`
	TokensAfter  int      `json:"tokens_after"`
	Strategies   []string `json:"strategies"`
	Cleared      int      `json:"cleared"`
	UsedFallback bool     `json:"used_fallback"`
}

// handleListSessions returns all live sessions as JSON.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sessions := []sessionJSON{}

		if g.manager != nil {
			for _, id := range g.manager.IDs() {
				sess, ok := g.manager.Get(id)
				if !ok {
					continue
				}
				entry := sessionJSON{
					ID:           sess.ID(),
					CreatedAt:    sess.CreatedAt().UTC().Format(time.RFC3339),
					LastActiveAt: sess.LastActive().UTC().Format(time.RFC3339),
					Messages:     sess.Len(),
				}
				if report, ok := sess.LastReport(); ok {
					entry.LastCompaction = &compactionJSON{
						TokensBefore: report.TokensBefore,
						TokensAfter:  report.TokensAfter,
						Strategies:   report.StrategiesUsed,
						Cleared:      report.ClearedCount,
						UsedFallback: report.UsedFallback,
					}
				}
				sessions = append(sessions, entry)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sessions)
	}
}

// handleDeleteSession deletes a session by its ID.
func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "missing session id", http.StatusBadRequest)
			return
		}

		if g.manager == nil || !g.manager.Delete(id) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSessionEvictions returns the archived eviction trail for a session.
func (g *Gateway) handleSessionEvictions() http.HandlerFunc {
	const defaultLimit = 100

	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "missing session id", http.StatusBadRequest)
			return
		}

		entries := []archive.Entry{}
		if g.store != nil {
			found, err := g.store.Recent(r.Context(), id, defaultLimit)
			if err != nil {
				g.logger.Error("eviction lookup failed", "session_id", id, "error", err)
				http.Error(w, "archive unavailable", http.StatusInternalServerError)
				return
			}
			if found != nil {
				entries = found
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	}
}
