package archive

import (
	"context"
	"log/slog"
	"time"

	ctxengine "github.com/clamp-sh/clamp/internal/context"
)

// defaultAppendTimeout bounds a single archive write so a slow store can
// never stall a budget check.
const defaultAppendTimeout = 2 * time.Second

// SessionSink adapts a Store to the context engine's fire-and-forget sink
// contract for one session. Write failures are logged and dropped; the
// engine never sees them.
type SessionSink struct {
	store     Store
	sessionID string
	logger    *slog.Logger
	timeout   time.Duration
}

// NewSessionSink creates a sink writing entries for the given session.
// A nil logger defaults to slog.Default.
func NewSessionSink(store Store, sessionID string, logger *slog.Logger) *SessionSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSink{
		store:     store,
		sessionID: sessionID,
		logger:    logger,
		timeout:   defaultAppendTimeout,
	}
}

// Archive implements ctxengine.ArchiveSink.
func (s *SessionSink) Archive(rec ctxengine.ArchiveRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.store.Append(ctx, Entry{
		SessionID:    s.sessionID,
		MessageIndex: rec.Index,
		Reason:       rec.Reason,
		Placeholder:  rec.Placeholder,
		ClearedAt:    rec.ClearedAt,
	})
	if err != nil {
		s.logger.Warn("archive append failed",
			"session_id", s.sessionID,
			"reason", rec.Reason,
			"error", err)
	}
}
