// Package session owns conversation state: each Session holds one message
// sequence plus its context engine, and a Manager keeps the registry of
// live sessions. The engine itself is single-threaded; the session's mutex
// is the single-writer guarantee around it.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	ctxengine "github.com/clamp-sh/clamp/internal/context"
	"github.com/clamp-sh/clamp/internal/provider"
)

// tracerName identifies this package's spans.
const tracerName = "github.com/clamp-sh/clamp/internal/session"

// CheckRecorder receives the report of every budget check, for metrics and
// event streaming.
type CheckRecorder interface {
	RecordCheck(sessionID string, report ctxengine.Report)
}

// Recorders fans a report out to several recorders.
type Recorders []CheckRecorder

// RecordCheck implements CheckRecorder.
func (rs Recorders) RecordCheck(sessionID string, report ctxengine.Report) {
	for _, r := range rs {
		r.RecordCheck(sessionID, report)
	}
}

// Session is one conversation: an ordered message sequence and the engine
// that keeps it under budget. All methods are safe for concurrent use; the
// mutex serialises every mutation so the engine only ever sees one writer.
type Session struct {
	id             string
	logger         *slog.Logger
	tracer         trace.Tracer
	now            func() time.Time
	defaultToolTTL time.Duration

	mu         sync.Mutex
	engine     *ctxengine.Engine
	messages   []ctxengine.Message
	nextIndex  int
	createdAt  time.Time
	lastActive time.Time
	lastReport ctxengine.Report
	hasReport  bool

	recorder CheckRecorder
}

// newSession is called by the Manager; sessions are never built directly.
func newSession(id string, engine *ctxengine.Engine, logger *slog.Logger, recorder CheckRecorder, now func() time.Time) *Session {
	created := now()
	return &Session{
		id:         id,
		logger:     logger.With("session_id", id),
		tracer:     otel.Tracer(tracerName),
		now:        now,
		engine:     engine,
		createdAt:  created,
		lastActive: created,
		recorder:   recorder,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Append adds a message with the given role and content, assigning the next
// sequence index, and returns the stored message.
func (s *Session) Append(role ctxengine.Role, content string) ctxengine.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := ctxengine.NewMessage(role, content, s.now(), s.nextIndex)
	s.nextIndex++
	s.messages = append(s.messages, msg)
	s.lastActive = msg.Timestamp
	return msg
}

// AppendToolResult adds a tool-result message and registers its tool call
// with the engine's tracker so the content is cleared once the TTL lapses.
// A zero or negative TTL falls back to the manager's default.
func (s *Session) AppendToolResult(call provider.ToolCall, content string, ttl time.Duration) ctxengine.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl <= 0 {
		ttl = s.defaultToolTTL
	}
	now := s.now()
	msg := ctxengine.NewMessage(ctxengine.RoleTool, content, now, s.nextIndex)
	msg.ToolCallIDs = []string{call.ID}
	s.nextIndex++
	s.messages = append(s.messages, msg)
	s.lastActive = now

	if ttl > 0 {
		s.engine.Tracker().Record(call.ID, call.Name, ttl, now)
	}
	return msg
}

// Compact runs one budget check over the session's messages. The sequence
// is replaced in place; the report says what, if anything, changed.
func (s *Session) Compact(ctx context.Context) ctxengine.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, span := s.tracer.Start(ctx, "session.compact",
		trace.WithAttributes(attribute.String("session.id", s.id)))
	defer span.End()

	messages, report := s.engine.CheckAndCompact(s.messages)
	s.messages = messages
	s.lastActive = s.now()
	s.lastReport = report
	s.hasReport = true

	span.SetAttributes(
		attribute.Int("context.tokens_before", report.TokensBefore),
		attribute.Int("context.tokens_after", report.TokensAfter),
		attribute.StringSlice("context.strategies", report.StrategiesUsed),
		attribute.Bool("context.used_fallback", report.UsedFallback),
	)

	if s.recorder != nil {
		s.recorder.RecordCheck(s.id, report)
	}
	if report.Compacted() {
		s.logger.Info("context compacted",
			"tokens_before", report.TokensBefore,
			"tokens_after", report.TokensAfter,
			"strategies", report.StrategiesUsed,
			"cleared", report.ClearedCount,
			"used_fallback", report.UsedFallback)
	}
	return report
}

// LastReport returns the report of the most recent budget check, if one
// has run.
func (s *Session) LastReport() (ctxengine.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport, s.hasReport
}

// Messages returns a copy of the current message sequence.
func (s *Session) Messages() []ctxengine.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ctxengine.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages in the session.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// LastActive returns the time of the session's most recent mutation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}
