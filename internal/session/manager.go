package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/clamp-sh/clamp/internal/archive"
	ctxengine "github.com/clamp-sh/clamp/internal/context"
)

// ManagerOptions configures a Manager. Estimator is required; everything
// else has a working default.
type ManagerOptions struct {
	Estimator ctxengine.TokenEstimator
	Engine    ctxengine.EngineConfig

	// Store receives eviction entries. Nil disables archiving.
	Store archive.Store

	// Recorder receives every budget-check report. Nil disables metrics.
	Recorder CheckRecorder

	// DefaultToolTTL is used when AppendToolResult is called with a zero
	// TTL. Zero means tool results never expire unless a TTL is given.
	DefaultToolTTL time.Duration

	Logger *slog.Logger

	// Clock overrides the time source, for tests.
	Clock func() time.Time
}

// Manager is the registry of live sessions. Safe for concurrent use.
type Manager struct {
	opts ManagerOptions

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// EngineConfig returns the configuration every session's engine is built
// with.
func (m *Manager) EngineConfig() ctxengine.EngineConfig {
	return m.opts.Engine
}

// Get returns the session with the given ID, if it exists.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate returns the session with the given ID, creating it on first
// use. Each new session gets its own engine and tool-call tracker.
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}

	engine := ctxengine.NewEngine(m.opts.Estimator, ctxengine.NewToolCallTracker(), m.opts.Engine)
	engine.SetClock(m.opts.Clock)
	if m.opts.Store != nil {
		engine.SetArchiveSink(archive.NewSessionSink(m.opts.Store, id, m.opts.Logger))
	}

	s = newSession(id, engine, m.opts.Logger, m.opts.Recorder, m.opts.Clock)
	s.defaultToolTTL = m.opts.DefaultToolTTL
	m.sessions[id] = s
	return s
}

// Delete removes a session from the registry. Returns whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns the identifiers of all live sessions, in no particular order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// ReapIdle removes sessions whose last activity is older than maxIdle and
// returns how many were removed. Used by the background reaper job.
func (m *Manager) ReapIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := m.opts.Clock().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.opts.Logger.Info("reaped idle sessions", "count", removed, "max_idle", maxIdle)
	}
	return removed
}
