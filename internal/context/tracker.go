package ctxengine

import "time"

// ToolCallTimestamp records the lifetime of one outstanding tool call.
type ToolCallTimestamp struct {
	ID        string
	Name      string
	CreatedAt time.Time
	TTL       time.Duration
}

// expiredAt reports whether the call's TTL has elapsed at the given time.
func (t ToolCallTimestamp) expiredAt(now time.Time) bool {
	return now.Sub(t.CreatedAt) > t.TTL
}

// ToolCallTracker tracks creation time and TTL for outstanding tool calls.
//
// Expired calls remain queryable until explicitly removed, so repeated budget
// checks within the same turn see a stable expired set and never double-count.
//
// It is not concurrent-safe: each instance is owned by a single
// session (single-writer discipline, matching the rest of the engine).
type ToolCallTracker struct {
	calls map[string]ToolCallTimestamp
}

// NewToolCallTracker creates an empty tracker.
func NewToolCallTracker() *ToolCallTracker {
	return &ToolCallTracker{calls: make(map[string]ToolCallTimestamp)}
}

// Record registers a tool call with its time-to-live. Re-recording an
// existing ID overwrites it, restarting the lifetime.
func (t *ToolCallTracker) Record(id, name string, ttl time.Duration, now time.Time) {
	t.calls[id] = ToolCallTimestamp{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		TTL:       ttl,
	}
}

// Expired returns every recorded call whose TTL has elapsed at now.
// Calling it repeatedly is idempotent until Remove is called.
func (t *ToolCallTracker) Expired(now time.Time) []ToolCallTimestamp {
	var expired []ToolCallTimestamp
	for _, call := range t.calls {
		if call.expiredAt(now) {
			expired = append(expired, call)
		}
	}
	return expired
}

// Remove drops a call from the tracker. The caller invokes it after the
// corresponding content has been cleared successfully.
func (t *ToolCallTracker) Remove(id string) {
	delete(t.calls, id)
}

// Len returns the number of outstanding tracked calls.
func (t *ToolCallTracker) Len() int {
	return len(t.calls)
}
