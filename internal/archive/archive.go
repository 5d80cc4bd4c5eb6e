// Package archive defines persistence for content evicted by the context
// engine. Every hard-clear and fallback event becomes an Entry, giving
// operators an audit trail of what compaction removed and why.
//
// The package defines the Store interface and an in-memory implementation;
// the SQLite-backed implementation lives in modules/archive/sqlite.
package archive

import (
	"context"
	"time"
)

// Entry is one archived eviction event.
type Entry struct {
	// ID is assigned by the store on append. Zero until stored.
	ID int64

	// SessionID names the conversation session the eviction happened in.
	SessionID string

	// MessageIndex is the evicted message's original position in the
	// session's message sequence.
	MessageIndex int

	// Reason is the engine's clearing reason (tool_call_expired,
	// message_age, fallback_summary).
	Reason string

	// Placeholder is the text left in place of the evicted content.
	Placeholder string

	ClearedAt time.Time
}

// Store persists eviction entries. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append stores one entry and assigns its ID.
	Append(ctx context.Context, entry Entry) (Entry, error)

	// Recent returns up to limit entries for the session, oldest first.
	Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error)

	// DeleteOlderThan removes entries cleared before the cutoff and
	// reports how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Count returns the total number of stored entries.
	Count(ctx context.Context) (int, error)
}
