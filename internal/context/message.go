package ctxengine

import (
	"time"

	"github.com/clamp-sh/clamp/internal/provider"
)

// Role aliases the shared conversation role type.
type Role = provider.MessageRole

// Role constants for conversation messages.
const (
	RoleSystem    = provider.MessageRoleSystem
	RoleUser      = provider.MessageRoleUser
	RoleAssistant = provider.MessageRoleAssistant
	RoleTool      = provider.MessageRoleTool
)

// Message is one conversation turn under budget management.
//
// The engine owns Content, HardCleared, and SoftTrimmed during a compaction
// pass; everything else is set once by the caller at ingestion. The engine
// never removes a Message from a sequence: it replaces content in place, or
// (message-level fallback only) returns a new, shorter sequence.
type Message struct {
	Role    Role
	Content string

	// Timestamp is the creation time of the message. It must come from the
	// same clock the engine was constructed with.
	Timestamp time.Time

	// Index is the stable original position of the message. Ordinal rank
	// (e.g. "last N assistant messages") is re-derived from it after the
	// sequence has been filtered or replaced.
	Index int

	// OriginalLength is the character count of the content at first
	// ingestion, reported in placeholders even after clearing.
	OriginalLength int

	// ToolCallIDs lists the tool-call identifiers this message references
	// or was produced for.
	ToolCallIDs []string

	// Summary is an optional one-line summary attached upstream. When set,
	// it is appended to the placeholder on age-based clearing.
	Summary string

	// HardCleared marks content permanently replaced by a placeholder.
	// It is monotonic: nothing in this package resets it to false.
	HardCleared bool

	// SoftTrimmed marks content shrunk in place but still meaningful.
	// Hard-clearing supersedes it.
	SoftTrimmed bool
}

// NewMessage creates a message with OriginalLength captured from the content.
func NewMessage(role Role, content string, ts time.Time, index int) Message {
	return Message{
		Role:           role,
		Content:        content,
		Timestamp:      ts,
		Index:          index,
		OriginalLength: len(content),
	}
}

// referencesAny reports whether the message references any of the given
// tool-call IDs.
func (m *Message) referencesAny(ids map[string]ToolCallTimestamp) (ToolCallTimestamp, bool) {
	for _, id := range m.ToolCallIDs {
		if ts, ok := ids[id]; ok {
			return ts, true
		}
	}
	return ToolCallTimestamp{}, false
}
