package ctxengine

import (
	"fmt"
	"time"
)

// HardClearResult is the outcome of one pruning pass.
type HardClearResult struct {
	// Messages is the input sequence with cleared content replaced by
	// placeholders. Same length and order as the input.
	Messages []Message

	// ClearedCount is the number of messages hard-cleared by this pass.
	ClearedCount int

	// ToolCallsCleared lists the expired tool-call IDs whose content was
	// cleared. The caller removes these from the tracker.
	ToolCallsCleared []string

	// Archived carries one record per cleared message, for the archive sink.
	Archived []ArchiveRecord
}

// ApplyHardClear walks the message sequence and replaces expired or aged
// content with placeholders. It mutates the messages in place and also
// returns them for convenience.
//
// Two passes run in priority order:
//
//  1. Expired tool calls. Any message referencing an expired call is cleared
//     regardless of role exemptions: TTL expiry is a resource-lifetime
//     guarantee, not a retention preference.
//  2. Age. Messages older than MaxMessageAge are cleared unless protected by
//     a role exemption or by being among the last KeepLastNAssistant
//     assistant messages. Disabled when MaxMessageAge <= 0.
//
// Already-cleared messages are skipped, which makes the operation idempotent:
// running it again with no new expirations changes nothing.
func ApplyHardClear(messages []Message, expired []ToolCallTimestamp, cfg PruningConfig, now time.Time) HardClearResult {
	result := HardClearResult{Messages: messages}

	expiredByID := make(map[string]ToolCallTimestamp, len(expired))
	for _, call := range expired {
		expiredByID[call.ID] = call
	}

	// Pass 1: expired tool calls.
	cleared := make(map[string]struct{})
	for i := range messages {
		msg := &messages[i]
		if msg.HardCleared {
			continue
		}
		call, ok := msg.referencesAny(expiredByID)
		if !ok {
			continue
		}
		hardClear(msg, toolPlaceholder(call, msg.OriginalLength))
		result.ClearedCount++
		result.Archived = append(result.Archived, ArchiveRecord{
			Index:       msg.Index,
			Reason:      ReasonToolCallExpired,
			ClearedAt:   now,
			Placeholder: msg.Content,
		})
		for _, id := range msg.ToolCallIDs {
			if _, isExpired := expiredByID[id]; !isExpired {
				continue
			}
			if _, seen := cleared[id]; seen {
				continue
			}
			cleared[id] = struct{}{}
			result.ToolCallsCleared = append(result.ToolCallsCleared, id)
		}
	}

	// Pass 2: age.
	if cfg.MaxMessageAge > 0 {
		protected := protectedAssistants(messages, cfg.KeepLastNAssistant)
		for i := range messages {
			msg := &messages[i]
			if !ageEligible(msg, protected, cfg, now) {
				continue
			}
			hardClear(msg, agePlaceholder(msg))
			result.ClearedCount++
			result.Archived = append(result.Archived, ArchiveRecord{
				Index:       msg.Index,
				Reason:      ReasonMessageAge,
				ClearedAt:   now,
				Placeholder: msg.Content,
			})
		}
	}

	return result
}

// ShouldHardClear reports whether ApplyHardClear would clear the given
// message, without mutating anything. Used for previews and dry runs.
func ShouldHardClear(msg Message, expired []ToolCallTimestamp, messages []Message, cfg PruningConfig, now time.Time) bool {
	if msg.HardCleared {
		return false
	}

	expiredByID := make(map[string]ToolCallTimestamp, len(expired))
	for _, call := range expired {
		expiredByID[call.ID] = call
	}
	if _, ok := msg.referencesAny(expiredByID); ok {
		return true
	}

	if cfg.MaxMessageAge <= 0 {
		return false
	}
	protected := protectedAssistants(messages, cfg.KeepLastNAssistant)
	return ageEligible(&msg, protected, cfg, now)
}

// ageEligible applies the age-pass exemptions to a single message.
func ageEligible(msg *Message, protectedAssistant map[int]struct{}, cfg PruningConfig, now time.Time) bool {
	if msg.HardCleared {
		return false
	}
	switch msg.Role {
	case RoleSystem:
		if cfg.KeepSystemMessages {
			return false
		}
	case RoleUser:
		if cfg.KeepUserMessages {
			return false
		}
	case RoleAssistant:
		if _, ok := protectedAssistant[msg.Index]; ok {
			return false
		}
	}
	return now.Sub(msg.Timestamp) > cfg.MaxMessageAge
}

// protectedAssistants returns the original indices of the last n assistant
// messages, ranked by original order so the answer survives filtering.
func protectedAssistants(messages []Message, n int) map[int]struct{} {
	protected := make(map[int]struct{}, n)
	if n <= 0 {
		return protected
	}
	var indices []int
	for i := range messages {
		if messages[i].Role == RoleAssistant {
			indices = append(indices, messages[i].Index)
		}
	}
	if len(indices) > n {
		indices = indices[len(indices)-n:]
	}
	for _, idx := range indices {
		protected[idx] = struct{}{}
	}
	return protected
}

// hardClear replaces the content with a placeholder. Hard-clearing
// supersedes any earlier soft trim.
func hardClear(msg *Message, placeholder string) {
	msg.Content = placeholder
	msg.HardCleared = true
	msg.SoftTrimmed = false
}

func toolPlaceholder(call ToolCallTimestamp, originalLength int) string {
	return fmt.Sprintf("[Tool result cleared: %s (%s), %d chars removed]", call.Name, call.ID, originalLength)
}

func agePlaceholder(msg *Message) string {
	placeholder := fmt.Sprintf("[Assistant message #%d cleared, %d chars removed]", msg.Index, msg.OriginalLength)
	if msg.Summary != "" {
		placeholder += "\n" + msg.Summary
	}
	return placeholder
}
