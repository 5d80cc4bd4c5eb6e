package ctxengine

import (
	"math"
	"strings"
	"time"
)

// ContentType is the coarse lexical category of a message.
type ContentType string

// ContentType constants for message classification.
const (
	ContentTypeCode       ContentType = "code"
	ContentTypeError      ContentType = "error"
	ContentTypeDecision   ContentType = "decision"
	ContentTypeProse      ContentType = "prose"
	ContentTypeToolResult ContentType = "tool-result"
)

// ClassifiedMessage pairs a message with its content type and importance.
type ClassifiedMessage struct {
	Message     Message
	ContentType ContentType

	// Importance is a deterministic score in [0,1] combining recency decay,
	// role weight, content-type weight, and an explicit-marker bonus.
	Importance float64
}

// Importance scoring weights. The factor weights plus the marker cap sum to
// 1.0 so the score never leaves [0,1].
const (
	recencyWeight    = 0.35
	roleFactorWeight = 0.25
	typeFactorWeight = 0.25
	markerBonusPer   = 0.05
	markerBonusCap   = 0.15
	recencyHalfLife  = 30 * time.Minute
)

// errorSignals are lexical markers of diagnostics and failures.
var errorSignals = []string{
	"error", "exception", "panic:", "traceback", "stack trace", "fatal:",
	"failed:", "segfault",
}

// decisionSignals are lexical markers of instructions and commitments.
var decisionSignals = []string{
	"must", "should", "do not", "don't", "always", "never", "decided",
	"required", "make sure",
}

// codeSignals are lexical markers of source code.
var codeSignals = []string{
	"```", "func ", "def ", "class ", "import ", "package ", "return ",
	"const ", "#include",
}

// importanceMarkers earn an explicit bonus when present.
var importanceMarkers = []string{"TODO", "FIXME", "IMPORTANT", "XXX"}

// Classify assigns a content type and importance score to a message.
//
// It is a pure function of the message and the supplied clock reading:
// same inputs, same output, no side effects. Runs in O(len(content)).
func Classify(msg Message, now time.Time) ClassifiedMessage {
	ct := detectContentType(msg)
	return ClassifiedMessage{
		Message:     msg,
		ContentType: ct,
		Importance:  importanceScore(msg, ct, now),
	}
}

// detectContentType picks the content type from role and lexical signals.
// Error signals win over code: a stack trace full of identifiers is a
// diagnostic first.
func detectContentType(msg Message) ContentType {
	if msg.Role == RoleTool {
		return ContentTypeToolResult
	}
	lower := strings.ToLower(msg.Content)
	if containsAny(lower, errorSignals) {
		return ContentTypeError
	}
	if containsAny(msg.Content, codeSignals) {
		return ContentTypeCode
	}
	if containsAny(lower, decisionSignals) {
		return ContentTypeDecision
	}
	return ContentTypeProse
}

// importanceScore combines the weighted factors into a [0,1] score.
func importanceScore(msg Message, ct ContentType, now time.Time) float64 {
	score := recencyWeight*recencyFactor(msg.Timestamp, now) +
		roleFactorWeight*roleFactor(msg.Role) +
		typeFactorWeight*typeFactor(ct) +
		markerBonus(msg.Content)
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// recencyFactor decays exponentially with age, halving every recencyHalfLife.
// Messages from the future (clock skew) count as brand new.
func recencyFactor(ts, now time.Time) float64 {
	age := now.Sub(ts)
	if age <= 0 {
		return 1
	}
	return math.Exp2(-float64(age) / float64(recencyHalfLife))
}

func roleFactor(role Role) float64 {
	switch role {
	case RoleSystem:
		return 1.0
	case RoleUser:
		return 0.8
	case RoleAssistant:
		return 0.6
	case RoleTool:
		return 0.4
	default:
		return 0.5
	}
}

func typeFactor(ct ContentType) float64 {
	switch ct {
	case ContentTypeError:
		return 1.0
	case ContentTypeDecision:
		return 0.9
	case ContentTypeCode:
		return 0.7
	case ContentTypeToolResult:
		return 0.5
	default:
		return 0.4
	}
}

// markerBonus awards a capped bonus for explicit attention markers.
func markerBonus(content string) float64 {
	bonus := 0.0
	for _, m := range importanceMarkers {
		if strings.Contains(content, m) {
			bonus += markerBonusPer
		}
	}
	if bonus > markerBonusCap {
		bonus = markerBonusCap
	}
	return bonus
}

func containsAny(s string, signals []string) bool {
	for _, sig := range signals {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}
