package ctxengine

import (
	"fmt"
	"strings"
	"time"
)

// fallbackHeader opens the synthetic summary message. Callers match on the
// literal substrings "Summary" and "fallback" to recognise it.
const fallbackHeader = "[Context fallback Summary]"

// MessageFallbackResult is the outcome of collapsing a whole conversation
// into one synthetic summary message.
type MessageFallbackResult struct {
	// Messages holds exactly one synthetic system message.
	Messages []Message

	// UsedFallback is always true; present so callers and reports can
	// distinguish this path without inspecting content.
	UsedFallback bool

	OriginalTokens    int
	TotalTokens       int
	CompressionRatio  float64
	MessagesCompacted int
	Duration          time.Duration
}

// MessageSummarizer is the engine's last resort: when per-message compaction
// cannot bring the conversation under budget, it replaces the entire message
// list with a single condensed system message. The operation is irreversible
// within the session; recovering detail is the long-term memory subsystem's
// job.
type MessageSummarizer struct {
	estimator  TokenEstimator
	compressor *FallbackCompressor
	now        func() time.Time
}

// NewMessageSummarizer creates a summarizer. A nil clock defaults to
// time.Now.
func NewMessageSummarizer(estimator TokenEstimator, now func() time.Time) *MessageSummarizer {
	if now == nil {
		now = time.Now
	}
	return &MessageSummarizer{
		estimator:  estimator,
		compressor: NewFallbackCompressor(estimator),
		now:        now,
	}
}

// Apply collapses the message list into one synthetic summary message
// aimed at targetTokens. It always reports UsedFallback and never fails;
// an empty input produces an empty summary with ratio 0.
func (s *MessageSummarizer) Apply(messages []Message, targetTokens int) MessageFallbackResult {
	start := s.now()
	if targetTokens < 0 {
		targetTokens = 0
	}

	originalTokens := EstimateMessages(s.estimator, messages)
	content := s.render(messages, targetTokens)

	summary := Message{
		Role:           RoleSystem,
		Content:        content,
		Timestamp:      start,
		Index:          0,
		OriginalLength: len(content),
	}

	totalTokens := EstimateMessage(s.estimator, summary)
	ratio := 0.0
	if originalTokens > 0 && totalTokens < originalTokens {
		ratio = 1 - float64(totalTokens)/float64(originalTokens)
	}

	duration := s.now().Sub(start)
	if duration < 0 {
		duration = 0
	}

	return MessageFallbackResult{
		Messages:          []Message{summary},
		UsedFallback:      true,
		OriginalTokens:    originalTokens,
		TotalTokens:       totalTokens,
		CompressionRatio:  ratio,
		MessagesCompacted: len(messages),
		Duration:          duration,
	}
}

// render produces the condensed rendering: a header, then one line per
// original message with its content clipped to a per-message slice of the
// target budget.
func (s *MessageSummarizer) render(messages []Message, targetTokens int) string {
	var b strings.Builder
	b.WriteString(fallbackHeader)
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Compacted %d earlier messages to fit the token budget:\n", len(messages)))

	perLine := perMessageChars(targetTokens, len(messages))
	for i := range messages {
		b.WriteString("- ")
		b.WriteString(string(messages[i].Role))
		b.WriteString(": ")
		b.WriteString(clipLine(messages[i].Content, perLine))
		b.WriteString("\n")
	}

	content := b.String()
	if s.estimator.Estimate(content) <= targetTokens || targetTokens == 0 {
		return content
	}

	// Still over: hard-cut the body, keeping the header intact.
	body := strings.TrimPrefix(content, fallbackHeader)
	headerTokens := s.estimator.Estimate(fallbackHeader)
	cut := s.compressor.AggressiveTruncate(body, maxInt(0, targetTokens-headerTokens))
	return fallbackHeader + cut.Content
}

// perMessageChars divides the character budget across messages, with a floor
// so every line keeps at least a recognisable fragment.
func perMessageChars(targetTokens, count int) int {
	if count == 0 {
		return 0
	}
	per := targetTokens * charsPerTokenApprox / count
	if per < 40 {
		per = 40
	}
	return per
}

// clipLine flattens newlines and clips to n characters with an ellipsis.
func clipLine(content string, n int) string {
	flat := strings.ReplaceAll(content, "\n", " ")
	if len(flat) <= n {
		return flat
	}
	return flat[:n] + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
