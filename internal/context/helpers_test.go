package ctxengine_test

import (
	"fmt"
	"strings"
	"time"

	ctxengine "github.com/clamp-sh/clamp/internal/context"
)

// baseTime anchors every deterministic clock in this package's tests.
var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// lenEstimator counts one token per character, making budget math exact.
type lenEstimator struct{}

func (lenEstimator) Estimate(text string) int { return len(text) }

// collectSink records archive records for assertions.
type collectSink struct {
	records []ctxengine.ArchiveRecord
}

func (s *collectSink) Archive(rec ctxengine.ArchiveRecord) {
	s.records = append(s.records, rec)
}

// fixedClock returns a clock frozen at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// makeMessages creates n alternating user/assistant messages of ~500 chars
// each, one minute apart, oldest first.
func makeMessages(n int) []ctxengine.Message {
	msgs := make([]ctxengine.Message, n)
	for i := range msgs {
		role := ctxengine.RoleUser
		if i%2 == 1 {
			role = ctxengine.RoleAssistant
		}
		prefix := fmt.Sprintf("msg-%d ", i)
		content := prefix + strings.Repeat("x", 500-len(prefix))
		msgs[i] = ctxengine.NewMessage(role, content, baseTime.Add(time.Duration(i)*time.Minute), i)
	}
	return msgs
}

// contentsOf extracts the content strings for sequence comparisons.
func contentsOf(msgs []ctxengine.Message) []string {
	out := make([]string, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].Content
	}
	return out
}
