package ctxengine_test

import (
	"strings"
	"testing"

	ctxengine "github.com/clamp-sh/clamp/internal/context"
)

func TestCharEstimator_Estimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		charsPerToken float64
		text          string
		want          int
	}{
		{"empty", 4, "", 0},
		{"rounds up exact multiple", 4, "abcd", 2},
		{"rounds up remainder", 4, "abcde", 2},
		{"one char", 4, "a", 1},
		{"zero ratio falls back to default", 0, strings.Repeat("a", 8), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			est := ctxengine.NewCharEstimator(tt.charsPerToken)
			if got := est.Estimate(tt.text); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimateMessage_AddsOverhead(t *testing.T) {
	t.Parallel()

	msg := ctxengine.NewMessage(ctxengine.RoleUser, "abcd", baseTime, 0)
	if got := ctxengine.EstimateMessage(lenEstimator{}, msg); got != 8 {
		t.Errorf("EstimateMessage = %d, want 8 (content 4 + overhead 4)", got)
	}
}

func TestEstimateMessages_SumsAll(t *testing.T) {
	t.Parallel()

	msgs := []ctxengine.Message{
		ctxengine.NewMessage(ctxengine.RoleUser, "abcd", baseTime, 0),
		ctxengine.NewMessage(ctxengine.RoleAssistant, "ab", baseTime, 1),
	}
	if got := ctxengine.EstimateMessages(lenEstimator{}, msgs); got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
	if got := ctxengine.EstimateMessages(lenEstimator{}, nil); got != 0 {
		t.Errorf("EstimateMessages(nil) = %d, want 0", got)
	}
}
