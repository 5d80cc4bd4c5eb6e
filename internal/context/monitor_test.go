package ctxengine_test

import (
	"reflect"
	"strings"
	"testing"
	"time"

	ctxengine "github.com/clamp-sh/clamp/internal/context"
)

func TestEngine_NoOpBelowWarning(t *testing.T) {
	t.Parallel()

	engine := ctxengine.NewEngine(lenEstimator{}, ctxengine.NewToolCallTracker(), ctxengine.EngineConfig{
		Thresholds: ctxengine.Thresholds{WarningTokens: 3000, CriticalTokens: 5000},
	})
	engine.SetClock(fixedClock(baseTime.Add(time.Hour)))
	sink := &collectSink{}
	engine.SetArchiveSink(sink)

	msgs := makeMessages(4)
	before := contentsOf(msgs)

	out, report := engine.CheckAndCompact(msgs)

	if report.Compacted() {
		t.Errorf("report.Compacted() = true below warning, strategies %v", report.StrategiesUsed)
	}
	if report.TokensAfter != report.TokensBefore {
		t.Errorf("tokens changed on a no-op: %d -> %d", report.TokensBefore, report.TokensAfter)
	}
	if !reflect.DeepEqual(contentsOf(out), before) {
		t.Error("message contents changed on a no-op check")
	}
	if len(sink.records) != 0 {
		t.Errorf("archived %d records on a no-op check", len(sink.records))
	}
}

func TestEngine_StructuralOnlyBetweenThresholds(t *testing.T) {
	t.Parallel()

	tracker := ctxengine.NewToolCallTracker()
	tracker.Record("tc-9", "read_file", time.Minute, baseTime)

	engine := ctxengine.NewEngine(lenEstimator{}, tracker, ctxengine.EngineConfig{
		Thresholds: ctxengine.Thresholds{WarningTokens: 1000, CriticalTokens: 100000},
		Pruning: ctxengine.PruningConfig{
			KeepSystemMessages: true,
			KeepUserMessages:   true,
		},
	})
	engine.SetClock(fixedClock(baseTime.Add(10 * time.Minute)))
	sink := &collectSink{}
	engine.SetArchiveSink(sink)

	msgs := makeMessages(6)
	tool := ctxengine.NewMessage(ctxengine.RoleTool, strings.Repeat("r", 500), baseTime, 6)
	tool.ToolCallIDs = []string{"tc-9"}
	msgs = append(msgs, tool)

	out, report := engine.CheckAndCompact(msgs)

	if want := []string{ctxengine.StrategyHardClear}; !reflect.DeepEqual(report.StrategiesUsed, want) {
		t.Errorf("StrategiesUsed = %v, want %v", report.StrategiesUsed, want)
	}
	if report.ClearedCount != 1 {
		t.Errorf("ClearedCount = %d, want 1", report.ClearedCount)
	}
	if want := []string{"tc-9"}; !reflect.DeepEqual(report.ToolCallsCleared, want) {
		t.Errorf("ToolCallsCleared = %v, want %v", report.ToolCallsCleared, want)
	}
	if tracker.Len() != 0 {
		t.Errorf("tracker still holds %d calls after clearing", tracker.Len())
	}
	if len(sink.records) != 1 || sink.records[0].Reason != ctxengine.ReasonToolCallExpired {
		t.Errorf("archive records = %+v, want one tool-expiry record", sink.records)
	}

	cleared := out[6]
	if !cleared.HardCleared {
		t.Error("tool result not hard-cleared")
	}
	if want := "[Tool result cleared: read_file (tc-9), 500 chars removed]"; cleared.Content != want {
		t.Errorf("placeholder = %q, want %q", cleared.Content, want)
	}
	if report.TokensAfter >= report.TokensBefore {
		t.Errorf("tokens did not drop: %d -> %d", report.TokensBefore, report.TokensAfter)
	}
	if report.UsedFallback {
		t.Error("fallback must not run below critical")
	}
}

func TestEngine_CompressesOversizedAtCritical(t *testing.T) {
	t.Parallel()

	engine := ctxengine.NewEngine(ctxengine.NewCharEstimator(4), ctxengine.NewToolCallTracker(), ctxengine.EngineConfig{
		Thresholds:       ctxengine.Thresholds{WarningTokens: 800, CriticalTokens: 1200},
		MaxMessageTokens: 500,
	})
	engine.SetClock(fixedClock(baseTime.Add(time.Hour)))

	msgs := makeMessages(3)
	big := ctxengine.NewMessage(ctxengine.RoleUser, "HEAD"+strings.Repeat("x", 5000)+"TAIL", baseTime.Add(3*time.Minute), 3)
	msgs = append(msgs, big)

	out, report := engine.CheckAndCompact(msgs)

	if want := []string{ctxengine.StrategyTruncate}; !reflect.DeepEqual(report.StrategiesUsed, want) {
		t.Errorf("StrategiesUsed = %v, want %v", report.StrategiesUsed, want)
	}
	if report.UsedFallback {
		t.Error("fallback ran even though compression brought the total under critical")
	}
	if !out[3].SoftTrimmed {
		t.Error("oversized message not marked SoftTrimmed")
	}
	if !strings.Contains(out[3].Content, "truncated") {
		t.Errorf("compressed content lacks truncation marker: %q", out[3].Content)
	}
	if !strings.Contains(out[3].Content, "HEAD") || !strings.Contains(out[3].Content, "TAIL") {
		t.Error("compression dropped the literal head or tail")
	}
	if report.TokensAfter >= 1200 {
		t.Errorf("TokensAfter = %d, still at or above critical", report.TokensAfter)
	}
	if report.CompressionRatio <= 0 {
		t.Errorf("CompressionRatio = %v, want > 0", report.CompressionRatio)
	}
}

func TestEngine_MessageFallbackAsLastResort(t *testing.T) {
	t.Parallel()

	engine := ctxengine.NewEngine(lenEstimator{}, ctxengine.NewToolCallTracker(), ctxengine.EngineConfig{
		Thresholds:           ctxengine.Thresholds{WarningTokens: 1000, CriticalTokens: 2000},
		MaxMessageTokens:     2000,
		FallbackTargetTokens: 500,
	})
	engine.SetClock(fixedClock(baseTime.Add(time.Hour)))
	sink := &collectSink{}
	engine.SetArchiveSink(sink)

	out, report := engine.CheckAndCompact(makeMessages(10))

	if want := []string{ctxengine.StrategyMessageFallback}; !reflect.DeepEqual(report.StrategiesUsed, want) {
		t.Errorf("StrategiesUsed = %v, want %v", report.StrategiesUsed, want)
	}
	if !report.UsedFallback {
		t.Error("UsedFallback = false")
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Role != ctxengine.RoleSystem {
		t.Errorf("role = %q, want %q", out[0].Role, ctxengine.RoleSystem)
	}
	if !strings.Contains(out[0].Content, "Summary") {
		t.Error("synthetic message missing the literal \"Summary\"")
	}
	if report.TokensAfter >= 2000 {
		t.Errorf("TokensAfter = %d, want below critical", report.TokensAfter)
	}

	var fallbackRecords int
	for _, rec := range sink.records {
		if rec.Reason == ctxengine.ReasonFallback {
			fallbackRecords++
		}
	}
	if fallbackRecords != 1 {
		t.Errorf("fallback archive records = %d, want 1", fallbackRecords)
	}
}

func TestEngine_StrategyOrderingStructuralFirst(t *testing.T) {
	t.Parallel()

	tracker := ctxengine.NewToolCallTracker()
	tracker.Record("tc-1", "grep", time.Minute, baseTime)

	engine := ctxengine.NewEngine(lenEstimator{}, tracker, ctxengine.EngineConfig{
		Thresholds:           ctxengine.Thresholds{WarningTokens: 1000, CriticalTokens: 2000},
		MaxMessageTokens:     5000,
		FallbackTargetTokens: 500,
	})
	engine.SetClock(fixedClock(baseTime.Add(time.Hour)))

	msgs := makeMessages(10)
	tool := ctxengine.NewMessage(ctxengine.RoleTool, strings.Repeat("r", 500), baseTime, 10)
	tool.ToolCallIDs = []string{"tc-1"}
	msgs = append(msgs, tool)

	_, report := engine.CheckAndCompact(msgs)

	want := []string{ctxengine.StrategyHardClear, ctxengine.StrategyMessageFallback}
	if !reflect.DeepEqual(report.StrategiesUsed, want) {
		t.Errorf("StrategiesUsed = %v, want %v", report.StrategiesUsed, want)
	}
}

func TestEngine_ConfigDefaultsApplied(t *testing.T) {
	t.Parallel()

	engine := ctxengine.NewEngine(lenEstimator{}, ctxengine.NewToolCallTracker(), ctxengine.EngineConfig{})
	cfg := engine.Config()

	if cfg.Thresholds.WarningTokens != ctxengine.DefaultWarningTokens {
		t.Errorf("WarningTokens = %d, want %d", cfg.Thresholds.WarningTokens, ctxengine.DefaultWarningTokens)
	}
	if cfg.Thresholds.CriticalTokens != ctxengine.DefaultCriticalTokens {
		t.Errorf("CriticalTokens = %d, want %d", cfg.Thresholds.CriticalTokens, ctxengine.DefaultCriticalTokens)
	}
	if cfg.MaxMessageTokens != ctxengine.DefaultMaxMessageTokens {
		t.Errorf("MaxMessageTokens = %d, want %d", cfg.MaxMessageTokens, ctxengine.DefaultMaxMessageTokens)
	}
	if cfg.FallbackTargetTokens != ctxengine.DefaultFallbackTokens {
		t.Errorf("FallbackTargetTokens = %d, want %d", cfg.FallbackTargetTokens, ctxengine.DefaultFallbackTokens)
	}
	if cfg.Pruning.KeepLastNAssistant != ctxengine.DefaultKeepLastNAssistant {
		t.Errorf("KeepLastNAssistant = %d, want %d", cfg.Pruning.KeepLastNAssistant, ctxengine.DefaultKeepLastNAssistant)
	}
}
