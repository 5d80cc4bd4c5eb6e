package cron

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/clamp-sh/clamp/internal/archive"
	ctxengine "github.com/clamp-sh/clamp/internal/context"
	"github.com/clamp-sh/clamp/internal/provider"
	"github.com/clamp-sh/clamp/internal/session"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// lenEstimator counts one token per character.
type lenEstimator struct{}

func (lenEstimator) Estimate(text string) int { return len(text) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManager(clock func() time.Time) *session.Manager {
	return session.NewManager(session.ManagerOptions{
		Estimator: lenEstimator{},
		Engine: ctxengine.EngineConfig{
			Thresholds:       ctxengine.Thresholds{WarningTokens: 500, CriticalTokens: 100000},
			Pruning:          ctxengine.PruningConfig{KeepSystemMessages: true, KeepUserMessages: true},
			MaxMessageTokens: 100000,
		},
		Logger: testLogger(),
		Clock:  clock,
	})
}

func TestSessionReaperJob(t *testing.T) {
	t.Parallel()

	now := baseTime
	clock := func() time.Time { return now }
	mgr := testManager(clock)
	mgr.GetOrCreate("idle")
	now = baseTime.Add(2 * time.Hour)

	j := &SessionReaperJob{Manager: mgr, MaxIdle: time.Hour, Logger: testLogger()}

	if j.Name() != "session_reaper" {
		t.Errorf("name = %q, want session_reaper", j.Name())
	}
	if j.Schedule() != "*/5 * * * *" {
		t.Errorf("schedule = %q, want */5 * * * *", j.Schedule())
	}

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mgr.Len() != 0 {
		t.Errorf("Len = %d, want 0 after reaping", mgr.Len())
	}
}

func TestCompactionSweepJob(t *testing.T) {
	t.Parallel()

	now := baseTime
	clock := func() time.Time { return now }
	mgr := testManager(clock)

	sess := mgr.GetOrCreate("sess-1")
	sess.AppendToolResult(provider.ToolCall{ID: "tc-1", Name: "read_file"}, strings.Repeat("r", 600), time.Minute)
	now = baseTime.Add(10 * time.Minute)

	j := &CompactionSweepJob{Manager: mgr, Logger: testLogger()}

	if j.Schedule() != "*/1 * * * *" {
		t.Errorf("schedule = %q, want */1 * * * *", j.Schedule())
	}

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	msgs := sess.Messages()
	if len(msgs) != 1 || !msgs[0].HardCleared {
		t.Errorf("expected the sweep to clear the expired tool result, got %+v", msgs)
	}
}

func TestCompactionSweepJob_Cancelled(t *testing.T) {
	t.Parallel()

	mgr := testManager(nil)
	mgr.GetOrCreate("sess-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j := &CompactionSweepJob{Manager: mgr, Logger: testLogger()}
	if err := j.Run(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestArchiveRetentionJob(t *testing.T) {
	t.Parallel()

	store := archive.NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := store.Append(ctx, archive.Entry{
			SessionID: "sess-1",
			ClearedAt: baseTime.Add(time.Duration(i) * 24 * time.Hour),
		}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	j := &ArchiveRetentionJob{
		Store:     store,
		Retention: 36 * time.Hour,
		Logger:    testLogger(),
		Clock:     func() time.Time { return baseTime.Add(3 * 24 * time.Hour) },
	}

	if j.Name() != "archive_retention" {
		t.Errorf("name = %q, want archive_retention", j.Name())
	}
	if j.Schedule() != "0 * * * *" {
		t.Errorf("schedule = %q, want 0 * * * *", j.Schedule())
	}

	if err := j.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	count, _ := store.Count(ctx)
	if count != 1 {
		t.Errorf("Count = %d, want 1 surviving entry", count)
	}
}

func TestArchiveRetentionJob_DisabledRetention(t *testing.T) {
	t.Parallel()

	store := archive.NewMemoryStore()
	if _, err := store.Append(context.Background(), archive.Entry{ClearedAt: baseTime}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	j := &ArchiveRetentionJob{Store: store, Retention: 0, Logger: testLogger()}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	count, _ := store.Count(context.Background())
	if count != 1 {
		t.Errorf("Count = %d, want 1 (retention disabled)", count)
	}
}
