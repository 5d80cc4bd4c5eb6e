package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clamp-sh/clamp/internal/archive"
	"github.com/clamp-sh/clamp/internal/session"
)

// SessionReaperJob removes sessions that have been idle longer than MaxIdle.
type SessionReaperJob struct {
	Manager      *session.Manager
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*SessionReaperJob)(nil)

// Name implements Job.
func (j *SessionReaperJob) Name() string { return "session_reaper" }

// Schedule implements Job.
func (j *SessionReaperJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run reaps sessions idle longer than MaxIdle.
func (j *SessionReaperJob) Run(_ context.Context) error {
	reaped := j.Manager.ReapIdle(j.MaxIdle)
	if reaped > 0 {
		j.Logger.Info("cron: reaped idle sessions", "count", reaped)
	}
	return nil
}

// CompactionSweepJob runs a budget check over every live session, so a
// session that has gone quiet still gets pruned when tool TTLs lapse or
// messages age out.
type CompactionSweepJob struct {
	Manager      *session.Manager
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/1 * * * *"
}

// Compile-time interface check.
var _ Job = (*CompactionSweepJob)(nil)

// Name implements Job.
func (j *CompactionSweepJob) Name() string { return "compaction_sweep" }

// Schedule implements Job.
func (j *CompactionSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/1 * * * *"
}

// Run checks every live session's budget.
func (j *CompactionSweepJob) Run(ctx context.Context) error {
	compacted := 0
	for _, id := range j.Manager.IDs() {
		if ctx.Err() != nil {
			return fmt.Errorf("cron: compaction sweep cancelled: %w", ctx.Err())
		}
		sess, ok := j.Manager.Get(id)
		if !ok {
			continue
		}
		if report := sess.Compact(ctx); report.Compacted() {
			compacted++
		}
	}
	if compacted > 0 {
		j.Logger.Info("cron: compaction sweep", "sessions_compacted", compacted)
	}
	return nil
}

// ArchiveRetentionJob deletes archived evictions older than Retention.
type ArchiveRetentionJob struct {
	Store        archive.Store
	Retention    time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"
	Clock        func() time.Time
}

// Compile-time interface check.
var _ Job = (*ArchiveRetentionJob)(nil)

// Name implements Job.
func (j *ArchiveRetentionJob) Name() string { return "archive_retention" }

// Schedule implements Job.
func (j *ArchiveRetentionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run deletes entries past the retention window. Retention <= 0 keeps
// everything forever.
func (j *ArchiveRetentionJob) Run(ctx context.Context) error {
	if j.Retention <= 0 {
		return nil
	}
	now := time.Now
	if j.Clock != nil {
		now = j.Clock
	}

	removed, err := j.Store.DeleteOlderThan(ctx, now().Add(-j.Retention))
	if err != nil {
		return fmt.Errorf("cron: archive retention: %w", err)
	}
	if removed > 0 {
		j.Logger.Info("cron: expired archive entries deleted", "count", removed)
	}
	return nil
}
