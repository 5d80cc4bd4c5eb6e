package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clamp-sh/clamp/internal/archive"
)

type sqlStore struct {
	db *sql.DB
}

// Append stores one eviction entry and assigns its ID.
func (s *sqlStore) Append(ctx context.Context, entry archive.Entry) (archive.Entry, error) {
	clearedAt := entry.ClearedAt
	if clearedAt.IsZero() {
		clearedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO evictions (session_id, message_index, reason, placeholder, cleared_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.SessionID, entry.MessageIndex, entry.Reason, entry.Placeholder,
		clearedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return archive.Entry{}, fmt.Errorf("sqlite: append eviction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return archive.Entry{}, fmt.Errorf("sqlite: last insert id: %w", err)
	}

	entry.ID = id
	entry.ClearedAt = clearedAt
	return entry, nil
}

// Recent returns up to limit entries for the session, oldest first.
func (s *sqlStore) Recent(ctx context.Context, sessionID string, limit int) ([]archive.Entry, error) {
	if sessionID == "" || limit <= 0 {
		return nil, nil
	}

	// Fetch the newest N, then reverse into chronological order.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, message_index, reason, placeholder, cleared_at
		FROM evictions
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query evictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// DeleteOlderThan removes entries cleared before the cutoff.
func (s *sqlStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM evictions WHERE cleared_at < ?",
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete evictions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n, nil
}

// Count returns the total number of stored entries.
func (s *sqlStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evictions").Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count evictions: %w", err)
	}
	return count, nil
}

func scanEntries(rows *sql.Rows) ([]archive.Entry, error) {
	var entries []archive.Entry
	for rows.Next() {
		var (
			entry        archive.Entry
			clearedAtStr string
		)
		if err := rows.Scan(&entry.ID, &entry.SessionID, &entry.MessageIndex,
			&entry.Reason, &entry.Placeholder, &clearedAtStr); err != nil {
			return nil, fmt.Errorf("sqlite: scan eviction: %w", err)
		}

		t, err := time.Parse(time.RFC3339Nano, clearedAtStr)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse cleared_at %q: %w", clearedAtStr, err)
		}
		entry.ClearedAt = t

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan eviction rows: %w", err)
	}

	return entries, nil
}
