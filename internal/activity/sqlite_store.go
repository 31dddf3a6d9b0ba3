package activity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SQLStore implements Store on an SQLite table.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a new SQLStore. Call CreateTable before use.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// CreateTable creates the activity_entries table and its indexes.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS activity_entries (
			event_id    TEXT NOT NULL,
			event_type  TEXT NOT NULL,
			occurred_at TEXT NOT NULL,
			view_uid    TEXT NOT NULL,
			role        TEXT NOT NULL,
			scope       TEXT NOT NULL DEFAULT '',
			actor       TEXT NOT NULL DEFAULT '',
			summary     TEXT NOT NULL,
			payload     TEXT,
			PRIMARY KEY (view_uid, occurred_at, event_id)
		);

		CREATE INDEX IF NOT EXISTS idx_activity_time ON activity_entries (occurred_at DESC);
		CREATE INDEX IF NOT EXISTS idx_activity_scope_time ON activity_entries (scope, occurred_at DESC);
	`)
	return err
}

// Timestamps are stored as fixed-width UTC text so they order lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func ts(t time.Time) string { return t.UTC().Format(tsLayout) }

// WriteEntries inserts activity entries.
func (s *SQLStore) WriteEntries(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO activity_entries (
		event_id, event_type, occurred_at, view_uid, role, scope, actor, summary, payload
	) VALUES `)

	args := make([]any, 0, len(entries)*9)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		var payload any
		if len(e.Payload) > 0 {
			payload = string(e.Payload)
		}
		args = append(args,
			e.EventID, e.EventType, ts(e.OccurredAt), e.ViewUID, e.Role, e.Scope, e.Actor, e.Summary, payload,
		)
	}

	b.WriteString(" ON CONFLICT DO NOTHING")
	_, err := s.db.ExecContext(ctx, b.String(), args...)
	return err
}

// Query returns entries with filtering and pagination.
func (s *SQLStore) Query(ctx context.Context, opts QueryOptions) ([]Entry, string, int, error) {
	limit := opts.limit()

	conditions := []string{"1 = 1"}
	var args []any

	if opts.ViewUID != "" {
		conditions = append(conditions, "view_uid = ?")
		args = append(args, opts.ViewUID)
	}
	if opts.Scope != nil {
		conditions = append(conditions, "scope = ?")
		args = append(args, *opts.Scope)
	}
	if len(opts.EventTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(opts.EventTypes)), ", ")
		conditions = append(conditions, fmt.Sprintf("event_type IN (%s)", placeholders))
		for _, et := range opts.EventTypes {
			args = append(args, et)
		}
	}
	if opts.Since != nil {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, ts(*opts.Since))
	}
	if opts.Until != nil {
		conditions = append(conditions, "occurred_at <= ?")
		args = append(args, ts(*opts.Until))
	}
	where := strings.Join(conditions, " AND ")

	// Total ignores the cursor, like the in-memory store.
	var totalCount int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM activity_entries WHERE %s", where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, "", 0, fmt.Errorf("counting activity entries: %w", err)
	}

	if opts.Cursor != "" {
		if cursorTime, err := time.Parse(time.RFC3339Nano, opts.Cursor); err == nil {
			where += " AND occurred_at < ?"
			args = append(args, ts(cursorTime))
		}
	}
	query := fmt.Sprintf(
		`SELECT event_id, event_type, occurred_at, view_uid, role, scope, actor, summary, payload
		FROM activity_entries
		WHERE %s
		ORDER BY occurred_at DESC
		LIMIT ?`, where)
	args = append(args, limit+1) // fetch one extra for cursor

	entries, err := s.scan(ctx, query, args...)
	if err != nil {
		return nil, "", 0, err
	}

	var nextCursor string
	if len(entries) > limit {
		entries = entries[:limit]
		nextCursor = entries[len(entries)-1].OccurredAt.Format(time.RFC3339Nano)
	}
	return entries, nextCursor, totalCount, nil
}

// Search matches summaries case-insensitively.
func (s *SQLStore) Search(ctx context.Context, query string, opts SearchOptions) ([]Entry, int, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	conditions := []string{"summary LIKE '%' || ? || '%'"}
	args := []any{query}
	if opts.Scope != nil {
		conditions = append(conditions, "scope = ?")
		args = append(args, *opts.Scope)
	}
	if opts.Since != nil {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, ts(*opts.Since))
	}
	where := strings.Join(conditions, " AND ")

	var totalCount int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM activity_entries WHERE %s", where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("counting activity entries: %w", err)
	}

	sqlQuery := fmt.Sprintf(
		`SELECT event_id, event_type, occurred_at, view_uid, role, scope, actor, summary, payload
		FROM activity_entries
		WHERE %s
		ORDER BY occurred_at DESC
		LIMIT ?`, where)
	entries, err := s.scan(ctx, sqlQuery, append(args, opts.Limit)...)
	if err != nil {
		return nil, 0, err
	}
	return entries, totalCount, nil
}

func (s *SQLStore) scan(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var occurredAt string
		var payload sql.NullString
		err := rows.Scan(
			&e.EventID, &e.EventType, &occurredAt, &e.ViewUID, &e.Role, &e.Scope, &e.Actor, &e.Summary, &payload,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}
		if e.OccurredAt, err = time.Parse(time.RFC3339Nano, occurredAt); err != nil {
			return nil, fmt.Errorf("activity entry %s: %w", e.EventID, err)
		}
		if payload.Valid {
			e.Payload = []byte(payload.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
