package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/taskviews/internal/schema"
	"github.com/matthewbaird/taskviews/internal/task"
	"github.com/matthewbaird/taskviews/internal/view"
)

const (
	viewsTable = "views"
	tasksTable = "tasks"
)

var viewColumns = []string{
	"uid", "name", "project_uid", "view_type", "filters", "sorts", "group_by", "display_settings",
	"is_default", "is_visible_in_nav", "is_public", "sort_order", "template_id", "created_at", "updated_at",
}

// SQLStore implements Store on SQLite. Views keep their filter, sort and
// display lists as JSON text; tasks are stored whole as JSON documents.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at dsn and creates missing tables.
func OpenSQLite(ctx context.Context, dsn string, maxOpenConns int) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if maxOpenConns < 1 {
		maxOpenConns = 1
	}
	db.SetMaxOpenConns(maxOpenConns)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	s := NewSQLStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database. Call Migrate before use.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// DB exposes the handle so other stores can share the connection pool.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Migrate creates the views and tasks tables.
func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS views (
			uid               TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			project_uid       TEXT NOT NULL DEFAULT '',
			view_type         TEXT NOT NULL DEFAULT 'list',
			filters           TEXT NOT NULL DEFAULT '[]',
			sorts             TEXT NOT NULL DEFAULT '[]',
			group_by          TEXT NOT NULL DEFAULT '',
			display_settings  TEXT NOT NULL DEFAULT '{}',
			is_default        INTEGER NOT NULL DEFAULT 0,
			is_visible_in_nav INTEGER NOT NULL DEFAULT 1,
			is_public         INTEGER NOT NULL DEFAULT 0,
			sort_order        INTEGER NOT NULL DEFAULT 0,
			template_id       TEXT NOT NULL DEFAULT '',
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_views_scope_name ON views (project_uid, name);

		CREATE TABLE IF NOT EXISTS tasks (
			uid         TEXT PRIMARY KEY,
			project_uid TEXT NOT NULL DEFAULT '',
			data        TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks (project_uid);
	`)
	if err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

// ── records ─────────────────────────────────────────────────────────────────

func (s *SQLStore) FetchRecords(ctx context.Context, scope string) ([]schema.Record, error) {
	b := builder()
	sel := b.Select("data").From(b.Table(tasksTable)).OrderBy("rowid")
	if scope != "" {
		sel.Where(entsql.EQ("project_uid", scope))
	}
	query, args := sel.Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var out []schema.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		var t task.Task
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("decoding task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutTasks(ctx context.Context, tasks ...task.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ins := builder().Insert(tasksTable).Columns("uid", "project_uid", "data")
	for _, t := range tasks {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encoding task %s: %w", t.UID, err)
		}
		project := ""
		if t.Project != nil {
			project = t.Project.UID
		}
		ins.Values(t.UID, project, string(data))
	}
	ins.OnConflict(entsql.ConflictColumns("uid"), entsql.ResolveWithNewValues())
	query, args := ins.Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("writing tasks: %w", err)
	}
	return nil
}

// ── views ───────────────────────────────────────────────────────────────────

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) LoadViews(ctx context.Context, scope string) ([]view.View, error) {
	return loadViews(ctx, s.db, scope)
}

func (s *SQLStore) GetView(ctx context.Context, uid string) (view.View, error) {
	return getView(ctx, s.db, uid)
}

func (s *SQLStore) SaveView(ctx context.Context, v view.View) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	b := builder()
	query, args := b.Select(entsql.Count("*")).
		From(b.Table(viewsTable)).
		Where(entsql.And(
			entsql.EQ("project_uid", v.ProjectUID),
			entsql.EQ("name", v.Name),
			entsql.NEQ("uid", v.UID),
		)).
		Query()
	var taken int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&taken); err != nil {
		return fmt.Errorf("checking view name: %w", err)
	}
	if taken > 0 {
		return fmt.Errorf("view '%s': %w", v.Name, ErrNameTaken)
	}

	values, err := viewValues(v)
	if err != nil {
		return err
	}
	query, args = b.Insert(viewsTable).
		Columns(viewColumns...).
		Values(values...).
		OnConflict(entsql.ConflictColumns("uid"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("writing view %s: %w", v.UID, err)
	}
	if v.IsDefault {
		if err := applyDefault(ctx, tx, v.ProjectUID, v.UID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) DeleteView(ctx context.Context, uid string) error {
	query, args := builder().Delete(viewsTable).Where(entsql.EQ("uid", uid)).Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting view %s: %w", uid, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("view %s: %w", uid, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) SetDefault(ctx context.Context, uid string) (view.View, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return view.View{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	v, err := getView(ctx, tx, uid)
	if err != nil {
		return view.View{}, err
	}
	if err := applyDefault(ctx, tx, v.ProjectUID, uid); err != nil {
		return view.View{}, err
	}
	if err := tx.Commit(); err != nil {
		return view.View{}, fmt.Errorf("committing default: %w", err)
	}
	v.IsDefault = true
	return v, nil
}

// applyDefault rewrites the default flags of the scope so only uid keeps it.
func applyDefault(ctx context.Context, q querier, scope, uid string) error {
	scoped, err := loadViews(ctx, q, scope)
	if err != nil {
		return err
	}
	flags := make(map[string]bool, len(scoped))
	changed, _ := view.ApplyDefault(scoped, uid)
	for _, v := range scoped {
		flags[v.UID] = v.IsDefault
	}
	for _, c := range changed {
		query, args := builder().Update(viewsTable).
			Set("is_default", flags[c]).
			Where(entsql.EQ("uid", c)).
			Query()
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("updating default flag of %s: %w", c, err)
		}
	}
	return nil
}

func loadViews(ctx context.Context, q querier, scope string) ([]view.View, error) {
	b := builder()
	query, args := b.Select(viewColumns...).
		From(b.Table(viewsTable)).
		Where(entsql.EQ("project_uid", scope)).
		OrderBy("sort_order", "created_at", "uid").
		Query()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying views: %w", err)
	}
	defer rows.Close()

	out := make([]view.View, 0)
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func getView(ctx context.Context, q querier, uid string) (view.View, error) {
	b := builder()
	query, args := b.Select(viewColumns...).
		From(b.Table(viewsTable)).
		Where(entsql.EQ("uid", uid)).
		Query()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return view.View{}, fmt.Errorf("querying view %s: %w", uid, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return view.View{}, err
		}
		return view.View{}, fmt.Errorf("view %s: %w", uid, ErrNotFound)
	}
	return scanView(rows)
}

func viewValues(v view.View) ([]any, error) {
	filters := v.Filters
	if filters == nil {
		filters = []view.Filter{}
	}
	sorts := v.Sorts
	if sorts == nil {
		sorts = []view.SortKey{}
	}
	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("encoding filters: %w", err)
	}
	sortsJSON, err := json.Marshal(sorts)
	if err != nil {
		return nil, fmt.Errorf("encoding sorts: %w", err)
	}
	displayJSON, err := json.Marshal(v.Display)
	if err != nil {
		return nil, fmt.Errorf("encoding display settings: %w", err)
	}
	return []any{
		v.UID, v.Name, v.ProjectUID, string(v.ViewType), string(filtersJSON), string(sortsJSON), v.GroupBy,
		string(displayJSON), v.IsDefault, v.IsVisibleInNav, v.IsPublic, v.SortOrder, v.TemplateID,
		v.CreatedAt.UTC().Format(time.RFC3339Nano), v.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func scanView(rows *sql.Rows) (view.View, error) {
	var v view.View
	var viewType, filters, sorts, display, createdAt, updatedAt string
	err := rows.Scan(
		&v.UID, &v.Name, &v.ProjectUID, &viewType, &filters, &sorts, &v.GroupBy, &display,
		&v.IsDefault, &v.IsVisibleInNav, &v.IsPublic, &v.SortOrder, &v.TemplateID, &createdAt, &updatedAt,
	)
	if err != nil {
		return view.View{}, fmt.Errorf("scanning view: %w", err)
	}
	v.ViewType = view.Type(viewType)
	if err := errors.Join(
		json.Unmarshal([]byte(filters), &v.Filters),
		json.Unmarshal([]byte(sorts), &v.Sorts),
		json.Unmarshal([]byte(display), &v.Display),
	); err != nil {
		return view.View{}, fmt.Errorf("decoding view %s: %w", v.UID, err)
	}
	if v.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return view.View{}, fmt.Errorf("view %s created_at: %w", v.UID, err)
	}
	if v.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return view.View{}, fmt.Errorf("view %s updated_at: %w", v.UID, err)
	}
	return v, nil
}
