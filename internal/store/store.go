// Package store persists views and serves the record snapshots views are
// materialized over. The query engine never touches a store directly; hosts
// fetch records and view definitions here and hand them to the engine.
package store

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/matthewbaird/taskviews/internal/schema"
	"github.com/matthewbaird/taskviews/internal/task"
	"github.com/matthewbaird/taskviews/internal/view"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNameTaken = errors.New("view name already used in scope")
)

// RecordSource returns the records in a scope. The empty scope is every
// record; a project uid narrows to that project's tasks.
type RecordSource interface {
	FetchRecords(ctx context.Context, scope string) ([]schema.Record, error)
}

// ViewStore reads and writes view definitions. Views are scoped by project
// uid, with "" for views over all tasks.
type ViewStore interface {
	LoadViews(ctx context.Context, scope string) ([]view.View, error)
	GetView(ctx context.Context, uid string) (view.View, error)

	// SaveView inserts or replaces the view with v.UID. A name already used
	// by another view in the scope yields ErrNameTaken. Saving a default
	// view clears the flag on the rest of its scope.
	SaveView(ctx context.Context, v view.View) error

	DeleteView(ctx context.Context, uid string) error

	// SetDefault makes uid the only default view in its scope and returns
	// the updated view.
	SetDefault(ctx context.Context, uid string) (view.View, error)
}

// TaskWriter loads task records, for seeding and fixtures.
type TaskWriter interface {
	PutTasks(ctx context.Context, tasks ...task.Task) error
}

// Store is the full persistence surface of the server.
type Store interface {
	RecordSource
	ViewStore
	TaskWriter
	Close() error
}

// sortViews orders views for display: sort_order, then creation time, then
// uid.
func sortViews(views []view.View) {
	slices.SortFunc(views, func(a, b view.View) int {
		if c := cmp.Compare(a.SortOrder, b.SortOrder); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.UID, b.UID)
	})
}

func inScope(t task.Task, scope string) bool {
	if scope == "" {
		return true
	}
	return t.Project != nil && t.Project.UID == scope
}
