package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/matthewbaird/taskviews/internal/schema"
	"github.com/matthewbaird/taskviews/internal/task"
	"github.com/matthewbaird/taskviews/internal/view"
)

// MemoryStore implements Store in process memory.
// Intended for demos and testing. Nothing survives a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	views map[string]view.View
	tasks []task.Task
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{views: make(map[string]view.View)}
}

func (s *MemoryStore) FetchRecords(_ context.Context, scope string) ([]schema.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []schema.Record
	for _, t := range s.tasks {
		if inScope(t, scope) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) PutTasks(_ context.Context, tasks ...task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tasks {
		replaced := false
		for i := range s.tasks {
			if s.tasks[i].UID == t.UID {
				s.tasks[i] = t
				replaced = true
				break
			}
		}
		if !replaced {
			s.tasks = append(s.tasks, t)
		}
	}
	return nil
}

func (s *MemoryStore) LoadViews(_ context.Context, scope string) ([]view.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scopeLocked(scope), nil
}

func (s *MemoryStore) GetView(_ context.Context, uid string) (view.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.views[uid]
	if !ok {
		return view.View{}, fmt.Errorf("view %s: %w", uid, ErrNotFound)
	}
	return v.Clone(), nil
}

func (s *MemoryStore) SaveView(_ context.Context, v view.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.views {
		if other.UID != v.UID && other.Scope() == v.Scope() && other.Name == v.Name {
			return fmt.Errorf("view '%s': %w", v.Name, ErrNameTaken)
		}
	}
	s.views[v.UID] = v.Clone()
	if v.IsDefault {
		s.applyDefaultLocked(v.UID)
	}
	return nil
}

func (s *MemoryStore) DeleteView(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.views[uid]; !ok {
		return fmt.Errorf("view %s: %w", uid, ErrNotFound)
	}
	delete(s.views, uid)
	return nil
}

func (s *MemoryStore) SetDefault(_ context.Context, uid string) (view.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.views[uid]; !ok {
		return view.View{}, fmt.Errorf("view %s: %w", uid, ErrNotFound)
	}
	s.applyDefaultLocked(uid)
	return s.views[uid].Clone(), nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) applyDefaultLocked(uid string) {
	scoped := s.scopeLocked(s.views[uid].Scope())
	view.ApplyDefault(scoped, uid)
	for _, v := range scoped {
		s.views[v.UID] = v
	}
}

func (s *MemoryStore) scopeLocked(scope string) []view.View {
	out := make([]view.View, 0)
	for _, v := range s.views {
		if v.Scope() == scope {
			out = append(out, v.Clone())
		}
	}
	sortViews(out)
	return out
}
