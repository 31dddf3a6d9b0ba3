package preview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/taskviews/internal/view"
)

// ErrTooManySessions is returned by Create when the manager is full.
var ErrTooManySessions = errors.New("too many preview sessions")

// Session holds the draft being edited on one socket.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	draft        view.View
	lastActiveAt time.Time
	clock        func() time.Time
}

func newSession(clock func() time.Time) *Session {
	now := clock()
	return &Session{
		ID:           uuid.New().String(),
		CreatedAt:    now,
		lastActiveAt: now,
		clock:        clock,
		draft: view.View{
			Name:     "preview",
			ViewType: view.TypeList,
			Filters:  []view.Filter{},
			Sorts:    []view.SortKey{},
		},
	}
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() view.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// Edit applies fn to the draft. The draft is left unchanged when fn fails.
func (s *Session) Edit(fn func(*view.View) error) (view.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.draft.Clone()
	if err := fn(&next); err != nil {
		return s.draft.Clone(), err
	}
	s.draft = next
	s.lastActiveAt = s.clock()
	return next.Clone(), nil
}

// Touch updates the last activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActiveAt = s.clock()
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, maxAge, idle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.CreatedAt) > maxAge || now.Sub(s.lastActiveAt) > idle
}

// Manager handles session creation, lookup, and cleanup.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxAge      time.Duration
	idleTimeout time.Duration
	maxSessions int
	now         func() time.Time
}

// NewManager creates a session manager with the given limits.
func NewManager(maxAge, idleTimeout time.Duration, maxSessions int) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		maxAge:      maxAge,
		idleTimeout: idleTimeout,
		maxSessions: maxSessions,
		now:         time.Now,
	}
}

// IdleTimeout is how long a session may go without a message.
func (m *Manager) IdleTimeout() time.Duration { return m.idleTimeout }

// Create creates a new session and returns it.
func (m *Manager) Create() (*Session, error) {
	s := newSession(m.now)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return nil, ErrTooManySessions
	}
	m.sessions[s.ID] = s
	return s, nil
}

// Get retrieves a session by ID. Returns nil if not found or expired.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if s.expired(m.now(), m.maxAge, m.idleTimeout) {
		m.Remove(id)
		return nil
	}
	return s
}

// Remove deletes a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes all expired and idle sessions and returns how many.
func (m *Manager) Cleanup() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.expired(now, m.maxAge, m.idleTimeout) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run calls Cleanup every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Cleanup()
		}
	}
}
