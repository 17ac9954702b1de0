package session

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/funvibe/loopviz/internal/scenario"
	"github.com/google/uuid"
)

// Session is a controller registered under an id.
type Session struct {
	ID      string
	Created time.Time
	*Controller

	seq uint64
}

// Store manages live sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     []Option
	nextSeq  atomic.Uint64
}

// NewStore creates an empty store. opts apply to every created controller.
func NewStore(opts ...Option) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		opts:     opts,
	}
}

// Create opens a session on s.
func (s *Store) Create(sc *scenario.Scenario) *Session {
	session := &Session{
		ID:         uuid.NewString(),
		Created:    time.Now(),
		Controller: NewController(sc, s.opts...),
		seq:        s.nextSeq.Add(1),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

// Get retrieves a session by ID.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	return session, ok
}

// Destroy stops and removes a session. It reports whether the id existed.
func (s *Store) Destroy(id string) bool {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		session.Pause()
	}
	return ok
}

// List returns the sessions oldest first.
func (s *Store) List() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
