package transport

import (
	"slices"
	"strings"
	"sync"
)

type SessionRegistry struct {
	mu    sync.RWMutex
	store map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{store: make(map[string]*Session)}
}

func (r *SessionRegistry) Store(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[s.Id] = s
}

func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	val, ok := r.store[id]
	return val, ok
}

func (r *SessionRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, id)
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store)
}

// List returns the sessions ordered by id.
func (r *SessionRegistry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.store))
	for _, s := range r.store {
		sessions = append(sessions, s)
	}
	slices.SortFunc(sessions, func(a, b *Session) int { return strings.Compare(a.Id, b.Id) })
	return sessions
}
