package wizard

import (
	"sync"
	"time"
)

// Registry holds live sessions by id.
type Registry[S any] struct {
	mu       sync.Mutex
	sessions map[string]*Session[S]
	now      func() time.Time
}

// NewRegistry constructs an empty Registry. A nil now uses time.Now.
func NewRegistry[S any](now func() time.Time) *Registry[S] {
	if now == nil {
		now = time.Now
	}
	return &Registry[S]{sessions: make(map[string]*Session[S]), now: now}
}

// Add registers s under its id.
func (r *Registry[S]) Add(s *Session[S]) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

// Get returns the session for id. An expired session is discarded and reported as ErrSessionExpired.
func (r *Registry[S]) Get(id string) (*Session[S], error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if !r.now().Before(s.ExpiresAt()) {
		delete(r.sessions, id)
		r.mu.Unlock()
		s.Expire()
		return nil, ErrSessionExpired
	}
	r.mu.Unlock()
	return s, nil
}

// Remove drops id and reports whether it was present.
func (r *Registry[S]) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// Sweep discards expired and terminal sessions and returns how many were removed.
func (r *Registry[S]) Sweep() int {
	r.mu.Lock()
	now := r.now()
	var expired []*Session[S]
	n := 0
	for id, s := range r.sessions {
		switch {
		case !now.Before(s.ExpiresAt()):
			expired = append(expired, s)
		case s.State().terminal():
		default:
			continue
		}
		delete(r.sessions, id)
		n++
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Expire()
	}
	return n
}

// Len returns the number of registered sessions.
func (r *Registry[S]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
