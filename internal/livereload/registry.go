package livereload

import "sync"

// Registry is the concurrency-safe set of connected sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add inserts s and reports whether it was accepted. Adding a session with
// an ID already present is a no-op. After CloseAll nothing is accepted.
func (r *Registry) Add(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}

	r.sessions[s.ID()] = s

	return true
}

// Remove deletes s and reports whether it was present.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID()]; !ok {
		return false
	}

	delete(r.sessions, s.ID())

	return true
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Snapshot returns the current members in no particular order.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}

	return out
}

// ForEach calls fn for every session present when ForEach was called.
// fn runs without the lock held, so it may Add or Remove sessions.
func (r *Registry) ForEach(fn func(*Session)) {
	for _, s := range r.Snapshot() {
		fn(s)
	}
}

// CloseAll removes and closes every session and rejects later Adds.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.closed = true
	r.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}
