package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Session is the part of a session controller the registry needs
type Session interface {
	LastActive() time.Time
	Close()
}

// SessionRegistry holds live sessions and closes the ones left idle past the TTL
type SessionRegistry[S Session] struct {
	mu       sync.Mutex
	sessions map[string]S
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionRegistry creates a registry. A zero ttl disables eviction.
func NewSessionRegistry[S Session](ttl time.Duration) *SessionRegistry[S] {
	return &SessionRegistry[S]{
		sessions: make(map[string]S),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Add stores s under id, closing any session it replaces
func (r *SessionRegistry[S]) Add(id string, s S) {
	r.mu.Lock()
	old, ok := r.sessions[id]
	r.sessions[id] = s
	r.mu.Unlock()

	if ok {
		old.Close()
	}
}

// Get returns the session stored under id
func (r *SessionRegistry[S]) Get(id string) (S, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes and forgets the session. It reports whether it existed.
func (r *SessionRegistry[S]) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// Len returns the number of live sessions
func (r *SessionRegistry[S]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle longer than the TTL and returns how many it closed
func (r *SessionRegistry[S]) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []S
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then closes every session
func (r *SessionRegistry[S]) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				log.Debug().Int("count", n).Msg("Evicted idle sessions")
			}
		}
	}
}

// CloseAll closes and forgets every session
func (r *SessionRegistry[S]) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]S)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
