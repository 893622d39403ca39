// Package async provides the small scheduling primitives the search sessions
// are built on: a most-recent-wins request token and a trailing debouncer.
package async

import (
	"context"
	"sync"
)

// Latest hands out generation-stamped tickets. Beginning a new request cancels
// the context of the previous one, and only the newest ticket reports Current.
type Latest struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// Ticket identifies one request issued by Latest
type Ticket struct {
	owner *Latest
	gen   uint64
}

// Begin starts a new request derived from parent and supersedes any request
// still in flight.
func (l *Latest) Begin(parent context.Context) (context.Context, Ticket) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel
	return ctx, Ticket{owner: l, gen: l.gen}
}

// Invalidate cancels the in-flight request, if any, without starting a new one.
func (l *Latest) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
}

// Generation returns the number of the newest ticket
func (l *Latest) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// Current reports whether no newer request has begun since t was issued.
func (t Ticket) Current() bool {
	if t.owner == nil {
		return false
	}
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	return t.owner.gen == t.gen
}

// Done releases the ticket's context if it is still the newest request.
func (t Ticket) Done() {
	if t.owner == nil {
		return
	}
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.owner.gen == t.gen && t.owner.cancel != nil {
		t.owner.cancel()
		t.owner.cancel = nil
	}
}

// Generation returns the ticket's generation number
func (t Ticket) Generation() uint64 {
	return t.gen
}
