package events

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

const subscriberBuffer = 32

type listener chan *entities.LocatorEvent

// fanout tracks the stream listeners of each session. Both buses deliver
// through it so that slow listeners drop events instead of stalling a
// session or the broker reader.
type fanout struct {
	mu       sync.Mutex
	sessions map[string]map[listener]struct{}
	pending  map[string]*hookCall
	closed   bool

	// onFirst and onEmpty run without mu when a session gains its first
	// listener or loses its last one. While one runs the session is marked
	// pending and other adds for it wait. An onFirst error rejects the
	// listener and every add waiting on it.
	onFirst func(sessionID string) error
	onEmpty func(sessionID string)
}

// hookCall is an in-flight onFirst or onEmpty call
type hookCall struct {
	done chan struct{}
	err  error
}

func newFanout() *fanout {
	return &fanout{
		sessions: make(map[string]map[listener]struct{}),
		pending:  make(map[string]*hookCall),
	}
}

// add registers a listener. On a closed fanout the listener is returned
// already closed and live is false.
func (f *fanout) add(sessionID string) (l listener, live bool, err error) {
	l = make(listener, subscriberBuffer)

	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		if f.closed {
			close(l)
			return l, false, nil
		}
		if set := f.sessions[sessionID]; set != nil {
			set[l] = struct{}{}
			return l, true, nil
		}
		p := f.pending[sessionID]
		if p == nil {
			break
		}
		f.mu.Unlock()
		<-p.done
		f.mu.Lock()
		if p.err != nil {
			return nil, false, p.err
		}
	}

	err = f.transition(sessionID, func() error {
		if f.onFirst == nil {
			return nil
		}
		return f.onFirst(sessionID)
	})
	if err != nil {
		return nil, false, err
	}
	if f.closed {
		close(l)
		return l, false, nil
	}
	f.sessions[sessionID] = map[listener]struct{}{l: {}}
	return l, true, nil
}

// transition runs fn with mu released and sessionID marked pending. mu must
// be held on entry and is held again on return.
func (f *fanout) transition(sessionID string, fn func() error) error {
	p := &hookCall{done: make(chan struct{})}
	f.pending[sessionID] = p
	f.mu.Unlock()
	p.err = fn()
	f.mu.Lock()
	delete(f.pending, sessionID)
	close(p.done)
	return p.err
}

func (f *fanout) remove(sessionID string, l listener) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.sessions[sessionID]
	if !ok {
		return
	}
	if _, ok := set[l]; !ok {
		return
	}
	delete(set, l)
	close(l)
	if len(set) == 0 {
		delete(f.sessions, sessionID)
		if f.onEmpty != nil {
			_ = f.transition(sessionID, func() error {
				f.onEmpty(sessionID)
				return nil
			})
		}
	}
}

func (f *fanout) deliver(event *entities.LocatorEvent) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	delivered := 0
	for l := range f.sessions[event.SessionID] {
		select {
		case l <- event:
			delivered++
		default:
			log.Warn().Str("session_id", event.SessionID).Str("event_id", event.ID).Msg("Locator listener full, dropping event")
		}
	}
	return delivered
}

func (f *fanout) listeners(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions[sessionID])
}

// close closes every listener and rejects later ones
func (f *fanout) close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, set := range f.sessions {
		for l := range set {
			close(l)
		}
		delete(f.sessions, id)
	}
	f.closed = true
}
