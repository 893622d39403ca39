package geolocation

import (
	"context"
	"errors"
	"sync"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
)

// UnsupportedPositioner is used where no device geolocation exists, such as the CLI.
type UnsupportedPositioner struct{}

var errUnsupported = &providers.PositionError{Code: providers.PositionErrorUnsupported}

// CurrentPosition always fails with PositionErrorUnsupported
func (UnsupportedPositioner) CurrentPosition(ctx context.Context, opts providers.PositionOptions) (entities.Coordinate, error) {
	return entities.Coordinate{}, errUnsupported
}

// Watch always fails with PositionErrorUnsupported
func (UnsupportedPositioner) Watch(ctx context.Context, opts providers.PositionOptions, onPosition func(entities.Coordinate), onError func(error)) (providers.WatchHandle, error) {
	return nil, errUnsupported
}

// ReportedPosition replays a fix, or a failure, that the client obtained from
// its own geolocation API and sent with the request.
type ReportedPosition struct {
	Coordinate *entities.Coordinate
	Err        *providers.PositionError
}

// CurrentPosition returns the reported fix or error
func (p ReportedPosition) CurrentPosition(ctx context.Context, opts providers.PositionOptions) (entities.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return entities.Coordinate{}, &providers.PositionError{Code: providers.PositionErrorTimeout, Message: err.Error()}
	}
	if p.Err != nil {
		return entities.Coordinate{}, p.Err
	}
	if p.Coordinate == nil {
		return entities.Coordinate{}, errUnsupported
	}
	return *p.Coordinate, nil
}

// Watch is not available for a single reported fix
func (p ReportedPosition) Watch(ctx context.Context, opts providers.PositionOptions, onPosition func(entities.Coordinate), onError func(error)) (providers.WatchHandle, error) {
	return nil, errUnsupported
}

type relayResult struct {
	coord entities.Coordinate
	err   error
}

// RelayPositioner turns positions pushed by the client into watch callbacks.
// CurrentPosition waits for the next pushed fix.
type RelayPositioner struct {
	mu       sync.Mutex
	next     uint64
	watches  map[uint64]*relayWatch
	waiters  []chan relayResult
	detached bool
}

// NewRelayPositioner creates an empty relay
func NewRelayPositioner() *RelayPositioner {
	return &RelayPositioner{watches: make(map[uint64]*relayWatch)}
}

type relayWatch struct {
	relay      *RelayPositioner
	id         uint64
	onPosition func(entities.Coordinate)
	onError    func(error)
	once       sync.Once
}

// Stop releases the watch. Calling it again is a no-op.
func (w *relayWatch) Stop() {
	w.once.Do(func() {
		w.relay.mu.Lock()
		delete(w.relay.watches, w.id)
		w.relay.mu.Unlock()
	})
}

// CurrentPosition blocks until the next Push, PushError or ctx expiry
func (r *RelayPositioner) CurrentPosition(ctx context.Context, opts providers.PositionOptions) (entities.Coordinate, error) {
	ch := make(chan relayResult, 1)
	r.mu.Lock()
	if r.detached {
		r.mu.Unlock()
		return entities.Coordinate{}, errUnsupported
	}
	r.waiters = append(r.waiters, ch)
	r.mu.Unlock()

	select {
	case res := <-ch:
		return res.coord, res.err
	case <-ctx.Done():
		r.dropWaiter(ch)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return entities.Coordinate{}, &providers.PositionError{Code: providers.PositionErrorTimeout}
		}
		return entities.Coordinate{}, ctx.Err()
	}
}

// Watch registers callbacks that run on every pushed fix or error
func (r *RelayPositioner) Watch(ctx context.Context, opts providers.PositionOptions, onPosition func(entities.Coordinate), onError func(error)) (providers.WatchHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.detached {
		return nil, errUnsupported
	}
	r.next++
	w := &relayWatch{relay: r, id: r.next, onPosition: onPosition, onError: onError}
	r.watches[w.id] = w
	return w, nil
}

// Push delivers a fix and returns the number of watches and waiters it reached
func (r *RelayPositioner) Push(coord entities.Coordinate) int {
	return r.deliver(relayResult{coord: coord})
}

// PushError delivers a failure to watches and waiters
func (r *RelayPositioner) PushError(err error) int {
	return r.deliver(relayResult{err: err})
}

// ActiveWatches returns the number of registered watches
func (r *RelayPositioner) ActiveWatches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watches)
}

// Detach drops every watch and waiter; later calls report unsupported
func (r *RelayPositioner) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detached = true
	r.watches = make(map[uint64]*relayWatch)
	for _, ch := range r.waiters {
		ch <- relayResult{err: errUnsupported}
	}
	r.waiters = nil
}

func (r *RelayPositioner) deliver(res relayResult) int {
	r.mu.Lock()
	waiters := r.waiters
	r.waiters = nil
	watches := make([]*relayWatch, 0, len(r.watches))
	for _, w := range r.watches {
		watches = append(watches, w)
	}
	r.mu.Unlock()

	for _, ch := range waiters {
		ch <- res
	}
	for _, w := range watches {
		if res.err != nil {
			if w.onError != nil {
				w.onError(res.err)
			}
			continue
		}
		if w.onPosition != nil {
			w.onPosition(res.coord)
		}
	}
	return len(waiters) + len(watches)
}

func (r *RelayPositioner) dropWaiter(ch chan relayResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, w := range r.waiters {
		if w == ch {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			return
		}
	}
}
