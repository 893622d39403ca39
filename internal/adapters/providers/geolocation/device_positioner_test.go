package geolocation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
)

func positionCode(t *testing.T, err error) providers.PositionErrorCode {
	t.Helper()
	var pe *providers.PositionError
	require.True(t, errors.As(err, &pe), "expected PositionError, got %v", err)
	return pe.Code
}

func TestUnsupportedPositioner(t *testing.T) {
	p := UnsupportedPositioner{}
	_, err := p.CurrentPosition(context.Background(), providers.PositionOptions{})
	assert.Equal(t, providers.PositionErrorUnsupported, positionCode(t, err))

	h, err := p.Watch(context.Background(), providers.PositionOptions{}, nil, nil)
	assert.Nil(t, h)
	assert.Equal(t, providers.PositionErrorUnsupported, positionCode(t, err))
}

func TestReportedPosition(t *testing.T) {
	ctx := context.Background()
	coord := entities.Coordinate{Lat: 1, Lng: 2}

	got, err := ReportedPosition{Coordinate: &coord}.CurrentPosition(ctx, providers.PositionOptions{})
	require.NoError(t, err)
	assert.Equal(t, coord, got)

	_, err = ReportedPosition{Err: &providers.PositionError{Code: providers.PositionErrorPermissionDenied}}.CurrentPosition(ctx, providers.PositionOptions{})
	assert.Equal(t, providers.PositionErrorPermissionDenied, positionCode(t, err))

	_, err = ReportedPosition{}.CurrentPosition(ctx, providers.PositionOptions{})
	assert.Equal(t, providers.PositionErrorUnsupported, positionCode(t, err))
}

func TestRelayPositioner_WatchReceivesPushes(t *testing.T) {
	r := NewRelayPositioner()
	var mu sync.Mutex
	var positions []entities.Coordinate
	var errs []error

	h, err := r.Watch(context.Background(), providers.PositionOptions{},
		func(c entities.Coordinate) { mu.Lock(); positions = append(positions, c); mu.Unlock() },
		func(e error) { mu.Lock(); errs = append(errs, e); mu.Unlock() },
	)
	require.NoError(t, err)
	assert.Equal(t, 1, r.ActiveWatches())

	assert.Equal(t, 1, r.Push(entities.Coordinate{Lat: 1, Lng: 1}))
	assert.Equal(t, 1, r.PushError(&providers.PositionError{Code: providers.PositionErrorUnavailable}))

	h.Stop()
	h.Stop()
	assert.Equal(t, 0, r.ActiveWatches())
	assert.Equal(t, 0, r.Push(entities.Coordinate{Lat: 2, Lng: 2}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []entities.Coordinate{{Lat: 1, Lng: 1}}, positions)
	assert.Len(t, errs, 1)
}

func TestRelayPositioner_CurrentPositionWaitsForPush(t *testing.T) {
	r := NewRelayPositioner()
	done := make(chan entities.Coordinate, 1)
	go func() {
		c, err := r.CurrentPosition(context.Background(), providers.PositionOptions{})
		if err == nil {
			done <- c
		}
	}()

	require.Eventually(t, func() bool {
		return r.Push(entities.Coordinate{Lat: 5, Lng: 6}) > 0
	}, time.Second, 5*time.Millisecond)

	select {
	case c := <-done:
		assert.Equal(t, entities.Coordinate{Lat: 5, Lng: 6}, c)
	case <-time.After(time.Second):
		t.Fatal("no position delivered")
	}
}

func TestRelayPositioner_CurrentPositionTimeout(t *testing.T) {
	r := NewRelayPositioner()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.CurrentPosition(ctx, providers.PositionOptions{})
	assert.Equal(t, providers.PositionErrorTimeout, positionCode(t, err))
	assert.Equal(t, 0, r.Push(entities.Coordinate{}))
}

func TestRelayPositioner_Detach(t *testing.T) {
	r := NewRelayPositioner()
	_, err := r.Watch(context.Background(), providers.PositionOptions{}, func(entities.Coordinate) {}, nil)
	require.NoError(t, err)

	r.Detach()
	assert.Equal(t, 0, r.ActiveWatches())
	_, err = r.Watch(context.Background(), providers.PositionOptions{}, nil, nil)
	assert.Equal(t, providers.PositionErrorUnsupported, positionCode(t, err))
}
