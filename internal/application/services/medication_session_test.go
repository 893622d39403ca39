package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carecompanion/internal/application/services"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	apperrors "github.com/zatekoja/carecompanion/pkg/errors"
)

func TestMedicationSession_DebouncesTypedInput(t *testing.T) {
	rec := &countingRecommender{}
	session := services.NewMedicationSession("s1", entities.UserProfile{}, rec, 50*time.Millisecond)
	defer session.Close()

	session.Input("he")
	session.Input("head")
	snap := session.Input("headache")
	assert.True(t, snap.Pending)
	assert.Equal(t, "headache", snap.Text)

	require.Eventually(t, func() bool { return len(rec.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, []string{"headache"}, rec.Calls())
	require.Eventually(t, func() bool { return session.Snapshot().Result != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "headache", session.Snapshot().Result.Query)
	assert.False(t, session.Snapshot().Pending)
}

func TestMedicationSession_SearchNowSatisfiesPendingInput(t *testing.T) {
	rec := &countingRecommender{}
	session := services.NewMedicationSession("s1", entities.UserProfile{}, rec, 50*time.Millisecond)
	defer session.Close()

	session.Input("cough")
	snap, err := session.SearchNow(context.Background(), "cough")
	require.NoError(t, err)
	assert.False(t, snap.Pending)
	assert.Equal(t, uint64(1), snap.Generation)

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, []string{"cough"}, rec.Calls())
}

func TestMedicationSession_NewerSearchWins(t *testing.T) {
	rec := newBlockingRecommender()
	session := services.NewMedicationSession("s1", entities.UserProfile{}, rec, time.Minute)
	defer session.Close()

	var wg sync.WaitGroup
	var errA error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errA = session.SearchNow(context.Background(), "fever")
	}()
	require.Eventually(t, func() bool { return len(rec.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, session.Snapshot().Searching)

	done := make(chan services.MedicationSnapshot, 1)
	go func() {
		snap, err := session.SearchNow(context.Background(), "fever and chills")
		assert.NoError(t, err)
		done <- snap
	}()
	require.Eventually(t, func() bool { return len(rec.Calls()) == 2 }, time.Second, 5*time.Millisecond)

	// Finish the newer request first, then let the stale one return
	close(rec.gate("fever and chills"))
	snapB := <-done
	close(rec.gate("fever"))
	wg.Wait()

	assert.ErrorIs(t, errA, services.ErrSuperseded)
	assert.True(t, apperrors.IsType(errA, apperrors.ErrorTypeCanceled))
	require.NotNil(t, snapB.Result)
	assert.Equal(t, "fever and chills", snapB.Result.Query)

	final := session.Snapshot()
	assert.Equal(t, "fever and chills", final.Result.Query)
	assert.False(t, final.Searching)
	assert.Equal(t, uint64(2), final.Generation)
}

func TestMedicationSession_OnUpdate(t *testing.T) {
	session := services.NewMedicationSession("s1", entities.UserProfile{}, &countingRecommender{}, time.Minute)
	defer session.Close()

	var got []string
	session.OnUpdate(func(snap services.MedicationSnapshot) {
		got = append(got, snap.Result.Query)
	})

	_, err := session.SearchNow(context.Background(), "rash")
	require.NoError(t, err)
	assert.Equal(t, []string{"rash"}, got)
}

func TestMedicationSession_Close(t *testing.T) {
	rec := &countingRecommender{}
	session := services.NewMedicationSession("s1", entities.UserProfile{}, rec, 20*time.Millisecond)

	session.Input("nausea")
	session.Close()
	session.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.Calls())

	_, err := session.SearchNow(context.Background(), "nausea")
	assert.True(t, errors.Is(err, services.ErrSessionClosed))
}

type fakeSession struct {
	mu     sync.Mutex
	active time.Time
	closed int
}

func (s *fakeSession) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *fakeSession) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestSessionRegistry_SweepClosesIdleSessions(t *testing.T) {
	registry := services.NewSessionRegistry[*fakeSession](time.Minute)
	idle := &fakeSession{active: time.Now().Add(-2 * time.Minute)}
	fresh := &fakeSession{active: time.Now()}
	registry.Add("idle", idle)
	registry.Add("fresh", fresh)

	assert.Equal(t, 1, registry.Sweep())
	assert.Equal(t, 1, idle.Closed())
	assert.Equal(t, 0, fresh.Closed())

	_, ok := registry.Get("idle")
	assert.False(t, ok)
	got, ok := registry.Get("fresh")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestSessionRegistry_AddReplacesAndRemoveCloses(t *testing.T) {
	registry := services.NewSessionRegistry[*fakeSession](0)
	first := &fakeSession{}
	second := &fakeSession{}

	registry.Add("a", first)
	registry.Add("a", second)
	assert.Equal(t, 1, first.Closed())
	assert.Equal(t, 1, registry.Len())

	assert.True(t, registry.Remove("a"))
	assert.False(t, registry.Remove("a"))
	assert.Equal(t, 1, second.Closed())
	assert.Equal(t, 0, registry.Sweep(), "a zero ttl never evicts")
}

func TestSessionRegistry_RunClosesAllOnShutdown(t *testing.T) {
	registry := services.NewSessionRegistry[*fakeSession](time.Hour)
	s := &fakeSession{active: time.Now()}
	registry.Add("a", s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		registry.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 1, s.Closed())
	assert.Equal(t, 0, registry.Len())
}
