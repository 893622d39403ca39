package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/pkg/async"
	apperrors "github.com/zatekoja/carecompanion/pkg/errors"
)

// DefaultDebounce is the quiet period before typed text is searched
const DefaultDebounce = 400 * time.Millisecond

// ErrSuperseded is returned for a search whose result was dropped because a
// newer search began
var ErrSuperseded = apperrors.NewCanceledError("superseded by a newer search")

// ErrSessionClosed is returned by commands on a closed session
var ErrSessionClosed = apperrors.NewNotFoundError("session closed")

// MedicationSnapshot is a read-only view of a medication session
type MedicationSnapshot struct {
	SessionID  string          `json:"session_id"`
	Text       string          `json:"text"`
	Searching  bool            `json:"searching"`
	Pending    bool            `json:"pending"`
	Result     *Recommendation `json:"result,omitempty"`
	Generation uint64          `json:"generation"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// MedicationSession owns the search state of one user. Typed input is
// debounced; an explicit search runs at once and satisfies any pending input.
// Only the newest search may write its result.
type MedicationSession struct {
	id          string
	profile     entities.UserProfile
	recommender Recommender

	baseCtx context.Context
	cancel  context.CancelFunc
	latest  async.Latest
	input   *async.Debouncer[string]

	mu         sync.Mutex
	text       string
	inFlight   int
	result     *Recommendation
	applied    uint64
	updatedAt  time.Time
	lastActive time.Time
	closed     bool
	onUpdate   func(MedicationSnapshot)
}

// NewMedicationSession creates a session. A zero debounce uses DefaultDebounce.
func NewMedicationSession(id string, profile entities.UserProfile, recommender Recommender, debounce time.Duration) *MedicationSession {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &MedicationSession{
		id:          id,
		profile:     profile,
		recommender: recommender,
		baseCtx:     ctx,
		cancel:      cancel,
		lastActive:  time.Now(),
	}
	s.input = async.NewDebouncer(debounce, func(text string) {
		_, _ = s.run(s.baseCtx, text)
	})
	return s
}

// ID returns the session id
func (s *MedicationSession) ID() string { return s.id }

// OnUpdate registers a callback invoked after every applied result
func (s *MedicationSession) OnUpdate(fn func(MedicationSnapshot)) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

// Input records typed text and schedules a debounced search
func (s *MedicationSession) Input(text string) MedicationSnapshot {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.Snapshot()
	}
	s.text = text
	s.lastActive = time.Now()
	s.mu.Unlock()

	s.input.Trigger(text)
	return s.Snapshot()
}

// SearchNow runs the search immediately and marks pending input as handled
func (s *MedicationSession) SearchNow(ctx context.Context, text string) (MedicationSnapshot, error) {
	s.input.Cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return MedicationSnapshot{}, ErrSessionClosed
	}
	s.text = text
	s.lastActive = time.Now()
	s.mu.Unlock()

	return s.run(ctx, text)
}

func (s *MedicationSession) run(parent context.Context, text string) (MedicationSnapshot, error) {
	ctx, ticket := s.latest.Begin(parent)
	defer ticket.Done()

	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()

	rec, err := s.recommender.Recommend(ctx, RecommendRequest{Text: text, Profile: s.profile, SessionID: s.id})

	s.mu.Lock()
	s.inFlight--
	if !ticket.Current() || s.closed {
		s.mu.Unlock()
		return s.Snapshot(), ErrSuperseded
	}
	if err != nil {
		s.mu.Unlock()
		if errors.Is(ctx.Err(), context.Canceled) {
			return s.Snapshot(), ErrSuperseded
		}
		return s.Snapshot(), err
	}
	s.result = rec
	s.applied = ticket.Generation()
	s.updatedAt = time.Now()
	onUpdate := s.onUpdate
	s.mu.Unlock()

	snap := s.Snapshot()
	if onUpdate != nil {
		onUpdate(snap)
	}
	return snap, nil
}

// Snapshot returns the current state
func (s *MedicationSession) Snapshot() MedicationSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MedicationSnapshot{
		SessionID:  s.id,
		Text:       s.text,
		Searching:  s.inFlight > 0,
		Pending:    s.input.Pending(),
		Result:     s.result,
		Generation: s.applied,
		UpdatedAt:  s.updatedAt,
	}
}

// LastActive returns the time of the last command
func (s *MedicationSession) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close stops pending input and drops any in-flight search. It is idempotent.
func (s *MedicationSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.input.Stop()
	s.latest.Invalidate()
	s.cancel()
}
