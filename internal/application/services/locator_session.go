package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	"github.com/zatekoja/carecompanion/internal/domain/repositories"
	"github.com/zatekoja/carecompanion/internal/infrastructure/observability"
	"github.com/zatekoja/carecompanion/pkg/async"
	apperrors "github.com/zatekoja/carecompanion/pkg/errors"
)

const (
	MessageNoPlaceMatch   = "Could not find that location. Showing general results."
	MessageSearchFailed   = "Unable to fetch location information right now. Showing default recommendations."
	MessageNoGeolocation  = "Geolocation is not supported on this device."
	MessageTrackingFailed = "Unable to start tracking your location."
)

// LocatorDeps are the collaborators shared by every locator session
type LocatorDeps struct {
	Resolver  *LocationResolver
	Source    *FacilitySource
	Ranker    *FacilityRanker
	Catalog   repositories.CatalogRepository
	Bus       providers.LocatorEventBus
	Analytics *SearchAnalyticsService
}

// LocatorSnapshot is a read-only view of a locator session
type LocatorSnapshot struct {
	SessionID  string                   `json:"session_id"`
	Location   entities.LocationState   `json:"location"`
	Filters    entities.FacilityFilters `json:"filters"`
	Facilities []entities.Facility      `json:"facilities"`
	DataSource entities.FacilitySource  `json:"data_source,omitempty"`
	Searching  bool                     `json:"searching"`
	Advisories []string                 `json:"advisories"`
	Generation uint64                   `json:"generation"`
}

// SearchRequest is an explicit locator search. An empty Query searches
// around the current location.
type SearchRequest struct {
	Query   string
	Filters *entities.FacilityFilters
}

// LocatorSession owns one user's locator state: the resolved location, the
// raw candidate facilities and at most one live tracking watch. Explicit
// searches and tracking refreshes share one most-recent-wins token; only
// explicit searches count toward Searching.
type LocatorSession struct {
	id         string
	deps       LocatorDeps
	profile    entities.UserProfile
	positioner providers.DevicePositioner

	baseCtx context.Context
	cancel  context.CancelFunc
	latest  async.Latest

	mu         sync.Mutex
	location   entities.LocationState
	filters    entities.FacilityFilters
	raw        []entities.Facility
	source     entities.FacilitySource
	results    []entities.Facility
	explicit   int
	applied    uint64
	clientIP   string
	watch      providers.WatchHandle
	lastActive time.Time
	closed     bool
}

// NewLocatorSession creates a session. positioner backs live tracking and
// may be nil when the client cannot stream positions.
func NewLocatorSession(id string, profile entities.UserProfile, positioner providers.DevicePositioner, deps LocatorDeps) *LocatorSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &LocatorSession{
		id:         id,
		deps:       deps,
		profile:    profile,
		positioner: positioner,
		baseCtx:    ctx,
		cancel:     cancel,
		results:    []entities.Facility{},
		lastActive: time.Now(),
	}
}

// ID returns the session id
func (s *LocatorSession) ID() string { return s.id }

// RequestLocation resolves a one-shot location through the fallback chain
// and searches around it. Live tracking is stopped first.
func (s *LocatorSession) RequestLocation(ctx context.Context, positioner providers.DevicePositioner) (LocatorSnapshot, error) {
	if err := s.touch(); err != nil {
		return LocatorSnapshot{}, err
	}
	s.StopTracking()

	if positioner == nil {
		positioner = s.positioner
	}
	return s.runExplicit(ctx, func(ctx context.Context, ticket async.Ticket) error {
		res := s.deps.Resolver.RequestOneShotLocation(ctx, positioner)
		if !ticket.Current() {
			return ErrSuperseded
		}

		s.mu.Lock()
		s.location.Current = coordPtr(res.Coordinate)
		s.location.Source = res.Source
		s.location.LastError = res.Advisory
		s.location.SearchedPlaceName = ""
		s.mu.Unlock()

		return s.refresh(ctx, ticket, res.Coordinate, res.Advisory)
	})
}

// Search geocodes the query, if any, and fetches facilities around the
// result. Geocoder failures fall back to the seed hospital list.
func (s *LocatorSession) Search(ctx context.Context, req SearchRequest) (LocatorSnapshot, error) {
	if err := s.touch(); err != nil {
		return LocatorSnapshot{}, err
	}
	if req.Filters != nil {
		s.mu.Lock()
		s.filters = *req.Filters
		s.mu.Unlock()
	}

	return s.runExplicit(ctx, func(ctx context.Context, ticket async.Ticket) error {
		return s.search(ctx, ticket, strings.TrimSpace(req.Query))
	})
}

func (s *LocatorSession) search(ctx context.Context, ticket async.Ticket, query string) error {
	start := time.Now()

	s.mu.Lock()
	center := s.location.Current
	s.mu.Unlock()

	if query == "" {
		if center == nil {
			return s.applySeed(ticket, "", query, start)
		}
		return s.trackedRefresh(ctx, ticket, *center, "", query, start)
	}

	place, err := s.deps.Resolver.GeocodeFreeText(ctx, query)
	if !ticket.Current() {
		return ErrSuperseded
	}
	switch {
	case err != nil:
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("query", query).Msg("Geocoding failed, showing seed hospitals")
		return s.applySeed(ticket, MessageSearchFailed, query, start)
	case place == nil:
		if center == nil {
			return s.applySeed(ticket, MessageNoPlaceMatch, query, start)
		}
		return s.trackedRefresh(ctx, ticket, *center, MessageNoPlaceMatch, query, start)
	}

	s.mu.Lock()
	s.location.Current = coordPtr(place.Coordinates)
	s.location.Source = entities.LocationSourceGeocode
	s.location.SearchedPlaceName = place.DisplayName
	s.mu.Unlock()

	return s.trackedRefresh(ctx, ticket, place.Coordinates, "", query, start)
}

func (s *LocatorSession) trackedRefresh(ctx context.Context, ticket async.Ticket, center entities.Coordinate, message, query string, start time.Time) error {
	err := s.refresh(ctx, ticket, center, message)
	if err == nil {
		s.trackSearch(query, s.Snapshot(), start)
	}
	return err
}

// runExplicit runs fn as an explicit request. The snapshot is taken after the
// request is finished, so Searching only reports requests still in flight.
func (s *LocatorSession) runExplicit(ctx context.Context, fn func(context.Context, async.Ticket) error) (LocatorSnapshot, error) {
	ctx, ticket := s.begin(ctx, false)
	err := fn(ctx, ticket)
	s.finish(ticket, false)

	if errors.Is(err, ErrSessionClosed) {
		return LocatorSnapshot{}, err
	}
	return s.Snapshot(), err
}

// SetClientIP records the end user's public address for network location
// lookups made on their behalf, including those after a tracking failure.
func (s *LocatorSession) SetClientIP(ip string) {
	s.mu.Lock()
	s.clientIP = ip
	s.mu.Unlock()
}

func (s *LocatorSession) withClient(ctx context.Context) context.Context {
	s.mu.Lock()
	ip := s.clientIP
	s.mu.Unlock()
	if ip == "" {
		return ctx
	}
	return providers.WithClientIP(ctx, ip)
}

// UpdateFilters re-ranks the current candidates without fetching
func (s *LocatorSession) UpdateFilters(filters entities.FacilityFilters) (LocatorSnapshot, error) {
	if err := s.touch(); err != nil {
		return LocatorSnapshot{}, err
	}
	s.mu.Lock()
	s.filters = filters
	s.rerankLocked()
	s.mu.Unlock()
	return s.Snapshot(), nil
}

// StartTracking opens the live watch. Starting while tracking is a no-op.
func (s *LocatorSession) StartTracking() (LocatorSnapshot, error) {
	if err := s.touch(); err != nil {
		return LocatorSnapshot{}, err
	}

	s.mu.Lock()
	if s.watch != nil {
		s.mu.Unlock()
		return s.Snapshot(), nil
	}
	if s.positioner == nil {
		s.location.LastError = MessageNoGeolocation
		s.mu.Unlock()
		return s.Snapshot(), apperrors.NewUnavailableError(MessageNoGeolocation, nil)
	}

	handle, err := s.positioner.Watch(s.baseCtx, TrackingOptions(), s.onPosition, s.onWatchError)
	if err != nil {
		s.location.LastError = AdvisoryForPositionError(err)
		s.mu.Unlock()
		return s.Snapshot(), apperrors.NewUnavailableError(MessageTrackingFailed, err)
	}
	s.watch = handle
	s.location.IsLiveTracking = true
	s.location.LastError = ""
	s.mu.Unlock()

	return s.Snapshot(), nil
}

// StopTracking releases the live watch. It is safe to call at any time.
func (s *LocatorSession) StopTracking() LocatorSnapshot {
	s.mu.Lock()
	stopped := s.stopTrackingLocked()
	s.mu.Unlock()

	if stopped {
		s.publish(entities.LocatorEventTrackingStopped, nil, 0, "")
	}
	return s.Snapshot()
}

func (s *LocatorSession) stopTrackingLocked() bool {
	if s.watch == nil {
		s.location.IsLiveTracking = false
		return false
	}
	s.watch.Stop()
	s.watch = nil
	s.location.IsLiveTracking = false
	return true
}

// onPosition handles a tracking update: move the location, then refresh
// facilities silently
func (s *LocatorSession) onPosition(coord entities.Coordinate) {
	s.mu.Lock()
	if s.closed || s.watch == nil {
		s.mu.Unlock()
		return
	}
	s.location.Current = coordPtr(coord)
	s.location.Source = entities.LocationSourceDevice
	s.location.SearchedPlaceName = ""
	s.rerankLocked()
	s.lastActive = time.Now()
	s.mu.Unlock()

	s.publish(entities.LocatorEventLocationUpdated, coordPtr(coord), 0, "")
	s.silentRefresh(coord, "")
}

// onWatchError stops tracking and runs the network then default chain once
func (s *LocatorSession) onWatchError(err error) {
	s.mu.Lock()
	if s.closed || s.watch == nil {
		s.mu.Unlock()
		return
	}
	s.stopTrackingLocked()
	s.location.LastError = AdvisoryTrackingLost
	s.mu.Unlock()

	observability.LoggerFromContext(s.baseCtx).Warn().Err(err).Str("session_id", s.id).Msg("Live tracking failed")
	s.publish(entities.LocatorEventTrackingStopped, nil, 0, AdvisoryTrackingLost)

	res := s.deps.Resolver.RecoverFromWatchError(s.withClient(s.baseCtx))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.location.Current = coordPtr(res.Coordinate)
	s.location.Source = res.Source
	s.location.LastError = res.Advisory
	s.mu.Unlock()

	s.silentRefresh(res.Coordinate, res.Advisory)
}

func (s *LocatorSession) silentRefresh(center entities.Coordinate, message string) {
	ctx, ticket := s.begin(s.baseCtx, true)
	defer s.finish(ticket, true)

	if err := s.refresh(ctx, ticket, center, message); err == nil {
		snap := s.Snapshot()
		s.publish(entities.LocatorEventFacilitiesRefreshed, snap.Location.Current, len(snap.Facilities), message)
	}
}

// refresh fetches around center and applies the result if ticket is still
// the newest request
func (s *LocatorSession) refresh(ctx context.Context, ticket async.Ticket, center entities.Coordinate, message string) error {
	found, source := s.deps.Source.Fetch(ctx, center)
	if !ticket.Current() {
		return ErrSuperseded
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.raw = found
	s.source = source
	s.location.LastError = message
	s.applied = ticket.Generation()
	s.rerankLocked()
	s.mu.Unlock()
	return nil
}

func (s *LocatorSession) applySeed(ticket async.Ticket, message, query string, start time.Time) error {
	var seed []entities.Facility
	if s.deps.Catalog != nil {
		seed = s.deps.Catalog.Hospitals()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.raw = seed
	s.source = entities.FacilitySourceSeed
	s.location.LastError = message
	s.applied = ticket.Generation()
	s.rerankLocked()
	s.mu.Unlock()

	s.trackSearch(query, s.Snapshot(), start)
	return nil
}

// rerankLocked ranks raw against the current location, or the default when
// none is known
func (s *LocatorSession) rerankLocked() {
	center := s.deps.Resolver.DefaultLocation()
	if s.location.Current != nil {
		center = *s.location.Current
	}
	s.results = s.deps.Ranker.Rank(s.raw, center, s.filters, s.profile)
}

func (s *LocatorSession) begin(ctx context.Context, silent bool) (context.Context, async.Ticket) {
	ctx, ticket := s.latest.Begin(s.withClient(ctx))
	if !silent {
		s.mu.Lock()
		s.explicit++
		s.mu.Unlock()
	}
	return ctx, ticket
}

func (s *LocatorSession) finish(ticket async.Ticket, silent bool) {
	if !silent {
		s.mu.Lock()
		s.explicit--
		s.mu.Unlock()
	}
	ticket.Done()
}

func (s *LocatorSession) touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.lastActive = time.Now()
	return nil
}

func (s *LocatorSession) publish(eventType entities.LocatorEventType, location *entities.Coordinate, count int, message string) {
	if s.deps.Bus == nil {
		return
	}
	event := entities.NewLocatorEvent(s.id, eventType, location)
	event.FacilityCount = count
	event.Message = message
	if err := s.deps.Bus.Publish(s.baseCtx, event); err != nil {
		observability.LoggerFromContext(s.baseCtx).Debug().Err(err).Str("session_id", s.id).Msg("Failed to publish locator event")
	}
}

func (s *LocatorSession) trackSearch(query string, snap LocatorSnapshot, start time.Time) {
	event := &entities.SearchEvent{
		ID:              uuid.NewString(),
		Kind:            entities.SearchKindFacility,
		Query:           query,
		NormalizedQuery: strings.ToLower(query),
		DetectedIntent:  snap.Filters.SpecialtyTerm(),
		ResultCount:     len(snap.Facilities),
		LatencyMs:       int(time.Since(start).Milliseconds()),
		DataSource:      string(snap.DataSource),
		SessionID:       s.id,
	}
	if snap.Location.Current != nil {
		lat, lng := snap.Location.Current.Lat, snap.Location.Current.Lng
		event.UserLatitude = &lat
		event.UserLongitude = &lng
	}
	s.deps.Analytics.TrackSearch(s.baseCtx, event)
}

// Snapshot returns the current state
func (s *LocatorSession) Snapshot() LocatorSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	location := s.location
	if location.Current != nil {
		location.Current = coordPtr(*location.Current)
	}
	facilities := make([]entities.Facility, len(s.results))
	for i, f := range s.results {
		facilities[i] = f.Clone()
	}
	advisories := ProfileAdvisories(s.profile)
	if advisories == nil {
		advisories = []string{}
	}
	return LocatorSnapshot{
		SessionID:  s.id,
		Location:   location,
		Filters:    s.filters,
		Facilities: facilities,
		DataSource: s.source,
		Searching:  s.explicit > 0,
		Advisories: advisories,
		Generation: s.applied,
	}
}

// IsTracking reports whether a live watch is held
func (s *LocatorSession) IsTracking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watch != nil
}

// LastActive returns the time of the last command or tracking update
func (s *LocatorSession) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close releases the watch, drops in-flight work and rejects later commands.
// It is idempotent.
func (s *LocatorSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTrackingLocked()
	s.mu.Unlock()

	s.latest.Invalidate()
	s.cancel()
}

func coordPtr(c entities.Coordinate) *entities.Coordinate {
	return &c
}
