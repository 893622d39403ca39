package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carecompanion/internal/adapters/events"
	"github.com/zatekoja/carecompanion/internal/adapters/providers/facilities"
	"github.com/zatekoja/carecompanion/internal/adapters/providers/geolocation"
	"github.com/zatekoja/carecompanion/internal/application/services"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	apperrors "github.com/zatekoja/carecompanion/pkg/errors"
)

type locatorFixture struct {
	ip       *MockIPLocator
	geocoder *MockGeocoder
	provider *MockFacilityProvider
	relay    *geolocation.RelayPositioner
	bus      providers.LocatorEventBus
	session  *services.LocatorSession
}

func newLocatorFixture(t *testing.T) *locatorFixture {
	t.Helper()
	f := &locatorFixture{
		ip:       new(MockIPLocator),
		geocoder: new(MockGeocoder),
		provider: new(MockFacilityProvider),
		relay:    geolocation.NewRelayPositioner(),
		bus:      events.NewMemoryEventBus(),
	}
	deps := services.LocatorDeps{
		Resolver: services.NewLocationResolver(f.ip, f.geocoder, defaultLocation, 50*time.Millisecond, nil),
		Source:   services.NewFacilitySource(f.provider, facilities.Synthesize, 5000, nil),
		Ranker:   services.NewFacilityRanker(),
		Catalog: stubCatalog{hospitals: []entities.Facility{
			facilityAt("seed-1", 0.02, true),
			facilityAt("seed-2", 0.01, false),
		}},
		Bus: f.bus,
	}
	f.session = services.NewLocatorSession("loc-1", entities.UserProfile{}, f.relay, deps)
	t.Cleanup(func() {
		f.session.Close()
		_ = f.bus.Close()
	})
	return f
}

func TestLocatorSession_TrackingHoldsOneWatch(t *testing.T) {
	f := newLocatorFixture(t)

	f.session.StopTracking()
	assert.Equal(t, 0, f.relay.ActiveWatches(), "stop without start is safe")

	snap, err := f.session.StartTracking()
	require.NoError(t, err)
	assert.True(t, snap.Location.IsLiveTracking)

	_, err = f.session.StartTracking()
	require.NoError(t, err)
	assert.Equal(t, 1, f.relay.ActiveWatches())

	f.session.StopTracking()
	f.session.StopTracking()
	assert.Equal(t, 0, f.relay.ActiveWatches())
	assert.False(t, f.session.IsTracking())

	_, err = f.session.StartTracking()
	require.NoError(t, err)
	f.session.Close()
	assert.Equal(t, 0, f.relay.ActiveWatches())

	_, err = f.session.StartTracking()
	assert.ErrorIs(t, err, services.ErrSessionClosed)
}

func TestLocatorSession_TrackingUpdateRefreshesSilently(t *testing.T) {
	f := newLocatorFixture(t)
	sub, err := f.bus.Subscribe(context.Background(), "loc-1")
	require.NoError(t, err)

	fix := entities.Coordinate{Lat: sfCenter.Lat, Lng: sfCenter.Lng}
	f.provider.On("Nearby", mock.Anything, fix, 5000).Return([]entities.Facility{
		facilityAt("far", 0.03, false),
		facilityAt("near", 0.005, true),
	}, nil).Once()

	_, err = f.session.StartTracking()
	require.NoError(t, err)
	assert.Equal(t, 1, f.relay.Push(fix))

	snap := f.session.Snapshot()
	assert.False(t, snap.Searching)
	assert.Equal(t, entities.LocationSourceDevice, snap.Location.Source)
	assert.Equal(t, entities.FacilitySourceLive, snap.DataSource)
	assert.Equal(t, []string{"near", "far"}, ids(snap.Facilities))
	assert.True(t, snap.Location.IsLiveTracking)

	var types []entities.LocatorEventType
	for len(types) < 2 {
		select {
		case e := <-sub:
			types = append(types, e.EventType)
		case <-time.After(time.Second):
			t.Fatalf("missing locator events, got %v", types)
		}
	}
	assert.Equal(t, []entities.LocatorEventType{entities.LocatorEventLocationUpdated, entities.LocatorEventFacilitiesRefreshed}, types)
	f.provider.AssertExpectations(t)
}

func TestLocatorSession_WatchErrorFallsBackToNetwork(t *testing.T) {
	f := newLocatorFixture(t)
	approx := &entities.Coordinate{Lat: 40.7128, Lng: -74.006}
	f.ip.On("Locate", mock.Anything).Return(approx, nil).Once()
	f.provider.On("Nearby", mock.Anything, *approx, 5000).Return(nil, errors.New("overpass down")).Once()

	_, err := f.session.StartTracking()
	require.NoError(t, err)
	f.relay.PushError(&providers.PositionError{Code: providers.PositionErrorUnavailable})

	snap := f.session.Snapshot()
	assert.False(t, f.session.IsTracking())
	assert.Equal(t, 0, f.relay.ActiveWatches())
	assert.Equal(t, entities.LocationSourceIP, snap.Location.Source)
	assert.Equal(t, services.AdvisoryTrackingApproximate, snap.Location.LastError)
	assert.Equal(t, entities.FacilitySourceSynthetic, snap.DataSource)
	assert.Len(t, snap.Facilities, 8)
}

func TestLocatorSession_RequestLocationFallsBackToDefault(t *testing.T) {
	f := newLocatorFixture(t)
	f.ip.On("Locate", mock.Anything).Return(nil, errors.New("offline")).Once()
	f.provider.On("Nearby", mock.Anything, defaultLocation, 5000).Return([]entities.Facility{facilityAt("a", 0.01, true)}, nil).Once()

	denied := geolocation.ReportedPosition{Err: &providers.PositionError{Code: providers.PositionErrorPermissionDenied}}
	snap, err := f.session.RequestLocation(context.Background(), denied)
	require.NoError(t, err)

	assert.Equal(t, entities.LocationSourceDefault, snap.Location.Source)
	assert.Equal(t, "Location permission denied. Please enable location services.", snap.Location.LastError)
	assert.Equal(t, []string{"a"}, ids(snap.Facilities))
	assert.False(t, snap.Searching)
	assert.Equal(t, uint64(1), snap.Generation)
}

func TestLocatorSession_SearchGeocodes(t *testing.T) {
	f := newLocatorFixture(t)
	chicago := entities.Coordinate{Lat: 41.8781, Lng: -87.6298}
	f.geocoder.On("Geocode", mock.Anything, "Chicago").Return(&providers.GeocodeResult{Coordinates: chicago, DisplayName: "Chicago, IL"}, nil).Once()
	f.provider.On("Nearby", mock.Anything, chicago, 5000).Return([]entities.Facility{}, nil).Once()

	snap, err := f.session.Search(context.Background(), services.SearchRequest{
		Query:   "  Chicago ",
		Filters: &entities.FacilityFilters{EmergencyOnly: true},
	})
	require.NoError(t, err)

	assert.False(t, snap.Searching, "a finished search is not in flight")
	assert.False(t, f.session.Snapshot().Searching)
	assert.Equal(t, entities.LocationSourceGeocode, snap.Location.Source)
	assert.Equal(t, "Chicago, IL", snap.Location.SearchedPlaceName)
	assert.Equal(t, entities.FacilitySourceSynthetic, snap.DataSource)
	assert.True(t, snap.Filters.EmergencyOnly)
	for _, fac := range snap.Facilities {
		assert.True(t, fac.EmergencyServices, fac.Name)
	}
}

func TestLocatorSession_SearchFallsBackToSeed(t *testing.T) {
	f := newLocatorFixture(t)
	f.geocoder.On("Geocode", mock.Anything, "broken").Return(nil, apperrors.NewExternalError("Failed to fetch location", nil)).Once()
	f.geocoder.On("Geocode", mock.Anything, "atlantis").Return(nil, nil).Once()

	snap, err := f.session.Search(context.Background(), services.SearchRequest{Query: "broken"})
	require.NoError(t, err)
	assert.Equal(t, entities.FacilitySourceSeed, snap.DataSource)
	assert.Equal(t, services.MessageSearchFailed, snap.Location.LastError)
	assert.Equal(t, []string{"seed-2", "seed-1"}, ids(snap.Facilities))

	snap, err = f.session.Search(context.Background(), services.SearchRequest{Query: "atlantis"})
	require.NoError(t, err)
	assert.Equal(t, entities.FacilitySourceSeed, snap.DataSource)
	assert.Equal(t, services.MessageNoPlaceMatch, snap.Location.LastError)
	f.provider.AssertNotCalled(t, "Nearby", mock.Anything, mock.Anything, mock.Anything)
}

func TestLocatorSession_UpdateFiltersReranksWithoutFetching(t *testing.T) {
	f := newLocatorFixture(t)
	f.geocoder.On("Geocode", mock.Anything, "broken").Return(nil, errors.New("timeout")).Once()

	_, err := f.session.Search(context.Background(), services.SearchRequest{Query: "broken"})
	require.NoError(t, err)

	snap, err := f.session.UpdateFilters(entities.FacilityFilters{EmergencyOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"seed-1"}, ids(snap.Facilities))

	snap, err = f.session.UpdateFilters(entities.FacilityFilters{Specialty: "all"})
	require.NoError(t, err)
	assert.Len(t, snap.Facilities, 2)
	f.provider.AssertNotCalled(t, "Nearby", mock.Anything, mock.Anything, mock.Anything)
}

func TestLocatorSession_StartTrackingWithoutPositioner(t *testing.T) {
	deps := services.LocatorDeps{
		Resolver: services.NewLocationResolver(nil, nil, defaultLocation, 0, nil),
		Source:   services.NewFacilitySource(nil, facilities.Synthesize, 0, nil),
		Ranker:   services.NewFacilityRanker(),
	}
	session := services.NewLocatorSession("loc-2", entities.UserProfile{}, nil, deps)
	defer session.Close()

	snap, err := session.StartTracking()
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
	assert.Equal(t, services.MessageNoGeolocation, snap.Location.LastError)
	assert.False(t, snap.Location.IsLiveTracking)
}

// blockGeocode makes the next lookup of query wait until release is closed
func blockGeocode(f *locatorFixture, query string, result *providers.GeocodeResult) (entered, release chan struct{}) {
	entered, release = make(chan struct{}), make(chan struct{})
	f.geocoder.On("Geocode", mock.Anything, query).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(result, nil).Once()
	return entered, release
}

type searchOutcome struct {
	snap services.LocatorSnapshot
	err  error
}

func searchAsync(f *locatorFixture, query string) <-chan searchOutcome {
	done := make(chan searchOutcome, 1)
	go func() {
		snap, err := f.session.Search(context.Background(), services.SearchRequest{Query: query})
		done <- searchOutcome{snap, err}
	}()
	return done
}

func TestLocatorSession_NewestSearchWins(t *testing.T) {
	f := newLocatorFixture(t)
	boston := entities.Coordinate{Lat: 42.3601, Lng: -71.0589}
	chicago := entities.Coordinate{Lat: 41.8781, Lng: -87.6298}
	entered, release := blockGeocode(f, "Boston", &providers.GeocodeResult{Coordinates: boston, DisplayName: "Boston, MA"})
	f.geocoder.On("Geocode", mock.Anything, "Chicago").Return(&providers.GeocodeResult{Coordinates: chicago, DisplayName: "Chicago, IL"}, nil).Once()
	f.provider.On("Nearby", mock.Anything, chicago, 5000).Return([]entities.Facility{facilityAt("chi-1", 0.01, true)}, nil).Once()

	stale := searchAsync(f, "Boston")
	<-entered
	assert.True(t, f.session.Snapshot().Searching)

	snap, err := f.session.Search(context.Background(), services.SearchRequest{Query: "Chicago"})
	require.NoError(t, err)
	assert.Equal(t, "Chicago, IL", snap.Location.SearchedPlaceName)
	assert.True(t, snap.Searching, "the older search has not returned yet")

	close(release)
	select {
	case out := <-stale:
		assert.ErrorIs(t, out.err, services.ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("superseded search never returned")
	}

	final := f.session.Snapshot()
	assert.False(t, final.Searching)
	assert.Equal(t, "Chicago, IL", final.Location.SearchedPlaceName)
	require.NotNil(t, final.Location.Current)
	assert.Equal(t, chicago, *final.Location.Current)
	assert.Equal(t, []string{"chi-1"}, ids(final.Facilities))
	f.provider.AssertNotCalled(t, "Nearby", mock.Anything, boston, 5000)
}

func TestLocatorSession_TrackingUpdateSupersedesSearch(t *testing.T) {
	f := newLocatorFixture(t)
	fix := entities.Coordinate{Lat: sfCenter.Lat, Lng: sfCenter.Lng}
	entered, release := blockGeocode(f, "Boston", &providers.GeocodeResult{Coordinates: entities.Coordinate{Lat: 42.3601, Lng: -71.0589}, DisplayName: "Boston, MA"})
	f.provider.On("Nearby", mock.Anything, fix, 5000).Return([]entities.Facility{facilityAt("near", 0.005, true)}, nil).Once()

	_, err := f.session.StartTracking()
	require.NoError(t, err)

	stale := searchAsync(f, "Boston")
	<-entered
	assert.Equal(t, 1, f.relay.Push(fix))
	close(release)

	select {
	case out := <-stale:
		assert.ErrorIs(t, out.err, services.ErrSuperseded)
		assert.False(t, out.snap.Searching)
	case <-time.After(time.Second):
		t.Fatal("superseded search never returned")
	}

	snap := f.session.Snapshot()
	assert.Equal(t, entities.LocationSourceDevice, snap.Location.Source)
	assert.Empty(t, snap.Location.SearchedPlaceName)
	assert.Equal(t, []string{"near"}, ids(snap.Facilities))
	f.provider.AssertExpectations(t)
}

func TestLocatorSession_NetworkLookupUsesClientIP(t *testing.T) {
	f := newLocatorFixture(t)
	approx := &entities.Coordinate{Lat: 51.5072, Lng: -0.1276}
	f.ip.On("Locate", mock.MatchedBy(func(ctx context.Context) bool {
		return providers.ClientIPFromContext(ctx) == "203.0.113.7"
	})).Return(approx, nil).Once()
	f.provider.On("Nearby", mock.Anything, *approx, 5000).Return([]entities.Facility{}, nil).Once()

	f.session.SetClientIP("203.0.113.7")
	denied := geolocation.ReportedPosition{Err: &providers.PositionError{Code: providers.PositionErrorPermissionDenied}}
	snap, err := f.session.RequestLocation(context.Background(), denied)
	require.NoError(t, err)

	assert.Equal(t, entities.LocationSourceIP, snap.Location.Source)
	f.ip.AssertExpectations(t)
}
