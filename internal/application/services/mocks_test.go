package services_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/carecompanion/internal/application/services"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	"github.com/zatekoja/carecompanion/internal/domain/repositories"
)

// Mocks

type MockIPLocator struct {
	mock.Mock
}

func (m *MockIPLocator) Locate(ctx context.Context) (*entities.Coordinate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Coordinate), args.Error(1)
}

type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, query string) (*providers.GeocodeResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.GeocodeResult), args.Error(1)
}

type MockFacilityProvider struct {
	mock.Mock
}

func (m *MockFacilityProvider) Nearby(ctx context.Context, center entities.Coordinate, radiusMeters int) ([]entities.Facility, error) {
	args := m.Called(ctx, center, radiusMeters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Facility), args.Error(1)
}

type MockTerminologyProvider struct {
	mock.Mock
}

func (m *MockTerminologyProvider) Search(ctx context.Context, term string) ([]entities.TerminologyEntry, error) {
	args := m.Called(ctx, term)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.TerminologyEntry), args.Error(1)
}

type MockPositioner struct {
	mock.Mock
}

func (m *MockPositioner) CurrentPosition(ctx context.Context, opts providers.PositionOptions) (entities.Coordinate, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).(entities.Coordinate), args.Error(1)
}

func (m *MockPositioner) Watch(ctx context.Context, opts providers.PositionOptions, onPosition func(entities.Coordinate), onError func(error)) (providers.WatchHandle, error) {
	args := m.Called(ctx, opts, onPosition, onError)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(providers.WatchHandle), args.Error(1)
}

type MockSearchAnalyticsRepository struct {
	mock.Mock
}

func (m *MockSearchAnalyticsRepository) Record(ctx context.Context, event *entities.SearchEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockSearchAnalyticsRepository) RecentZeroResults(ctx context.Context, filter repositories.ZeroResultFilter) ([]*entities.SearchEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.SearchEvent), args.Error(1)
}

func (m *MockSearchAnalyticsRepository) TopUnmatched(ctx context.Context, filter repositories.ZeroResultFilter) ([]entities.UnmatchedQuery, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.UnmatchedQuery), args.Error(1)
}

// stubCatalog serves fixed catalogs
type stubCatalog struct {
	meds      []entities.Medication
	lifestyle []entities.LifestyleAdvice
	hospitals []entities.Facility
}

func (c stubCatalog) Medications() []entities.Medication {
	out := make([]entities.Medication, len(c.meds))
	for i, m := range c.meds {
		out[i] = m.Clone()
	}
	return out
}

func (c stubCatalog) Lifestyle() []entities.LifestyleAdvice {
	return append([]entities.LifestyleAdvice(nil), c.lifestyle...)
}

func (c stubCatalog) Hospitals() []entities.Facility {
	out := make([]entities.Facility, len(c.hospitals))
	for i, f := range c.hospitals {
		out[i] = f.Clone()
	}
	return out
}

// blockingRecommender lets tests decide when each request completes
type blockingRecommender struct {
	mu       sync.Mutex
	calls    []string
	releases map[string]chan struct{}
}

func newBlockingRecommender() *blockingRecommender {
	return &blockingRecommender{releases: make(map[string]chan struct{})}
}

func (r *blockingRecommender) gate(text string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.releases[text]
	if !ok {
		ch = make(chan struct{})
		r.releases[text] = ch
	}
	return ch
}

func (r *blockingRecommender) Recommend(ctx context.Context, req services.RecommendRequest) (*services.Recommendation, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req.Text)
	r.mu.Unlock()

	<-r.gate(req.Text)
	return &services.Recommendation{Query: req.Text}, nil
}

func (r *blockingRecommender) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// countingRecommender answers immediately and records every call
type countingRecommender struct {
	mu    sync.Mutex
	calls []string
}

func (r *countingRecommender) Recommend(ctx context.Context, req services.RecommendRequest) (*services.Recommendation, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req.Text)
	r.mu.Unlock()
	return &services.Recommendation{Query: req.Text}, nil
}

func (r *countingRecommender) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
