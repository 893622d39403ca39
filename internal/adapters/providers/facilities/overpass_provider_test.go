package facilities

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/infrastructure/resilience"
	apperrors "github.com/zatekoja/carecompanion/pkg/errors"
)

const overpassFixture = `{
  "elements": [
    {"type": "node", "id": 101, "lat": 37.78, "lon": -122.41,
     "tags": {"amenity": "hospital", "name": "Mission Hospital", "emergency": "yes",
              "addr:street": "Valencia St", "addr:housenumber": "1200", "phone": "(415) 555-0100"}},
    {"type": "way", "id": 202, "center": {"lat": 37.77, "lon": -122.42},
     "tags": {"amenity": "dentist"}},
    {"type": "relation", "id": 303, "tags": {"amenity": "clinic"}}
  ]
}`

func newTestProvider(url string) *OverpassProvider {
	return NewOverpassProvider(OverpassOptions{
		URL:     url,
		Rand:    rand.New(rand.NewPCG(1, 2)),
		Breaker: &resilience.BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute},
	})
}

func TestOverpassProvider_Nearby(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("data")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(overpassFixture))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	got, err := p.Nearby(context.Background(), entities.Coordinate{Lat: 37.7749, Lng: -122.4194}, 5000)
	require.NoError(t, err)
	require.Len(t, got, 2, "elements without coordinates are skipped")

	assert.Contains(t, query, "around:5000,37.7749,-122.4194")
	assert.Contains(t, query, "out center;")

	hospital := got[0]
	assert.Equal(t, "101", hospital.ID)
	assert.Equal(t, "Mission Hospital", hospital.Name)
	assert.Equal(t, entities.FacilityTypeGeneralHospital, hospital.Type)
	assert.True(t, hospital.EmergencyServices)
	assert.Equal(t, "Valencia St 1200", hospital.Address)
	assert.Equal(t, "(415) 555-0100", hospital.Phone)
	assert.Equal(t, []string{"General Practice", "Emergency"}, hospital.Specialties)
	assert.Equal(t, "24/7", hospital.OperatingHours)
	assert.Zero(t, hospital.DistanceMiles)
	assert.Equal(t, entities.FacilitySourceLive, hospital.Source)

	dentist := got[1]
	assert.Equal(t, unnamedFacility, dentist.Name)
	assert.Equal(t, entities.Coordinate{Lat: 37.77, Lng: -122.42}, dentist.Coordinates)
	assert.Equal(t, unknownAddress, dentist.Address)
	assert.True(t, strings.HasPrefix(dentist.Phone, "(555) "))
	assert.Equal(t, []string{"Dentistry"}, dentist.Specialties)
	assert.False(t, dentist.EmergencyServices)

	for _, f := range got {
		assert.GreaterOrEqual(t, f.Rating, 3.5)
		assert.LessOrEqual(t, f.Rating, 5.0)
		assert.True(t, strings.HasSuffix(f.EstimatedWaitTime, " minutes"))
		assert.True(t, f.AcceptsInsurance)
	}
}

func TestOverpassProvider_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Nearby(context.Background(), entities.Coordinate{}, 5000)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestOverpassProvider_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	for i := 0; i < 2; i++ {
		_, err := p.Nearby(context.Background(), entities.Coordinate{}, 5000)
		require.Error(t, err)
	}

	_, err := p.Nearby(context.Background(), entities.Coordinate{}, 5000)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
	assert.Equal(t, int32(2), calls.Load())
}

func TestOverpassProvider_CanceledDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"elements": []}`))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_, err := p.Nearby(ctx, entities.Coordinate{}, 5000)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCanceled))
	}

	got, err := p.Nearby(context.Background(), entities.Coordinate{}, 5000)
	require.NoError(t, err)
	assert.Empty(t, got)
}
