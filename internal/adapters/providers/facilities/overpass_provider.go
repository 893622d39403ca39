package facilities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	"github.com/zatekoja/carecompanion/internal/infrastructure/observability"
	"github.com/zatekoja/carecompanion/internal/infrastructure/resilience"
	apperrors "github.com/zatekoja/carecompanion/pkg/errors"
)

const (
	defaultOverpassTimeout = 15 * time.Second
	unnamedFacility        = "Unnamed Medical Facility"
	unknownAddress         = "Address details unavailable"
	defaultHours           = "24/7"
)

const overpassQueryTemplate = `[out:json];
(
  node["amenity"~"hospital|clinic|doctors|dentist"](around:%[1]d,%[2]s,%[3]s);
  way["amenity"~"hospital|clinic|doctors|dentist"](around:%[1]d,%[2]s,%[3]s);
  relation["amenity"~"hospital|clinic|doctors|dentist"](around:%[1]d,%[2]s,%[3]s);
);
out center;`

// OverpassOptions configures OverpassProvider
type OverpassOptions struct {
	URL        string
	UserAgent  string
	HTTPClient *http.Client
	Metrics    *observability.Metrics
	// Rand drives the synthesized rating, wait time and placeholder phone
	Rand *rand.Rand
	// Breaker overrides the default circuit breaker settings
	Breaker *resilience.BreakerSettings
}

// OverpassProvider implements FacilityProvider against the Overpass API
type OverpassProvider struct {
	url        string
	userAgent  string
	httpClient *http.Client
	metrics    *observability.Metrics
	breaker    *gobreaker.CircuitBreaker

	mu  sync.Mutex
	rng *rand.Rand
}

// NewOverpassProvider creates an Overpass-backed facility provider
func NewOverpassProvider(opts OverpassOptions) *OverpassProvider {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultOverpassTimeout}
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	settings := resilience.DefaultBreakerSettings()
	if opts.Breaker != nil {
		settings = *opts.Breaker
	}
	return &OverpassProvider{
		url:        opts.URL,
		userAgent:  opts.UserAgent,
		httpClient: opts.HTTPClient,
		metrics:    opts.Metrics,
		breaker:    resilience.NewBreaker("overpass", settings, isUpstreamFailure),
		rng:        rng,
	}
}

var _ providers.FacilityProvider = (*OverpassProvider)(nil)

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *overpassCenter   `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BuildQuery renders the Overpass QL query for center and radius
func BuildQuery(center entities.Coordinate, radiusMeters int) string {
	lat := strconv.FormatFloat(center.Lat, 'f', -1, 64)
	lng := strconv.FormatFloat(center.Lng, 'f', -1, 64)
	return fmt.Sprintf(overpassQueryTemplate, radiusMeters, lat, lng)
}

// Nearby queries facilities within radiusMeters of center. Distances are left
// at zero for the caller to compute. Failures are not retried.
func (p *OverpassProvider) Nearby(ctx context.Context, center entities.Coordinate, radiusMeters int) ([]entities.Facility, error) {
	start := time.Now()
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.query(ctx, center, radiusMeters)
	})
	observability.RecordExternalCall(ctx, p.metrics, "overpass", time.Since(start), err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.NewUnavailableError("map data service temporarily unavailable", err)
		}
		return nil, err
	}
	return result.([]entities.Facility), nil
}

func (p *OverpassProvider) query(ctx context.Context, center entities.Coordinate, radiusMeters int) ([]entities.Facility, error) {
	params := url.Values{}
	params.Set("data", BuildQuery(center, radiusMeters))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+"?"+params.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build overpass request", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, apperrors.NewCanceledError("overpass request canceled")
		}
		return nil, apperrors.NewExternalError("overpass request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewExternalError("Overpass API failed", fmt.Errorf("overpass returned status %d", resp.StatusCode))
	}

	var payload overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewExternalError("failed to decode overpass response", err)
	}

	out := make([]entities.Facility, 0, len(payload.Elements))
	for _, el := range payload.Elements {
		if f, ok := p.toFacility(el); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (p *OverpassProvider) toFacility(el overpassElement) (entities.Facility, bool) {
	var coord entities.Coordinate
	switch {
	case el.Center != nil:
		coord = entities.Coordinate{Lat: el.Center.Lat, Lng: el.Center.Lon}
	case el.Lat != nil && el.Lon != nil:
		coord = entities.Coordinate{Lat: *el.Lat, Lng: *el.Lon}
	default:
		return entities.Facility{}, false
	}

	tags := el.Tags
	if tags == nil {
		tags = map[string]string{}
	}

	name := strings.TrimSpace(tags["name"])
	if name == "" {
		name = unnamedFacility
	}
	facilityType := ClassifyType(tags)

	p.mu.Lock()
	rating := float64(int((3.5+p.rng.Float64()*1.5)*10+0.5)) / 10
	wait := 15 + p.rng.IntN(45)
	placeholderPhone := fmt.Sprintf("(555) %d-%d", 100+p.rng.IntN(900), 1000+p.rng.IntN(9000))
	p.mu.Unlock()

	if rating > 5 {
		rating = 5
	}

	return entities.Facility{
		ID:                strconv.FormatInt(el.ID, 10),
		Name:              name,
		Type:              facilityType,
		Rating:            rating,
		Address:           formatAddress(tags),
		Phone:             firstTag(tags, placeholderPhone, "phone", "contact:phone", "contact:mobile"),
		Specialties:       InferSpecialties(name, tags),
		EmergencyServices: tags["emergency"] == "yes" || facilityType == entities.FacilityTypeGeneralHospital,
		OperatingHours:    firstTag(tags, defaultHours, "opening_hours"),
		EstimatedWaitTime: fmt.Sprintf("%d minutes", wait),
		AcceptsInsurance:  true,
		Coordinates:       coord,
		Source:            entities.FacilitySourceLive,
	}, true
}

func formatAddress(tags map[string]string) string {
	street := strings.TrimSpace(tags["addr:street"])
	if street == "" {
		return unknownAddress
	}
	if number := strings.TrimSpace(tags["addr:housenumber"]); number != "" {
		return street + " " + number
	}
	return street
}

func firstTag(tags map[string]string, fallback string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(tags[k]); v != "" {
			return v
		}
	}
	return fallback
}

func isUpstreamFailure(err error) bool {
	return !apperrors.IsType(err, apperrors.ErrorTypeCanceled) && !errors.Is(err, context.Canceled)
}
