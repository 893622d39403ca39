package geolocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	"github.com/zatekoja/carecompanion/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carecompanion/pkg/errors"
)

const (
	nominatimSearchPath    = "/search"
	defaultGeocodeCacheTTL = 7 * 24 * time.Hour
	defaultHTTPTimeout     = 8 * time.Second
	geocodeCachePrefix     = "geo:v1:geocode:"
)

// NominatimOptions configures NominatimGeocoder
type NominatimOptions struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Cache      providers.CacheProvider
	Metrics    *observability.Metrics
}

// NominatimGeocoder implements Geocoder against an OpenStreetMap Nominatim server
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	cache      providers.CacheProvider
	metrics    *observability.Metrics
}

// NewNominatimGeocoder creates a geocoder. Misses are cached as well so a
// repeated unknown place does not hit the upstream again.
func NewNominatimGeocoder(opts NominatimOptions) *NominatimGeocoder {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &NominatimGeocoder{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		httpClient: opts.HTTPClient,
		cache:      opts.Cache,
		metrics:    opts.Metrics,
	}
}

var _ providers.Geocoder = (*NominatimGeocoder)(nil)

type cachedGeocode struct {
	Found  bool                     `json:"found"`
	Result *providers.GeocodeResult `json:"result,omitempty"`
}

// Geocode returns the first match for query, nil when there is none. A non-2xx
// response is returned as an external error and is not retried.
func (g *NominatimGeocoder) Geocode(ctx context.Context, query string) (*providers.GeocodeResult, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, apperrors.NewValidationError("query is required")
	}

	cacheKey := geocodeCachePrefix + hashKey(strings.ToLower(trimmed))
	if g.cache != nil {
		var entry cachedGeocode
		if providers.LoadCached(ctx, g.cache, cacheKey, &entry) {
			observability.RecordCacheHit(ctx, g.metrics, geocodeCachePrefix)
			return entry.Result, nil
		}
		observability.RecordCacheMiss(ctx, g.metrics, geocodeCachePrefix)
	}

	start := time.Now()
	result, err := g.search(ctx, trimmed)
	observability.RecordExternalCall(ctx, g.metrics, "nominatim", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if err := providers.StoreCached(ctx, g.cache, cacheKey, cachedGeocode{Found: result != nil, Result: result}, defaultGeocodeCacheTTL); err != nil {
		log.Debug().Err(err).Msg("Failed to cache geocode result")
	}
	return result, nil
}

func (g *NominatimGeocoder) search(ctx context.Context, query string) (*providers.GeocodeResult, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("limit", "1")

	reqURL := fmt.Sprintf("%s%s?%s", g.baseURL, nominatimSearchPath, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build geocode request", err)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, apperrors.NewCanceledError("geocode request canceled")
		}
		return nil, apperrors.NewExternalError("geocode request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewExternalError("Failed to fetch location", fmt.Errorf("geocode request returned status %d", resp.StatusCode))
	}

	var payload []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewExternalError("failed to decode geocode response", err)
	}
	if len(payload) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(payload[0].Lat, 64)
	if err != nil {
		return nil, apperrors.NewExternalError("geocode response has invalid latitude", err)
	}
	lng, err := strconv.ParseFloat(payload[0].Lon, 64)
	if err != nil {
		return nil, apperrors.NewExternalError("geocode response has invalid longitude", err)
	}

	return &providers.GeocodeResult{
		Coordinates: entities.Coordinate{Lat: lat, Lng: lng},
		DisplayName: payload[0].DisplayName,
	}, nil
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Nominatim returns coordinates as strings
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
