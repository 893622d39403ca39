package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	"github.com/zatekoja/carecompanion/internal/infrastructure/observability"
)

// IPAPILocator implements IPLocator against an ipapi.co style service:
// {base}/{ip}/json/ for a client address on the context, {base}/json/ for the
// calling host otherwise.
type IPAPILocator struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	metrics    *observability.Metrics
}

// NewIPAPILocator creates an IP locator for baseURL. A trailing /json/ is
// accepted and ignored.
func NewIPAPILocator(baseURL, userAgent string, httpClient *http.Client, metrics *observability.Metrics) *IPAPILocator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	baseURL = strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/json")
	return &IPAPILocator{baseURL: baseURL, userAgent: userAgent, httpClient: httpClient, metrics: metrics}
}

// lookupURL targets the client address from ctx when it is a valid IP
func (l *IPAPILocator) lookupURL(ctx context.Context) string {
	if ip := net.ParseIP(providers.ClientIPFromContext(ctx)); ip != nil {
		return l.baseURL + "/" + url.PathEscape(ip.String()) + "/json/"
	}
	return l.baseURL + "/json/"
}

var _ providers.IPLocator = (*IPAPILocator)(nil)

type ipapiResponse struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Error     bool     `json:"error"`
	Reason    string   `json:"reason"`
}

// Locate makes a single lookup. Non-2xx responses, error bodies and bodies
// without coordinates are failures.
func (l *IPAPILocator) Locate(ctx context.Context) (*entities.Coordinate, error) {
	start := time.Now()
	coord, err := l.locate(ctx)
	observability.RecordExternalCall(ctx, l.metrics, "ipapi", time.Since(start), err)
	return coord, err
}

func (l *IPAPILocator) locate(ctx context.Context) (*entities.Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.lookupURL(ctx), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build ip lookup request: %w", err)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ip lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ip lookup returned status %d", resp.StatusCode)
	}

	var payload ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode ip lookup response: %w", err)
	}
	if payload.Error {
		return nil, fmt.Errorf("ip lookup failed: %s", payload.Reason)
	}
	if payload.Latitude == nil || payload.Longitude == nil {
		return nil, fmt.Errorf("ip lookup response has no coordinates")
	}

	return &entities.Coordinate{Lat: *payload.Latitude, Lng: *payload.Longitude}, nil
}
