// Package terminology looks up medication names in the NLM Clinical Tables
// RxTerms service.
package terminology

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
	"github.com/sony/gobreaker"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	"github.com/zatekoja/carecompanion/internal/infrastructure/observability"
	"github.com/zatekoja/carecompanion/internal/infrastructure/resilience"
	apperrors "github.com/zatekoja/carecompanion/pkg/errors"
)

const (
	defaultHTTPTimeout = 6 * time.Second
	defaultMaxResults  = 8
	cacheTTL           = 24 * time.Hour
	cachePrefix        = "rx:v1:search:"
	strengthsField     = "STRENGTHS_AND_FORMS"
)

// Options configures RxTermsProvider
type Options struct {
	URL        string
	MaxResults int
	HTTPClient *http.Client
	Cache      providers.CacheProvider
	Metrics    *observability.Metrics
	Breaker    *resilience.BreakerSettings
}

// RxTermsProvider implements MedicationTerminologyProvider
type RxTermsProvider struct {
	url        string
	maxResults int
	httpClient *http.Client
	cache      providers.CacheProvider
	metrics    *observability.Metrics
	breaker    *gobreaker.CircuitBreaker
}

// NewRxTermsProvider creates a terminology provider
func NewRxTermsProvider(opts Options) *RxTermsProvider {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	settings := resilience.DefaultBreakerSettings()
	if opts.Breaker != nil {
		settings = *opts.Breaker
	}
	return &RxTermsProvider{
		url:        opts.URL,
		maxResults: opts.MaxResults,
		httpClient: opts.HTTPClient,
		cache:      opts.Cache,
		metrics:    opts.Metrics,
		breaker: resilience.NewBreaker("rxterms", settings, func(err error) bool {
			return !apperrors.IsType(err, apperrors.ErrorTypeCanceled)
		}),
	}
}

var _ providers.MedicationTerminologyProvider = (*RxTermsProvider)(nil)

// Search returns terminology rows for term. An empty term returns no rows.
func (p *RxTermsProvider) Search(ctx context.Context, term string) ([]entities.TerminologyEntry, error) {
	trimmed := strings.TrimSpace(term)
	if trimmed == "" {
		return nil, nil
	}

	cacheKey := cachePrefix + hashKey(strings.ToLower(trimmed))
	if p.cache != nil {
		var entries []entities.TerminologyEntry
		if providers.LoadCached(ctx, p.cache, cacheKey, &entries) {
			observability.RecordCacheHit(ctx, p.metrics, cachePrefix)
			return entries, nil
		}
		observability.RecordCacheMiss(ctx, p.metrics, cachePrefix)
	}

	start := time.Now()
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.fetch(ctx, trimmed)
	})
	observability.RecordExternalCall(ctx, p.metrics, "rxterms", time.Since(start), err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.NewUnavailableError("medication lookup temporarily unavailable", err)
		}
		return nil, err
	}
	entries := result.([]entities.TerminologyEntry)

	if err := providers.StoreCached(ctx, p.cache, cacheKey, entries, cacheTTL); err != nil {
		log.Debug().Err(err).Msg("Failed to cache terminology result")
	}
	return entries, nil
}

func (p *RxTermsProvider) fetch(ctx context.Context, term string) ([]entities.TerminologyEntry, error) {
	params := url.Values{}
	params.Set("terms", term)
	params.Set("maxList", strconv.Itoa(p.maxResults))
	params.Set("ef", strengthsField)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+"?"+params.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build terminology request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, apperrors.NewCanceledError("terminology request canceled")
		}
		return nil, apperrors.NewExternalError("terminology request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewExternalError("Medication lookup failed", fmt.Errorf("terminology service returned status %d", resp.StatusCode))
	}

	entries, err := decodeResponse(resp)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to decode terminology response", err)
	}
	return entries, nil
}

// The service answers with positional arrays:
// [total, [names], {EXTRA_FIELD: [[...] per name]}, [[display columns] per name]]
func decodeResponse(resp *http.Response) ([]entities.TerminologyEntry, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("expected at least 2 elements, got %d", len(raw))
	}

	var names []string
	if err := json.Unmarshal(raw[1], &names); err != nil {
		return nil, fmt.Errorf("names: %w", err)
	}

	var extra map[string][][]string
	if len(raw) > 2 && string(raw[2]) != "null" {
		if err := json.Unmarshal(raw[2], &extra); err != nil {
			return nil, fmt.Errorf("extra fields: %w", err)
		}
	}

	var display [][]string
	if len(raw) > 3 && string(raw[3]) != "null" {
		if err := json.Unmarshal(raw[3], &display); err != nil {
			return nil, fmt.Errorf("display: %w", err)
		}
	}

	entries := make([]entities.TerminologyEntry, 0, len(names))
	for i, name := range names {
		entry := entities.TerminologyEntry{Name: name, Display: name}
		if i < len(display) && len(display[i]) > 0 {
			entry.Display = display[i][0]
		}
		if route := routeFromDisplay(entry.Display); route != "" {
			entry.Routes = []string{route}
		}
		if rows, ok := extra[strengthsField]; ok && i < len(rows) {
			entry.Strengths = trimAll(rows[i])
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// routeFromDisplay extracts "Oral Pill" from "Acetaminophen (Oral Pill)"
func routeFromDisplay(display string) string {
	open := strings.LastIndex(display, "(")
	end := strings.LastIndex(display, ")")
	if open < 0 || end <= open+1 {
		return ""
	}
	return strings.TrimSpace(display[open+1 : end])
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
