package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics are the service's instruments. Every Record helper accepts a nil
// *Metrics so tests and the CLI can skip instrumentation.
type Metrics struct {
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	upstreamLatency metric.Float64Histogram
	fallbacks       metric.Int64Counter
	cacheLookups    metric.Int64Counter
	safetyVerdicts  metric.Int64Counter
}

// InitMetrics creates the instruments on the global meter provider
func InitMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(instrumentationName))
}

// NewMetrics creates the instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	histogram := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("ms"))
		errs = append(errs, err)
		return h
	}

	m.requests = counter("http.server.request.count", "HTTP requests by route and status")
	m.requestDuration = histogram("http.server.request.duration", "HTTP request latency")
	m.upstreamLatency = histogram("upstream.call.duration", "Latency of geocoding, map-data and terminology calls")
	m.fallbacks = counter("fallback.count", "Answers served by a fallback source instead of the primary one")
	m.cacheLookups = counter("cache.lookup.count", "Lookup cache reads by prefix and outcome")
	m.safetyVerdicts = counter("medication.safety.verdict.count", "Safety verdicts attached to recommendations")

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// RecordRequestMetric counts one HTTP request under its route pattern
func RecordRequestMetric(ctx context.Context, m *Metrics, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.requests.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, ms(d), attrs)
}

// RecordExternalCall records one call to an upstream service
func RecordExternalCall(ctx context.Context, m *Metrics, service string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.upstreamLatency.Record(ctx, ms(d), metric.WithAttributes(
		attribute.String("upstream.service", service),
		attribute.Bool("error", err != nil),
	))
}

// RecordFallback counts an answer from source on the named fallback chain
func RecordFallback(ctx context.Context, m *Metrics, chain, source string) {
	if m == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("fallback.chain", chain),
		attribute.String("fallback.source", source),
	))
}

func RecordCacheHit(ctx context.Context, m *Metrics, prefix string) {
	recordCacheLookup(ctx, m, prefix, true)
}

func RecordCacheMiss(ctx context.Context, m *Metrics, prefix string) {
	recordCacheLookup(ctx, m, prefix, false)
}

func recordCacheLookup(ctx context.Context, m *Metrics, prefix string, hit bool) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.prefix", prefix),
		attribute.Bool("cache.hit", hit),
	))
}

// RecordSafetyVerdict counts one verdict, split by pregnancy screening so
// warning rates for pregnant profiles can be watched separately
func RecordSafetyVerdict(ctx context.Context, m *Metrics, status string, pregnant bool) {
	if m == nil {
		return
	}
	m.safetyVerdicts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("safety.status", status),
		attribute.Bool("profile.pregnant", pregnant),
	))
}
