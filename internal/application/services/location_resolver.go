package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	"github.com/zatekoja/carecompanion/internal/infrastructure/observability"
	"github.com/zatekoja/carecompanion/pkg/fallback"
	apperrors "github.com/zatekoja/carecompanion/pkg/errors"
)

const (
	DefaultOneShotTimeout = 20 * time.Second

	AdvisoryApproximateLocation = "Using approximate location from network."
	AdvisoryTrackingLost        = "Unable to keep tracking your location."
	AdvisoryTrackingApproximate = "Live tracking failed. Using approximate location from network."

	strategyDevice  = "device"
	strategyIP      = "ip"
	strategyDefault = "default"
)

var errNoIPLocation = errors.New("ip location unavailable")

// OneShotOptions are the device options for a single location request
func OneShotOptions(timeout time.Duration) providers.PositionOptions {
	return providers.PositionOptions{HighAccuracy: true, Timeout: timeout, MaximumAge: 0}
}

// TrackingOptions are the device options for a live tracking watch
func TrackingOptions() providers.PositionOptions {
	return providers.PositionOptions{HighAccuracy: true, Timeout: DefaultOneShotTimeout, MaximumAge: 10 * time.Second}
}

// Resolution is the outcome of a location request. Advisory is a
// user-facing note, empty when the device fix succeeded.
type Resolution struct {
	Coordinate entities.Coordinate
	Source     entities.LocationSource
	Advisory   string
}

// LocationResolver produces a best-effort coordinate from device, network
// and default sources
type LocationResolver struct {
	ipLocator       providers.IPLocator
	geocoder        providers.Geocoder
	defaultLocation entities.Coordinate
	timeout         time.Duration
	metrics         *observability.Metrics
}

// NewLocationResolver creates a resolver. A zero timeout uses DefaultOneShotTimeout.
func NewLocationResolver(ipLocator providers.IPLocator, geocoder providers.Geocoder, defaultLocation entities.Coordinate, timeout time.Duration, metrics *observability.Metrics) *LocationResolver {
	if timeout <= 0 {
		timeout = DefaultOneShotTimeout
	}
	return &LocationResolver{
		ipLocator:       ipLocator,
		geocoder:        geocoder,
		defaultLocation: defaultLocation,
		timeout:         timeout,
		metrics:         metrics,
	}
}

// DefaultLocation returns the coordinate used when nothing else resolves
func (r *LocationResolver) DefaultLocation() entities.Coordinate {
	return r.defaultLocation
}

// RequestOneShotLocation asks the device once, then the network, then falls
// back to the default coordinate. It never fails; the advisory explains any
// fallback.
func (r *LocationResolver) RequestOneShotLocation(ctx context.Context, positioner providers.DevicePositioner) Resolution {
	res, err := fallback.First(ctx,
		fallback.Strategy[Resolution]{Name: strategyDevice, Run: func(ctx context.Context) (Resolution, error) {
			coord, err := r.devicePosition(ctx, positioner)
			if err != nil {
				return Resolution{}, err
			}
			return Resolution{Coordinate: coord, Source: entities.LocationSourceDevice}, nil
		}},
		r.ipStrategy(AdvisoryApproximateLocation),
		fallback.Strategy[Resolution]{Name: strategyDefault, Run: func(ctx context.Context) (Resolution, error) {
			return Resolution{}, nil
		}},
	)
	if err != nil {
		return r.defaultResolution(AdvisoryForPositionError(nil))
	}
	if res.Strategy == strategyDefault {
		res.Value = r.defaultResolution(AdvisoryForPositionError(res.FirstError()))
	}
	if res.Strategy != strategyDevice {
		observability.RecordFallback(ctx, r.metrics, "location", res.Strategy)
	}
	return res.Value
}

// RecoverFromWatchError runs the network then default chain after a live
// tracking failure
func (r *LocationResolver) RecoverFromWatchError(ctx context.Context) Resolution {
	res, err := fallback.First(ctx, r.ipStrategy(AdvisoryTrackingApproximate))
	if err != nil {
		observability.RecordFallback(ctx, r.metrics, "tracking", strategyDefault)
		return r.defaultResolution(AdvisoryTrackingLost)
	}
	observability.RecordFallback(ctx, r.metrics, "tracking", res.Strategy)
	return res.Value
}

// RequestIPLocation makes one network lookup and returns nil on any failure
func (r *LocationResolver) RequestIPLocation(ctx context.Context) *entities.Coordinate {
	if r.ipLocator == nil {
		return nil
	}
	coord, err := r.ipLocator.Locate(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx).Debug().Err(err).Msg("IP location lookup failed")
		return nil
	}
	return coord
}

// GeocodeFreeText resolves a place name. No match is nil, nil. Upstream
// failures are returned to the caller and not retried.
func (r *LocationResolver) GeocodeFreeText(ctx context.Context, query string) (*providers.GeocodeResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewValidationError("query is required")
	}
	if r.geocoder == nil {
		return nil, apperrors.NewUnavailableError("geocoding is not configured", nil)
	}
	return r.geocoder.Geocode(ctx, query)
}

func (r *LocationResolver) devicePosition(ctx context.Context, positioner providers.DevicePositioner) (entities.Coordinate, error) {
	if positioner == nil {
		return entities.Coordinate{}, &providers.PositionError{Code: providers.PositionErrorUnsupported}
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	coord, err := positioner.CurrentPosition(ctx, OneShotOptions(r.timeout))
	if err != nil {
		observability.LoggerFromContext(ctx).Debug().Err(err).Msg("Device position unavailable")
		return entities.Coordinate{}, err
	}
	return coord, nil
}

func (r *LocationResolver) ipStrategy(advisory string) fallback.Strategy[Resolution] {
	return fallback.Strategy[Resolution]{Name: strategyIP, Run: func(ctx context.Context) (Resolution, error) {
		coord := r.RequestIPLocation(ctx)
		if coord == nil {
			return Resolution{}, errNoIPLocation
		}
		return Resolution{Coordinate: *coord, Source: entities.LocationSourceIP, Advisory: advisory}, nil
	}}
}

func (r *LocationResolver) defaultResolution(advisory string) Resolution {
	return Resolution{Coordinate: r.defaultLocation, Source: entities.LocationSourceDefault, Advisory: advisory}
}

// AdvisoryForPositionError describes why the device could not be used
func AdvisoryForPositionError(err error) string {
	var posErr *providers.PositionError
	if !errors.As(err, &posErr) {
		return "Unable to access your location."
	}
	switch posErr.Code {
	case providers.PositionErrorPermissionDenied:
		return "Location permission denied. Please enable location services."
	case providers.PositionErrorUnavailable:
		return "Location information is unavailable."
	case providers.PositionErrorTimeout:
		return "The request to get user location timed out."
	case providers.PositionErrorUnsupported:
		return "Geolocation is not supported on this device."
	default:
		return "Unable to access your location."
	}
}
