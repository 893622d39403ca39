package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

// PositionErrorCode classifies device positioning failures
type PositionErrorCode int

const (
	PositionErrorUnknown PositionErrorCode = iota
	PositionErrorPermissionDenied
	PositionErrorUnavailable
	PositionErrorTimeout
	PositionErrorUnsupported
)

// String returns the wire name of the code
func (c PositionErrorCode) String() string {
	switch c {
	case PositionErrorPermissionDenied:
		return "permission_denied"
	case PositionErrorUnavailable:
		return "position_unavailable"
	case PositionErrorTimeout:
		return "timeout"
	case PositionErrorUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// ParsePositionErrorCode maps a wire name back to a code
func ParsePositionErrorCode(s string) PositionErrorCode {
	switch s {
	case "permission_denied":
		return PositionErrorPermissionDenied
	case "position_unavailable", "unavailable":
		return PositionErrorUnavailable
	case "timeout":
		return PositionErrorTimeout
	case "unsupported":
		return PositionErrorUnsupported
	default:
		return PositionErrorUnknown
	}
}

// PositionError is returned by device positioners
type PositionError struct {
	Code    PositionErrorCode
	Message string
}

func (e *PositionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("position error (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("position error (%s)", e.Code)
}

// PositionOptions mirror the device geolocation request options
type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// WatchHandle cancels a continuous position watch. Stop must be idempotent.
type WatchHandle interface {
	Stop()
}

// DevicePositioner is the device geolocation boundary
type DevicePositioner interface {
	// CurrentPosition requests a single fix
	CurrentPosition(ctx context.Context, opts PositionOptions) (entities.Coordinate, error)

	// Watch starts continuous updates until the returned handle is stopped
	Watch(ctx context.Context, opts PositionOptions, onPosition func(entities.Coordinate), onError func(error)) (WatchHandle, error)
}

// IPLocator resolves an approximate coordinate from the caller's network
// address. Servers acting for a remote user put that user's address on the
// context with WithClientIP; without one the lookup locates this host.
type IPLocator interface {
	Locate(ctx context.Context) (*entities.Coordinate, error)
}

type clientIPKey struct{}

// WithClientIP returns a context carrying the end user's public IP address
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the address set by WithClientIP, or ""
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// GeocodeResult is the first match of a free-text geocoding query
type GeocodeResult struct {
	Coordinates entities.Coordinate `json:"coordinates"`
	DisplayName string              `json:"display_name"`
}

// Geocoder converts free text into a coordinate. A query with no match
// returns nil and no error.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*GeocodeResult, error)
}
