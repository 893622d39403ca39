package services

import (
	"context"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	"github.com/zatekoja/carecompanion/internal/infrastructure/observability"
)

const DefaultFacilityRadiusMeters = 5000

// FacilitySynthesizer generates placeholder facilities around a center. It
// must not fail.
type FacilitySynthesizer func(center entities.Coordinate) []entities.Facility

// FacilitySource produces the candidate facilities around a coordinate
type FacilitySource struct {
	provider     providers.FacilityProvider
	synthesize   FacilitySynthesizer
	radiusMeters int
	metrics      *observability.Metrics
}

// NewFacilitySource creates a source. A nil provider always synthesizes.
func NewFacilitySource(provider providers.FacilityProvider, synthesize FacilitySynthesizer, radiusMeters int, metrics *observability.Metrics) *FacilitySource {
	if radiusMeters <= 0 {
		radiusMeters = DefaultFacilityRadiusMeters
	}
	return &FacilitySource{provider: provider, synthesize: synthesize, radiusMeters: radiusMeters, metrics: metrics}
}

// Fetch queries live map data and falls back to synthetic facilities when the
// query fails or finds nothing
func (s *FacilitySource) Fetch(ctx context.Context, center entities.Coordinate) ([]entities.Facility, entities.FacilitySource) {
	if s.provider != nil {
		found, err := s.provider.Nearby(ctx, center, s.radiusMeters)
		switch {
		case err != nil:
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Live facility query failed, using synthetic facilities")
		case len(found) == 0:
			observability.LoggerFromContext(ctx).Debug().Msg("Live facility query returned nothing, using synthetic facilities")
		default:
			return found, entities.FacilitySourceLive
		}
	}
	observability.RecordFallback(ctx, s.metrics, "facilities", string(entities.FacilitySourceSynthetic))
	if s.synthesize == nil {
		return []entities.Facility{}, entities.FacilitySourceSynthetic
	}
	return s.synthesize(center), entities.FacilitySourceSynthetic
}
