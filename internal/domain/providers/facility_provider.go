package providers

import (
	"context"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

// FacilityProvider queries a map-data service for facilities around a center
type FacilityProvider interface {
	Nearby(ctx context.Context, center entities.Coordinate, radiusMeters int) ([]entities.Facility, error)
}

// MedicationTerminologyProvider looks up drug names and extended fields
type MedicationTerminologyProvider interface {
	Search(ctx context.Context, term string) ([]entities.TerminologyEntry, error)
}
