package repositories

import "github.com/zatekoja/carecompanion/internal/domain/entities"

// CatalogRepository exposes the read-only seed catalogs. Implementations
// return copies; callers may not mutate shared state through them.
type CatalogRepository interface {
	Medications() []entities.Medication
	Lifestyle() []entities.LifestyleAdvice
	Hospitals() []entities.Facility
}
