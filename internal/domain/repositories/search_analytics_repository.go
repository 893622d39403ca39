package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

// ZeroResultFilter narrows zero-result lookups. Zero values mean no
// restriction; Limit is clamped by the store.
type ZeroResultFilter struct {
	Kind  entities.SearchKind
	Since time.Time
	Limit int
}

// SearchAnalyticsRepository stores medication and facility searches and
// answers questions about the ones that matched nothing.
type SearchAnalyticsRepository interface {
	Record(ctx context.Context, event *entities.SearchEvent) error
	RecentZeroResults(ctx context.Context, filter ZeroResultFilter) ([]*entities.SearchEvent, error)
	TopUnmatched(ctx context.Context, filter ZeroResultFilter) ([]entities.UnmatchedQuery, error)
}
