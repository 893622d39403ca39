package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/repositories"
	apperrors "github.com/zatekoja/carecompanion/pkg/errors"
)

type SearchAnalyticsService struct {
	repo repositories.SearchAnalyticsRepository
	wg   sync.WaitGroup
}

func NewSearchAnalyticsService(repo repositories.SearchAnalyticsRepository) *SearchAnalyticsService {
	return &SearchAnalyticsService{repo: repo}
}

// TrackSearch stores the event in the background. A nil service or
// repository drops it.
func (s *SearchAnalyticsService) TrackSearch(ctx context.Context, event *entities.SearchEvent) {
	if s == nil || s.repo == nil || event == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// The request context may already be gone
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.repo.Record(bgCtx, event); err != nil {
			log.Warn().Err(err).Str("kind", string(event.Kind)).Msg("Failed to log search event")
		}
	}()
}

// Wait blocks until queued events are written
func (s *SearchAnalyticsService) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

// ZeroResults lists recent searches that matched nothing
func (s *SearchAnalyticsService) ZeroResults(ctx context.Context, filter repositories.ZeroResultFilter) ([]*entities.SearchEvent, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	return s.repo.RecentZeroResults(ctx, filter)
}

// TopUnmatched ranks the queries that most often matched nothing
func (s *SearchAnalyticsService) TopUnmatched(ctx context.Context, filter repositories.ZeroResultFilter) ([]entities.UnmatchedQuery, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	return s.repo.TopUnmatched(ctx, filter)
}

func (s *SearchAnalyticsService) enabled() error {
	if s == nil || s.repo == nil {
		return apperrors.NewUnavailableError("search analytics is disabled", nil)
	}
	return nil
}
