package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/zatekoja/carecompanion/internal/application/services"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/repositories"
)

const (
	defaultZeroResultLimit = 20
	maxZeroResultLimit     = 100
)

// AnalyticsHandler exposes the zero-result reports
type AnalyticsHandler struct {
	analytics *services.SearchAnalyticsService
}

func NewAnalyticsHandler(analytics *services.SearchAnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// GetZeroResultQueries handles GET /api/analytics/zero-result-queries
// with optional limit, kind (medication|facility) and since (e.g. 24h).
func (h *AnalyticsHandler) GetZeroResultQueries(w http.ResponseWriter, r *http.Request) {
	filter, msg := parseZeroResultFilter(r)
	if msg != "" {
		respondWithError(w, http.StatusBadRequest, msg)
		return
	}

	events, err := h.analytics.ZeroResults(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"queries": events,
		"count":   len(events),
	})
}

// GetUnmatchedQueries handles GET /api/analytics/unmatched-queries, the
// zero-result searches grouped by normalized text.
func (h *AnalyticsHandler) GetUnmatchedQueries(w http.ResponseWriter, r *http.Request) {
	filter, msg := parseZeroResultFilter(r)
	if msg != "" {
		respondWithError(w, http.StatusBadRequest, msg)
		return
	}

	groups, err := h.analytics.TopUnmatched(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"queries": groups,
		"count":   len(groups),
	})
}

func parseZeroResultFilter(r *http.Request) (repositories.ZeroResultFilter, string) {
	q := r.URL.Query()
	filter := repositories.ZeroResultFilter{Limit: defaultZeroResultLimit}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return filter, "invalid limit parameter"
		}
		filter.Limit = min(n, maxZeroResultLimit)
	}

	switch kind := entities.SearchKind(q.Get("kind")); kind {
	case "", entities.SearchKindMedication, entities.SearchKindFacility:
		filter.Kind = kind
	default:
		return filter, "kind must be medication or facility"
	}

	if raw := q.Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return filter, "invalid since parameter"
		}
		filter.Since = time.Now().UTC().Add(-d)
	}
	return filter, ""
}
