package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/repositories"
	"github.com/zatekoja/carecompanion/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/carecompanion/pkg/errors"
)

const (
	searchAnalyticsTable = "search_analytics"
	defaultFilterLimit   = 100
	maxFilterLimit       = 500
)

const searchAnalyticsSchema = `
CREATE TABLE IF NOT EXISTS search_analytics (
	id               UUID PRIMARY KEY,
	kind             TEXT NOT NULL,
	query            TEXT NOT NULL,
	normalized_query TEXT NOT NULL,
	detected_intent  TEXT NOT NULL DEFAULT '',
	result_count     INTEGER NOT NULL,
	latency_ms       INTEGER NOT NULL,
	data_source      TEXT NOT NULL DEFAULT '',
	user_latitude    DOUBLE PRECISION,
	user_longitude   DOUBLE PRECISION,
	session_id       TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_analytics_zero ON search_analytics (created_at DESC) WHERE result_count = 0;
`

var searchEventColumns = []any{
	"id", "kind", "query", "normalized_query", "detected_intent", "result_count",
	"latency_ms", "data_source", "user_latitude", "user_longitude", "session_id", "created_at",
}

// SearchAnalyticsAdapter keeps search events in PostgreSQL. Queries are built
// with goqu and run on the client's pool.
type SearchAnalyticsAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

func NewSearchAnalyticsAdapter(client *postgres.Client) *SearchAnalyticsAdapter {
	return &SearchAnalyticsAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.SearchAnalyticsRepository = (*SearchAnalyticsAdapter)(nil)

// EnsureSchema creates the analytics table when it does not exist
func (a *SearchAnalyticsAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.client.DB().ExecContext(ctx, searchAnalyticsSchema); err != nil {
		return apperrors.NewInternalError("create search analytics schema", err)
	}
	return nil
}

// Record inserts one event, assigning an id and timestamp when missing
func (a *SearchAnalyticsAdapter) Record(ctx context.Context, event *entities.SearchEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query, args, err := a.db.Insert(searchAnalyticsTable).Prepared(true).Rows(goqu.Record{
		"id":               event.ID,
		"kind":             string(event.Kind),
		"query":            event.Query,
		"normalized_query": event.NormalizedQuery,
		"detected_intent":  event.DetectedIntent,
		"result_count":     event.ResultCount,
		"latency_ms":       event.LatencyMs,
		"data_source":      event.DataSource,
		"user_latitude":    nullFloat(event.UserLatitude),
		"user_longitude":   nullFloat(event.UserLongitude),
		"session_id":       event.SessionID,
		"created_at":       event.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("build search event insert", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("record search event", err)
	}
	return nil
}

// RecentZeroResults lists the newest searches that matched nothing
func (a *SearchAnalyticsAdapter) RecentZeroResults(ctx context.Context, filter repositories.ZeroResultFilter) ([]*entities.SearchEvent, error) {
	query, args, err := a.db.Select(searchEventColumns...).
		From(searchAnalyticsTable).
		Prepared(true).
		Where(zeroResultWhere(filter)...).
		Order(goqu.I("created_at").Desc()).
		Limit(clampLimit(filter.Limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("build zero-result query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("query zero-result searches", err)
	}
	defer rows.Close()

	var events []*entities.SearchEvent
	for rows.Next() {
		e, err := scanSearchEvent(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("scan search event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("read search events", err)
	}
	return events, nil
}

// TopUnmatched groups zero-result searches by normalized query, most
// frequent first.
func (a *SearchAnalyticsAdapter) TopUnmatched(ctx context.Context, filter repositories.ZeroResultFilter) ([]entities.UnmatchedQuery, error) {
	occurrences := goqu.COUNT(goqu.Star()).As("occurrences")
	query, args, err := a.db.Select(
		goqu.C("normalized_query"),
		goqu.C("kind"),
		occurrences,
		goqu.MAX("created_at").As("last_seen"),
	).From(searchAnalyticsTable).
		Prepared(true).
		Where(zeroResultWhere(filter)...).
		GroupBy("normalized_query", "kind").
		Order(goqu.I("occurrences").Desc(), goqu.I("last_seen").Desc()).
		Limit(clampLimit(filter.Limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("build unmatched query", err)
	}

	var out []entities.UnmatchedQuery
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("query unmatched searches", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u entities.UnmatchedQuery
		var kind string
		if err := rows.Scan(&u.NormalizedQuery, &kind, &u.Occurrences, &u.LastSeen); err != nil {
			return nil, apperrors.NewInternalError("scan unmatched query", err)
		}
		u.Kind = entities.SearchKind(kind)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("read unmatched queries", err)
	}
	return out, nil
}

func zeroResultWhere(filter repositories.ZeroResultFilter) []exp.Expression {
	where := []exp.Expression{goqu.C("result_count").Eq(0)}
	if filter.Kind != "" {
		where = append(where, goqu.C("kind").Eq(string(filter.Kind)))
	}
	if !filter.Since.IsZero() {
		where = append(where, goqu.C("created_at").Gte(filter.Since))
	}
	return where
}

func clampLimit(limit int) uint {
	if limit <= 0 {
		return defaultFilterLimit
	}
	return uint(min(limit, maxFilterLimit))
}

func scanSearchEvent(rows *sql.Rows) (*entities.SearchEvent, error) {
	e := &entities.SearchEvent{}
	var kind string
	var lat, lng sql.NullFloat64
	if err := rows.Scan(
		&e.ID, &kind, &e.Query, &e.NormalizedQuery, &e.DetectedIntent, &e.ResultCount,
		&e.LatencyMs, &e.DataSource, &lat, &lng, &e.SessionID, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.Kind = entities.SearchKind(kind)
	if lat.Valid {
		e.UserLatitude = &lat.Float64
	}
	if lng.Valid {
		e.UserLongitude = &lng.Float64
	}
	return e, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
