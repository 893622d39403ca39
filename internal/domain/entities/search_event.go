package entities

import (
	"time"
)

// SearchKind distinguishes the two search pipelines in analytics
type SearchKind string

const (
	SearchKindMedication SearchKind = "medication"
	SearchKindFacility   SearchKind = "facility"
)

// SearchEvent represents a single search interaction for analytics.
type SearchEvent struct {
	ID              string     `json:"id" db:"id"`
	Kind            SearchKind `json:"kind" db:"kind"`
	Query           string     `json:"query" db:"query"`
	NormalizedQuery string     `json:"normalized_query" db:"normalized_query"`
	DetectedIntent  string     `json:"detected_intent" db:"detected_intent"`
	ResultCount     int        `json:"result_count" db:"result_count"`
	LatencyMs       int        `json:"latency_ms" db:"latency_ms"`
	DataSource      string     `json:"data_source" db:"data_source"`
	UserLatitude    *float64   `json:"user_latitude,omitempty" db:"user_latitude"`
	UserLongitude   *float64   `json:"user_longitude,omitempty" db:"user_longitude"`
	SessionID       string     `json:"session_id,omitempty" db:"session_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// UnmatchedQuery groups repeated searches that found nothing, so curators can
// see which symptoms or places the catalogs are missing.
type UnmatchedQuery struct {
	NormalizedQuery string     `json:"normalized_query" db:"normalized_query"`
	Kind            SearchKind `json:"kind" db:"kind"`
	Occurrences     int        `json:"occurrences" db:"occurrences"`
	LastSeen        time.Time  `json:"last_seen" db:"last_seen"`
}
