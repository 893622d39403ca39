// Package evaluation scores the medication recommender against a labeled
// set of symptom queries.
package evaluation

import (
	"time"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

// DefaultK is the cutoff used for Recall@K and MRR@K
const DefaultK = 5

// Difficulty grades a golden query
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid checks if the difficulty is one of the defined constants.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// GoldenQuery is a labeled symptom query with the expected outcome.
// Forbidden medications must never be returned for the profile.
type GoldenQuery struct {
	ID                   string     `json:"id" yaml:"id"`
	Query                string     `json:"query" yaml:"query"`
	Pregnant             bool       `json:"pregnant,omitempty" yaml:"pregnant"`
	Conditions           []string   `json:"conditions,omitempty" yaml:"conditions"`
	ExpectedLabel        string     `json:"expected_label,omitempty" yaml:"expected_label"`
	ExpectedMedications  []string   `json:"expected_medications" yaml:"expected_medications"`
	ForbiddenMedications []string   `json:"forbidden_medications,omitempty" yaml:"forbidden_medications"`
	Difficulty           Difficulty `json:"difficulty" yaml:"difficulty"`
}

// Profile builds the user profile the query is evaluated for
func (q GoldenQuery) Profile() entities.UserProfile {
	return entities.UserProfile{
		IsPregnant:        q.Pregnant,
		MedicalConditions: append([]string{}, q.Conditions...),
	}
}

// EvalResult holds the evaluation outcome for a single query.
type EvalResult struct {
	QueryID      string        `json:"query_id"`
	Query        string        `json:"query"`
	Label        string        `json:"label"`
	LabelMatched bool          `json:"label_matched"`
	RecallAtK    float64       `json:"recall_at_k"`
	MRRAtK       float64       `json:"mrr_at_k"`
	ResultCount  int           `json:"result_count"`
	Retrieved    []string      `json:"retrieved"`
	Violations   []string      `json:"violations,omitempty"`
	Latency      time.Duration `json:"latency"`
	Error        string        `json:"error,omitempty"`
}

// EvalSummary holds aggregate metrics across all golden queries.
type EvalSummary struct {
	K                int                      `json:"k"`
	TotalQueries     int                      `json:"total_queries"`
	FailedQueries    int                      `json:"failed_queries"`
	AvgRecallAtK     float64                  `json:"avg_recall_at_k"`
	AvgMRRAtK        float64                  `json:"avg_mrr_at_k"`
	LabelAccuracy    float64                  `json:"label_accuracy"`
	AvgLatency       time.Duration            `json:"avg_latency"`
	QueriesWithHits  int                      `json:"queries_with_hits"` // queries that returned at least 1 result
	SafetyViolations int                      `json:"safety_violations"`
	ByDifficulty     map[Difficulty]*Subtotal `json:"by_difficulty"`
	Results          []EvalResult             `json:"results"`
}

// Subtotal holds metrics grouped by difficulty.
type Subtotal struct {
	Count        int     `json:"count"`
	AvgRecallAtK float64 `json:"avg_recall_at_k"`
	AvgMRRAtK    float64 `json:"avg_mrr_at_k"`
}
