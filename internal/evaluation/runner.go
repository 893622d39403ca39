package evaluation

import (
	"context"
	"time"

	"github.com/zatekoja/carecompanion/internal/application/services"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

// Runner runs evaluation across a set of golden queries.
type Runner struct {
	recommender services.Recommender
	k           int
}

// NewRunner creates a runner scoring the top k results; k <= 0 uses DefaultK
func NewRunner(recommender services.Recommender, k int) *Runner {
	if k <= 0 {
		k = DefaultK
	}
	return &Runner{recommender: recommender, k: k}
}

// Run evaluates every query. A query whose recommendation fails is counted in
// FailedQueries and scores zero; a canceled context stops the run.
func (r *Runner) Run(ctx context.Context, queries []GoldenQuery) (*EvalSummary, error) {
	summary := &EvalSummary{
		K:            r.k,
		TotalQueries: len(queries),
		ByDifficulty: make(map[Difficulty]*Subtotal),
		Results:      make([]EvalResult, 0, len(queries)),
	}

	for _, gq := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		summary.Results = append(summary.Results, r.evaluate(ctx, gq))
	}

	r.aggregate(summary, queries)
	return summary, nil
}

func (r *Runner) evaluate(ctx context.Context, gq GoldenQuery) EvalResult {
	result := EvalResult{QueryID: gq.ID, Query: gq.Query, Retrieved: []string{}}

	start := time.Now()
	rec, err := r.recommender.Recommend(ctx, services.RecommendRequest{Text: gq.Query, Profile: gq.Profile()})
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	for _, m := range rec.Medications {
		result.Retrieved = append(result.Retrieved, m.ID)
		if m.Safety.Status == entities.SafetyStatusWarning {
			result.Violations = append(result.Violations, m.ID+": returned with a warning verdict")
		}
	}
	for _, id := range Intersect(gq.ForbiddenMedications, result.Retrieved) {
		result.Violations = append(result.Violations, id+": forbidden for this profile")
	}

	result.Label = rec.Intent.Label
	result.LabelMatched = gq.ExpectedLabel == "" || gq.ExpectedLabel == rec.Intent.Label
	result.ResultCount = len(rec.Medications)
	result.RecallAtK = RecallAtK(gq.ExpectedMedications, result.Retrieved, r.k)
	result.MRRAtK = MRRAtK(gq.ExpectedMedications, result.Retrieved, r.k)
	return result
}

// aggregate averages recall and MRR over the queries that list expected
// medications; label-only queries count toward label accuracy alone.
func (r *Runner) aggregate(s *EvalSummary, queries []GoldenQuery) {
	var latency time.Duration
	scored, labelled, labelHits := 0, 0, 0

	for i, res := range s.Results {
		gq := queries[i]
		if res.Error != "" {
			s.FailedQueries++
		}
		if res.ResultCount > 0 {
			s.QueriesWithHits++
		}
		if gq.ExpectedLabel != "" {
			labelled++
			if res.LabelMatched {
				labelHits++
			}
		}
		s.SafetyViolations += len(res.Violations)
		latency += res.Latency

		if len(gq.ExpectedMedications) == 0 {
			continue
		}
		scored++
		s.AvgRecallAtK += res.RecallAtK
		s.AvgMRRAtK += res.MRRAtK

		sub, ok := s.ByDifficulty[gq.Difficulty]
		if !ok {
			sub = &Subtotal{}
			s.ByDifficulty[gq.Difficulty] = sub
		}
		sub.Count++
		sub.AvgRecallAtK += res.RecallAtK
		sub.AvgMRRAtK += res.MRRAtK
	}

	if n := len(s.Results); n > 0 {
		s.AvgLatency = latency / time.Duration(n)
	}
	if scored > 0 {
		s.AvgRecallAtK /= float64(scored)
		s.AvgMRRAtK /= float64(scored)
	}
	if labelled > 0 {
		s.LabelAccuracy = float64(labelHits) / float64(labelled)
	} else {
		s.LabelAccuracy = 1
	}
	for _, sub := range s.ByDifficulty {
		sub.AvgRecallAtK /= float64(sub.Count)
		sub.AvgMRRAtK /= float64(sub.Count)
	}
}
