package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carecompanion/internal/adapters/seed"
	"github.com/zatekoja/carecompanion/internal/application/services"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

type cannedRecommender map[string]*services.Recommendation

func (c cannedRecommender) Recommend(ctx context.Context, req services.RecommendRequest) (*services.Recommendation, error) {
	rec, ok := c[req.Text]
	if !ok {
		return nil, errors.New("upstream down")
	}
	return rec, nil
}

func recommendation(label string, meds ...services.RecommendedMedication) *services.Recommendation {
	return &services.Recommendation{Intent: entities.SymptomIntent{Label: label}, Medications: meds}
}

func med(id string, status entities.SafetyStatus) services.RecommendedMedication {
	return services.RecommendedMedication{
		Medication: entities.Medication{ID: id},
		Safety:     entities.SafetyVerdict{Status: status},
	}
}

func TestRunner_AggregatesScores(t *testing.T) {
	rec := cannedRecommender{
		"headache":  recommendation("headache", med("advil", entities.SafetyStatusSafe), med("tylenol", entities.SafetyStatusSafe)),
		"heartburn": recommendation("digestive", med("tums", entities.SafetyStatusSafe)),
		"rash":      recommendation("skin"),
	}
	queries := []GoldenQuery{
		{ID: "q1", Query: "headache", ExpectedLabel: "headache", ExpectedMedications: []string{"tylenol"}, Difficulty: DifficultyEasy},
		{ID: "q2", Query: "heartburn", ExpectedLabel: "heartburn", ExpectedMedications: []string{"tums"}, Difficulty: DifficultyEasy},
		{ID: "q3", Query: "rash", ExpectedLabel: "skin", Difficulty: DifficultyHard},
	}

	summary, err := NewRunner(rec, 0).Run(context.Background(), queries)
	require.NoError(t, err)

	assert.Equal(t, DefaultK, summary.K)
	assert.Equal(t, 3, summary.TotalQueries)
	assert.Equal(t, 2, summary.QueriesWithHits)
	assert.Zero(t, summary.FailedQueries)
	// q3 lists no medications and only counts toward label accuracy
	assert.InDelta(t, 1.0, summary.AvgRecallAtK, 1e-9)
	assert.InDelta(t, 0.75, summary.AvgMRRAtK, 1e-9)
	assert.InDelta(t, 2.0/3.0, summary.LabelAccuracy, 1e-9)

	require.Contains(t, summary.ByDifficulty, DifficultyEasy)
	assert.Equal(t, 2, summary.ByDifficulty[DifficultyEasy].Count)
	assert.NotContains(t, summary.ByDifficulty, DifficultyHard)

	require.Len(t, summary.Results, 3)
	assert.Equal(t, []string{"advil", "tylenol"}, summary.Results[0].Retrieved)
	assert.False(t, summary.Results[1].LabelMatched)
}

func TestRunner_CountsSafetyViolations(t *testing.T) {
	rec := cannedRecommender{
		"headache": recommendation("headache", med("tylenol", entities.SafetyStatusSafe), med("advil", entities.SafetyStatusWarning)),
	}
	queries := []GoldenQuery{{
		ID: "q1", Query: "headache", Pregnant: true, Difficulty: DifficultyEasy,
		ExpectedMedications: []string{"tylenol"}, ForbiddenMedications: []string{"advil"},
	}}

	summary, err := NewRunner(rec, 5).Run(context.Background(), queries)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.SafetyViolations)
	assert.Len(t, summary.Results[0].Violations, 2)
}

func TestRunner_FailedQueryScoresZero(t *testing.T) {
	queries := []GoldenQuery{{ID: "q1", Query: "unknown", ExpectedMedications: []string{"tums"}, Difficulty: DifficultyEasy}}

	summary, err := NewRunner(cannedRecommender{}, 5).Run(context.Background(), queries)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FailedQueries)
	assert.Equal(t, "upstream down", summary.Results[0].Error)
	assert.Zero(t, summary.AvgRecallAtK)
}

func TestRunner_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(cannedRecommender{}, 5).Run(ctx, []GoldenQuery{{ID: "q1", Query: "x", ExpectedLabel: "x", Difficulty: DifficultyEasy}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_AgainstSeedCatalog(t *testing.T) {
	catalog, err := seed.LoadEmbedded()
	require.NoError(t, err)
	svc := services.NewMedicationService(catalog, nil, nil, nil, 0)

	queries := []GoldenQuery{{
		ID: "pregnant-headache", Query: "headache", Pregnant: true, Difficulty: DifficultyEasy,
		ExpectedLabel: "headache", ExpectedMedications: []string{"tylenol_expl"},
		ForbiddenMedications: []string{"advil_expl", "aleve_expl", "excedrin_expl"},
	}}

	summary, err := NewRunner(svc, 5).Run(context.Background(), queries)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, summary.AvgRecallAtK, 1e-9)
	assert.InDelta(t, 1.0, summary.AvgMRRAtK, 1e-9)
	assert.Equal(t, 1.0, summary.LabelAccuracy)
	assert.Zero(t, summary.SafetyViolations)
}
