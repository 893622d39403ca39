package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carecompanion/internal/application/services"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/repositories"
	apperrors "github.com/zatekoja/carecompanion/pkg/errors"
)

var adult = entities.UserProfile{Name: "Sam", Age: "34"}

func TestMedicationService_MergesTerminology(t *testing.T) {
	catalog := loadCatalog(t)
	terminology := new(MockTerminologyProvider)
	terminology.On("Search", mock.Anything, "headache").Return([]entities.TerminologyEntry{
		{Name: "Acetaminophen", Display: "Acetaminophen (Oral Pill)", Strengths: []string{"500 mg Tab"}, Routes: []string{"Oral Pill"}},
		{Name: "Headache Relief Extra", Display: "Headache Relief Extra (Oral Pill)", Routes: []string{"Oral Pill"}},
	}, nil).Once()

	svc := services.NewMedicationService(catalog, terminology, nil, nil, 0)
	rec, err := svc.Recommend(context.Background(), services.RecommendRequest{Text: "headache", Profile: adult})
	require.NoError(t, err)

	assert.Equal(t, entities.MedicationSourceAPI, rec.DataSource)
	assert.Empty(t, rec.Notices)
	require.NotEmpty(t, rec.Medications)

	first := rec.Medications[0]
	assert.Equal(t, "rx-headache-relief-extra", first.ID)
	assert.Equal(t, entities.MedicationSourceAPI, first.Source)
	assert.Equal(t, entities.SafetyStatusSafe, first.Safety.Status)

	var tylenol *services.RecommendedMedication
	for i := range rec.Medications {
		if rec.Medications[i].ID == "tylenol_expl" {
			tylenol = &rec.Medications[i]
		}
	}
	require.NotNil(t, tylenol)
	assert.Equal(t, entities.MedicationSourceAPI, tylenol.Source)
	require.NotNil(t, tylenol.Details)
	assert.Contains(t, tylenol.Details.Strengths, "500 mg Tab")

	// The shared catalog is untouched
	for _, med := range catalog.Medications() {
		assert.NotEqual(t, entities.MedicationSourceAPI, med.Source)
	}
	terminology.AssertExpectations(t)
}

func TestMedicationService_TerminologyFailureFallsBack(t *testing.T) {
	terminology := new(MockTerminologyProvider)
	terminology.On("Search", mock.Anything, "headache").Return(nil, apperrors.NewExternalError("RxTerms lookup failed", errors.New("503"))).Once()

	svc := services.NewMedicationService(loadCatalog(t), terminology, nil, nil, 0)
	rec, err := svc.Recommend(context.Background(), services.RecommendRequest{Text: "headache", Profile: adult})
	require.NoError(t, err)

	assert.Equal(t, entities.MedicationSourceFallback, rec.DataSource)
	assert.Equal(t, []string{services.NoticeOfflineSuggestions}, rec.Notices)
	require.NotEmpty(t, rec.Medications)
	for _, med := range rec.Medications {
		assert.Equal(t, entities.MedicationSourceFallback, med.Source, med.ID)
	}
	assert.NotEmpty(t, rec.Advice)
}

func TestMedicationService_CanceledLookupIsAnError(t *testing.T) {
	terminology := new(MockTerminologyProvider)
	terminology.On("Search", mock.Anything, mock.Anything).Return(nil, apperrors.NewCanceledError("request canceled")).Once()

	svc := services.NewMedicationService(loadCatalog(t), terminology, nil, nil, 0)
	_, err := svc.Recommend(context.Background(), services.RecommendRequest{Text: "headache"})

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCanceled))
}

func TestMedicationService_PrescriptionNotice(t *testing.T) {
	svc := services.NewMedicationService(loadCatalog(t), nil, nil, nil, 0)

	rec, err := svc.Recommend(context.Background(), services.RecommendRequest{Text: "I need amoxicillin for my sore throat", Profile: adult})
	require.NoError(t, err)

	assert.True(t, rec.Intent.IsPrescriptionRequest)
	assert.Contains(t, rec.Notices, services.NoticePrescription)
	assert.Equal(t, entities.MedicationSourceKnowledgeGraph, rec.DataSource)
}

func TestMedicationService_EmptyReason(t *testing.T) {
	svc := services.NewMedicationService(stubCatalog{}, nil, nil, nil, 0)

	rec, err := svc.Recommend(context.Background(), services.RecommendRequest{Text: "metformin"})
	require.NoError(t, err)

	assert.Empty(t, rec.Medications)
	assert.Equal(t, `No suitable over-the-counter options found for "metformin".`, rec.EmptyReason)
	assert.NotNil(t, rec.Advice)
	assert.NotNil(t, rec.Notices)
}

func TestMedicationService_PregnantProfileIsFiltered(t *testing.T) {
	svc := services.NewMedicationService(loadCatalog(t), nil, nil, nil, 0)

	rec, err := svc.Recommend(context.Background(), services.RecommendRequest{
		Text:    "headache",
		Profile: entities.UserProfile{IsPregnant: true},
	})
	require.NoError(t, err)

	require.Len(t, rec.Medications, 1)
	assert.Equal(t, "tylenol_expl", rec.Medications[0].ID)
}

func TestMedicationService_TracksSearch(t *testing.T) {
	repo := new(MockSearchAnalyticsRepository)
	repo.On("Record", mock.Anything, mock.MatchedBy(func(e *entities.SearchEvent) bool {
		return e.Kind == entities.SearchKindMedication &&
			e.NormalizedQuery == "headache" &&
			e.DetectedIntent == "headache" &&
			e.SessionID == "sess-1" &&
			e.ResultCount > 0 &&
			!e.CreatedAt.IsZero()
	})).Return(nil).Once()

	analytics := services.NewSearchAnalyticsService(repo)
	svc := services.NewMedicationService(loadCatalog(t), nil, analytics, nil, 0)

	_, err := svc.Recommend(context.Background(), services.RecommendRequest{Text: "Headache", Profile: adult, SessionID: "sess-1"})
	require.NoError(t, err)

	analytics.Wait()
	repo.AssertExpectations(t)
}

func TestMedicationService_Classify(t *testing.T) {
	svc := services.NewMedicationService(loadCatalog(t), nil, nil, nil, 0)

	med, verdict, err := svc.Classify("advil_expl", entities.UserProfile{IsPregnant: true})
	require.NoError(t, err)
	assert.Equal(t, "Ibuprofen (Advil)", med.Name)
	assert.NotEqual(t, entities.SafetyStatusSafe, verdict.Status)

	_, _, err = svc.Classify("nope", adult)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestSearchAnalyticsService_Disabled(t *testing.T) {
	var analytics *services.SearchAnalyticsService
	analytics.TrackSearch(context.Background(), &entities.SearchEvent{Query: "x"})
	analytics.Wait()

	_, err := services.NewSearchAnalyticsService(nil).ZeroResults(context.Background(), repositories.ZeroResultFilter{Limit: 10})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
	_, err = analytics.TopUnmatched(context.Background(), repositories.ZeroResultFilter{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
}

func TestSearchAnalyticsService_PassesFilterThrough(t *testing.T) {
	repo := new(MockSearchAnalyticsRepository)
	filter := repositories.ZeroResultFilter{Kind: entities.SearchKindMedication, Limit: 5}
	repo.On("TopUnmatched", mock.Anything, filter).Return([]entities.UnmatchedQuery{{NormalizedQuery: "xyzzy", Occurrences: 3}}, nil).Once()

	got, err := services.NewSearchAnalyticsService(repo).TopUnmatched(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Occurrences)
	repo.AssertExpectations(t)
}
