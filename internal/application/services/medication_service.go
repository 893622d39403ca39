package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	"github.com/zatekoja/carecompanion/internal/domain/repositories"
	"github.com/zatekoja/carecompanion/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carecompanion/pkg/errors"
)

const (
	NoticeOfflineSuggestions = "Live medication lookup is unavailable. Showing offline suggestions."
	NoticePrescription       = "Antibiotics and other prescription medicines need a doctor's assessment. Showing over-the-counter options for your symptoms."

	defaultMaxAPIResults = 8
)

// RecommendRequest is one medication recommendation query
type RecommendRequest struct {
	Text      string
	Profile   entities.UserProfile
	SessionID string
}

// RecommendedMedication pairs a matched entry with its safety verdict
type RecommendedMedication struct {
	entities.Medication
	Safety entities.SafetyVerdict `json:"safety"`
}

// Recommendation is the full answer to a symptom query
type Recommendation struct {
	Query       string                     `json:"query"`
	Intent      entities.SymptomIntent     `json:"intent"`
	Medications []RecommendedMedication    `json:"medications"`
	Advice      []entities.LifestyleAdvice `json:"advice"`
	Notices     []string                   `json:"notices"`
	DataSource  entities.MedicationSource  `json:"data_source"`
	EmptyReason string                     `json:"empty_reason,omitempty"`
}

// Recommender is implemented by MedicationService
type Recommender interface {
	Recommend(ctx context.Context, req RecommendRequest) (*Recommendation, error)
}

// MedicationService runs the symptom to medication pipeline
type MedicationService struct {
	catalog       repositories.CatalogRepository
	terminology   providers.MedicationTerminologyProvider
	analytics     *SearchAnalyticsService
	metrics       *observability.Metrics
	maxAPIResults int

	intents    *SymptomIntentResolver
	matcher    *MedicationMatcher
	classifier *SafetyClassifier
	advisor    *LifestyleAdvisor
}

// NewMedicationService creates the service. terminology and analytics may be nil.
func NewMedicationService(catalog repositories.CatalogRepository, terminology providers.MedicationTerminologyProvider, analytics *SearchAnalyticsService, metrics *observability.Metrics, maxAPIResults int) *MedicationService {
	if maxAPIResults <= 0 {
		maxAPIResults = defaultMaxAPIResults
	}
	return &MedicationService{
		catalog:       catalog,
		terminology:   terminology,
		analytics:     analytics,
		metrics:       metrics,
		maxAPIResults: maxAPIResults,
		intents:       NewSymptomIntentResolver(),
		matcher:       NewMedicationMatcher(),
		classifier:    NewSafetyClassifier(),
		advisor:       NewLifestyleAdvisor(catalog),
	}
}

var _ Recommender = (*MedicationService)(nil)

// Recommend resolves the text, merges live terminology into the catalog,
// scores, applies the profile filter and classifies every survivor. Only a
// canceled context produces an error.
func (s *MedicationService) Recommend(ctx context.Context, req RecommendRequest) (*Recommendation, error) {
	start := time.Now()
	intent := s.intents.Resolve(req.Text)

	catalog := s.catalog.Medications()
	dataSource := entities.MedicationSourceKnowledgeGraph
	var notices []string

	if s.terminology != nil {
		entries, err := s.terminology.Search(ctx, intent.SearchTerm)
		switch {
		case err != nil && (ctx.Err() != nil || apperrors.IsType(err, apperrors.ErrorTypeCanceled)):
			return nil, apperrors.NewCanceledError("medication search superseded")
		case err != nil:
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("term", intent.SearchTerm).Msg("Terminology lookup failed, using local catalog")
			observability.RecordFallback(ctx, s.metrics, "medications", string(entities.MedicationSourceFallback))
			notices = append(notices, NoticeOfflineSuggestions)
			dataSource = entities.MedicationSourceFallback
			for i := range catalog {
				catalog[i].Source = entities.MedicationSourceFallback
			}
		default:
			var merged int
			catalog, merged = mergeTerminology(catalog, entries, s.maxAPIResults)
			if merged > 0 {
				dataSource = entities.MedicationSourceAPI
			}
		}
	}

	if intent.IsPrescriptionRequest {
		notices = append(notices, NoticePrescription)
	}

	matched := s.matcher.ApplyProfileFilter(s.matcher.Search(intent.SearchTerm, catalog, intent), req.Profile)

	rec := &Recommendation{
		Query:       strings.TrimSpace(req.Text),
		Intent:      intent,
		Medications: make([]RecommendedMedication, 0, len(matched)),
		Advice:      s.advisor.Advise(req.Text, intent),
		Notices:     notices,
		DataSource:  dataSource,
	}
	if rec.Notices == nil {
		rec.Notices = []string{}
	}
	for _, med := range matched {
		verdict := s.classifier.Classify(med, req.Profile)
		observability.RecordSafetyVerdict(ctx, s.metrics, string(verdict.Status), req.Profile.IsPregnant)
		rec.Medications = append(rec.Medications, RecommendedMedication{Medication: med, Safety: verdict})
	}
	if len(rec.Medications) == 0 {
		rec.EmptyReason = fmt.Sprintf("No suitable over-the-counter options found for %q.", intent.SearchTerm)
	}

	s.analytics.TrackSearch(ctx, &entities.SearchEvent{
		ID:              uuid.NewString(),
		Kind:            entities.SearchKindMedication,
		Query:           rec.Query,
		NormalizedQuery: intent.SearchTerm,
		DetectedIntent:  intent.Label,
		ResultCount:     len(rec.Medications),
		LatencyMs:       int(time.Since(start).Milliseconds()),
		DataSource:      string(dataSource),
		SessionID:       req.SessionID,
	})
	return rec, nil
}

// Classify returns the safety verdict for one catalog entry
func (s *MedicationService) Classify(medicationID string, profile entities.UserProfile) (entities.Medication, entities.SafetyVerdict, error) {
	for _, med := range s.catalog.Medications() {
		if med.ID == medicationID {
			return med, s.classifier.Classify(med, profile), nil
		}
	}
	return entities.Medication{}, entities.SafetyVerdict{}, apperrors.NewNotFoundError("medication not found")
}

// mergeTerminology enriches catalog entries whose name contains a looked-up
// drug name and appends the rest as api entries. It returns the number of
// entries that came from the lookup.
func mergeTerminology(catalog []entities.Medication, entries []entities.TerminologyEntry, limit int) ([]entities.Medication, int) {
	merged := 0
	for _, entry := range entries {
		if merged == limit {
			break
		}
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			continue
		}
		merged++

		if idx := catalogIndex(catalog, name); idx >= 0 {
			catalog[idx].Details = mergeDetails(catalog[idx].Details, entry)
			catalog[idx].Source = entities.MedicationSourceAPI
			continue
		}
		catalog = append(catalog, entities.Medication{
			ID:      "rx-" + slug(name),
			Name:    name,
			Summary: entry.Display,
			Details: mergeDetails(nil, entry),
			Source:  entities.MedicationSourceAPI,
		})
	}
	return catalog, merged
}

func catalogIndex(catalog []entities.Medication, name string) int {
	lower := strings.ToLower(name)
	for i, med := range catalog {
		if strings.Contains(strings.ToLower(med.Name), lower) {
			return i
		}
	}
	return -1
}

func mergeDetails(existing *entities.MedicationDetails, entry entities.TerminologyEntry) *entities.MedicationDetails {
	d := &entities.MedicationDetails{}
	if existing != nil {
		*d = *existing
	}
	d.Strengths = appendUnique(append([]string(nil), d.Strengths...), entry.Strengths...)
	d.Routes = appendUnique(append([]string(nil), d.Routes...), entry.Routes...)
	d.Classes = appendUnique(append([]string(nil), d.Classes...), entry.Classes...)
	return d
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
