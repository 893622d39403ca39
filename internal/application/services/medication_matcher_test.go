package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carecompanion/internal/adapters/seed"
	"github.com/zatekoja/carecompanion/internal/application/services"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

func loadCatalog(t *testing.T) *seed.Catalog {
	t.Helper()
	catalog, err := seed.LoadEmbedded()
	require.NoError(t, err)
	return catalog
}

func names(meds []entities.Medication) []string {
	out := make([]string, len(meds))
	for i, m := range meds {
		out[i] = m.Name
	}
	return out
}

func TestMedicationMatcher_Headache(t *testing.T) {
	catalog := loadCatalog(t)
	intent := services.NewSymptomIntentResolver().Resolve("headache")

	got := services.NewMedicationMatcher().Search(intent.SearchTerm, catalog.Medications(), intent)

	require.NotEmpty(t, got)
	assert.Equal(t, []string{
		"Acetaminophen (Tylenol)",
		"Excedrin Migraine",
		"Ibuprofen (Advil)",
		"Naproxen (Aleve)",
	}, names(got))
	assert.Equal(t, 65.0, got[0].MatchScore)
	assert.Equal(t, 45.0, got[1].MatchScore)
	assert.Equal(t, 15.0, got[2].MatchScore)
	for _, m := range got {
		assert.NotEqual(t, "Sleep", m.Category)
		assert.Greater(t, m.MatchScore, 0.0)
	}
}

func TestMedicationMatcher_ScoresAreAdditive(t *testing.T) {
	catalog := []entities.Medication{
		{ID: "1", Name: "Cough Drops", Indication: "cough", Summary: "for cough", Category: "Cough Care"},
		{ID: "2", Name: "Other", Indication: "dry cough", Category: "Sleep"},
		{ID: "3", Name: "Unrelated", Category: "Vitamins"},
	}
	intent := entities.SymptomIntent{Categories: []string{"cough care"}}

	got := services.NewMedicationMatcher().Search("  COUGH ", catalog, intent)

	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, 125.0, got[0].MatchScore)
	assert.Equal(t, 30.0, got[1].MatchScore)
	assert.Zero(t, catalog[0].MatchScore, "catalog entries must not be modified")
}

func TestMedicationMatcher_StableOnTies(t *testing.T) {
	catalog := []entities.Medication{
		{ID: "a", Indication: "rash"},
		{ID: "b", Name: "rash cream"},
		{ID: "c", Indication: "rash"},
	}

	got := services.NewMedicationMatcher().Search("rash", catalog, entities.SymptomIntent{})

	assert.Equal(t, []string{"b", "a", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestMedicationMatcher_IntentCategoryScore(t *testing.T) {
	catalog := []entities.Medication{
		{ID: "1", Name: "Lozenge", Category: "Throat Care"},
		{ID: "2", Name: "Antacid", Category: "Digestive"},
	}
	matcher := services.NewMedicationMatcher()

	got := matcher.Search("zzz", catalog, entities.SymptomIntent{Categories: []string{"throat"}})
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, 15.0, got[0].MatchScore)

	none := matcher.Search("zzz", catalog, entities.SymptomIntent{})
	assert.Empty(t, none)
}

func TestMedicationMatcher_CategoryFallbackIsBidirectional(t *testing.T) {
	catalog := []entities.Medication{
		{ID: "1", Name: "Drops", Category: "Eye"},
		{ID: "2", Name: "Cream", Category: "First Aid"},
		{ID: "3", Name: "Antacid", Category: "Digestive"},
	}
	intent := entities.SymptomIntent{Categories: []string{"eye care", "aid"}}

	got := services.NewMedicationMatcher().Search("zzz", catalog, intent)

	// "first aid" contains "aid" and scores normally, so no fallback runs
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)

	got = services.NewMedicationMatcher().Search("zzz", catalog, entities.SymptomIntent{Categories: []string{"eye care"}})
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, 10.0, got[0].MatchScore)
}

func TestMedicationMatcher_PregnantProfileExcludesPregnancyContraindications(t *testing.T) {
	catalog := loadCatalog(t)
	intent := services.NewSymptomIntentResolver().Resolve("headache")
	matcher := services.NewMedicationMatcher()

	scored := matcher.Search(intent.SearchTerm, catalog.Medications(), intent)
	got := matcher.ApplyProfileFilter(scored, entities.UserProfile{IsPregnant: true})

	assert.Equal(t, []string{"Acetaminophen (Tylenol)"}, names(got))
	assert.NotContains(t, names(got), "Ibuprofen (Advil)")
}

func TestMedicationMatcher_ApplyProfileFilter(t *testing.T) {
	meds := []entities.Medication{
		{ID: "adults", SuitableFor: []string{"adults"}},
		{ID: "children", SuitableFor: []string{"children"}},
		{ID: "all", SuitableFor: []string{"all"}},
		{ID: "untagged"},
		{ID: "pregnant-qualified", SuitableFor: []string{"adults", "pregnant (check doctor)"}},
		{ID: "pregnant-only", SuitableFor: []string{"pregnant"}},
		{ID: "pregnancy-contra", SuitableFor: []string{"pregnant"}, Contraindications: []string{"Pregnancy"}},
		{ID: "ulcer", SuitableFor: []string{"all"}, Contraindications: []string{"stomach ulcers"}},
	}
	matcher := services.NewMedicationMatcher()

	adult := matcher.ApplyProfileFilter(meds, entities.UserProfile{MedicalConditions: []string{"ulcers"}})
	assert.Equal(t, []string{"adults", "all", "untagged", "pregnant-qualified"}, medIDs(adult))

	pregnant := matcher.ApplyProfileFilter(meds, entities.UserProfile{IsPregnant: true})
	assert.Equal(t, []string{"all", "untagged", "pregnant-qualified", "pregnant-only", "ulcer"}, medIDs(pregnant))
}

func medIDs(meds []entities.Medication) []string {
	out := make([]string, len(meds))
	for i, m := range meds {
		out[i] = m.ID
	}
	return out
}

func TestMedicationMatcher_IntentCategoryMustBeInsideMedicationCategory(t *testing.T) {
	catalog := []entities.Medication{
		{ID: "1", Name: "Broad", Category: "Cold"},
		{ID: "2", Name: "Narrow", Category: "Cold & Flu Relief"},
	}
	intent := entities.SymptomIntent{Categories: []string{"cold & flu"}}

	got := services.NewMedicationMatcher().Search("relief", catalog, intent)

	require.Len(t, got, 1)
	assert.Equal(t, "Narrow", got[0].Name)
	assert.Equal(t, 25.0, got[0].MatchScore)
}
