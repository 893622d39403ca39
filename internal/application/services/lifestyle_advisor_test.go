package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zatekoja/carecompanion/internal/application/services"
)

func adviceIDs(t *testing.T, text string) []string {
	t.Helper()
	catalog := loadCatalog(t)
	intent := services.NewSymptomIntentResolver().Resolve(text)
	var out []string
	for _, a := range services.NewLifestyleAdvisor(catalog).Advise(text, intent) {
		out = append(out, a.ID)
	}
	return out
}

func TestLifestyleAdvisor_KeywordMatch(t *testing.T) {
	assert.Equal(t, []string{"hydration", "rest", "compress"}, adviceIDs(t, "bad migraine and headache"))
	assert.Equal(t, []string{"brat", "ginger"}, adviceIDs(t, "nausea"))
}

func TestLifestyleAdvisor_FallsBackToIntentCategories(t *testing.T) {
	// "stuffy" is not an advice keyword; the nasal intent maps to respiratory tips
	got := adviceIDs(t, "stuffy")
	assert.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 3)
	assert.Contains(t, got, "steam")
}

func TestLifestyleAdvisor_NoMatch(t *testing.T) {
	assert.Empty(t, adviceIDs(t, "metformin"))
}
