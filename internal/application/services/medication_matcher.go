package services

import (
	"sort"
	"strings"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

const (
	scoreName             = 50
	scoreIndication       = 30
	scoreSummary          = 20
	scoreIntentCategory   = 15
	scoreCategoryTerm     = 10
	scoreCategoryFallback = 10

	suitableForAll = "all"
)

// MedicationMatcher scores a catalog against a search term
type MedicationMatcher struct{}

// NewMedicationMatcher creates a matcher
func NewMedicationMatcher() *MedicationMatcher {
	return &MedicationMatcher{}
}

// Search scores every catalog entry and returns the nonzero ones, highest
// first with catalog order kept on ties. When nothing scores and the intent
// has categories, entries in any of those categories are returned with a flat
// score. Results are copies with MatchScore set.
func (m *MedicationMatcher) Search(term string, catalog []entities.Medication, intent entities.SymptomIntent) []entities.Medication {
	term = strings.ToLower(strings.TrimSpace(term))

	var out []entities.Medication
	for _, med := range catalog {
		if score := scoreMedication(med, term, intent.Categories); score > 0 {
			c := med.Clone()
			c.MatchScore = float64(score)
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchScore > out[j].MatchScore
	})

	if len(out) == 0 && len(intent.Categories) > 0 {
		for _, med := range catalog {
			if categoryMatches(strings.ToLower(med.Category), intent.Categories) {
				c := med.Clone()
				c.MatchScore = scoreCategoryFallback
				out = append(out, c)
			}
		}
	}
	return out
}

// An empty term only contributes through intent categories
func scoreMedication(med entities.Medication, term string, categories []string) int {
	score := 0
	category := strings.ToLower(med.Category)
	if term != "" {
		if strings.Contains(strings.ToLower(med.Name), term) {
			score += scoreName
		}
		if strings.Contains(strings.ToLower(med.Indication), term) {
			score += scoreIndication
		}
		if strings.Contains(strings.ToLower(med.Summary), term) {
			score += scoreSummary
		}
	}
	if categoryContains(category, categories) {
		score += scoreIntentCategory
	}
	if term != "" && category != "" && strings.Contains(category, term) {
		score += scoreCategoryTerm
	}
	return score
}

func categoryContains(category string, categories []string) bool {
	if category == "" {
		return false
	}
	for _, c := range categories {
		if c = strings.ToLower(c); c != "" && strings.Contains(category, c) {
			return true
		}
	}
	return false
}

// categoryMatches is the broader fallback test: a substring match in either
// direction
func categoryMatches(category string, categories []string) bool {
	if category == "" {
		return false
	}
	for _, c := range categories {
		c = strings.ToLower(c)
		if c == "" {
			continue
		}
		if strings.Contains(category, c) || strings.Contains(c, category) {
			return true
		}
	}
	return false
}

// ApplyProfileFilter drops entries the profile must not be offered. It never
// reorders.
func (m *MedicationMatcher) ApplyProfileFilter(meds []entities.Medication, profile entities.UserProfile) []entities.Medication {
	out := make([]entities.Medication, 0, len(meds))
	for _, med := range meds {
		if allowedForProfile(med, profile) {
			out = append(out, med)
		}
	}
	return out
}

func allowedForProfile(med entities.Medication, profile entities.UserProfile) bool {
	if profile.IsPregnant && hasPregnancyContraindication(med) {
		return false
	}
	if !suitableFor(med, profile) {
		return false
	}
	return len(interactingConditions(med, profile)) == 0
}

// A qualified tag such as "pregnant (check doctor)" still admits a pregnant
// profile here; the safety verdict marks it for caution.
func suitableFor(med entities.Medication, profile entities.UserProfile) bool {
	if len(med.SuitableFor) == 0 {
		return true
	}
	tag := profile.Tag()
	for _, s := range med.SuitableFor {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == suitableForAll || s == tag {
			return true
		}
		if profile.IsPregnant && strings.HasPrefix(s, entities.ProfileTagPregnant) {
			return true
		}
	}
	return false
}

func hasPregnancyContraindication(med entities.Medication) bool {
	for _, c := range med.Contraindications {
		if strings.Contains(strings.ToLower(c), "pregnan") {
			return true
		}
	}
	return false
}

// interactingConditions lists profile conditions that overlap a
// contraindication in either direction, once per (contraindication, condition) pair
func interactingConditions(med entities.Medication, profile entities.UserProfile) []string {
	var hits []string
	for _, contra := range med.Contraindications {
		lc := strings.ToLower(strings.TrimSpace(contra))
		if lc == "" {
			continue
		}
		for _, cond := range profile.MedicalConditions {
			lcond := strings.ToLower(strings.TrimSpace(cond))
			if lcond == "" {
				continue
			}
			if strings.Contains(lc, lcond) || strings.Contains(lcond, lc) {
				hits = append(hits, strings.TrimSpace(cond))
			}
		}
	}
	return hits
}
