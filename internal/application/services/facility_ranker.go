package services

import (
	"sort"
	"strings"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/pkg/geo"
)

const (
	conditionHeartDisease = "Heart Disease"
	conditionHypertension = "Hypertension"
	conditionDiabetes     = "Diabetes"
)

// FacilityRanker filters, measures and orders a facility result set
type FacilityRanker struct{}

// NewFacilityRanker creates a ranker
func NewFacilityRanker() *FacilityRanker {
	return &FacilityRanker{}
}

// Rank returns a new slice; the input is never modified.
//
// Order of operations: distances are recomputed against center, the
// emergency and specialty filters drop entries, the rest is sorted by
// distance, then profile priorities are applied as two stable partitions
// (maternity first for pregnant profiles, then cardiology for cardiac ones).
// The second partition runs on the output of the first, so a cardiac facility
// can move ahead of a maternity one.
func (r *FacilityRanker) Rank(facilities []entities.Facility, center entities.Coordinate, filters entities.FacilityFilters, profile entities.UserProfile) []entities.Facility {
	term := filters.SpecialtyTerm()

	out := make([]entities.Facility, 0, len(facilities))
	for _, f := range facilities {
		f = f.Clone()
		f.DistanceMiles = geo.RoundTenth(geo.DistanceMiles(center, f.Coordinates))

		if filters.EmergencyOnly && !f.EmergencyServices {
			continue
		}
		if term != "" && !matchesSpecialtyTerm(&f, term) {
			continue
		}
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMiles < out[j].DistanceMiles
	})

	if profile.IsPregnant {
		out = stablePartition(out, isMaternityFacility)
	}
	if hasCardiacCondition(profile) {
		out = stablePartition(out, func(f *entities.Facility) bool {
			return f.HasSpecialty("Cardiology")
		})
	}
	return out
}

// ProfileAdvisories returns the notes shown alongside locator results
func ProfileAdvisories(profile entities.UserProfile) []string {
	var notes []string
	if profile.IsPregnant {
		notes = append(notes, "Maternity/Obstetrics facilities are prioritized.")
	}
	if hasCardiacCondition(profile) {
		notes = append(notes, "Cardiac care facilities are prioritized.")
	}
	if profile.HasCondition(conditionDiabetes) {
		notes = append(notes, "Endocrinology services are recommended.")
	}
	return notes
}

func matchesSpecialtyTerm(f *entities.Facility, term string) bool {
	if strings.Contains(strings.ToLower(f.Name), term) || strings.Contains(strings.ToLower(string(f.Type)), term) {
		return true
	}
	for _, s := range f.Specialties {
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

func isMaternityFacility(f *entities.Facility) bool {
	return f.HasSpecialty("Obstetrics") || f.HasSpecialty("Maternal Care")
}

func hasCardiacCondition(profile entities.UserProfile) bool {
	return profile.HasCondition(conditionHeartDisease) || profile.HasCondition(conditionHypertension)
}

// stablePartition moves matching entries to the front, keeping relative order
// inside both groups
func stablePartition(in []entities.Facility, pred func(*entities.Facility) bool) []entities.Facility {
	front := make([]entities.Facility, 0, len(in))
	var back []entities.Facility
	for i := range in {
		if pred(&in[i]) {
			front = append(front, in[i])
		} else {
			back = append(back, in[i])
		}
	}
	return append(front, back...)
}
