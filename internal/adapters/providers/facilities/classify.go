package facilities

import (
	"strings"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

// ClassifyType maps OSM tags to a facility type
func ClassifyType(tags map[string]string) entities.FacilityType {
	switch tags["amenity"] {
	case "hospital":
		return entities.FacilityTypeGeneralHospital
	case "doctors", "dentist":
		return entities.FacilityTypeSpecialtyClinic
	}
	if tags["emergency"] == "yes" {
		return entities.FacilityTypeEmergencyCare
	}
	return entities.FacilityTypeSpecialtyClinic
}

type specialtyRule struct {
	nameKeywords []string
	amenity      string
	healthcare   []string
	specialties  []string
}

var specialtyRules = []specialtyRule{
	{nameKeywords: []string{"eye", "vision", "retina", "lasik"}, healthcare: []string{"ophthalmology"}, specialties: []string{"Ophthalmology", "Vision Care"}},
	{nameKeywords: []string{"skin", "derma", "cutaneous"}, healthcare: []string{"dermatology"}, specialties: []string{"Dermatology", "Skin Care"}},
	{nameKeywords: []string{"dental", "dentist", "tooth", "orthodont"}, amenity: "dentist", healthcare: []string{"dentist"}, specialties: []string{"Dentistry"}},
	{nameKeywords: []string{"heart", "cardio", "vascular"}, specialties: []string{"Cardiology"}},
	{nameKeywords: []string{"women", "maternity", "obgyn", "birth"}, specialties: []string{"Obstetrics", "Gynecology"}},
	{nameKeywords: []string{"ortho", "bone", "joint", "spine"}, specialties: []string{"Orthopedics"}},
	{nameKeywords: []string{"pediatric", "child", "kid"}, specialties: []string{"Pediatrics"}},
}

// InferSpecialties guesses specialties from the facility name and its amenity
// and healthcare tags. Output order follows rule order with duplicates removed.
func InferSpecialties(name string, tags map[string]string) []string {
	lowerName := strings.ToLower(name)
	amenity := strings.ToLower(tags["amenity"])
	healthcare := strings.ToLower(tags["healthcare"])
	emergency := tags["emergency"] == "yes"

	var out []string
	seen := map[string]struct{}{}
	add := func(values ...string) {
		for _, v := range values {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}

	if strings.Contains(lowerName, "hospital") || amenity == "hospital" || emergency {
		add("General Practice")
		if emergency {
			add("Emergency")
		}
	}

	for _, rule := range specialtyRules {
		if ruleMatches(rule, lowerName, amenity, healthcare) {
			add(rule.specialties...)
		}
	}

	if len(out) == 0 {
		add("General Practice")
	}
	return out
}

func ruleMatches(rule specialtyRule, name, amenity, healthcare string) bool {
	for _, kw := range rule.nameKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	if rule.amenity != "" && amenity == rule.amenity {
		return true
	}
	for _, h := range rule.healthcare {
		if healthcare == h {
			return true
		}
	}
	return false
}
