package entities

import "strings"

const (
	ProfileTagPregnant = "pregnant"
	ProfileTagAdults   = "adults"
)

// UserProfile is the read-only subset of the identity provider's profile the
// core consumes. It is never written back.
type UserProfile struct {
	Name              string   `json:"name,omitempty"`
	Age               string   `json:"age,omitempty"`
	Gender            string   `json:"gender,omitempty"`
	IsPregnant        bool     `json:"is_pregnant"`
	MedicalConditions []string `json:"medical_conditions"`
}

// Tag returns the suitability tag used to match medication entries
func (p UserProfile) Tag() string {
	if p.IsPregnant {
		return ProfileTagPregnant
	}
	return ProfileTagAdults
}

// HasCondition reports whether the profile lists the condition (case-insensitive)
func (p UserProfile) HasCondition(name string) bool {
	for _, c := range p.MedicalConditions {
		if strings.EqualFold(strings.TrimSpace(c), name) {
			return true
		}
	}
	return false
}
