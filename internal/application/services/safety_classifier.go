package services

import (
	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

// SafetyClassifier derives a safety verdict for one medication and profile
type SafetyClassifier struct{}

// NewSafetyClassifier creates a classifier
func NewSafetyClassifier() *SafetyClassifier {
	return &SafetyClassifier{}
}

// Classify accumulates every applicable warning. The status only ever rises.
func (c *SafetyClassifier) Classify(med entities.Medication, profile entities.UserProfile) entities.SafetyVerdict {
	verdict := entities.SafetyVerdict{Status: entities.SafetyStatusSafe, Warnings: []string{}}

	if profile.IsPregnant {
		if hasPregnancyContraindication(med) {
			escalate(&verdict, entities.SafetyStatusWarning, "Not recommended during pregnancy")
		} else if !listsExactTag(med.SuitableFor, entities.ProfileTagPregnant) {
			escalate(&verdict, entities.SafetyStatusCaution, "Consult doctor before use during pregnancy")
		}
	}

	for _, cond := range interactingConditions(med, profile) {
		escalate(&verdict, entities.SafetyStatusWarning, "May interact with "+cond)
	}
	return verdict
}

func escalate(v *entities.SafetyVerdict, status entities.SafetyStatus, warning string) {
	if status.Severity() > v.Status.Severity() {
		v.Status = status
	}
	v.Warnings = append(v.Warnings, warning)
}

func listsExactTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
