package services

import (
	"strings"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

const defaultSearchTerm = "pain relief"

type symptomPattern struct {
	label      string
	keywords   []string
	tokens     []string
	categories []string
}

// Order matters: the first matched pattern supplies the search term.
var symptomPatterns = []symptomPattern{
	{"eye", []string{"eye", "vision"}, []string{"eye drops"}, []string{"eye care", "allergies"}},
	{"nasal", []string{"nose", "nasal", "sinus", "congest", "stuffy", "runny"}, []string{"nasal congestion", "decongestant"}, []string{"cold & flu", "respiratory"}},
	{"throat", []string{"throat", "cough", "hoarse", "phlegm", "mucus"}, []string{"throat lozenge", "cough"}, []string{"cold & flu", "respiratory"}},
	{"digestive", []string{"stomach", "nausea", "diarrhea", "vomit", "indigestion", "bloat", "constipat"}, []string{"upset stomach"}, []string{"digestive"}},
	{"heartburn", []string{"heartburn", "acid", "reflux", "gerd"}, []string{"heartburn", "antacid"}, []string{"digestive"}},
	{"skin", []string{"skin", "rash", "itch", "hives", "allerg", "sneez", "eczema", "bite"}, []string{"allergy", "rash", "itch"}, []string{"allergies", "first aid"}},
	{"headache", []string{"headache", "migraine", "head pain"}, []string{"headache", "pain relief"}, []string{"pain relief"}},
	{"sleep", []string{"sleep", "insomnia", "jet lag"}, []string{"sleep", "insomnia"}, []string{"sleep"}},
	{"muscle", []string{"muscle", "joint", "back pain", "sprain", "ache", "cramp", "arthritis"}, []string{"muscle aches", "inflammation"}, []string{"pain relief"}},
	{"fever", []string{"fever", "temperature", "chills", "flu"}, []string{"fever", "pain relief"}, []string{"pain relief", "cold & flu"}},
}

var prescriptionKeywords = []string{
	"antibiotic", "prescription", "amoxicillin", "penicillin", "azithromycin", "steroid", "opioid", "antiviral",
}

// SymptomIntentResolver maps free text to a SymptomIntent
type SymptomIntentResolver struct{}

// NewSymptomIntentResolver creates a resolver
func NewSymptomIntentResolver() *SymptomIntentResolver {
	return &SymptomIntentResolver{}
}

// Resolve reads the text against the symptom table. Every matched pattern
// contributes its tokens and categories; the prescription flag is independent
// of the table.
func (r *SymptomIntentResolver) Resolve(text string) entities.SymptomIntent {
	trimmed := strings.TrimSpace(text)
	normalized := strings.ToLower(trimmed)

	intent := entities.SymptomIntent{
		Tokens:       []string{},
		Categories:   []string{},
		OriginalTerm: trimmed,
	}

	for _, p := range symptomPatterns {
		if !containsAny(normalized, p.keywords) {
			continue
		}
		if intent.Label == "" {
			intent.Label = p.label
		}
		intent.Tokens = appendUnique(intent.Tokens, p.tokens...)
		intent.Categories = appendUnique(intent.Categories, p.categories...)
	}

	switch {
	case len(intent.Tokens) > 0:
		intent.SearchTerm = intent.Tokens[0]
	case trimmed != "":
		intent.SearchTerm = trimmed
	default:
		intent.SearchTerm = defaultSearchTerm
	}

	intent.IsPrescriptionRequest = containsAny(normalized, prescriptionKeywords)
	return intent
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
