package entities

// SymptomIntent is the structured reading of a free-text symptom query
type SymptomIntent struct {
	Label                 string   `json:"label,omitempty"`
	Tokens                []string `json:"tokens"`
	Categories            []string `json:"categories"`
	SearchTerm            string   `json:"search_term"`
	IsPrescriptionRequest bool     `json:"is_prescription_request"`
	OriginalTerm          string   `json:"original_term,omitempty"`
}
