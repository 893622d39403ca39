package entities

// MedicationSource is the provenance tag of a medication entry
type MedicationSource string

const (
	MedicationSourceAPI            MedicationSource = "api"
	MedicationSourceFallback       MedicationSource = "fallback"
	MedicationSourceKnowledgeGraph MedicationSource = "knowledge_graph"
)

// MedicationDetails holds optional extended fields
type MedicationDetails struct {
	Form      string   `json:"form,omitempty" yaml:"form"`
	Routes    []string `json:"routes,omitempty" yaml:"routes"`
	Classes   []string `json:"classes,omitempty" yaml:"classes"`
	Strengths []string `json:"strengths,omitempty" yaml:"strengths"`
}

// Medication is an over-the-counter catalog entry. MatchScore is assigned per
// search and never persisted.
type Medication struct {
	ID                string             `json:"id" yaml:"id"`
	Name              string             `json:"name" yaml:"name"`
	Dosage            string             `json:"dosage" yaml:"dosage"`
	Frequency         string             `json:"frequency" yaml:"frequency"`
	Indication        string             `json:"indication" yaml:"indication"`
	SuitableFor       []string           `json:"suitable_for" yaml:"suitable_for"`
	Contraindications []string           `json:"contraindications" yaml:"contraindications"`
	SideEffects       []string           `json:"side_effects" yaml:"side_effects"`
	Category          string             `json:"category" yaml:"category"`
	MatchScore        float64            `json:"match_score,omitempty" yaml:"-"`
	Summary           string             `json:"summary,omitempty" yaml:"summary"`
	Details           *MedicationDetails `json:"details,omitempty" yaml:"details"`
	Source            MedicationSource   `json:"source,omitempty" yaml:"source"`
}

// Clone returns a deep copy of m
func (m Medication) Clone() Medication {
	m.SuitableFor = append([]string(nil), m.SuitableFor...)
	m.Contraindications = append([]string(nil), m.Contraindications...)
	m.SideEffects = append([]string(nil), m.SideEffects...)
	if m.Details != nil {
		d := *m.Details
		d.Routes = append([]string(nil), d.Routes...)
		d.Classes = append([]string(nil), d.Classes...)
		d.Strengths = append([]string(nil), d.Strengths...)
		m.Details = &d
	}
	return m
}

// SafetyStatus is the tri-state safety verdict
type SafetyStatus string

const (
	SafetyStatusSafe    SafetyStatus = "safe"
	SafetyStatusCaution SafetyStatus = "caution"
	SafetyStatusWarning SafetyStatus = "warning"
)

// Severity orders statuses so escalation can be monotonic
func (s SafetyStatus) Severity() int {
	switch s {
	case SafetyStatusWarning:
		return 2
	case SafetyStatusCaution:
		return 1
	default:
		return 0
	}
}

// SafetyVerdict is the classifier output for one medication and profile
type SafetyVerdict struct {
	Status   SafetyStatus `json:"status"`
	Warnings []string     `json:"warnings"`
}

// TerminologyEntry is one row returned by the medication terminology service
type TerminologyEntry struct {
	Name      string
	Display   string
	Strengths []string
	Routes    []string
	Classes   []string
}

// LifestyleAdvice is a non-drug self-care tip
type LifestyleAdvice struct {
	ID         string   `json:"id" yaml:"id"`
	Title      string   `json:"title" yaml:"title"`
	Icon       string   `json:"icon" yaml:"icon"`
	Content    string   `json:"content" yaml:"content"`
	Categories []string `json:"categories" yaml:"categories"`
}
