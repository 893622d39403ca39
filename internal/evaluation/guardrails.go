package evaluation

import "fmt"

// GuardrailConfig sets the minimum quality a run must reach
type GuardrailConfig struct {
	MinRecallAtK        float64 `yaml:"min_recall_at_k"`
	MinMRRAtK           float64 `yaml:"min_mrr_at_k"`
	MinLabelAccuracy    float64 `yaml:"min_label_accuracy"`
	MaxSafetyViolations int     `yaml:"max_safety_violations"`
	MaxFailedQueries    int     `yaml:"max_failed_queries"`
}

type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	return &Guardrails{config: config}
}

// Check returns one message per breached threshold, nil when the run passes
func (g *Guardrails) Check(s *EvalSummary) []string {
	var breaches []string
	if s.AvgRecallAtK < g.config.MinRecallAtK {
		breaches = append(breaches, fmt.Sprintf("recall@%d %.3f below %.3f", s.K, s.AvgRecallAtK, g.config.MinRecallAtK))
	}
	if s.AvgMRRAtK < g.config.MinMRRAtK {
		breaches = append(breaches, fmt.Sprintf("mrr@%d %.3f below %.3f", s.K, s.AvgMRRAtK, g.config.MinMRRAtK))
	}
	if s.LabelAccuracy < g.config.MinLabelAccuracy {
		breaches = append(breaches, fmt.Sprintf("label accuracy %.3f below %.3f", s.LabelAccuracy, g.config.MinLabelAccuracy))
	}
	if s.SafetyViolations > g.config.MaxSafetyViolations {
		breaches = append(breaches, fmt.Sprintf("%d safety violations, at most %d allowed", s.SafetyViolations, g.config.MaxSafetyViolations))
	}
	if s.FailedQueries > g.config.MaxFailedQueries {
		breaches = append(breaches, fmt.Sprintf("%d failed queries, at most %d allowed", s.FailedQueries, g.config.MaxFailedQueries))
	}
	return breaches
}
