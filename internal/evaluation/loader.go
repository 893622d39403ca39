package evaluation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// GoldenSet is the on-disk form of a golden query file
type GoldenSet struct {
	Guardrails GuardrailConfig `yaml:"guardrails"`
	Queries    []GoldenQuery   `yaml:"queries"`
}

// LoadGoldenSet reads a golden set from path. See ParseGoldenSet.
func LoadGoldenSet(path string) (*GoldenSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read golden set %s: %w", path, err)
	}
	set, err := ParseGoldenSet(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// ParseGoldenSet decodes YAML strictly, so a misspelled key fails instead of
// silently dropping an expectation, then validates the result.
func ParseGoldenSet(data []byte) (*GoldenSet, error) {
	var set GoldenSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse golden set: %w", err)
	}

	if err := errors.Join(validateGuardrails(set.Guardrails), ValidateGoldenQueries(set.Queries)); err != nil {
		return nil, err
	}
	return &set, nil
}

// ValidateGoldenQueries reports every problem found, one error per query field
func ValidateGoldenQueries(queries []GoldenQuery) error {
	var errs []error
	ids := make(map[string]int, len(queries))

	for i, q := range queries {
		name := q.ID
		if name == "" {
			errs = append(errs, fmt.Errorf("query #%d: missing id", i))
			name = fmt.Sprintf("#%d", i)
		} else if first, dup := ids[q.ID]; dup {
			errs = append(errs, fmt.Errorf("query #%d: duplicate id %q (first at #%d)", i, q.ID, first))
		} else {
			ids[q.ID] = i
		}

		if q.Query == "" {
			errs = append(errs, fmt.Errorf("query %s: missing query text", name))
		}
		if !q.Difficulty.IsValid() {
			errs = append(errs, fmt.Errorf("query %s: invalid difficulty %q, want easy, medium or hard", name, q.Difficulty))
		}
		if len(q.ExpectedMedications) == 0 && q.ExpectedLabel == "" {
			errs = append(errs, fmt.Errorf("query %s: needs expected_medications or expected_label", name))
		}
		for _, id := range Intersect(q.ForbiddenMedications, q.ExpectedMedications) {
			errs = append(errs, fmt.Errorf("query %s: %q is both expected and forbidden", name, id))
		}
	}
	return errors.Join(errs...)
}

func validateGuardrails(g GuardrailConfig) error {
	var errs []error
	for name, v := range map[string]float64{
		"min_recall_at_k":    g.MinRecallAtK,
		"min_mrr_at_k":       g.MinMRRAtK,
		"min_label_accuracy": g.MinLabelAccuracy,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("guardrails: %s must be within [0, 1], got %g", name, v))
		}
	}
	if g.MaxSafetyViolations < 0 || g.MaxFailedQueries < 0 {
		errs = append(errs, errors.New("guardrails: maximum counts must not be negative"))
	}
	return errors.Join(errs...)
}
