package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecallAtK(t *testing.T) {
	tests := []struct {
		name      string
		relevant  []string
		retrieved []string
		k         int
		want      float64
	}{
		{"all relevant in top k", []string{"tylenol", "advil"}, []string{"advil", "tylenol", "aleve"}, 5, 1.0},
		{"half found", []string{"tylenol", "advil", "aleve", "excedrin"}, []string{"tylenol", "zyrtec", "advil"}, 5, 0.5},
		{"empty results", []string{"tylenol"}, []string{}, 5, 0.0},
		{"no relevant ids", []string{}, []string{"tylenol"}, 5, 0.0},
		{"cutoff drops late hits", []string{"tylenol", "advil", "aleve"}, []string{"tylenol", "advil", "x", "y", "aleve"}, 3, 2.0 / 3.0},
		{"fewer results than k", []string{"tylenol", "advil"}, []string{"tylenol"}, 10, 0.5},
		{"duplicate retrieval counts once", []string{"tylenol", "advil"}, []string{"tylenol", "tylenol"}, 5, 0.5},
		{"non-positive k scores everything", []string{"aleve"}, []string{"x", "y", "aleve"}, 0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RecallAtK(tt.relevant, tt.retrieved, tt.k), 1e-9)
		})
	}
}

func TestMRRAtK(t *testing.T) {
	tests := []struct {
		name      string
		relevant  []string
		retrieved []string
		k         int
		want      float64
	}{
		{"first result relevant", []string{"tylenol"}, []string{"tylenol", "x"}, 5, 1.0},
		{"third result relevant", []string{"tums"}, []string{"x", "y", "tums"}, 5, 1.0 / 3.0},
		{"beyond cutoff", []string{"tums"}, []string{"a", "b", "c", "d", "e", "tums"}, 5, 0.0},
		{"empty relevant", []string{}, []string{"a"}, 5, 0.0},
		{"empty retrieved", []string{"a"}, []string{}, 5, 0.0},
		{"first of several relevant wins", []string{"a", "b", "c"}, []string{"x", "b", "a"}, 5, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MRRAtK(tt.relevant, tt.retrieved, tt.k), 1e-9)
		})
	}
}

func TestIntersect_KeepsRetrievedOrder(t *testing.T) {
	assert.Equal(t, []string{"c", "a"}, Intersect([]string{"a", "c"}, []string{"c", "b", "a"}))
	assert.Empty(t, Intersect(nil, []string{"a"}))
}
