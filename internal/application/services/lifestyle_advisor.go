package services

import (
	"strings"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/repositories"
)

const maxAdvice = 3

// intent categories to lifestyle groups, used when no advice keyword appears
// in the text
var adviceGroupsByCategory = map[string][]string{
	"pain relief": {"headache", "migraine", "fever"},
	"cold & flu":  {"cold", "flu", "congestion", "cough"},
	"respiratory": {"cold", "congestion", "cough", "throat"},
	"digestive":   {"nausea", "diarrhea", "heartburn"},
	"sleep":       {"sleep"},
}

// LifestyleAdvisor picks non-drug tips for a symptom query
type LifestyleAdvisor struct {
	catalog repositories.CatalogRepository
}

// NewLifestyleAdvisor creates an advisor over the lifestyle catalog
func NewLifestyleAdvisor(catalog repositories.CatalogRepository) *LifestyleAdvisor {
	return &LifestyleAdvisor{catalog: catalog}
}

// Advise returns up to three tips
func (a *LifestyleAdvisor) Advise(text string, intent entities.SymptomIntent) []entities.LifestyleAdvice {
	all := a.catalog.Lifestyle()
	lower := strings.ToLower(text)

	out := selectAdvice(all, func(keyword string) bool {
		return strings.Contains(lower, keyword)
	})
	if len(out) > 0 {
		return out
	}

	var keywords []string
	for _, c := range intent.Categories {
		keywords = appendUnique(keywords, adviceGroupsByCategory[strings.ToLower(c)]...)
	}
	if len(keywords) == 0 {
		return []entities.LifestyleAdvice{}
	}
	return selectAdvice(all, func(keyword string) bool {
		for _, k := range keywords {
			if k == keyword {
				return true
			}
		}
		return false
	})
}

func selectAdvice(all []entities.LifestyleAdvice, match func(string) bool) []entities.LifestyleAdvice {
	out := []entities.LifestyleAdvice{}
	for _, adv := range all {
		for _, c := range adv.Categories {
			if match(strings.ToLower(c)) {
				out = append(out, adv)
				break
			}
		}
		if len(out) == maxAdvice {
			break
		}
	}
	return out
}
