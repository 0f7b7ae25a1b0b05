package domain

import (
	"math"
	"time"
)

// DomainStats is the derived mastery of one domain across both pools.
// It is recomputed on demand and never persisted as a source of truth.
type DomainStats struct {
	DomainID           string `json:"domainId"`
	DomainName         string `json:"domainName"`
	FlashcardsMastered int    `json:"flashcardsMastered"`
	FlashcardsTotal    int    `json:"flashcardsTotal"`
	QuestionsMastered  int    `json:"questionsMastered"`
	QuestionsTotal     int    `json:"questionsTotal"`
	QuestionsAttempted int    `json:"questionsAttempted"`
	QuestionsCorrect   int    `json:"questionsCorrect"`
	MasteryPercent     int    `json:"masteryPercent"`
}

// Mastered returns the mastered item count across both pools.
func (s DomainStats) Mastered() int {
	return s.FlashcardsMastered + s.QuestionsMastered
}

// Total returns the item count across both pools.
func (s DomainStats) Total() int {
	return s.FlashcardsTotal + s.QuestionsTotal
}

// Percent computes the rounded mastery percentage. A domain without items
// is 0% mastered.
func (s DomainStats) Percent() int {
	total := s.Total()
	if total <= 0 {
		return 0
	}
	return RoundHalfUp(100 * float64(s.Mastered()) / float64(total))
}

// MasteryReport is the result of a mastery aggregation for one learner.
type MasteryReport struct {
	Domains        []DomainStats `json:"domains"`
	OverallPercent int           `json:"overallPercent"`
	// Unassigned counts stored items whose identifier matched no domain.
	Unassigned int `json:"unassigned"`
	// FallbackPools lists pools whose totals came from fallback constants.
	FallbackPools []Pool    `json:"fallbackPools,omitempty"`
	ComputedAt    time.Time `json:"computedAt"`
}

// OverallPercent averages domain percentages with equal weight per domain,
// regardless of domain size.
func OverallPercent(domains []DomainStats) int {
	if len(domains) == 0 {
		return 0
	}
	sum := 0
	for _, d := range domains {
		sum += d.MasteryPercent
	}
	return RoundHalfUp(float64(sum) / float64(len(domains)))
}

// RoundHalfUp rounds x to the nearest integer, with halves rounded up.
func RoundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
