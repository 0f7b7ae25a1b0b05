package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Default scheduling values for an item that has never been reviewed.
const (
	DefaultEaseFactor = 2.5
	DefaultInterval   = 1
)

// Pool identifies one of the independently keyed progress collections.
type Pool string

// Known progress pools
const (
	PoolFlashcards Pool = "flashcards"
	PoolQuestions  Pool = "questions"
)

// IsValid reports whether p is a known pool.
func (p Pool) IsValid() bool {
	return p == PoolFlashcards || p == PoolQuestions
}

// ParsePool converts a pool name into a Pool.
func ParsePool(s string) (Pool, error) {
	p := Pool(s)
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPool, s)
	}
	return p, nil
}

// RatingCounts holds one counter per rating kind.
type RatingCounts struct {
	Again int `json:"again"`
	Hard  int `json:"hard"`
	Good  int `json:"good"`
	Easy  int `json:"easy"`
}

// Get returns the counter for r. Invalid ratings count as zero.
func (c RatingCounts) Get(r Rating) int {
	switch r {
	case RatingAgain:
		return c.Again
	case RatingHard:
		return c.Hard
	case RatingGood:
		return c.Good
	case RatingEasy:
		return c.Easy
	default:
		return 0
	}
}

// Inc increments the counter for r.
func (c *RatingCounts) Inc(r Rating) {
	switch r {
	case RatingAgain:
		c.Again++
	case RatingHard:
		c.Hard++
	case RatingGood:
		c.Good++
	case RatingEasy:
		c.Easy++
	}
}

// Total returns the sum of all counters.
func (c RatingCounts) Total() int {
	return c.Again + c.Hard + c.Good + c.Easy
}

// Correct returns how many reviews were rated good or easy.
func (c RatingCounts) Correct() int {
	return c.Good + c.Easy
}

// ItemProgress is a learner's spaced repetition state for one flashcard or
// practice question.
type ItemProgress struct {
	ItemID         string       `json:"itemId"`
	EaseFactor     float64      `json:"easeFactor"`
	Interval       int          `json:"interval"`    // days until the next review
	Repetitions    int          `json:"repetitions"` // consecutive successful reviews
	NextReviewDate time.Time    `json:"nextReviewDate"`
	LastReviewDate *time.Time   `json:"lastReviewDate,omitempty"`
	TotalReviews   int          `json:"totalReviews"`
	RatingCounts   RatingCounts `json:"ratingCounts"`
	Flagged        bool         `json:"flagged,omitempty"`
}

// NewItemProgress returns the default state of an item that has never been
// reviewed. The item is due immediately.
func NewItemProgress(itemID string, now time.Time) *ItemProgress {
	return &ItemProgress{
		ItemID:         itemID,
		EaseFactor:     DefaultEaseFactor,
		Interval:       DefaultInterval,
		Repetitions:    0,
		NextReviewDate: now,
	}
}

// Clone returns a deep copy of p.
func (p *ItemProgress) Clone() *ItemProgress {
	if p == nil {
		return nil
	}
	c := *p
	if p.LastReviewDate != nil {
		last := *p.LastReviewDate
		c.LastReviewDate = &last
	}
	return &c
}

// IsDue reports whether the item is due at now. The boundary is inclusive.
func (p *ItemProgress) IsDue(now time.Time) bool {
	return !p.NextReviewDate.After(now)
}

// Reviewed reports whether the item has been reviewed at least once.
func (p *ItemProgress) Reviewed() bool {
	return p.LastReviewDate != nil
}

// Validate checks the item's numeric invariants.
func (p *ItemProgress) Validate() error {
	if p.ItemID == "" {
		return ErrEmptyItemID
	}
	if p.Interval < 0 {
		return fmt.Errorf("%w: interval must be >= 0, got %d", ErrValidation, p.Interval)
	}
	if p.Repetitions < 0 {
		return fmt.Errorf("%w: repetitions must be >= 0, got %d", ErrValidation, p.Repetitions)
	}
	if p.TotalReviews != p.RatingCounts.Total() {
		return fmt.Errorf("%w: rating counts sum to %d, total reviews is %d",
			ErrValidation, p.RatingCounts.Total(), p.TotalReviews)
	}
	return nil
}

// UnmarshalJSON decodes an ItemProgress, accepting the legacy "cardId" key
// in place of "itemId".
func (p *ItemProgress) UnmarshalJSON(data []byte) error {
	type plain ItemProgress
	aux := struct {
		*plain
		CardID string `json:"cardId"`
	}{plain: (*plain)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.ItemID == "" {
		p.ItemID = aux.CardID
	}
	return nil
}
