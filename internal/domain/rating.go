package domain

import (
	"encoding"
	"fmt"
	"strings"
)

// Rating is the reviewer's assessment of a single review.
// The zero value is not a valid rating.
type Rating int

// Possible rating values
const (
	RatingAgain Rating = iota + 1 // Did not remember.
	RatingHard                    // Remembered with difficulty.
	RatingGood                    // Remembered correctly.
	RatingEasy                    // Remembered easily.
)

var (
	ratingNames = [...]string{
		RatingAgain: "again",
		RatingHard:  "hard",
		RatingGood:  "good",
		RatingEasy:  "easy",
	}
	ratingLabels = [...]string{
		RatingAgain: "Again",
		RatingHard:  "Hard",
		RatingGood:  "Good",
		RatingEasy:  "Easy",
	}
	ratingDescriptions = [...]string{
		RatingAgain: "Didn't remember",
		RatingHard:  "Remembered with difficulty",
		RatingGood:  "Remembered correctly",
		RatingEasy:  "Remembered easily",
	}
)

var (
	_ fmt.Stringer             = Rating(0)
	_ encoding.TextMarshaler   = Rating(0)
	_ encoding.TextUnmarshaler = (*Rating)(nil)
)

// AllRatings lists every valid rating in ascending order of recall quality.
func AllRatings() []Rating {
	return []Rating{RatingAgain, RatingHard, RatingGood, RatingEasy}
}

// ParseRating converts the wire form of a rating ("again", "hard", "good",
// "easy") into a Rating. Matching is case-insensitive and ignores
// surrounding whitespace. Any other input returns ErrInvalidRating.
func ParseRating(s string) (Rating, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "again":
		return RatingAgain, nil
	case "hard":
		return RatingHard, nil
	case "good":
		return RatingGood, nil
	case "easy":
		return RatingEasy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
	}
}

// IsValid reports whether r is one of the four rating kinds.
func (r Rating) IsValid() bool {
	return r >= RatingAgain && r <= RatingEasy
}

// String returns the wire name of the rating.
func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// Label returns the display label for the rating.
func (r Rating) Label() string {
	if r.IsValid() {
		return ratingLabels[r]
	}
	return "Rate"
}

// Description returns a short human-readable explanation of the rating.
func (r Rating) Description() string {
	if r.IsValid() {
		return ratingDescriptions[r]
	}
	return ""
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	parsed, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
