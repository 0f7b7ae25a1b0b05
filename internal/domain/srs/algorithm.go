package srs

import (
	"math"
	"time"

	"github.com/phrazzld/scry-progress/internal/domain"
)

// quality maps a rating onto the SuperMemo 0-5 quality scale.
//
// Quality 2 is never produced. The gap comes from the original rating scale
// and is kept as is.
func quality(rating domain.Rating) int {
	switch rating {
	case domain.RatingAgain:
		return 1
	case domain.RatingHard:
		return 3
	case domain.RatingGood:
		return 4
	case domain.RatingEasy:
		return 5
	default:
		// Unreachable for validated input; treated as a failed review.
		return 0
	}
}

// calculateNewEaseFactor applies the SM-2 ease factor update:
//
//	EF' = EF + (0.1 - (5 - q) * (0.08 + (5 - q) * 0.02))
//
// The result is clamped from below at params.MinEaseFactor and is unbounded
// above. A NaN input ease factor is treated as the minimum.
func calculateNewEaseFactor(currentEF float64, q int, params *Params) float64 {
	if math.IsNaN(currentEF) {
		currentEF = params.MinEaseFactor
	}

	d := float64(5 - q)
	newEF := currentEF + (0.1 - d*(0.08+d*0.02))

	if newEF < params.MinEaseFactor {
		newEF = params.MinEaseFactor
	}
	return newEF
}

// calculateNewInterval returns the interval in days and the new repetition
// count for a review of quality q.
//
// A failed review (q < 3) resets both regardless of history. Otherwise the
// first success schedules params.InitialInterval, the second
// params.SecondInterval, and every later one multiplies the prior interval
// by the new ease factor, rounded half up and capped at params.MaxInterval.
// A prior interval of 0 stays 0.
func calculateNewInterval(
	currentInterval int,
	repetitions int,
	newEF float64,
	q int,
	params *Params,
) (interval int, newRepetitions int) {
	if q < 3 {
		return params.InitialInterval, 0
	}

	newRepetitions = repetitions + 1
	switch newRepetitions {
	case 1:
		return params.InitialInterval, newRepetitions
	case 2:
		return params.SecondInterval, newRepetitions
	default:
		grown := float64(currentInterval) * newEF
		// The negated comparison also catches NaN and +Inf.
		if !(grown < float64(params.MaxInterval)) {
			return params.MaxInterval, newRepetitions
		}
		return min(domain.RoundHalfUp(grown), params.MaxInterval), newRepetitions
	}
}

// calculateNextProgress returns a new ItemProgress with the review applied.
// The input is not modified. Negative intervals and repetition counts are
// clamped to zero before the update. The flag is carried over unchanged.
func calculateNextProgress(
	progress *domain.ItemProgress,
	rating domain.Rating,
	now time.Time,
	params *Params,
) *domain.ItemProgress {
	next := progress.Clone()

	interval := max(progress.Interval, 0)
	repetitions := max(progress.Repetitions, 0)
	q := quality(rating)

	next.EaseFactor = calculateNewEaseFactor(progress.EaseFactor, q, params)
	next.Interval, next.Repetitions = calculateNewInterval(
		interval,
		repetitions,
		next.EaseFactor,
		q,
		params,
	)

	reviewedAt := now
	next.LastReviewDate = &reviewedAt
	next.NextReviewDate = now.AddDate(0, 0, next.Interval)

	next.TotalReviews = max(progress.TotalReviews, 0) + 1
	next.RatingCounts.Inc(rating)

	return next
}
