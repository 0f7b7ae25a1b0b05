package api

import (
	"time"

	"github.com/phrazzld/scry-progress/internal/domain"
	"github.com/phrazzld/scry-progress/internal/service/due"
)

// SubmitRatingRequest is the body of a review submission.
type SubmitRatingRequest struct {
	Rating string `json:"rating" validate:"required,oneof=again hard good easy"`
}

// DueRequest names the candidate items of a due query. No candidates means
// every catalog item of the pool.
type DueRequest struct {
	CandidateIDs []string `json:"candidateIds" validate:"max=10000"`
	// At overrides the evaluation time; defaults to now.
	At *time.Time `json:"at,omitempty"`
}

// DueResponse lists due items in candidate order.
type DueResponse struct {
	Due   []string      `json:"due"`
	Count int           `json:"count"`
	Stats due.PoolStats `json:"stats"`
}

// FlagResponse reports the flag state of one question.
type FlagResponse struct {
	ItemID  string `json:"itemId"`
	Flagged bool   `json:"flagged"`
}

// FlaggedResponse lists flagged question IDs.
type FlaggedResponse struct {
	ItemIDs []string `json:"itemIds"`
}

// RatingOption describes one rating choice for display.
type RatingOption struct {
	Value       domain.Rating `json:"value"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
}

// ratingOptions lists every rating with its label and description.
func ratingOptions() []RatingOption {
	all := domain.AllRatings()
	out := make([]RatingOption, len(all))
	for i, r := range all {
		out[i] = RatingOption{Value: r, Label: r.Label(), Description: r.Description()}
	}
	return out
}
