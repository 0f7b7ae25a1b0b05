package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/scry-progress/internal/domain"
)

// Path parameter names
const (
	paramLearnerID = "learnerID"
	paramPool      = "pool"
	paramItemID    = "itemID"
)

// getLearnerID parses the learner UUID from the path.
func getLearnerID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramLearnerID)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: learner ID is required", domain.ErrValidation)
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: learner ID has invalid format", domain.ErrValidation)
	}
	return id, nil
}

// getPool parses the pool from the path.
func getPool(r *http.Request) (domain.Pool, error) {
	return domain.ParsePool(chi.URLParam(r, paramPool))
}

// getItemID returns the item ID from the path.
func getItemID(r *http.Request) (string, error) {
	id := chi.URLParam(r, paramItemID)
	if id == "" {
		return "", domain.ErrEmptyItemID
	}
	return id, nil
}
