// Package review applies ratings to a learner's items and manages the
// flagged marker of practice questions.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-progress/internal/domain"
)

// Service records reviews and flags for learners.
type Service interface {
	// SubmitRating applies rating to the item inside an atomic
	// read-modify-write of the learner's pool, initializing the item first
	// when it has no progress yet.
	//
	// Returns:
	//   - (*domain.ItemProgress, nil): the persisted state after the review
	//   - (nil, domain.ErrInvalidRating): rating is not one of the four kinds;
	//     nothing is read or written
	//   - (nil, domain.ErrInvalidPool / domain.ErrValidation /
	//     domain.ErrEmptyItemID): the request is malformed
	//   - (nil, *ServiceError): the backing store failed
	SubmitRating(
		ctx context.Context,
		learnerID uuid.UUID,
		pool domain.Pool,
		itemID string,
		rating domain.Rating,
	) (*domain.ItemProgress, error)

	// GetProgress returns the stored progress of one item, or
	// store.ErrProgressNotFound.
	GetProgress(ctx context.Context, learnerID uuid.UUID, pool domain.Pool, itemID string) (*domain.ItemProgress, error)

	// ListProgress returns a snapshot of every item in the pool.
	ListProgress(ctx context.Context, learnerID uuid.UUID, pool domain.Pool) (map[string]*domain.ItemProgress, error)

	// ToggleFlag flips the flag of a practice question and returns its new
	// value. Scheduling state is left untouched.
	ToggleFlag(ctx context.Context, learnerID uuid.UUID, itemID string) (bool, error)

	// IsFlagged reports whether a practice question is flagged.
	IsFlagged(ctx context.Context, learnerID uuid.UUID, itemID string) (bool, error)

	// FlaggedItems lists the learner's flagged questions in ascending order.
	FlaggedItems(ctx context.Context, learnerID uuid.UUID) ([]string, error)

	// Reset deletes all progress of the learner in pool.
	Reset(ctx context.Context, learnerID uuid.UUID, pool domain.Pool) error
}

// Clock returns the current time.
type Clock func() time.Time

// ServiceError wraps errors from the review service with additional context.
// Callers can tell infrastructure failures apart with errors.As.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "submit_rating", "toggle_flag")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError returns a ServiceError for operation.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// isRequestError reports whether err describes a bad request rather than a
// failure of the service. Such errors are returned unwrapped.
func isRequestError(err error) bool {
	return errors.Is(err, domain.ErrInvalidRating) ||
		errors.Is(err, domain.ErrInvalidPool) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrEmptyItemID)
}
