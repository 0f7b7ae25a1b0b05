package srs

import (
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/scry-progress/internal/domain"
)

// Common errors
var (
	ErrNilProgress = errors.New("item progress cannot be nil")
)

// Service defines the interface for SRS algorithm operations
type Service interface {
	// Apply computes the state that follows a review with the given rating
	// at time now. The input progress is left untouched.
	//
	// Returns domain.ErrInvalidRating for anything but the four rating kinds
	// and ErrNilProgress for a nil progress. No other error is possible.
	Apply(progress *domain.ItemProgress, rating domain.Rating, now time.Time) (*domain.ItemProgress, error)

	// Params returns a copy of the parameters the service schedules with.
	Params() Params
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new SRS service with default parameters
func NewDefaultService() (Service, error) {
	return NewServiceWithParams(NewDefaultParams())
}

// NewServiceWithParams creates a new SRS service with custom parameters
func NewServiceWithParams(params *Params) (Service, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: params cannot be nil", ErrInvalidParams)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	p := *params
	return &defaultService{params: &p}, nil
}

// Apply implements Service.Apply
func (s *defaultService) Apply(
	progress *domain.ItemProgress,
	rating domain.Rating,
	now time.Time,
) (*domain.ItemProgress, error) {
	if progress == nil {
		return nil, ErrNilProgress
	}
	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidRating, int(rating))
	}

	return calculateNextProgress(progress, rating, now, s.params), nil
}

// Params implements Service.Params
func (s *defaultService) Params() Params {
	return *s.params
}
