package srs

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scry-progress/internal/domain"
)

// ErrInvalidParams is returned when Params violate their own constraints.
var ErrInvalidParams = errors.New("invalid SRS parameters")

// Params defines all configurable parameters for the SRS algorithm
type Params struct {
	// Floor for the ease factor. There is no ceiling.
	MinEaseFactor float64

	// Interval after a failed review and after the first success
	InitialInterval int

	// Fixed interval after the second consecutive successful review
	SecondInterval int

	// Ceiling for grown intervals, in days. Keeps the interval and the
	// next review date representable however long a success streak runs.
	MaxInterval int
}

// DefaultMaxInterval is one hundred years in days.
const DefaultMaxInterval = 36500

// ParamsConfig allows overriding the default parameters when creating a new Params instance
type ParamsConfig struct {
	MinEaseFactor   float64
	InitialInterval int
	SecondInterval  int
	MaxInterval     int
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		MinEaseFactor:   1.3,
		InitialInterval: domain.DefaultInterval,
		SecondInterval:  6,
		MaxInterval:     DefaultMaxInterval,
	}
}

// NewParams creates a new Params instance with custom configuration.
// Zero values in config keep the defaults.
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.MinEaseFactor > 0 {
		params.MinEaseFactor = config.MinEaseFactor
	}
	if config.InitialInterval > 0 {
		params.InitialInterval = config.InitialInterval
	}
	if config.SecondInterval > 0 {
		params.SecondInterval = config.SecondInterval
	}
	if config.MaxInterval > 0 {
		params.MaxInterval = config.MaxInterval
	}

	return params
}

// Validate checks that the parameters are usable by the algorithm.
func (p *Params) Validate() error {
	if p.MinEaseFactor <= 0 {
		return fmt.Errorf("%w: minimum ease factor must be positive, got %v",
			ErrInvalidParams, p.MinEaseFactor)
	}
	if p.InitialInterval < 0 || p.SecondInterval < 0 {
		return fmt.Errorf("%w: intervals must be non-negative", ErrInvalidParams)
	}
	if p.MaxInterval < max(p.InitialInterval, p.SecondInterval) {
		return fmt.Errorf("%w: maximum interval %d is below the learning intervals",
			ErrInvalidParams, p.MaxInterval)
	}
	return nil
}
