// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidRating is returned when a rating is not one of
	// again, hard, good or easy.
	ErrInvalidRating = errors.New("invalid rating")

	// ErrEmptyItemID is returned when an item identifier is empty.
	ErrEmptyItemID = errors.New("item ID cannot be empty")

	// ErrInvalidPool is returned when a progress pool name is unknown.
	ErrInvalidPool = errors.New("invalid progress pool")

	// ErrUnknownDomain is returned when a domain ID is not part of the
	// configured domain set.
	ErrUnknownDomain = errors.New("unknown domain")
)
