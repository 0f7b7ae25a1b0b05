package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/scry-progress/internal/api/shared"
	"github.com/phrazzld/scry-progress/internal/catalog"
	"github.com/phrazzld/scry-progress/internal/domain"
	"github.com/phrazzld/scry-progress/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, store.ErrProgressNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrInvalidPool),
		errors.Is(err, domain.ErrEmptyItemID),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, shared.ErrEmptyBody):
		return http.StatusBadRequest

	case errors.Is(err, catalog.ErrUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for err. Unknown errors
// get a generic message.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, store.ErrProgressNotFound):
		return "Progress not found"
	case errors.Is(err, domain.ErrInvalidRating):
		return "Invalid rating: must be one of again, hard, good, easy"
	case errors.Is(err, domain.ErrInvalidPool):
		return "Invalid pool: must be flashcards or questions"
	case errors.Is(err, domain.ErrEmptyItemID):
		return "Item ID is required"
	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"
	case errors.Is(err, catalog.ErrUnavailable):
		return "Item catalog is unavailable"
	case errors.Is(err, domain.ErrValidation):
		return "Invalid request"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns a validator error into a short message that
// names the first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "oneof":
		return "invalid value"
	case "max":
		return "too many values"
	case "dive":
		return "invalid element"
	default:
		return "validation failed"
	}
}

// respondWithServiceError writes the status and safe message for err.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
