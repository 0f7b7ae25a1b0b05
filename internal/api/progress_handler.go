package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/scry-progress/internal/api/shared"
	"github.com/phrazzld/scry-progress/internal/domain"
	"github.com/phrazzld/scry-progress/internal/platform/logger"
	"github.com/phrazzld/scry-progress/internal/service/due"
	"github.com/phrazzld/scry-progress/internal/service/review"
)

// MasteryService computes a learner's mastery report.
type MasteryService interface {
	Compute(ctx context.Context, learnerID uuid.UUID) (*domain.MasteryReport, error)
}

// ProgressHandler serves the learner progress endpoints.
type ProgressHandler struct {
	reviews review.Service
	due     *due.Service
	mastery MasteryService
	logger  *slog.Logger
	now     func() time.Time
}

// NewProgressHandler creates a ProgressHandler.
func NewProgressHandler(
	reviews review.Service,
	dueService *due.Service,
	mastery MasteryService,
	l *slog.Logger,
) *ProgressHandler {
	if reviews == nil || dueService == nil || mastery == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("progress handler requires review, due and mastery services")
	}
	return &ProgressHandler{
		reviews: reviews,
		due:     dueService,
		mastery: mastery,
		logger:  logger.Component(l, "progress_handler"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Routes mounts the handler under /learners/{learnerID}.
func (h *ProgressHandler) Routes(r chi.Router) {
	r.Get("/ratings", h.ListRatings)
	r.Route("/learners/{learnerID}", func(r chi.Router) {
		r.Get("/mastery", h.GetMastery)

		r.Get("/flags", h.ListFlagged)
		r.Get("/flags/{itemID}", h.GetFlag)
		r.Post("/flags/{itemID}", h.ToggleFlag)

		r.Route("/{pool}", func(r chi.Router) {
			r.Delete("/", h.Reset)
			r.Post("/due", h.GetDue)
			r.Get("/items", h.ListProgress)
			r.Get("/items/{itemID}", h.GetProgress)
			r.Post("/items/{itemID}/reviews", h.SubmitRating)
		})
	})
}

// ListRatings handles GET /ratings.
func (h *ProgressHandler) ListRatings(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, ratingOptions())
}

// SubmitRating handles POST /learners/{learnerID}/{pool}/items/{itemID}/reviews.
func (h *ProgressHandler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, pool, itemID, ok := h.itemParams(w, r)
	if !ok {
		return
	}

	var req SubmitRatingRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}
	rating, err := domain.ParseRating(req.Rating)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to submit rating")
		return
	}

	progress, err := h.reviews.SubmitRating(r.Context(), learnerID, pool, itemID, rating)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to submit rating")
		return
	}

	log.Debug("rating submitted",
		slog.String("learner_id", learnerID.String()),
		slog.String("pool", string(pool)),
		slog.String("item_id", itemID),
		slog.String("rating", rating.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, progress)
}

// GetProgress handles GET /learners/{learnerID}/{pool}/items/{itemID}.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	learnerID, pool, itemID, ok := h.itemParams(w, r)
	if !ok {
		return
	}
	progress, err := h.reviews.GetProgress(r.Context(), learnerID, pool, itemID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to get progress")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, progress)
}

// ListProgress handles GET /learners/{learnerID}/{pool}/items.
func (h *ProgressHandler) ListProgress(w http.ResponseWriter, r *http.Request) {
	learnerID, pool, ok := h.poolParams(w, r)
	if !ok {
		return
	}
	items, err := h.reviews.ListProgress(r.Context(), learnerID, pool)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list progress")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, items)
}

// Reset handles DELETE /learners/{learnerID}/{pool}.
func (h *ProgressHandler) Reset(w http.ResponseWriter, r *http.Request) {
	learnerID, pool, ok := h.poolParams(w, r)
	if !ok {
		return
	}
	if err := h.reviews.Reset(r.Context(), learnerID, pool); err != nil {
		respondWithServiceError(w, r, err, "Failed to reset progress")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetDue handles POST /learners/{learnerID}/{pool}/due. Without candidate
// IDs the pool's catalog supplies them.
func (h *ProgressHandler) GetDue(w http.ResponseWriter, r *http.Request) {
	learnerID, pool, ok := h.poolParams(w, r)
	if !ok {
		return
	}

	// An empty body asks for every catalog item of the pool.
	var req DueRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, shared.ErrEmptyBody) {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	now := h.now()
	if req.At != nil {
		now = *req.At
	}

	res, err := h.due.Evaluate(r.Context(), learnerID, pool, req.CandidateIDs, now)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to compute due items")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, DueResponse{Due: res.Due, Count: len(res.Due), Stats: res.Stats})
}

// ToggleFlag handles POST /learners/{learnerID}/flags/{itemID}.
func (h *ProgressHandler) ToggleFlag(w http.ResponseWriter, r *http.Request) {
	learnerID, itemID, ok := h.flagParams(w, r)
	if !ok {
		return
	}
	flagged, err := h.reviews.ToggleFlag(r.Context(), learnerID, itemID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to toggle flag")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, FlagResponse{ItemID: itemID, Flagged: flagged})
}

// GetFlag handles GET /learners/{learnerID}/flags/{itemID}.
func (h *ProgressHandler) GetFlag(w http.ResponseWriter, r *http.Request) {
	learnerID, itemID, ok := h.flagParams(w, r)
	if !ok {
		return
	}
	flagged, err := h.reviews.IsFlagged(r.Context(), learnerID, itemID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to get flag")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, FlagResponse{ItemID: itemID, Flagged: flagged})
}

// ListFlagged handles GET /learners/{learnerID}/flags.
func (h *ProgressHandler) ListFlagged(w http.ResponseWriter, r *http.Request) {
	learnerID, err := getLearnerID(r)
	if err != nil {
		respondWithServiceError(w, r, err, "Invalid learner ID")
		return
	}
	ids, err := h.reviews.FlaggedItems(r.Context(), learnerID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list flagged items")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, FlaggedResponse{ItemIDs: ids})
}

// GetMastery handles GET /learners/{learnerID}/mastery.
func (h *ProgressHandler) GetMastery(w http.ResponseWriter, r *http.Request) {
	learnerID, err := getLearnerID(r)
	if err != nil {
		respondWithServiceError(w, r, err, "Invalid learner ID")
		return
	}
	report, err := h.mastery.Compute(r.Context(), learnerID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to compute mastery")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, report)
}

// poolParams extracts the learner and pool, writing a 400 on failure.
func (h *ProgressHandler) poolParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, domain.Pool, bool) {
	learnerID, err := getLearnerID(r)
	if err != nil {
		respondWithServiceError(w, r, err, "Invalid learner ID")
		return uuid.Nil, "", false
	}
	pool, err := getPool(r)
	if err != nil {
		respondWithServiceError(w, r, err, "Invalid pool")
		return uuid.Nil, "", false
	}
	return learnerID, pool, true
}

// itemParams extracts the learner, pool and item, writing a 400 on failure.
func (h *ProgressHandler) itemParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, domain.Pool, string, bool) {
	learnerID, pool, ok := h.poolParams(w, r)
	if !ok {
		return uuid.Nil, "", "", false
	}
	itemID, err := getItemID(r)
	if err != nil {
		respondWithServiceError(w, r, err, "Invalid item ID")
		return uuid.Nil, "", "", false
	}
	return learnerID, pool, itemID, true
}

// flagParams extracts the learner and question, writing a 400 on failure.
func (h *ProgressHandler) flagParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	learnerID, err := getLearnerID(r)
	if err != nil {
		respondWithServiceError(w, r, err, "Invalid learner ID")
		return uuid.Nil, "", false
	}
	itemID, err := getItemID(r)
	if err != nil {
		respondWithServiceError(w, r, err, "Invalid item ID")
		return uuid.Nil, "", false
	}
	return learnerID, itemID, true
}
