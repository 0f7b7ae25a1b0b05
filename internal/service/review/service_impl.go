package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-progress/internal/domain"
	"github.com/phrazzld/scry-progress/internal/domain/srs"
	"github.com/phrazzld/scry-progress/internal/metrics"
	"github.com/phrazzld/scry-progress/internal/platform/logger"
	"github.com/phrazzld/scry-progress/internal/store"
)

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

type serviceImpl struct {
	stores     store.ProgressStoreProvider
	srsService srs.Service
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        Clock
}

// Option configures the service.
type Option func(*serviceImpl)

// WithLogger sets the service logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *serviceImpl) {
		s.logger = l
	}
}

// WithMetrics sets the collector for review and flag counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *serviceImpl) {
		s.metrics = m
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(s *serviceImpl) {
		s.now = c
	}
}

// NewService creates a review Service.
func NewService(stores store.ProgressStoreProvider, srsService srs.Service, opts ...Option) Service {
	// Validate inputs
	if stores == nil {
		panic("stores cannot be nil")
	}
	if srsService == nil {
		panic("srsService cannot be nil")
	}

	s := &serviceImpl{
		stores:     stores,
		srsService: srsService,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.Component(s.logger, "review_service")
	return s
}

// SubmitRating implements Service.SubmitRating.
func (s *serviceImpl) SubmitRating(
	ctx context.Context,
	learnerID uuid.UUID,
	pool domain.Pool,
	itemID string,
	rating domain.Rating,
) (*domain.ItemProgress, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("learner_id", learnerID.String()),
		slog.String("pool", string(pool)),
		slog.String("item_id", itemID))

	// Reject before touching storage
	if !rating.IsValid() {
		log.Warn("invalid review rating", slog.Int("rating", int(rating)))
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidRating, int(rating))
	}

	ps, err := s.stores.ProgressStore(learnerID, pool)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := ps.Update(ctx, itemID, now, func(current *domain.ItemProgress) (*domain.ItemProgress, error) {
		return s.srsService.Apply(current, rating, now)
	})
	if err != nil {
		if isRequestError(err) {
			return nil, err
		}
		log.Error("failed to submit rating", slog.String("error", err.Error()))
		return nil, NewServiceError("submit_rating", "failed to apply rating", err)
	}

	s.metrics.ReviewRecorded(string(pool), rating.String())
	log.Debug("review recorded",
		slog.String("rating", rating.String()),
		slog.Float64("ease_factor", updated.EaseFactor),
		slog.Int("interval", updated.Interval),
		slog.Int("repetitions", updated.Repetitions),
		slog.Time("next_review_date", updated.NextReviewDate))
	return updated, nil
}

// GetProgress implements Service.GetProgress.
func (s *serviceImpl) GetProgress(
	ctx context.Context,
	learnerID uuid.UUID,
	pool domain.Pool,
	itemID string,
) (*domain.ItemProgress, error) {
	ps, err := s.stores.ProgressStore(learnerID, pool)
	if err != nil {
		return nil, err
	}
	p, err := ps.Get(ctx, itemID)
	if err != nil {
		if isRequestError(err) || errors.Is(err, store.ErrProgressNotFound) {
			return nil, err
		}
		return nil, NewServiceError("get_progress", "failed to read progress", err)
	}
	return p, nil
}

// ListProgress implements Service.ListProgress.
func (s *serviceImpl) ListProgress(
	ctx context.Context,
	learnerID uuid.UUID,
	pool domain.Pool,
) (map[string]*domain.ItemProgress, error) {
	ps, err := s.stores.ProgressStore(learnerID, pool)
	if err != nil {
		return nil, err
	}
	items, err := ps.GetAll(ctx)
	if err != nil {
		return nil, NewServiceError("list_progress", "failed to read progress", err)
	}
	return items, nil
}

// ToggleFlag implements Service.ToggleFlag.
func (s *serviceImpl) ToggleFlag(ctx context.Context, learnerID uuid.UUID, itemID string) (bool, error) {
	ps, err := s.stores.ProgressStore(learnerID, domain.PoolQuestions)
	if err != nil {
		return false, err
	}
	flagged, err := ps.ToggleFlag(ctx, itemID, s.now())
	if err != nil {
		if isRequestError(err) {
			return false, err
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to toggle flag",
			slog.String("error", err.Error()),
			slog.String("learner_id", learnerID.String()),
			slog.String("item_id", itemID))
		return false, NewServiceError("toggle_flag", "failed to toggle flag", err)
	}
	s.metrics.FlagToggled(string(domain.PoolQuestions), flagged)
	return flagged, nil
}

// IsFlagged implements Service.IsFlagged.
func (s *serviceImpl) IsFlagged(ctx context.Context, learnerID uuid.UUID, itemID string) (bool, error) {
	ps, err := s.stores.ProgressStore(learnerID, domain.PoolQuestions)
	if err != nil {
		return false, err
	}
	flagged, err := ps.IsFlagged(ctx, itemID)
	if err != nil {
		if isRequestError(err) {
			return false, err
		}
		return false, NewServiceError("is_flagged", "failed to read flag", err)
	}
	return flagged, nil
}

// FlaggedItems implements Service.FlaggedItems.
func (s *serviceImpl) FlaggedItems(ctx context.Context, learnerID uuid.UUID) ([]string, error) {
	ps, err := s.stores.ProgressStore(learnerID, domain.PoolQuestions)
	if err != nil {
		return nil, err
	}
	ids, err := ps.FlaggedItems(ctx)
	if err != nil {
		return nil, NewServiceError("flagged_items", "failed to list flagged items", err)
	}
	return ids, nil
}

// Reset implements Service.Reset.
func (s *serviceImpl) Reset(ctx context.Context, learnerID uuid.UUID, pool domain.Pool) error {
	ps, err := s.stores.ProgressStore(learnerID, pool)
	if err != nil {
		return err
	}
	if err := ps.Clear(ctx); err != nil {
		return NewServiceError("reset", "failed to clear progress", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("progress reset",
		slog.String("learner_id", learnerID.String()),
		slog.String("pool", string(pool)))
	return nil
}
