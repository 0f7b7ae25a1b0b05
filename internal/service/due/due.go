// Package due partitions candidate items into due and not-due sets.
//
// An item without stored progress has never been seen and is always due.
// An item with progress is due when its next review date is at or before
// now. Reads never create progress.
package due

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-progress/internal/catalog"
	"github.com/phrazzld/scry-progress/internal/domain"
	"github.com/phrazzld/scry-progress/internal/platform/logger"
	"github.com/phrazzld/scry-progress/internal/store"
)

// PoolStats summarises the review state of a candidate set.
type PoolStats struct {
	Total             int     `json:"total"`
	WithProgress      int     `json:"withProgress"`
	Due               int     `json:"due"`
	AverageEaseFactor float64 `json:"averageEaseFactor"`
}

// Calculator answers due queries against one learner's pool.
type Calculator struct {
	store store.ProgressStore
}

// NewCalculator creates a Calculator over ps.
func NewCalculator(ps store.ProgressStore) *Calculator {
	if ps == nil {
		panic("progress store cannot be nil")
	}
	return &Calculator{store: ps}
}

// Result is the due partition of a candidate set with its statistics,
// computed from one progress snapshot.
type Result struct {
	Due   []string
	Stats PoolStats
}

// Evaluate partitions candidateIDs at now. Due keeps candidate order;
// duplicates and empty IDs are dropped. The average ease factor covers
// candidates with progress only and is domain.DefaultEaseFactor when there
// are none.
func (c *Calculator) Evaluate(ctx context.Context, candidateIDs []string, now time.Time) (Result, error) {
	items, err := c.store.GetAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load progress: %w", err)
	}

	ids := unique(candidateIDs)
	res := Result{Due: make([]string, 0, len(ids))}
	var easeSum float64
	for _, id := range ids {
		res.Stats.Total++
		p := items[id]
		if p != nil {
			res.Stats.WithProgress++
			easeSum += p.EaseFactor
		}
		if isDue(p, now) {
			res.Due = append(res.Due, id)
		}
	}

	res.Stats.Due = len(res.Due)
	res.Stats.AverageEaseFactor = domain.DefaultEaseFactor
	if res.Stats.WithProgress > 0 {
		res.Stats.AverageEaseFactor = easeSum / float64(res.Stats.WithProgress)
	}
	return res, nil
}

// DueItems returns the due subset of candidateIDs in candidate order.
func (c *Calculator) DueItems(ctx context.Context, candidateIDs []string, now time.Time) ([]string, error) {
	res, err := c.Evaluate(ctx, candidateIDs, now)
	if err != nil {
		return nil, err
	}
	return res.Due, nil
}

// IsDue reports whether a single item is due at now.
func (c *Calculator) IsDue(ctx context.Context, itemID string, now time.Time) (bool, error) {
	items, err := c.store.GetAll(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load progress: %w", err)
	}
	return isDue(items[itemID], now), nil
}

// DueCount returns len(DueItems(...)).
func (c *Calculator) DueCount(ctx context.Context, candidateIDs []string, now time.Time) (int, error) {
	due, err := c.DueItems(ctx, candidateIDs, now)
	if err != nil {
		return 0, err
	}
	return len(due), nil
}

// Stats summarises candidateIDs at now.
func (c *Calculator) Stats(ctx context.Context, candidateIDs []string, now time.Time) (PoolStats, error) {
	res, err := c.Evaluate(ctx, candidateIDs, now)
	if err != nil {
		return PoolStats{}, err
	}
	return res.Stats, nil
}

func isDue(p *domain.ItemProgress, now time.Time) bool {
	return p == nil || p.IsDue(now)
}

// unique drops empty and repeated IDs, keeping first occurrences in order.
func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Service hands out calculators for learners' pools and evaluates due
// queries. A pool with a catalog uses every catalog item as the candidate
// set when a query names none.
type Service struct {
	stores   store.ProgressStoreProvider
	catalogs map[domain.Pool]catalog.Catalog
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog sets the catalog that supplies default candidates for pool.
func WithCatalog(pool domain.Pool, c catalog.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalogs[pool] = c
		}
	}
}

// NewService creates a Service. If logger is nil, slog.Default() is used.
func NewService(stores store.ProgressStoreProvider, l *slog.Logger, opts ...Option) *Service {
	if stores == nil {
		panic("stores cannot be nil")
	}
	s := &Service{
		stores:   stores,
		catalogs: make(map[domain.Pool]catalog.Catalog),
		logger:   logger.Component(l, "due_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// For returns the calculator bound to one learner's pool.
func (s *Service) For(learnerID uuid.UUID, pool domain.Pool) (*Calculator, error) {
	ps, err := s.stores.ProgressStore(learnerID, pool)
	if err != nil {
		return nil, err
	}
	return NewCalculator(ps), nil
}

// Evaluate runs a due query for one learner's pool. Empty candidateIDs
// default to the pool catalog's items in ID order; without a catalog the
// result is empty. A catalog read failure wraps catalog.ErrUnavailable.
func (s *Service) Evaluate(
	ctx context.Context,
	learnerID uuid.UUID,
	pool domain.Pool,
	candidateIDs []string,
	now time.Time,
) (Result, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	c, err := s.For(learnerID, pool)
	if err != nil {
		return Result{}, err
	}

	if len(candidateIDs) == 0 {
		candidateIDs, err = s.catalogItems(ctx, pool)
		if err != nil {
			log.Warn("catalog unavailable for due candidates",
				slog.String("pool", string(pool)),
				slog.String("error", err.Error()))
			return Result{}, err
		}
	}

	res, err := c.Evaluate(ctx, candidateIDs, now)
	if err != nil {
		log.Error("failed to compute due items",
			slog.String("learner_id", learnerID.String()),
			slog.String("pool", string(pool)),
			slog.String("error", err.Error()))
		return Result{}, err
	}
	return res, nil
}

func (s *Service) catalogItems(ctx context.Context, pool domain.Pool) ([]string, error) {
	c, ok := s.catalogs[pool]
	if !ok {
		return nil, nil
	}
	index, err := c.ItemDomains(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", catalog.ErrUnavailable, err)
	}
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
