// Package mastery rolls per-item progress up into per-domain mastery
// percentages for one learner.
//
// A flashcard is mastered after one successful review. A practice question is
// mastered once it has been answered correctly (good or easy) at least once.
// Domain percentages are rounded half up and the overall percentage is the
// unweighted mean of the domain percentages.
package mastery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/scry-progress/internal/catalog"
	"github.com/phrazzld/scry-progress/internal/domain"
	"github.com/phrazzld/scry-progress/internal/metrics"
	"github.com/phrazzld/scry-progress/internal/platform/logger"
	"github.com/phrazzld/scry-progress/internal/redact"
	"github.com/phrazzld/scry-progress/internal/store"
)

// DefaultFallbackTotal is the per-domain item count assumed for a pool whose
// catalog cannot be read.
const DefaultFallbackTotal = 100

// Aggregator computes mastery reports.
type Aggregator struct {
	stores        store.ProgressStoreProvider
	flashcards    catalog.Catalog
	questions     catalog.Catalog
	domains       *domain.DomainSet
	fallbackTotal int
	logger        *slog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithDomains replaces the default people/process/business domains.
func WithDomains(set *domain.DomainSet) Option {
	return func(a *Aggregator) {
		a.domains = set
	}
}

// WithFallbackTotal sets the per-domain total used when a catalog fails.
func WithFallbackTotal(n int) Option {
	return func(a *Aggregator) {
		a.fallbackTotal = n
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// WithMetrics sets the collector that counts catalog fallbacks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// WithClock replaces the clock that stamps reports.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// NewAggregator creates an Aggregator reading progress from stores and
// totals from the two pool catalogs.
func NewAggregator(
	stores store.ProgressStoreProvider,
	flashcards catalog.Catalog,
	questions catalog.Catalog,
	opts ...Option,
) (*Aggregator, error) {
	if stores == nil {
		return nil, errors.New("mastery aggregator requires a progress store provider")
	}
	if flashcards == nil || questions == nil {
		return nil, errors.New("mastery aggregator requires a catalog for each pool")
	}

	a := &Aggregator{
		stores:        stores,
		flashcards:    flashcards,
		questions:     questions,
		domains:       domain.DefaultDomains(),
		fallbackTotal: DefaultFallbackTotal,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.domains == nil || a.domains.Len() == 0 {
		return nil, fmt.Errorf("%w: at least one domain is required", domain.ErrValidation)
	}
	if a.fallbackTotal < 0 {
		return nil, fmt.Errorf("%w: fallback total cannot be negative", domain.ErrValidation)
	}
	a.logger = logger.Component(a.logger, "mastery_aggregator")
	return a, nil
}

// poolView is what one pool contributes: stored progress plus normalised
// catalog totals and item assignments.
type poolView struct {
	items    map[string]*domain.ItemProgress
	totals   map[string]int
	index    map[string]string
	fallback bool
}

// Compute builds the mastery report for learnerID. Progress and catalogs are
// read concurrently. Only backing store failures are returned; an unreadable
// catalog is replaced with fallback totals.
func (a *Aggregator) Compute(ctx context.Context, learnerID uuid.UUID) (*domain.MasteryReport, error) {
	log := logger.FromContextOrDefault(ctx, a.logger).With(
		slog.String("learner_id", learnerID.String()))

	cardStore, err := a.stores.ProgressStore(learnerID, domain.PoolFlashcards)
	if err != nil {
		return nil, err
	}
	questionStore, err := a.stores.ProgressStore(learnerID, domain.PoolQuestions)
	if err != nil {
		return nil, err
	}

	var cards, questions poolView
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := cardStore.GetAll(gctx)
		cards.items = items
		return err
	})
	g.Go(func() error {
		items, err := questionStore.GetAll(gctx)
		questions.items = items
		return err
	})
	g.Go(func() error {
		cards.totals, cards.index, cards.fallback = a.readCatalog(gctx, log, domain.PoolFlashcards, a.flashcards)
		return nil
	})
	g.Go(func() error {
		questions.totals, questions.index, questions.fallback = a.readCatalog(gctx, log, domain.PoolQuestions, a.questions)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("failed to load progress for mastery", slog.String("error", redact.Error(err)))
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	report := a.aggregate(cards, questions)
	report.ComputedAt = a.now()

	log.Debug("mastery computed",
		slog.Int("overall_percent", report.OverallPercent),
		slog.Int("unassigned", report.Unassigned))
	return report, nil
}

// readCatalog returns normalised totals and item assignments for one pool.
// On failure it logs, counts the fallback, and returns fallback totals.
func (a *Aggregator) readCatalog(
	ctx context.Context,
	log *slog.Logger,
	pool domain.Pool,
	cat catalog.Catalog,
) (map[string]int, map[string]string, bool) {
	raw, err := cat.DomainTotals(ctx)
	if err != nil {
		log.Warn("catalog unavailable, using fallback totals",
			slog.String("pool", string(pool)),
			slog.Int("fallback_total", a.fallbackTotal),
			slog.String("error", redact.Error(err)))
		a.metrics.CatalogFallbackUsed(string(pool))

		totals := make(map[string]int, a.domains.Len())
		for _, id := range a.domains.IDs() {
			totals[id] = a.fallbackTotal
		}
		return totals, nil, true
	}

	totals := make(map[string]int, a.domains.Len())
	for label, n := range raw {
		if id, ok := a.domains.Resolve(label); ok {
			totals[id] += n
		} else {
			log.Debug("ignoring catalog label", slog.String("pool", string(pool)), slog.String("label", label))
		}
	}

	labels, err := cat.ItemDomains(ctx)
	if err != nil {
		log.Warn("catalog item index unavailable, resolving domains from item IDs",
			slog.String("pool", string(pool)),
			slog.String("error", redact.Error(err)))
		return totals, nil, false
	}
	index := make(map[string]string, len(labels))
	for itemID, label := range labels {
		if id, ok := a.domains.Resolve(label); ok {
			index[itemID] = id
		}
	}
	return totals, index, false
}

// resolve maps an item to a domain, preferring the catalog assignment.
func (a *Aggregator) resolve(itemID string, index map[string]string) (string, bool) {
	if id, ok := index[itemID]; ok {
		return id, true
	}
	return a.domains.Resolve(itemID)
}

func (a *Aggregator) aggregate(cards, questions poolView) *domain.MasteryReport {
	ids := a.domains.IDs()
	byID := make(map[string]*domain.DomainStats, len(ids))
	report := &domain.MasteryReport{Domains: make([]domain.DomainStats, len(ids))}
	for i, d := range a.domains.Domains() {
		report.Domains[i] = domain.DomainStats{
			DomainID:        d.ID,
			DomainName:      d.Name,
			FlashcardsTotal: cards.totals[d.ID],
			QuestionsTotal:  questions.totals[d.ID],
		}
		byID[d.ID] = &report.Domains[i]
	}

	for itemID, p := range cards.items {
		id, ok := a.resolve(itemID, cards.index)
		if !ok {
			report.Unassigned++
			continue
		}
		if p.Repetitions >= 1 {
			byID[id].FlashcardsMastered++
		}
	}

	for itemID, p := range questions.items {
		id, ok := a.resolve(itemID, questions.index)
		if !ok {
			report.Unassigned++
			continue
		}
		s := byID[id]
		s.QuestionsAttempted += max(p.Repetitions, 0)
		correct := p.RatingCounts.Correct()
		s.QuestionsCorrect += correct
		if correct > 0 {
			s.QuestionsMastered++
		}
	}

	for i := range report.Domains {
		s := &report.Domains[i]
		s.FlashcardsMastered = min(s.FlashcardsMastered, s.FlashcardsTotal)
		s.QuestionsMastered = min(s.QuestionsMastered, s.QuestionsTotal)
		s.MasteryPercent = s.Percent()
	}
	report.OverallPercent = domain.OverallPercent(report.Domains)

	if cards.fallback {
		report.FallbackPools = append(report.FallbackPools, domain.PoolFlashcards)
	}
	if questions.fallback {
		report.FallbackPools = append(report.FallbackPools, domain.PoolQuestions)
	}
	return report
}
