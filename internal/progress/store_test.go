package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-progress/internal/domain"
	"github.com/phrazzld/scry-progress/internal/metrics"
	"github.com/phrazzld/scry-progress/internal/platform/logger"
	"github.com/phrazzld/scry-progress/internal/platform/memory"
	"github.com/phrazzld/scry-progress/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainKV hides the atomic capability of the memory store so the
// lock-load-save path is exercised.
type plainKV struct {
	kv *memory.KVStore
}

func (p plainKV) Get(ctx context.Context, key string) ([]byte, error) { return p.kv.Get(ctx, key) }
func (p plainKV) Set(ctx context.Context, key string, v []byte) error { return p.kv.Set(ctx, key, v) }
func (p plainKV) Delete(ctx context.Context, key string) error        { return p.kv.Delete(ctx, key) }

// failingKV fails every operation.
type failingKV struct{ err error }

func (f failingKV) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingKV) Set(context.Context, string, []byte) error   { return f.err }
func (f failingKV) Delete(context.Context, string) error        { return f.err }

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// backings returns one atomic and one plain backing for table-driven tests.
func backings() map[string]func() store.KVStore {
	return map[string]func() store.KVStore{
		"atomic": func() store.KVStore { return memory.NewKVStore() },
		"plain":  func() store.KVStore { return plainKV{kv: memory.NewKVStore()} },
	}
}

func newTestStore(t *testing.T, kv store.KVStore, pool domain.Pool) *Store {
	t.Helper()
	l, _ := logger.NewTestLogger(t)
	reg, err := NewRegistry(kv, WithLogger(l))
	require.NoError(t, err)
	s, err := reg.Store(uuid.New(), pool)
	require.NoError(t, err)
	return s
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(nil)
	assert.Error(t, err)

	reg, err := NewRegistry(memory.NewKVStore())
	require.NoError(t, err)

	_, err = reg.Store(uuid.New(), domain.Pool("formulas"))
	assert.ErrorIs(t, err, domain.ErrInvalidPool)

	_, err = reg.Store(uuid.Nil, domain.PoolQuestions)
	assert.ErrorIs(t, err, domain.ErrValidation)

	learner := uuid.New()
	s, err := reg.Store(learner, domain.PoolQuestions)
	require.NoError(t, err)
	assert.Equal(t, learner, s.LearnerID())
	assert.Equal(t, domain.PoolQuestions, s.Pool())
}

func TestStore_GetOrInitialize(t *testing.T) {
	t.Parallel()
	for name, newKV := range backings() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t, newKV(), domain.PoolFlashcards)

			_, err := s.Get(ctx, "card-1")
			assert.ErrorIs(t, err, store.ErrProgressNotFound)
			assert.True(t, store.IsNotFoundError(err))

			p, err := s.GetOrInitialize(ctx, "card-1", testNow)
			require.NoError(t, err)
			assert.Equal(t, "card-1", p.ItemID)
			assert.Equal(t, domain.DefaultEaseFactor, p.EaseFactor)
			assert.Equal(t, 1, p.Interval)
			assert.Equal(t, 0, p.Repetitions)
			assert.True(t, p.NextReviewDate.Equal(testNow))
			assert.Nil(t, p.LastReviewDate)

			// Persisted, and a later call does not reset it.
			later, err := s.GetOrInitialize(ctx, "card-1", testNow.Add(48*time.Hour))
			require.NoError(t, err)
			assert.True(t, later.NextReviewDate.Equal(testNow))

			got, err := s.Get(ctx, "card-1")
			require.NoError(t, err)
			assert.Equal(t, "card-1", got.ItemID)

			_, err = s.GetOrInitialize(ctx, "", testNow)
			assert.ErrorIs(t, err, domain.ErrEmptyItemID)
		})
	}
}

func TestStore_SetAndGetAll(t *testing.T) {
	t.Parallel()
	for name, newKV := range backings() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t, newKV(), domain.PoolQuestions)

			last := testNow.Add(-24 * time.Hour)
			p := &domain.ItemProgress{
				ItemID:         "ignored",
				EaseFactor:     2.36,
				Interval:       6,
				Repetitions:    2,
				NextReviewDate: testNow.Add(5 * 24 * time.Hour),
				LastReviewDate: &last,
				TotalReviews:   2,
				RatingCounts:   domain.RatingCounts{Hard: 1, Good: 1},
			}
			require.NoError(t, s.Set(ctx, "q-7", p))
			require.NoError(t, s.Set(ctx, "q-8", domain.NewItemProgress("q-8", testNow)))

			assert.ErrorIs(t, s.Set(ctx, "q-9", nil), store.ErrInvalidEntity)
			assert.ErrorIs(t, s.Set(ctx, "", p), domain.ErrEmptyItemID)

			all, err := s.GetAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "q-7", all["q-7"].ItemID, "map key is authoritative")
			assert.InDelta(t, 2.36, all["q-7"].EaseFactor, 1e-9)
			require.NotNil(t, all["q-7"].LastReviewDate)
			assert.True(t, all["q-7"].LastReviewDate.Equal(last))

			// Snapshot isolation: mutating the snapshot or the input never
			// shows through later reads.
			all["q-7"].Interval = 999
			*all["q-7"].LastReviewDate = testNow
			p.Repetitions = 50

			again, err := s.Get(ctx, "q-7")
			require.NoError(t, err)
			assert.Equal(t, 6, again.Interval)
			assert.Equal(t, 2, again.Repetitions)
			assert.True(t, again.LastReviewDate.Equal(last))
		})
	}
}

func TestStore_Update(t *testing.T) {
	t.Parallel()
	for name, newKV := range backings() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t, newKV(), domain.PoolFlashcards)

			got, err := s.Update(ctx, "card-1", testNow, func(cur *domain.ItemProgress) (*domain.ItemProgress, error) {
				assert.Equal(t, 0, cur.Repetitions, "absent item starts from defaults")
				cur.Repetitions = 1
				cur.TotalReviews = 1
				cur.RatingCounts.Good = 1
				return cur, nil
			})
			require.NoError(t, err)
			assert.Equal(t, 1, got.Repetitions)

			boom := errors.New("boom")
			_, err = s.Update(ctx, "card-1", testNow, func(cur *domain.ItemProgress) (*domain.ItemProgress, error) {
				cur.Repetitions = 40
				return nil, boom
			})
			assert.ErrorIs(t, err, boom)

			_, err = s.Update(ctx, "card-1", testNow, func(*domain.ItemProgress) (*domain.ItemProgress, error) {
				return nil, nil
			})
			assert.ErrorIs(t, err, store.ErrInvalidEntity)

			stored, err := s.Get(ctx, "card-1")
			require.NoError(t, err)
			assert.Equal(t, 1, stored.Repetitions, "failed updates leave state unchanged")
		})
	}
}

func TestStore_ToggleFlag(t *testing.T) {
	t.Parallel()
	for name, newKV := range backings() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t, newKV(), domain.PoolQuestions)

			flagged, err := s.IsFlagged(ctx, "q-42")
			require.NoError(t, err)
			assert.False(t, flagged, "unknown items are not flagged")

			first, err := s.ToggleFlag(ctx, "q-42", testNow)
			require.NoError(t, err)
			second, err := s.ToggleFlag(ctx, "q-42", testNow)
			require.NoError(t, err)

			assert.True(t, first)
			assert.False(t, second)

			flagged, err = s.IsFlagged(ctx, "q-42")
			require.NoError(t, err)
			assert.False(t, flagged)

			_, err = s.ToggleFlag(ctx, "q-3", testNow)
			require.NoError(t, err)
			_, err = s.ToggleFlag(ctx, "q-1", testNow)
			require.NoError(t, err)

			ids, err := s.FlaggedItems(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"q-1", "q-3"}, ids)
		})
	}
}

func TestStore_FlagSurvivesUpdates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, memory.NewKVStore(), domain.PoolQuestions)

	_, err := s.ToggleFlag(ctx, "q-1", testNow)
	require.NoError(t, err)

	_, err = s.Update(ctx, "q-1", testNow, func(cur *domain.ItemProgress) (*domain.ItemProgress, error) {
		next := domain.NewItemProgress(cur.ItemID, testNow)
		next.Flagged = cur.Flagged
		next.Repetitions = 3
		return next, nil
	})
	require.NoError(t, err)

	flagged, err := s.IsFlagged(ctx, "q-1")
	require.NoError(t, err)
	assert.True(t, flagged)
}

func TestStore_Clear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.NewKVStore()
	reg, err := NewRegistry(kv)
	require.NoError(t, err)

	learner := uuid.New()
	cards, err := reg.Store(learner, domain.PoolFlashcards)
	require.NoError(t, err)
	questions, err := reg.Store(learner, domain.PoolQuestions)
	require.NoError(t, err)
	other, err := reg.Store(uuid.New(), domain.PoolFlashcards)
	require.NoError(t, err)

	for _, s := range []*Store{cards, questions, other} {
		_, err := s.GetOrInitialize(ctx, "item-1", testNow)
		require.NoError(t, err)
	}

	require.NoError(t, cards.Clear(ctx))

	all, err := cards.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	for _, s := range []*Store{questions, other} {
		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1, "clear is scoped to one learner's pool")
	}
}

func TestStore_CorruptBlobRecovery(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		blob string
	}{
		{name: "not json", blob: "{{{not json"},
		{name: "wrong shape", blob: `[1,2,3]`},
		{name: "wrong field types", blob: `{"c1":{"easeFactor":"high"}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			kv := memory.NewKVStore()
			l, logs := logger.NewTestLogger(t)
			m := metrics.New()
			reg, err := NewRegistry(kv, WithLogger(l), WithMetrics(m))
			require.NoError(t, err)

			learner := uuid.New()
			s, err := reg.Store(learner, domain.PoolQuestions)
			require.NoError(t, err)
			require.NoError(t, kv.Set(ctx, store.ProgressKey(learner, domain.PoolQuestions), []byte(tc.blob)))

			all, err := s.GetAll(ctx)
			require.NoError(t, err, "corruption is never surfaced")
			assert.Empty(t, all)

			warnings, err := logs.EntriesWithMessage("discarding undecodable progress blob")
			require.NoError(t, err)
			require.Len(t, warnings, 1)
			assert.Equal(t, "WARN", warnings[0]["level"])
			assert.Equal(t, "progress", warnings[0]["component"])

			expected := `
# HELP scry_corrupt_progress_blobs_total Stored progress blobs that failed to decode and were treated as empty
# TYPE scry_corrupt_progress_blobs_total counter
scry_corrupt_progress_blobs_total{pool="questions"} 1
`
			assert.NoError(t, testutil.GatherAndCompare(m.Registry(),
				strings.NewReader(expected), "scry_corrupt_progress_blobs_total"))

			// Writing after corruption starts from an empty pool.
			_, err = s.ToggleFlag(ctx, "q-1", testNow)
			require.NoError(t, err)
			ids, err := s.FlaggedItems(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"q-1"}, ids)
		})
	}
}

func TestStore_LegacyBlob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.NewKVStore()
	reg, err := NewRegistry(kv)
	require.NoError(t, err)
	learner := uuid.New()
	s, err := reg.Store(learner, domain.PoolFlashcards)
	require.NoError(t, err)

	legacy := `{"12":{"cardId":"12","easeFactor":2.6,"interval":6,"repetitions":2,` +
		`"nextReviewDate":"2026-03-20T09:00:00Z","lastReviewDate":"2026-03-14T09:00:00Z",` +
		`"totalReviews":2,"ratingCounts":{"again":0,"hard":0,"good":1,"easy":1}},"13":null}`
	require.NoError(t, kv.Set(ctx, store.ProgressKey(learner, domain.PoolFlashcards), []byte(legacy)))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "null entries are dropped")
	p := all["12"]
	assert.Equal(t, "12", p.ItemID)
	assert.Equal(t, 2, p.Repetitions)
	assert.Equal(t, 1, p.RatingCounts.Easy)
	assert.NoError(t, p.Validate())
}

func TestStore_ConcurrentUpdatesAcrossItems(t *testing.T) {
	t.Parallel()
	for name, newKV := range backings() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := newKV()
			reg, err := NewRegistry(kv)
			require.NoError(t, err)
			learner := uuid.New()

			const items = 20
			const rounds = 10
			var wg sync.WaitGroup
			for i := 0; i < items; i++ {
				for r := 0; r < rounds; r++ {
					wg.Add(1)
					go func(itemID string) {
						defer wg.Done()
						// Each goroutine gets its own Store value; the lock lives in the Registry.
						s, err := reg.Store(learner, domain.PoolFlashcards)
						if !assert.NoError(t, err) {
							return
						}
						_, err = s.Update(ctx, itemID, testNow, func(cur *domain.ItemProgress) (*domain.ItemProgress, error) {
							cur.TotalReviews++
							cur.RatingCounts.Good++
							return cur, nil
						})
						assert.NoError(t, err)
					}(fmt.Sprintf("card-%d", i))
				}
			}
			wg.Wait()

			s, err := reg.Store(learner, domain.PoolFlashcards)
			require.NoError(t, err)
			all, err := s.GetAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, items)
			for id, p := range all {
				assert.Equal(t, rounds, p.TotalReviews, "lost update on %s", id)
			}
			assert.Equal(t, 0, reg.activeLocks(), "lock entries are released")
		})
	}
}

func TestStore_BackingFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cause := errors.New("connection reset by peer")
	m := metrics.New()
	reg, err := NewRegistry(failingKV{err: cause}, WithMetrics(m))
	require.NoError(t, err)
	s, err := reg.Store(uuid.New(), domain.PoolFlashcards)
	require.NoError(t, err)

	_, err = s.GetAll(ctx)
	assert.ErrorIs(t, err, cause)
	var storeErr *store.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "get", storeErr.Operation)

	_, err = s.Update(ctx, "card-1", testNow, func(p *domain.ItemProgress) (*domain.ItemProgress, error) {
		return p, nil
	})
	assert.ErrorIs(t, err, cause)

	assert.ErrorIs(t, s.Clear(ctx), cause)
	series, err := testutil.GatherAndCount(m.Registry(), "scry_store_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "get and clear failures")
}
