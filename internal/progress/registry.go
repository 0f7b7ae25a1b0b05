package progress

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-progress/internal/domain"
	"github.com/phrazzld/scry-progress/internal/metrics"
	"github.com/phrazzld/scry-progress/internal/platform/logger"
	"github.com/phrazzld/scry-progress/internal/store"
)

// Registry creates progress stores over a shared KVStore and owns the locks
// that make their read-modify-write cycles atomic within this process.
type Registry struct {
	kv      store.KVStore
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	locks map[string]*keyLock
}

var _ store.ProgressStoreProvider = (*Registry)(nil)

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by stores. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithMetrics sets the collector that records corrupt blobs and store errors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates a Registry backed by kv.
func NewRegistry(kv store.KVStore, opts ...Option) (*Registry, error) {
	if kv == nil {
		return nil, fmt.Errorf("progress registry requires a key-value store")
	}
	r := &Registry{
		kv:    kv,
		locks: make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logger.Component(r.logger, "progress")
	return r, nil
}

// Store returns the progress store for one learner's pool.
func (r *Registry) Store(learnerID uuid.UUID, pool domain.Pool) (*Store, error) {
	if !pool.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPool, pool)
	}
	if learnerID == uuid.Nil {
		return nil, fmt.Errorf("%w: learner ID cannot be nil", domain.ErrValidation)
	}
	return &Store{
		registry:  r,
		learnerID: learnerID,
		pool:      pool,
		key:       store.ProgressKey(learnerID, pool),
		logger: r.logger.With(
			slog.String("learner_id", learnerID.String()),
			slog.String("pool", string(pool)),
		),
	}, nil
}

// ProgressStore implements store.ProgressStoreProvider.
func (r *Registry) ProgressStore(learnerID uuid.UUID, pool domain.Pool) (store.ProgressStore, error) {
	s, err := r.Store(learnerID, pool)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// lock acquires the lock for key and returns its release function.
// Lock entries are reference counted and dropped once unused.
func (r *Registry) lock(key string) func() {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &keyLock{}
		r.locks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, key)
		}
		r.mu.Unlock()
	}
}

// activeLocks reports how many keys currently have a lock entry.
func (r *Registry) activeLocks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
