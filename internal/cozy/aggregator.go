package cozy

import (
	"context"
	"errors"
	"sync"
	"time"

	"cozy/internal/domain/places"
	"cozy/internal/domain/ratings"
	"cozy/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries       = 3
	defaultRetryInterval    = 50 * time.Millisecond
	defaultBreakerThreshold = 5
	defaultBreakerTimeout   = 30 * time.Second
)

type aggregate struct {
	averages places.Scores
	cozyness float64
}

// Aggregator recomputes a place's six averages and cozyness from its ratings.
// Recomputes of the same place never overlap within one process.
type Aggregator struct {
	places  places.Store
	ratings ratings.Store
	logger  *zap.SugaredLogger

	locks   *keyedMutex
	breaker *gobreaker.CircuitBreaker[aggregate]

	maxRetries    uint64
	retryInterval time.Duration
}

func NewAggregator(placeStore places.Store, ratingStore ratings.Store, logger *zap.SugaredLogger) *Aggregator {
	a := &Aggregator{
		places:        placeStore,
		ratings:       ratingStore,
		logger:        logger,
		locks:         newKeyedMutex(),
		maxRetries:    defaultMaxRetries,
		retryInterval: defaultRetryInterval,
	}

	a.breaker = gobreaker.NewCircuitBreaker[aggregate](gobreaker.Settings{
		Name:    "recompute",
		Timeout: defaultBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= defaultBreakerThreshold
		},
		// only store outages count against the breaker
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.Set(float64(to))
			logger.Warnw("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return a
}

// Recompute derives and persists the aggregate fields of one place and
// returns what was written.
func (a *Aggregator) Recompute(ctx context.Context, placeID string) (places.Scores, float64, error) {
	unlock := a.locks.Lock(placeID)
	defer unlock()

	start := time.Now()
	attempts := 0

	op := func() (aggregate, error) {
		attempts++
		agg, err := a.breaker.Execute(func() (aggregate, error) {
			return a.recomputeOnce(ctx, placeID)
		})
		if err == nil {
			return agg, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return aggregate{}, backoff.Permanent(Unavailable(err))
		}
		if isTransient(err) {
			return aggregate{}, err
		}
		return aggregate{}, backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.retryInterval
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, a.maxRetries), ctx)

	notify := func(err error, wait time.Duration) {
		metrics.RecomputeRetries.Inc()
		a.logger.Warnw("retrying recompute", "placeId", placeID, "error", err, "wait", wait)
	}

	agg, err := backoff.RetryNotifyWithData(op, b, notify)
	if err != nil {
		err = fromStore(err)
		if KindOf(err) == KindNotFound {
			metrics.RecordRecompute("not_found", time.Since(start))
		} else {
			metrics.RecordRecompute("failed", time.Since(start))
		}
		return places.Scores{}, 0, err
	}

	if attempts > 1 {
		metrics.RecordRecompute("retried", time.Since(start))
	} else {
		metrics.RecordRecompute("ok", time.Since(start))
	}
	return agg.averages, agg.cozyness, nil
}

func (a *Aggregator) recomputeOnce(ctx context.Context, placeID string) (aggregate, error) {
	if _, err := a.places.GetByID(ctx, placeID); err != nil {
		return aggregate{}, err
	}

	rs, err := a.ratings.ListByPlace(ctx, placeID)
	if err != nil {
		return aggregate{}, err
	}

	scores := make([]places.Scores, 0, len(rs))
	for i := range rs {
		scores = append(scores, rs[i].Rating.Scores())
	}
	averages, cozyness := Aggregate(scores)

	if err := a.places.UpdateAverages(ctx, placeID, averages, cozyness); err != nil {
		return aggregate{}, err
	}
	return aggregate{averages: averages, cozyness: cozyness}, nil
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
