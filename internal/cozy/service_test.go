package cozy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cozy/internal/db"
	"cozy/internal/domain/places"
	"cozy/internal/domain/ratings"
	"cozy/internal/domain/storage"
	"cozy/internal/geo"
	"cozy/internal/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var denver = geo.Point{Longitude: -104.9903, Latitude: 39.7392}

func newTestService(t *testing.T, wrap func(*storage.Container), opts ...Option) *Service {
	t.Helper()
	c := storage.NewMemoryContainer()
	if wrap != nil {
		wrap(c)
	}
	opts = append([]Option{WithRetryPolicy(3, time.Millisecond)}, opts...)
	return NewService(c, zaptest.NewLogger(t).Sugar(), opts...)
}

func seedPlace(t *testing.T, svc *Service, at geo.Point) *places.Place {
	t.Helper()
	p, err := svc.CreatePlace(context.Background(), PlaceInput{
		Name:     "Steam Coffee",
		Type:     "cafe",
		Address:  "1801 Wynkoop St",
		City:     "Denver",
		State:    "CO",
		Location: at.Coordinates(),
	})
	require.NoError(t, err)
	return p
}

func all(v float64) *ratings.Payload {
	f := func() *float64 { x := v; return &x }
	return &ratings.Payload{
		WarmLighting:    f(),
		RelaxedMusic:    f(),
		CalmEnvironment: f(),
		SoftFabrics:     f(),
		ComfySeating:    f(),
		HotFoodDrink:    f(),
	}
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	var e *Error
	require.True(t, errors.As(err, &e), "expected *cozy.Error, got %T", err)
	require.Equal(t, kind, e.Kind, e.Error())
	return e
}

func placeState(t *testing.T, svc *Service, id string) *places.Place {
	t.Helper()
	p, err := svc.places.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func TestCreateRatingAggregates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	place := seedPlace(t, svc, denver)

	_, err := svc.CreateRating(ctx, params.NewID(), place.ID, all(4))
	require.NoError(t, err)
	_, err = svc.CreateRating(ctx, params.NewID(), place.ID, all(6))
	require.NoError(t, err)

	p := placeState(t, svc, place.ID)
	assert.Equal(t, uniform(5), p.Averages)
	assert.Equal(t, 5.0, p.Cozyness)

	_, err = svc.CreateRating(ctx, params.NewID(), place.ID, all(0))
	require.NoError(t, err)

	p = placeState(t, svc, place.ID)
	assert.Equal(t, uniform(3.33), p.Averages)
	assert.InDelta(t, 3.33, p.Cozyness, 1e-9)
}

func TestCreateRatingValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	place := seedPlace(t, svc, denver)
	user := params.NewID()

	t.Run("malformed place id", func(t *testing.T) {
		_, err := svc.CreateRating(ctx, user, "not-an-id", all(5))
		e := requireKind(t, err, KindInvalidArgument)
		assert.Equal(t, "The `placeId` is not valid", e.Message)
	})

	t.Run("missing payload", func(t *testing.T) {
		_, err := svc.CreateRating(ctx, user, place.ID, nil)
		requireKind(t, err, KindInvalidArgument)

		_, err = svc.CreateRating(ctx, user, place.ID, &ratings.Payload{})
		requireKind(t, err, KindInvalidArgument)
	})

	t.Run("sub-score out of range", func(t *testing.T) {
		_, err := svc.CreateRating(ctx, user, place.ID, all(11))
		requireKind(t, err, KindInvalidArgument)
	})

	t.Run("unknown place", func(t *testing.T) {
		_, err := svc.CreateRating(ctx, user, params.NewID(), all(5))
		requireKind(t, err, KindNotFound)
	})

	t.Run("comment only", func(t *testing.T) {
		comment := "quiet corner by the window"
		r, err := svc.CreateRating(ctx, user, place.ID, &ratings.Payload{Comment: &comment})
		require.NoError(t, err)
		assert.True(t, params.IsValidID(r.ID))

		p := placeState(t, svc, place.ID)
		assert.Equal(t, places.Scores{}, p.Averages)
		assert.Equal(t, 0.0, p.Cozyness)
	})
}

func TestCreateRatingDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	place := seedPlace(t, svc, denver)
	user := params.NewID()

	_, err := svc.CreateRating(ctx, user, place.ID, all(7))
	require.NoError(t, err)

	for _, payload := range []*ratings.Payload{all(7), all(2)} {
		_, err := svc.CreateRating(ctx, user, place.ID, payload)
		e := requireKind(t, err, KindConflict)
		assert.Equal(t, ReasonValidationError, e.Reason)
	}

	list, err := svc.ListRatings(ctx, user, ratings.Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdateRating(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	place := seedPlace(t, svc, denver)
	owner := params.NewID()

	r, err := svc.CreateRating(ctx, owner, place.ID, all(2))
	require.NoError(t, err)

	t.Run("another user cannot see it", func(t *testing.T) {
		_, err := svc.UpdateRating(ctx, params.NewID(), r.ID, "", all(9))
		requireKind(t, err, KindNotFound)
	})

	t.Run("partial payload", func(t *testing.T) {
		p := all(9)
		p.HotFoodDrink = nil
		_, err := svc.UpdateRating(ctx, owner, r.ID, "", p)
		requireKind(t, err, KindInvalidArgument)
	})

	t.Run("unknown rating", func(t *testing.T) {
		_, err := svc.UpdateRating(ctx, owner, params.NewID(), "", all(9))
		requireKind(t, err, KindNotFound)
	})

	t.Run("place id must match the rating", func(t *testing.T) {
		_, err := svc.UpdateRating(ctx, owner, r.ID, "zzz", all(9))
		requireKind(t, err, KindInvalidArgument)

		_, err = svc.UpdateRating(ctx, owner, r.ID, params.NewID(), all(9))
		requireKind(t, err, KindInvalidArgument)

		got, err := svc.GetRating(ctx, owner, place.ID)
		require.NoError(t, err)
		assert.Equal(t, 2.0, *got.Rating.WarmLighting)
	})

	t.Run("owner replaces scores", func(t *testing.T) {
		updated, err := svc.UpdateRating(ctx, owner, r.ID, place.ID, all(9))
		require.NoError(t, err)
		assert.Equal(t, 9.0, *updated.Rating.WarmLighting)
		assert.Equal(t, place.ID, updated.PlaceID)

		p := placeState(t, svc, place.ID)
		assert.Equal(t, uniform(9), p.Averages)
		assert.Equal(t, 9.0, p.Cozyness)
	})
}

func TestDeleteRating(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	place := seedPlace(t, svc, denver)
	user := params.NewID()

	_, err := svc.CreateRating(ctx, user, place.ID, all(8))
	require.NoError(t, err)
	assert.Equal(t, 8.0, placeState(t, svc, place.ID).Cozyness)

	require.NoError(t, svc.DeleteRating(ctx, user, place.ID))

	p := placeState(t, svc, place.ID)
	assert.Equal(t, places.Scores{}, p.Averages)
	assert.Equal(t, 0.0, p.Cozyness)

	err = svc.DeleteRating(ctx, user, place.ID)
	requireKind(t, err, KindNotFound)

	err = svc.DeleteRating(ctx, user, "123")
	requireKind(t, err, KindInvalidArgument)
}

func TestGetRating(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	place := seedPlace(t, svc, denver)
	user := params.NewID()

	r, err := svc.GetRating(ctx, user, place.ID)
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = svc.CreateRating(ctx, user, place.ID, all(3))
	require.NoError(t, err)

	r, err = svc.GetRating(ctx, user, place.ID)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, user, r.UserID)

	_, err = svc.GetRating(ctx, user, "zzz")
	requireKind(t, err, KindInvalidArgument)
}

func TestListRatings(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	user := params.NewID()

	first := seedPlace(t, svc, denver)
	second := seedPlace(t, svc, geo.Offset(denver, 1000))

	warm := "Warm and Quiet"
	loud := "too loud on weekends"
	p1 := all(5)
	p1.Comment = &warm
	p2 := all(6)
	p2.Comment = &loud

	r1, err := svc.CreateRating(ctx, user, first.ID, p1)
	require.NoError(t, err)
	r2, err := svc.CreateRating(ctx, user, second.ID, p2)
	require.NoError(t, err)
	_, err = svc.CreateRating(ctx, params.NewID(), first.ID, all(1))
	require.NoError(t, err)

	list, err := svc.ListRatings(ctx, user, ratings.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, r2.ID, list[0].ID)
	assert.Equal(t, r1.ID, list[1].ID)

	// updating moves a rating to the front
	_, err = svc.UpdateRating(ctx, user, r1.ID, "", p1)
	require.NoError(t, err)
	list, err = svc.ListRatings(ctx, user, ratings.Filter{})
	require.NoError(t, err)
	assert.Equal(t, r1.ID, list[0].ID)

	list, err = svc.ListRatings(ctx, user, ratings.Filter{SearchTerm: "quiet"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r1.ID, list[0].ID)

	list, err = svc.ListRatings(ctx, user, ratings.Filter{PlaceID: second.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r2.ID, list[0].ID)

	_, err = svc.ListRatings(ctx, user, ratings.Filter{PlaceID: "nope"})
	requireKind(t, err, KindInvalidArgument)
}

func TestConcurrentRatingsConverge(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	place := seedPlace(t, svc, denver)

	const n = 25
	var wg sync.WaitGroup
	expected := make([]places.Scores, n)
	for i := 0; i < n; i++ {
		v := float64(i % 11)
		expected[i] = uniform(v)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateRating(ctx, params.NewID(), place.ID, all(v))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	wantAverages, wantCozyness := Aggregate(expected)
	p := placeState(t, svc, place.ID)
	assert.Equal(t, wantAverages, p.Averages)
	assert.Equal(t, wantCozyness, p.Cozyness)
}

// failingPlaces fails UpdateAverages while failures remains positive.
type failingPlaces struct {
	places.Store
	err      error
	failures atomic.Int32
	calls    atomic.Int32
}

func (f *failingPlaces) UpdateAverages(ctx context.Context, id string, averages places.Scores, cozyness float64) error {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return f.err
	}
	return f.Store.UpdateAverages(ctx, id, averages, cozyness)
}

func withFailingPlaces(err error, failures int32) (func(*storage.Container), *failingPlaces) {
	fp := &failingPlaces{err: err}
	fp.failures.Store(failures)
	return func(c *storage.Container) {
		fp.Store = c.Places
		c.Places = fp
	}, fp
}

func TestAggregationFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	wrap, fp := withFailingPlaces(errors.New("disk on fire"), 1000)
	svc := newTestService(t, wrap)
	place := seedPlace(t, svc, denver)
	user := params.NewID()

	r, err := svc.CreateRating(ctx, user, place.ID, all(6))
	require.NoError(t, err)
	require.NotNil(t, r)

	// not transient, so no retry
	assert.Equal(t, int32(1), fp.calls.Load())

	stored, err := svc.GetRating(ctx, user, place.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	p := placeState(t, svc, place.ID)
	assert.Equal(t, 0.0, p.Cozyness)
}

func TestRecomputeRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers within the retry budget", func(t *testing.T) {
		wrap, fp := withFailingPlaces(db.ErrUnavailable, 2)
		svc := newTestService(t, wrap)
		place := seedPlace(t, svc, denver)

		_, err := svc.CreateRating(ctx, params.NewID(), place.ID, all(4))
		require.NoError(t, err)

		assert.Equal(t, int32(3), fp.calls.Load())
		assert.Equal(t, 4.0, placeState(t, svc, place.ID).Cozyness)
	})

	t.Run("gives up after three retries", func(t *testing.T) {
		wrap, fp := withFailingPlaces(db.ErrUnavailable, 1000)
		svc := newTestService(t, wrap)
		place := seedPlace(t, svc, denver)

		_, err := svc.CreateRating(ctx, params.NewID(), place.ID, all(4))
		require.NoError(t, err)

		assert.Equal(t, int32(4), fp.calls.Load())
		assert.Equal(t, 0.0, placeState(t, svc, place.ID).Cozyness)

		_, _, err = svc.Aggregator().Recompute(ctx, place.ID)
		requireKind(t, err, KindUnavailable)
	})
}

func TestRecomputeBreakerOpens(t *testing.T) {
	ctx := context.Background()
	wrap, fp := withFailingPlaces(db.ErrUnavailable, 1000)
	svc := newTestService(t, wrap, WithRetryPolicy(0, time.Millisecond))
	place := seedPlace(t, svc, denver)

	for i := 0; i < defaultBreakerThreshold; i++ {
		_, _, err := svc.Aggregator().Recompute(ctx, place.ID)
		requireKind(t, err, KindUnavailable)
	}
	assert.Equal(t, int32(defaultBreakerThreshold), fp.calls.Load())

	_, _, err := svc.Aggregator().Recompute(ctx, place.ID)
	requireKind(t, err, KindUnavailable)
	assert.Equal(t, int32(defaultBreakerThreshold), fp.calls.Load(), "open breaker must not reach the store")
}

func TestRecomputeUnknownPlace(t *testing.T) {
	svc := newTestService(t, nil)
	_, _, err := svc.Aggregator().Recompute(context.Background(), params.NewID())
	requireKind(t, err, KindNotFound)
}

func TestKeyedMutexSerializes(t *testing.T) {
	k := newKeyedMutex()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("place")
			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Empty(t, k.locks)
}
