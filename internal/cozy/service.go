// Package cozy holds the application core: rating lifecycle, aggregation of
// place scores, nearby place lookup and moderation reports.
package cozy

import (
	"context"
	"time"

	"cozy/internal/domain/places"
	"cozy/internal/domain/ratings"
	"cozy/internal/domain/storage"
	"cozy/internal/domain/users"
	"cozy/internal/params"

	"go.uber.org/zap"
)

// DefaultArchiveThreshold is the report count at which a place is archived.
const DefaultArchiveThreshold = 5

type Service struct {
	places  places.Store
	ratings ratings.Store
	users   users.Store

	aggregator *Aggregator
	logger     *zap.SugaredLogger

	archiveThreshold int
}

type Option func(*Service)

// WithRetryPolicy overrides how often and how fast a recompute is retried
// after a transient store failure.
func WithRetryPolicy(maxRetries uint64, interval time.Duration) Option {
	return func(s *Service) {
		s.aggregator.maxRetries = maxRetries
		s.aggregator.retryInterval = interval
	}
}

func WithArchiveThreshold(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.archiveThreshold = n
		}
	}
}

func NewService(store *storage.Container, logger *zap.SugaredLogger, opts ...Option) *Service {
	s := &Service{
		places:           store.Places,
		ratings:          store.Ratings,
		users:            store.Users,
		aggregator:       NewAggregator(store.Places, store.Ratings, logger),
		logger:           logger,
		archiveThreshold: DefaultArchiveThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Aggregator() *Aggregator { return s.aggregator }

// reaggregate runs after a committed rating mutation. A failure here is
// logged and left for the next mutation of the same place to repair.
func (s *Service) reaggregate(ctx context.Context, placeID string) {
	ctx = context.WithoutCancel(ctx)
	if _, _, err := s.aggregator.Recompute(ctx, placeID); err != nil {
		s.logger.Errorw("failed to recompute place aggregates", "placeId", placeID, "error", err)
	}
}

func checkID(field, id string) error {
	if !params.IsValidID(id) {
		return InvalidArgument(params.InvalidIDMessage(field))
	}
	return nil
}
