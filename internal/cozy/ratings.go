package cozy

import (
	"context"
	"errors"

	"cozy/internal/domain/ratings"
	"cozy/internal/metrics"
)

// CreateRating stores the caller's first rating of a place and refreshes the
// place aggregates before returning it.
func (s *Service) CreateRating(ctx context.Context, userID, placeID string, payload *ratings.Payload) (*ratings.Rating, error) {
	if err := checkID("userId", userID); err != nil {
		return nil, err
	}
	if err := checkID("placeId", placeID); err != nil {
		return nil, err
	}
	if payload.IsEmpty() {
		return nil, InvalidArgument("`rating` is required")
	}
	if err := payload.CheckRange(); err != nil {
		return nil, InvalidArgument(err.Error())
	}

	if _, err := s.places.GetByID(ctx, placeID); err != nil {
		return nil, fromStore(err)
	}

	existing, err := s.ratings.GetByPlaceAndUser(ctx, placeID, userID)
	switch {
	case err == nil && existing != nil:
		return nil, fromStore(ratings.ErrDuplicate)
	case err != nil && !errors.Is(err, ratings.ErrNotFound):
		return nil, fromStore(err)
	}

	rating := &ratings.Rating{
		PlaceID: placeID,
		UserID:  userID,
		Rating:  *payload,
	}
	if err := s.ratings.Create(ctx, rating); err != nil {
		return nil, fromStore(err)
	}
	metrics.RatingMutations.WithLabelValues("create").Inc()

	s.reaggregate(ctx, placeID)
	return rating, nil
}

// UpdateRating replaces every sub-score and the comment of a rating the
// caller owns. Ratings of other users are reported as not found. A non-empty
// placeID must name the place the rating belongs to.
func (s *Service) UpdateRating(ctx context.Context, userID, ratingID, placeID string, payload *ratings.Payload) (*ratings.Rating, error) {
	if err := checkID("userId", userID); err != nil {
		return nil, err
	}
	if err := checkID("ratingId", ratingID); err != nil {
		return nil, err
	}
	if placeID != "" {
		if err := checkID("placeId", placeID); err != nil {
			return nil, err
		}
	}
	if !payload.IsComplete() {
		return nil, InvalidArgument("all six sub-scores of `rating` are required")
	}
	if err := payload.CheckRange(); err != nil {
		return nil, InvalidArgument(err.Error())
	}

	rating, err := s.ratings.GetByID(ctx, ratingID)
	if err != nil {
		return nil, fromStore(err)
	}
	if rating.UserID != userID {
		return nil, fromStore(ratings.ErrNotFound)
	}
	if placeID != "" && placeID != rating.PlaceID {
		return nil, InvalidArgument("The `placeId` does not match the rating")
	}

	rating.Rating = *payload
	if err := s.ratings.Update(ctx, rating); err != nil {
		return nil, fromStore(err)
	}
	metrics.RatingMutations.WithLabelValues("update").Inc()

	s.reaggregate(ctx, rating.PlaceID)
	return rating, nil
}

// DeleteRating removes the caller's rating of a place.
func (s *Service) DeleteRating(ctx context.Context, userID, placeID string) error {
	if err := checkID("userId", userID); err != nil {
		return err
	}
	if err := checkID("placeId", placeID); err != nil {
		return err
	}

	if _, err := s.ratings.DeleteByPlaceAndUser(ctx, placeID, userID); err != nil {
		return fromStore(err)
	}
	metrics.RatingMutations.WithLabelValues("delete").Inc()

	s.reaggregate(ctx, placeID)
	return nil
}

// GetRating returns the caller's rating of a place, or nil with no error when
// the caller has not rated it yet.
func (s *Service) GetRating(ctx context.Context, userID, placeID string) (*ratings.Rating, error) {
	if err := checkID("userId", userID); err != nil {
		return nil, err
	}
	if err := checkID("placeId", placeID); err != nil {
		return nil, err
	}

	rating, err := s.ratings.GetByPlaceAndUser(ctx, placeID, userID)
	if err != nil {
		if errors.Is(err, ratings.ErrNotFound) {
			return nil, nil
		}
		return nil, fromStore(err)
	}
	return rating, nil
}

func (s *Service) ListRatings(ctx context.Context, userID string, filter ratings.Filter) ([]ratings.Rating, error) {
	if err := checkID("userId", userID); err != nil {
		return nil, err
	}
	if filter.PlaceID != "" {
		if err := checkID("placeId", filter.PlaceID); err != nil {
			return nil, err
		}
	}

	rs, err := s.ratings.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fromStore(err)
	}
	return rs, nil
}
