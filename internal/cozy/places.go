package cozy

import (
	"context"
	"strings"

	"cozy/internal/domain/places"
	"cozy/internal/domain/ratings"
	"cozy/internal/geo"

	"golang.org/x/sync/errgroup"
)

// PlaceDetail is a place with its photos and every rating left on it.
type PlaceDetail struct {
	places.Place
	Ratings []ratings.Rating `json:"ratings"`
}

type PlaceInput struct {
	Name     string
	Type     string
	Address  string
	City     string
	State    string
	Zipcode  string
	Location []float64 // (longitude, latitude)
}

// NearbyPlaces lists non-archived places within geo.MaxDistanceMeters of
// near, or every non-archived place when near is nil.
func (s *Service) NearbyPlaces(ctx context.Context, near *geo.Point) ([]places.Place, error) {
	filter := places.ListFilter{}
	if near != nil {
		if _, err := geo.NewPoint(near.Longitude, near.Latitude); err != nil {
			return nil, InvalidArgument("`lat` and `lng` must be valid coordinates")
		}
		filter.Near = near
		filter.Radius = geo.MaxDistanceMeters
	}

	list, err := s.places.List(ctx, filter)
	if err != nil {
		return nil, fromStore(err)
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]string, 0, len(list))
	for i := range list {
		ids = append(ids, list[i].ID)
	}
	photos, err := s.places.PhotosByPlace(ctx, ids)
	if err != nil {
		return nil, fromStore(err)
	}
	for i := range list {
		list[i].Photos = withPhotos(photos[list[i].ID])
	}
	return list, nil
}

func (s *Service) GetPlace(ctx context.Context, id string) (*PlaceDetail, error) {
	if err := checkID("id", id); err != nil {
		return nil, err
	}

	place, err := s.places.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err)
	}

	detail := &PlaceDetail{Place: *place}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		photos, err := s.places.PhotosByPlace(gctx, []string{id})
		if err != nil {
			return err
		}
		detail.Photos = withPhotos(photos[id])
		return nil
	})
	g.Go(func() error {
		rs, err := s.ratings.ListByPlace(gctx, id)
		if err != nil {
			return err
		}
		detail.Ratings = rs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fromStore(err)
	}

	return detail, nil
}

func (s *Service) CreatePlace(ctx context.Context, in PlaceInput) (*places.Place, error) {
	required := []struct{ field, value string }{
		{"name", in.Name},
		{"type", in.Type},
		{"address", in.Address},
		{"city", in.City},
		{"state", in.State},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, InvalidArgument("`" + r.field + "` is required")
		}
	}
	if len(in.Location) != 2 {
		return nil, InvalidArgument("`location` must be [longitude, latitude]")
	}
	point, err := geo.NewPoint(in.Location[0], in.Location[1])
	if err != nil {
		return nil, InvalidArgument("`location` must be [longitude, latitude]")
	}

	place := &places.Place{
		Name:     strings.TrimSpace(in.Name),
		Type:     strings.TrimSpace(in.Type),
		Address:  strings.TrimSpace(in.Address),
		City:     strings.TrimSpace(in.City),
		State:    strings.TrimSpace(in.State),
		Zipcode:  strings.TrimSpace(in.Zipcode),
		Location: point.Coordinates(),
	}
	if err := s.places.Create(ctx, place); err != nil {
		return nil, fromStore(err)
	}
	place.Photos = []places.Photo{}
	return place, nil
}

// AddPhoto attaches a photo reference to a place.
func (s *Service) AddPhoto(ctx context.Context, userID, placeID, url, caption string) (*places.Photo, error) {
	if err := checkID("userId", userID); err != nil {
		return nil, err
	}
	if err := checkID("placeId", placeID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(url) == "" {
		return nil, InvalidArgument("`url` is required")
	}

	photo := &places.Photo{
		PlaceID: placeID,
		UserID:  userID,
		URL:     strings.TrimSpace(url),
		Caption: caption,
	}
	if err := s.places.AddPhoto(ctx, photo); err != nil {
		return nil, fromStore(err)
	}
	return photo, nil
}

func withPhotos(photos []places.Photo) []places.Photo {
	if photos == nil {
		return []places.Photo{}
	}
	return photos
}
