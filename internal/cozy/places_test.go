package cozy

import (
	"context"
	"testing"

	"cozy/internal/geo"
	"cozy/internal/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placeIDs(t *testing.T, svc *Service, near *geo.Point) []string {
	t.Helper()
	list, err := svc.NearbyPlaces(context.Background(), near)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestNearbyPlaces(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	center := seedPlace(t, svc, denver)
	edge := seedPlace(t, svc, geo.Offset(denver, geo.MaxDistanceMeters))
	inside := seedPlace(t, svc, geo.Offset(denver, 59999))
	outside := seedPlace(t, svc, geo.Offset(denver, 60001))
	archived := seedPlace(t, svc, geo.Offset(denver, 10))

	for i := 0; i < DefaultArchiveThreshold; i++ {
		_, err := svc.ReportPlace(ctx, params.NewID(), archived.ID)
		require.NoError(t, err)
	}
	n, err := svc.ArchiveOverReportedPlaces(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	t.Run("within radius in insertion order", func(t *testing.T) {
		assert.Equal(t, []string{center.ID, edge.ID, inside.ID}, placeIDs(t, svc, &denver))
	})

	t.Run("no location lists every active place", func(t *testing.T) {
		assert.Equal(t, []string{center.ID, edge.ID, inside.ID, outside.ID}, placeIDs(t, svc, nil))
	})

	t.Run("photos are expanded", func(t *testing.T) {
		photo, err := svc.AddPhoto(ctx, params.NewID(), center.ID, "https://img.example.com/a.jpg", "fireplace")
		require.NoError(t, err)

		list, err := svc.NearbyPlaces(ctx, &denver)
		require.NoError(t, err)
		require.Len(t, list[0].Photos, 1)
		assert.Equal(t, photo.ID, list[0].Photos[0].ID)
		assert.NotNil(t, list[1].Photos)
		assert.Empty(t, list[1].Photos)
	})

	t.Run("out of range coordinates", func(t *testing.T) {
		_, err := svc.NearbyPlaces(ctx, &geo.Point{Longitude: 200, Latitude: 0})
		requireKind(t, err, KindInvalidArgument)
	})
}

func TestGetPlace(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	place := seedPlace(t, svc, denver)
	user := params.NewID()

	_, err := svc.AddPhoto(ctx, user, place.ID, "https://img.example.com/b.jpg", "")
	require.NoError(t, err)
	r, err := svc.CreateRating(ctx, user, place.ID, all(7))
	require.NoError(t, err)

	detail, err := svc.GetPlace(ctx, place.ID)
	require.NoError(t, err)
	assert.Equal(t, place.ID, detail.ID)
	assert.Len(t, detail.Photos, 1)
	require.Len(t, detail.Ratings, 1)
	assert.Equal(t, r.ID, detail.Ratings[0].ID)
	assert.Equal(t, 7.0, detail.Cozyness)

	_, err = svc.GetPlace(ctx, params.NewID())
	requireKind(t, err, KindNotFound)

	_, err = svc.GetPlace(ctx, "bad")
	e := requireKind(t, err, KindInvalidArgument)
	assert.Equal(t, "The `id` is not valid", e.Message)
}

func TestCreatePlace(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	tests := []struct {
		name  string
		input PlaceInput
		ok    bool
	}{
		{
			name:  "valid",
			input: PlaceInput{Name: "Nook", Type: "library", Address: "10 W 14th Ave", City: "Denver", State: "CO", Location: []float64{-104.98, 39.73}},
			ok:    true,
		},
		{
			name:  "missing name",
			input: PlaceInput{Type: "library", Address: "10 W 14th Ave", City: "Denver", State: "CO", Location: []float64{-104.98, 39.73}},
		},
		{
			name:  "missing location",
			input: PlaceInput{Name: "Nook", Type: "library", Address: "10 W 14th Ave", City: "Denver", State: "CO"},
		},
		{
			name:  "latitude out of range",
			input: PlaceInput{Name: "Nook", Type: "library", Address: "10 W 14th Ave", City: "Denver", State: "CO", Location: []float64{-104.98, 91}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.CreatePlace(ctx, tt.input)
			if !tt.ok {
				requireKind(t, err, KindInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.True(t, params.IsValidID(p.ID))
			assert.Equal(t, "", p.Zipcode)
			assert.Equal(t, 0.0, p.Cozyness)
			assert.False(t, p.Archived)
			assert.Empty(t, p.UserReports)
		})
	}
}

func TestAddPhotoUnknownPlace(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.AddPhoto(context.Background(), params.NewID(), params.NewID(), "https://img.example.com/c.jpg", "")
	requireKind(t, err, KindNotFound)
}
