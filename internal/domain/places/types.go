package places

import (
	"context"
	"errors"
	"time"

	"cozy/internal/geo"
)

var (
	ErrNotFound        = errors.New("place not found")
	ErrAlreadyReported = errors.New("place already reported by this user")
)

// Scores holds one value per rating dimension. On a place these are the
// running averages; the rating package converts its sub-scores into it.
type Scores struct {
	WarmLighting    float64 `json:"warmLighting" bson:"warmLighting"`
	RelaxedMusic    float64 `json:"relaxedMusic" bson:"relaxedMusic"`
	CalmEnvironment float64 `json:"calmEnvironment" bson:"calmEnvironment"`
	SoftFabrics     float64 `json:"softFabrics" bson:"softFabrics"`
	ComfySeating    float64 `json:"comfySeating" bson:"comfySeating"`
	HotFoodDrink    float64 `json:"hotFoodDrink" bson:"hotFoodDrink"`
}

// Values returns the six dimensions in declaration order.
func (s Scores) Values() [6]float64 {
	return [6]float64{
		s.WarmLighting,
		s.RelaxedMusic,
		s.CalmEnvironment,
		s.SoftFabrics,
		s.ComfySeating,
		s.HotFoodDrink,
	}
}

// ScoresFrom is the inverse of Values.
func ScoresFrom(v [6]float64) Scores {
	return Scores{
		WarmLighting:    v[0],
		RelaxedMusic:    v[1],
		CalmEnvironment: v[2],
		SoftFabrics:     v[3],
		ComfySeating:    v[4],
		HotFoodDrink:    v[5],
	}
}

// Place is a reviewable location.
type Place struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Zipcode     string    `json:"zipcode"`
	Location    []float64 `json:"location"` // (longitude, latitude)
	Averages    Scores    `json:"averages"`
	Cozyness    float64   `json:"cozyness"`
	Photos      []Photo   `json:"photos"`
	UserReports []string  `json:"userReports"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Point returns the place location as a geo.Point.
func (p *Place) Point() geo.Point {
	if len(p.Location) != 2 {
		return geo.Point{}
	}
	return geo.Point{Longitude: p.Location[0], Latitude: p.Location[1]}
}

// Photo is a reference to an image of a place. The binary lives elsewhere.
type Photo struct {
	ID        string    `json:"id"`
	PlaceID   string    `json:"placeId"`
	UserID    string    `json:"userId"`
	URL       string    `json:"url"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListFilter narrows List. A nil Near lists every non-archived place.
type ListFilter struct {
	Near   *geo.Point
	Radius float64 // meters
}

type Store interface {
	Create(ctx context.Context, place *Place) error
	GetByID(ctx context.Context, id string) (*Place, error)
	List(ctx context.Context, filter ListFilter) ([]Place, error)
	// UpdateAverages writes the six averages and cozyness in one update.
	UpdateAverages(ctx context.Context, id string, averages Scores, cozyness float64) error

	AddPhoto(ctx context.Context, photo *Photo) error
	PhotosByPlace(ctx context.Context, placeIDs []string) (map[string][]Photo, error)

	// ... moderation reports
	AddReport(ctx context.Context, placeID, userID string) (int, error)
	RemoveReport(ctx context.Context, placeID, userID string) (int, error)
	ArchiveReported(ctx context.Context, threshold int) ([]string, error)
}
