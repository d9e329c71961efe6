package ratings

import (
	"context"
	"errors"
	"math"
	"time"

	"cozy/internal/domain/places"
)

var (
	ErrNotFound   = errors.New("rating not found")
	ErrDuplicate  = errors.New("rating already exists for this place and user")
	ErrOutOfRange = errors.New("sub-scores must be between 0 and 10")
)

const (
	MinScore = 0
	MaxScore = 10
)

// Payload is one user's six-dimension score for a place. Sub-scores are
// pointers so an absent score can be told apart from a zero.
type Payload struct {
	WarmLighting    *float64 `json:"warmLighting,omitempty" validate:"omitempty,gte=0,lte=10"`
	RelaxedMusic    *float64 `json:"relaxedMusic,omitempty" validate:"omitempty,gte=0,lte=10"`
	CalmEnvironment *float64 `json:"calmEnvironment,omitempty" validate:"omitempty,gte=0,lte=10"`
	SoftFabrics     *float64 `json:"softFabrics,omitempty" validate:"omitempty,gte=0,lte=10"`
	ComfySeating    *float64 `json:"comfySeating,omitempty" validate:"omitempty,gte=0,lte=10"`
	HotFoodDrink    *float64 `json:"hotFoodDrink,omitempty" validate:"omitempty,gte=0,lte=10"`
	Comment         *string  `json:"comment,omitempty" validate:"omitempty,max=1000"`
}

func (p *Payload) fields() [6]*float64 {
	return [6]*float64{
		p.WarmLighting,
		p.RelaxedMusic,
		p.CalmEnvironment,
		p.SoftFabrics,
		p.ComfySeating,
		p.HotFoodDrink,
	}
}

// IsEmpty reports a payload carrying neither a sub-score nor a comment.
func (p *Payload) IsEmpty() bool {
	if p == nil {
		return true
	}
	for _, f := range p.fields() {
		if f != nil {
			return false
		}
	}
	return p.Comment == nil || *p.Comment == ""
}

// IsComplete reports whether all six sub-scores are present.
func (p *Payload) IsComplete() bool {
	if p == nil {
		return false
	}
	for _, f := range p.fields() {
		if f == nil {
			return false
		}
	}
	return true
}

// CheckRange rejects NaN, infinities and scores outside [MinScore, MaxScore].
func (p *Payload) CheckRange() error {
	for _, f := range p.fields() {
		if f == nil {
			continue
		}
		v := *f
		if math.IsNaN(v) || math.IsInf(v, 0) || v < MinScore || v > MaxScore {
			return ErrOutOfRange
		}
	}
	return nil
}

// Scores converts the payload for aggregation. Absent sub-scores count as 0.
func (p *Payload) Scores() places.Scores {
	var v [6]float64
	if p == nil {
		return places.ScoresFrom(v)
	}
	for i, f := range p.fields() {
		if f != nil {
			v[i] = *f
		}
	}
	return places.ScoresFrom(v)
}

type Rating struct {
	ID        string    `json:"id"`
	PlaceID   string    `json:"placeId"`
	UserID    string    `json:"userId"`
	Rating    Payload   `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Filter narrows a user's rating listing.
type Filter struct {
	PlaceID    string
	SearchTerm string // case-insensitive match on the comment
}

type Store interface {
	Create(ctx context.Context, rating *Rating) error
	GetByID(ctx context.Context, id string) (*Rating, error)
	GetByPlaceAndUser(ctx context.Context, placeID, userID string) (*Rating, error)
	ListByUser(ctx context.Context, userID string, filter Filter) ([]Rating, error)
	ListByPlace(ctx context.Context, placeID string) ([]Rating, error)
	// Update replaces the payload of an existing rating wholesale.
	Update(ctx context.Context, rating *Rating) error
	DeleteByPlaceAndUser(ctx context.Context, placeID, userID string) (*Rating, error)
}
