package geo

import (
	"errors"
	"math"
)

const (
	// EarthRadiusMeters is the IUGG mean earth radius. PostGIS uses the same
	// value when ST_DWithin is asked for a sphere instead of the spheroid.
	EarthRadiusMeters = 6371008.8

	// MaxDistanceMeters bounds the nearby places search.
	MaxDistanceMeters = 60000.0

	// tolerance absorbs float error so a point computed to sit exactly on the
	// radius is still inside it.
	tolerance = 1e-6
)

var ErrInvalidCoordinates = errors.New("coordinates out of range")

// Point is a WGS84 coordinate.
type Point struct {
	Longitude float64 `json:"lng"`
	Latitude  float64 `json:"lat"`
}

// NewPoint validates the coordinate ranges.
func NewPoint(lng, lat float64) (Point, error) {
	if math.IsNaN(lng) || math.IsNaN(lat) {
		return Point{}, ErrInvalidCoordinates
	}
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return Point{}, ErrInvalidCoordinates
	}
	return Point{Longitude: lng, Latitude: lat}, nil
}

// Coordinates returns the point in GeoJSON order: [longitude, latitude].
func (p Point) Coordinates() []float64 {
	return []float64{p.Longitude, p.Latitude}
}

// Distance returns the great-circle distance in meters (haversine).
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// Within reports whether b lies within radius meters of a. The boundary is
// inclusive.
func Within(a, b Point, radius float64) bool {
	return Distance(a, b) <= radius+tolerance
}

// RadiusRadians converts meters on the earth surface to an angle, the unit
// MongoDB's $centerSphere expects.
func RadiusRadians(meters float64) float64 {
	return meters / EarthRadiusMeters
}

// Offset returns the point lying meters due north of p. Used to build
// fixtures and to reason about the search boundary.
func Offset(p Point, meters float64) Point {
	return Point{
		Longitude: p.Longitude,
		Latitude:  p.Latitude + toDegrees(meters/EarthRadiusMeters),
	}
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
