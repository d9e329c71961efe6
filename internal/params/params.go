package params

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"cozy/internal/geo"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrPartialLocation = errors.New("both `lat` and `lng` are required")
	ErrBadCoordinate   = errors.New("`lat` and `lng` must be valid coordinates")
)

// NewID returns a fresh 24-hex document id.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// IsValidID reports whether s is a well-formed 24-hex document id.
func IsValidID(s string) bool {
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}

// InvalidIDMessage renders the error message clients get for a malformed id
// in the named field, e.g. "The `placeId` is not valid".
func InvalidIDMessage(field string) string {
	if field == "" {
		field = "id"
	}
	return "The `" + field + "` is not valid"
}

// URL: /places?lat=39.74&lng=-104.99
// → ParseLocation() → &geo.Point{Longitude:-104.99, Latitude:39.74}
// URL: /places
// → ParseLocation() → nil (no location filter)
// ParseLocation reads ?lat=...&lng=... . Both absent is not an error and
// yields nil; a single coordinate or an unparseable one is.
func ParseLocation(q url.Values) (*geo.Point, error) {
	latStr := strings.TrimSpace(q.Get("lat"))
	lngStr := strings.TrimSpace(q.Get("lng"))

	if latStr == "" && lngStr == "" {
		return nil, nil
	}
	if latStr == "" || lngStr == "" {
		return nil, ErrPartialLocation
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, ErrBadCoordinate
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil, ErrBadCoordinate
	}

	p, err := geo.NewPoint(lng, lat)
	if err != nil {
		return nil, ErrBadCoordinate
	}
	return &p, nil
}
