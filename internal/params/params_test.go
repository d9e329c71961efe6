package params

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidID(t *testing.T) {
	assert.True(t, IsValidID("5b3e2f1a9c1d4e0012345678"))
	assert.True(t, IsValidID(NewID()))
	assert.False(t, IsValidID(""))
	assert.False(t, IsValidID("not-an-id"))
	assert.False(t, IsValidID("5b3e2f1a9c1d4e001234567"))
	assert.False(t, IsValidID("zb3e2f1a9c1d4e0012345678"))
}

func TestInvalidIDMessage(t *testing.T) {
	assert.Equal(t, "The `id` is not valid", InvalidIDMessage(""))
	assert.Equal(t, "The `placeId` is not valid", InvalidIDMessage("placeId"))
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    []float64
		wantErr error
	}{
		{name: "absent", query: ""},
		{name: "both present", query: "lat=39.74&lng=-104.99", want: []float64{-104.99, 39.74}},
		{name: "whitespace trimmed", query: "lat=%2039.74&lng=-104.99%20", want: []float64{-104.99, 39.74}},
		{name: "only lat", query: "lat=39.74", wantErr: ErrPartialLocation},
		{name: "only lng", query: "lng=-104.99", wantErr: ErrPartialLocation},
		{name: "garbage", query: "lat=abc&lng=-104.99", wantErr: ErrBadCoordinate},
		{name: "out of range", query: "lat=91&lng=0", wantErr: ErrBadCoordinate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			p, err := ParseLocation(q)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tt.want, p.Coordinates())
		})
	}
}
