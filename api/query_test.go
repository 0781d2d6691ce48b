package api

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"availability-service/pkg/response"
)

func TestParseResourceQuery(t *testing.T) {
	t.Parallel()

	q, err := ParseResourceQuery(url.Values{
		"resource_type": {"bike"},
		"lat":           {"48.8566"},
		"lng":           {"2.3522"},
		"max_distance":  {"5"},
		"city":          {"Paris"},
	})
	require.NoError(t, err)
	assert.Equal(t, "bike", q.ResourceType)
	assert.Equal(t, "Paris", q.City)
	require.NotNil(t, q.MaxDistanceKm)
	assert.Equal(t, 5.0, *q.MaxDistanceKm)

	q, err = ParseResourceQuery(url.Values{"type": {"car"}})
	require.NoError(t, err)
	assert.Equal(t, "car", q.ResourceType)
	assert.Nil(t, q.Latitude)
	assert.Nil(t, q.MaxDistanceKm)
}

func TestParseResourceQuery_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values url.Values
	}{
		{"not a number", url.Values{"lat": {"abc"}}},
		{"NaN distance", url.Values{"max_distance": {"NaN"}}},
		{"infinite distance", url.Values{"max_distance": {"+Inf"}}},
		{"negative distance", url.Values{"max_distance": {"-1"}}},
		{"NaN latitude", url.Values{"lat": {"nan"}, "lng": {"2"}}},
		{"latitude out of range", url.Values{"lat": {"91"}, "lng": {"2"}}},
		{"longitude out of range", url.Values{"lat": {"1"}, "lng": {"-180.5"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseResourceQuery(tt.values)
			assert.True(t, errors.Is(err, response.ErrBadRequest), "got %v", err)
		})
	}
}
