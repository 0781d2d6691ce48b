package location

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"availability-service/internal/models"
	"availability-service/pkg/response"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	s := NewMemoryStore(5 * time.Minute)
	s.nowFn = func() time.Time { return now }

	_, err := s.CurrentLocation(ctx, "bike-1")
	assert.True(t, errors.Is(err, ErrUnavailable))

	require.NoError(t, s.Report(ctx, "bike-1", models.Location{Latitude: 52.52, Longitude: 13.40, Accuracy: 8}))

	loc, err := s.CurrentLocation(ctx, "bike-1")
	require.NoError(t, err)
	assert.Equal(t, 52.52, loc.Latitude)
	assert.Equal(t, now, loc.Timestamp, "missing timestamp is stamped on report")

	require.NoError(t, s.SetSharing(ctx, "bike-1", false))
	_, err = s.CurrentLocation(ctx, "bike-1")
	assert.True(t, errors.Is(err, ErrPermissionDenied))

	require.NoError(t, s.SetSharing(ctx, "bike-1", true))
	_, err = s.CurrentLocation(ctx, "bike-1")
	require.NoError(t, err)

	now = now.Add(6 * time.Minute)
	_, err = s.CurrentLocation(ctx, "bike-1")
	assert.True(t, errors.Is(err, ErrUnavailable), "stale report")
}

func TestMemoryStore_ReportValidation(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(0)

	tests := []struct {
		name string
		id   string
		loc  models.Location
	}{
		{name: "empty id", id: "", loc: models.Location{}},
		{name: "latitude out of range", id: "x", loc: models.Location{Latitude: 91}},
		{name: "longitude out of range", id: "x", loc: models.Location{Longitude: -181}},
		{name: "latitude not a number", id: "x", loc: models.Location{Latitude: math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := s.Report(context.Background(), tt.id, tt.loc)
			assert.True(t, errors.Is(err, response.ErrBadRequest))
		})
	}
}

func TestValidateGeo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		loc  models.Location
		ok   bool
	}{
		{"berlin", models.Location{Latitude: 52.52, Longitude: 13.405}, true},
		{"indexable edge", models.Location{Latitude: -85.05, Longitude: 179.9}, true},
		{"near the pole", models.Location{Latitude: 88, Longitude: 10}, false},
		{"south pole", models.Location{Latitude: -90, Longitude: 0}, false},
		{"out of range", models.Location{Latitude: 10, Longitude: 200}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validateGeo(tt.loc)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

type slowProvider struct {
	delay time.Duration
}

func (p slowProvider) CurrentLocation(ctx context.Context, _ string) (models.Location, error) {
	select {
	case <-time.After(p.delay):
		return models.Location{Latitude: 1, Longitude: 1}, nil
	case <-ctx.Done():
		return models.Location{}, ctx.Err()
	}
}

type blockingProvider struct{}

func (blockingProvider) CurrentLocation(context.Context, string) (models.Location, error) {
	select {}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	loc, err := Lookup(ctx, slowProvider{delay: time.Millisecond}, "r", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1.0, loc.Latitude)

	_, err = Lookup(ctx, slowProvider{delay: time.Second}, "r", 10*time.Millisecond)
	assert.True(t, errors.Is(err, ErrTimeout))

	// providers that ignore ctx still time out
	_, err = Lookup(ctx, blockingProvider{}, "r", 10*time.Millisecond)
	assert.True(t, errors.Is(err, ErrTimeout))

	_, err = Lookup(ctx, NewMemoryStore(0), "missing", time.Second)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	s, err := NewRedisStore(addr, time.Minute)
	require.NoError(t, err)
	defer s.Close()

	id := "test-resource-" + time.Now().Format("150405.000000")

	_, err = s.CurrentLocation(ctx, id)
	assert.True(t, errors.Is(err, ErrUnavailable))

	require.NoError(t, s.Report(ctx, id, models.Location{Latitude: 48.8566, Longitude: 2.3522, Accuracy: 5}))

	loc, err := s.CurrentLocation(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, 48.8566, loc.Latitude, 1e-4)
	assert.InDelta(t, 2.3522, loc.Longitude, 1e-4)
	assert.Equal(t, 5.0, loc.Accuracy)

	require.NoError(t, s.SetSharing(ctx, id, false))
	_, err = s.CurrentLocation(ctx, id)
	assert.True(t, errors.Is(err, ErrPermissionDenied))
	require.NoError(t, s.SetSharing(ctx, id, true))
}
