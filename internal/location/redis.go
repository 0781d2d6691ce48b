package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"availability-service/internal/models"
	"availability-service/pkg/response"
)

const (
	geoKey     = "avail:locations:geo"
	metaPrefix = "avail:locations:meta:"
	deniedKey  = "avail:locations:denied"
)

// RedisStore keeps device reports in a redis GEO set. Accuracy and report
// time live in a per-resource hash next to it.
type RedisStore struct {
	client     *redis.Client
	staleAfter time.Duration
	nowFn      func() time.Time
}

func NewRedisStore(redisAddr string, staleAfter time.Duration) (*RedisStore, error) {
	const op = "location.NewRedisStore"

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisStore{client: client, staleAfter: staleAfter, nowFn: time.Now}, nil
}

func (s *RedisStore) Report(ctx context.Context, resourceID string, loc models.Location) error {
	const op = "location.RedisStore.Report"

	if resourceID == "" {
		return fmt.Errorf("%s: resource id is required: %w", op, response.ErrBadRequest)
	}
	if err := validateGeo(loc); err != nil {
		return fmt.Errorf("%s: %v: %w", op, err, response.ErrBadRequest)
	}
	if loc.Timestamp.IsZero() {
		loc.Timestamp = s.nowFn()
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
			Name:      resourceID,
			Longitude: loc.Longitude,
			Latitude:  loc.Latitude,
		})
		pipe.HSet(ctx, metaPrefix+resourceID,
			"accuracy", strconv.FormatFloat(loc.Accuracy, 'f', -1, 64),
			"ts", strconv.FormatInt(loc.Timestamp.UnixMilli(), 10),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *RedisStore) SetSharing(ctx context.Context, resourceID string, enabled bool) error {
	const op = "location.RedisStore.SetSharing"

	var err error
	if enabled {
		err = s.client.SRem(ctx, deniedKey, resourceID).Err()
	} else {
		err = s.client.SAdd(ctx, deniedKey, resourceID).Err()
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *RedisStore) CurrentLocation(ctx context.Context, resourceID string) (models.Location, error) {
	const op = "location.RedisStore.CurrentLocation"

	denied, err := s.client.SIsMember(ctx, deniedKey, resourceID).Result()
	if err != nil {
		return models.Location{}, fmt.Errorf("%s: %w", op, wrapRedisErr(err))
	}
	if denied {
		return models.Location{}, fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}

	positions, err := s.client.GeoPos(ctx, geoKey, resourceID).Result()
	if err != nil {
		return models.Location{}, fmt.Errorf("%s: %w", op, wrapRedisErr(err))
	}
	if len(positions) == 0 || positions[0] == nil {
		return models.Location{}, fmt.Errorf("%s: no report for %s: %w", op, resourceID, ErrUnavailable)
	}

	meta, err := s.client.HGetAll(ctx, metaPrefix+resourceID).Result()
	if err != nil {
		return models.Location{}, fmt.Errorf("%s: %w", op, wrapRedisErr(err))
	}

	loc := models.Location{
		Latitude:  positions[0].Latitude,
		Longitude: positions[0].Longitude,
	}
	if v, ok := meta["accuracy"]; ok {
		loc.Accuracy, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := meta["ts"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			loc.Timestamp = time.UnixMilli(ms).UTC()
		}
	}

	if s.staleAfter > 0 && (loc.Timestamp.IsZero() || s.nowFn().Sub(loc.Timestamp) > s.staleAfter) {
		return models.Location{}, fmt.Errorf("%s: report for %s is stale: %w", op, resourceID, ErrUnavailable)
	}

	return loc, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Redis GEO indexes only latitudes within the web mercator band.
const geoMaxLatitude = 85.05112878

func validateGeo(loc models.Location) error {
	if err := validate(loc); err != nil {
		return err
	}
	if math.Abs(loc.Latitude) > geoMaxLatitude {
		return fmt.Errorf("latitude %f outside the indexable range", loc.Latitude)
	}
	return nil
}

func wrapRedisErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return fmt.Errorf("%v: %w", err, ErrUnavailable)
}
