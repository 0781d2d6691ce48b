// Package location resolves the current position of a resource from the
// reports its device sends in.
package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"availability-service/internal/models"
)

var (
	ErrPermissionDenied = errors.New("location sharing denied")
	ErrUnavailable      = errors.New("location unavailable")
	ErrTimeout          = errors.New("location lookup timed out")
)

// Provider returns the current location of a resource.
type Provider interface {
	CurrentLocation(ctx context.Context, resourceID string) (models.Location, error)
}

// Reporter accepts device location reports.
type Reporter interface {
	Report(ctx context.Context, resourceID string, loc models.Location) error
	SetSharing(ctx context.Context, resourceID string, enabled bool) error
}

// Store is a Provider that is fed through Reporter.
type Store interface {
	Provider
	Reporter
	Close() error
}

// Lookup asks p for the resource location, giving up after timeout.
func Lookup(ctx context.Context, p Provider, resourceID string, timeout time.Duration) (models.Location, error) {
	const op = "location.Lookup"

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		loc models.Location
		err error
	}
	resCh := make(chan result, 1)

	go func() {
		loc, err := p.CurrentLocation(ctx, resourceID)
		resCh <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.Location{}, fmt.Errorf("%s: %w", op, ErrTimeout)
		}
		return models.Location{}, fmt.Errorf("%s: %w", op, ctx.Err())
	case res := <-resCh:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return models.Location{}, fmt.Errorf("%s: %w", op, ErrTimeout)
			}
			return models.Location{}, fmt.Errorf("%s: %w", op, res.err)
		}
		return res.loc, nil
	}
}

func validate(loc models.Location) error {
	if math.IsNaN(loc.Latitude) || math.IsNaN(loc.Longitude) ||
		loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return fmt.Errorf("coordinates out of range: %f,%f", loc.Latitude, loc.Longitude)
	}
	return nil
}
