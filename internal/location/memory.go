package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"availability-service/internal/models"
	"availability-service/pkg/response"
)

// MemoryStore keeps the last report per resource in process memory.
// Reports older than staleAfter are treated as unavailable.
type MemoryStore struct {
	staleAfter time.Duration
	nowFn      func() time.Time

	mu      sync.RWMutex
	reports map[string]models.Location
	denied  map[string]struct{}
}

func NewMemoryStore(staleAfter time.Duration) *MemoryStore {
	return &MemoryStore{
		staleAfter: staleAfter,
		nowFn:      time.Now,
		reports:    make(map[string]models.Location),
		denied:     make(map[string]struct{}),
	}
}

func (s *MemoryStore) Report(_ context.Context, resourceID string, loc models.Location) error {
	const op = "location.MemoryStore.Report"

	if resourceID == "" {
		return fmt.Errorf("%s: resource id is required: %w", op, response.ErrBadRequest)
	}
	if err := validate(loc); err != nil {
		return fmt.Errorf("%s: %v: %w", op, err, response.ErrBadRequest)
	}
	if loc.Timestamp.IsZero() {
		loc.Timestamp = s.nowFn()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports[resourceID] = loc
	return nil
}

func (s *MemoryStore) SetSharing(_ context.Context, resourceID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled {
		delete(s.denied, resourceID)
	} else {
		s.denied[resourceID] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) CurrentLocation(ctx context.Context, resourceID string) (models.Location, error) {
	const op = "location.MemoryStore.CurrentLocation"

	if err := ctx.Err(); err != nil {
		return models.Location{}, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.denied[resourceID]; ok {
		return models.Location{}, fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}

	loc, ok := s.reports[resourceID]
	if !ok {
		return models.Location{}, fmt.Errorf("%s: no report for %s: %w", op, resourceID, ErrUnavailable)
	}
	if s.staleAfter > 0 && s.nowFn().Sub(loc.Timestamp) > s.staleAfter {
		return models.Location{}, fmt.Errorf("%s: report for %s is stale: %w", op, resourceID, ErrUnavailable)
	}

	return loc, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
