// Package status keeps the latest real-time status of every resource.
// Records are last-write-wins; listeners are told about every write.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"availability-service/internal/models"
	"availability-service/pkg/geo"
	"availability-service/pkg/response"
)

// Update is one write to the registry. Nil pointers clear the field.
type Update struct {
	ResourceID          string
	ResourceType        string
	Status              models.ResourceState
	Location            *models.Location
	City                string
	EstimatedReturnTime *time.Time
	CurrentBookingID    *string
}

// Query selects available resources of one type.
type Query struct {
	ResourceType  string
	UserLocation  *models.Location
	MaxDistanceKm *float64
	City          string
}

// Listener is called after every write, outside the registry lock.
type Listener func(ctx context.Context, rs models.ResourceStatus)

type Registry struct {
	log   *slog.Logger
	nowFn func() time.Time

	mu        sync.RWMutex
	resources map[string]models.ResourceStatus

	lmu       sync.RWMutex
	listeners []Listener
}

func New(log *slog.Logger) *Registry {
	return &Registry{
		log:       log.With(slog.String("component", "status")),
		nowFn:     time.Now,
		resources: make(map[string]models.ResourceStatus),
	}
}

func (r *Registry) AddListener(l Listener) {
	r.lmu.Lock()
	defer r.lmu.Unlock()

	r.listeners = append(r.listeners, l)
}

// Update overwrites the record for u.ResourceID and returns the stored copy.
// An empty City keeps the previously known city.
func (r *Registry) Update(ctx context.Context, u Update) (models.ResourceStatus, error) {
	const op = "status.Registry.Update"

	if u.ResourceID == "" || u.ResourceType == "" {
		return models.ResourceStatus{}, fmt.Errorf("%s: resource id and type are required: %w", op, response.ErrBadRequest)
	}
	if !u.Status.Valid() {
		return models.ResourceStatus{}, fmt.Errorf("%s: status %q: %w", op, u.Status, response.ErrInvalidStatus)
	}

	rs := models.ResourceStatus{
		ResourceID:          u.ResourceID,
		ResourceType:        u.ResourceType,
		Status:              u.Status,
		Location:            copyLocation(u.Location),
		City:                u.City,
		LastUpdated:         r.nowFn(),
		EstimatedReturnTime: copyTime(u.EstimatedReturnTime),
		CurrentBookingID:    copyString(u.CurrentBookingID),
	}

	r.mu.Lock()
	if rs.City == "" {
		rs.City = r.resources[u.ResourceID].City
	}
	r.resources[u.ResourceID] = rs
	r.mu.Unlock()

	r.log.Debug("Resource status updated",
		slog.String("resource_id", rs.ResourceID),
		slog.String("status", string(rs.Status)),
	)

	r.lmu.RLock()
	listeners := append([]Listener(nil), r.listeners...)
	r.lmu.RUnlock()

	for _, l := range listeners {
		l(ctx, cloneStatus(rs))
	}

	return cloneStatus(rs), nil
}

func (r *Registry) Get(resourceID string) (models.ResourceStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rs, ok := r.resources[resourceID]
	if !ok {
		return models.ResourceStatus{}, false
	}
	return cloneStatus(rs), true
}

// Query returns the available resources of q.ResourceType. With a user
// location the result is ordered nearest first, ties broken by id;
// otherwise it is ordered by id.
func (r *Registry) Query(q Query) []models.ResourceStatus {
	type candidate struct {
		rs   models.ResourceStatus
		dist float64
	}

	r.mu.RLock()
	candidates := make([]candidate, 0, len(r.resources))
	for _, rs := range r.resources {
		if rs.ResourceType != q.ResourceType || rs.Status != models.ResourceAvailable {
			continue
		}
		if q.City != "" && rs.City != q.City {
			continue
		}

		dist := math.Inf(1)
		if q.UserLocation != nil && rs.Location != nil {
			dist = geo.DistanceKm(q.UserLocation.Point(), rs.Location.Point())
		}
		if q.UserLocation != nil && q.MaxDistanceKm != nil && dist > *q.MaxDistanceKm {
			continue
		}

		candidates = append(candidates, candidate{rs: cloneStatus(rs), dist: dist})
	}
	r.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if q.UserLocation != nil && candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].rs.ResourceID < candidates[j].rs.ResourceID
	})

	out := make([]models.ResourceStatus, len(candidates))
	for i, c := range candidates {
		out[i] = c.rs
	}
	return out
}

// InRange reports whether rs lies within maxDistanceKm of from. Resources
// without a known location are never in range.
func InRange(rs models.ResourceStatus, from models.Location, maxDistanceKm float64) bool {
	if rs.Location == nil {
		return false
	}
	return geo.DistanceKm(from.Point(), rs.Location.Point()) <= maxDistanceKm
}

func cloneStatus(rs models.ResourceStatus) models.ResourceStatus {
	rs.Location = copyLocation(rs.Location)
	rs.EstimatedReturnTime = copyTime(rs.EstimatedReturnTime)
	rs.CurrentBookingID = copyString(rs.CurrentBookingID)
	return rs
}

func copyLocation(l *models.Location) *models.Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
