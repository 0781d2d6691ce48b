// Package tracking runs live location tracking for active bookings.
//
// Each session owns one sampler goroutine that polls the location provider,
// records the route, pushes the position into the status registry and
// evaluates the geofences registered for the resource.
package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"availability-service/internal/location"
	"availability-service/internal/models"
	"availability-service/internal/status"
	"availability-service/internal/telemetry"
	"availability-service/pkg/geo"
	"availability-service/pkg/response"
	"availability-service/pkg/sl"
)

const (
	defaultSampleInterval  = 60 * time.Second
	defaultRouteLimit      = 100
	defaultLocationTimeout = 10 * time.Second
)

// Registry is the part of the status registry the manager writes to.
type Registry interface {
	Update(ctx context.Context, u status.Update) (models.ResourceStatus, error)
	Get(resourceID string) (models.ResourceStatus, bool)
}

// TypeResolver maps a resource id to its resource type.
type TypeResolver interface {
	ResourceType(ctx context.Context, resourceID string) (string, bool)
}

// AlertListener is called for every fired geofence alert, outside the manager lock.
type AlertListener func(ctx context.Context, alert models.GeofenceAlert)

type session struct {
	models.TrackingSession

	resourceType string
	route        *route[models.Location]
	// inside holds the last known inside/outside state per geofence id
	inside map[string]bool

	cancel context.CancelFunc
	done   chan struct{}
}

type Manager struct {
	log      *slog.Logger
	provider location.Provider
	registry Registry
	types    TypeResolver
	metrics  *telemetry.TrackingMetrics
	nowFn    func() time.Time

	sampleInterval  time.Duration
	routeLimit      int
	locationTimeout time.Duration

	mu        sync.Mutex
	sessions  map[string]*session
	geofences map[string][]models.Geofence
	alerts    map[string][]models.GeofenceAlert
	listeners []AlertListener
}

type Option func(*Manager)

func WithSampleInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.sampleInterval = d
		}
	}
}

func WithRouteLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.routeLimit = n
		}
	}
}

func WithLocationTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.locationTimeout = d
		}
	}
}

func WithMetrics(metrics *telemetry.TrackingMetrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

func WithClock(nowFn func() time.Time) Option {
	return func(m *Manager) {
		m.nowFn = nowFn
	}
}

func New(log *slog.Logger, provider location.Provider, registry Registry, types TypeResolver, opts ...Option) *Manager {
	m := &Manager{
		log:             log.With(slog.String("component", "tracking")),
		provider:        provider,
		registry:        registry,
		types:           types,
		nowFn:           time.Now,
		sampleInterval:  defaultSampleInterval,
		routeLimit:      defaultRouteLimit,
		locationTimeout: defaultLocationTimeout,
		sessions:        make(map[string]*session),
		geofences:       make(map[string][]models.Geofence),
		alerts:          make(map[string][]models.GeofenceAlert),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) AddAlertListener(l AlertListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners = append(m.listeners, l)
}

// Start opens a tracking session for an active booking. The resource's
// current location must be obtainable, otherwise the session is not created.
func (m *Manager) Start(ctx context.Context, bookingID, resourceID, userID string) (models.TrackingSession, error) {
	const op = "tracking.Manager.Start"

	log := m.log.With(
		slog.String("op", op),
		slog.String("booking_id", bookingID),
		slog.String("resource_id", resourceID),
	)

	if bookingID == "" || resourceID == "" {
		return models.TrackingSession{}, fmt.Errorf("%s: booking and resource id are required: %w", op, response.ErrBadRequest)
	}

	if m.running(bookingID) {
		return models.TrackingSession{}, fmt.Errorf("%s: session for booking %s: %w", op, bookingID, response.ErrAlreadyExists)
	}

	resourceType, err := m.resolveType(ctx, resourceID)
	if err != nil {
		return models.TrackingSession{}, fmt.Errorf("%s: %w", op, err)
	}

	loc, err := location.Lookup(ctx, m.provider, resourceID, m.locationTimeout)
	if err != nil {
		log.Warn("Failed to get initial location", sl.Err(err))
		return models.TrackingSession{}, fmt.Errorf("%s: %w: %w", op, response.ErrLocationUnavailable, err)
	}

	now := m.nowFn()
	s := &session{
		TrackingSession: models.TrackingSession{
			BookingID:          bookingID,
			ResourceID:         resourceID,
			UserID:             userID,
			Status:             models.TrackingActive,
			StartTime:          now,
			LastLocationUpdate: now,
			CurrentLocation:    &loc,
		},
		resourceType: resourceType,
		route:        newRoute[models.Location](m.routeLimit),
		inside:       make(map[string]bool),
		done:         make(chan struct{}),
	}
	s.route.push(loc)

	m.mu.Lock()
	if existing, ok := m.sessions[bookingID]; ok && existing.Status != models.TrackingEnded {
		m.mu.Unlock()
		return models.TrackingSession{}, fmt.Errorf("%s: session for booking %s: %w", op, bookingID, response.ErrAlreadyExists)
	}
	for _, g := range m.geofences[resourceID] {
		s.inside[g.ID] = geo.Within(loc.Point(), g.Center, g.RadiusMeters)
	}

	samplerCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	m.sessions[bookingID] = s
	snapshot := s.snapshot()
	m.mu.Unlock()

	m.markBooked(ctx, s, loc)

	go m.runSampler(samplerCtx, bookingID, s.done)

	m.metrics.RecordActiveSessions(ctx, 1)
	log.Info("Tracking started", slog.String("user_id", userID))

	return snapshot, nil
}

// End stops the session's sampler, waits for it to exit and marks the
// resource available again. Ending an ended session is a no-op.
func (m *Manager) End(ctx context.Context, bookingID string) error {
	const op = "tracking.Manager.End"

	m.mu.Lock()
	s, ok := m.sessions[bookingID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s: session for booking %s: %w", op, bookingID, response.ErrNotFound)
	}
	if s.Status == models.TrackingEnded {
		m.mu.Unlock()
		return nil
	}
	s.Status = models.TrackingEnded
	resourceID, resourceType := s.ResourceID, s.resourceType
	m.mu.Unlock()

	s.cancel()
	<-s.done

	if _, err := m.registry.Update(ctx, status.Update{
		ResourceID:   resourceID,
		ResourceType: resourceType,
		Status:       models.ResourceAvailable,
		Location:     m.lastLocation(bookingID),
	}); err != nil {
		m.log.Error("Failed to release resource status",
			slog.String("op", op),
			slog.String("resource_id", resourceID),
			sl.Err(err),
		)
	}

	m.metrics.RecordActiveSessions(ctx, -1)
	m.log.Info("Tracking ended", slog.String("booking_id", bookingID))

	return nil
}

// Pause keeps the session open but skips samples until Resume.
func (m *Manager) Pause(_ context.Context, bookingID string) (models.TrackingSession, error) {
	return m.setStatus("tracking.Manager.Pause", bookingID, models.TrackingActive, models.TrackingPaused)
}

func (m *Manager) Resume(_ context.Context, bookingID string) (models.TrackingSession, error) {
	return m.setStatus("tracking.Manager.Resume", bookingID, models.TrackingPaused, models.TrackingActive)
}

func (m *Manager) setStatus(op, bookingID string, from, to models.TrackingStatus) (models.TrackingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[bookingID]
	if !ok {
		return models.TrackingSession{}, fmt.Errorf("%s: session for booking %s: %w", op, bookingID, response.ErrNotFound)
	}
	if s.Status == to {
		return s.snapshot(), nil
	}
	if s.Status != from {
		return models.TrackingSession{}, fmt.Errorf("%s: %s -> %s: %w", op, s.Status, to, response.ErrIllegalTransition)
	}

	s.Status = to
	return s.snapshot(), nil
}

func (m *Manager) Session(bookingID string) (models.TrackingSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[bookingID]
	if !ok {
		return models.TrackingSession{}, false
	}
	return s.snapshot(), true
}

// Alerts returns the geofence alerts fired for a booking, oldest first.
func (m *Manager) Alerts(bookingID string) []models.GeofenceAlert {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.GeofenceAlert{}, m.alerts[bookingID]...)
}

// AddGeofence registers a geofence for a resource. Running sessions take
// their baseline from the last known position.
func (m *Manager) AddGeofence(_ context.Context, resourceID string, kind models.GeofenceKind, center geo.Point, radiusMeters float64, message string) (models.Geofence, error) {
	const op = "tracking.Manager.AddGeofence"

	if resourceID == "" {
		return models.Geofence{}, fmt.Errorf("%s: resource id is required: %w", op, response.ErrBadRequest)
	}
	if !kind.Valid() {
		return models.Geofence{}, fmt.Errorf("%s: unknown kind %q: %w", op, kind, response.ErrBadRequest)
	}
	if radiusMeters <= 0 {
		return models.Geofence{}, fmt.Errorf("%s: radius must be positive: %w", op, response.ErrBadRequest)
	}

	g := models.Geofence{
		ID:           uuid.NewString(),
		ResourceID:   resourceID,
		Kind:         kind,
		Center:       center,
		RadiusMeters: radiusMeters,
		Message:      message,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.geofences[resourceID] = append(m.geofences[resourceID], g)
	for _, s := range m.sessions {
		if s.ResourceID != resourceID || s.Status == models.TrackingEnded || s.CurrentLocation == nil {
			continue
		}
		s.inside[g.ID] = geo.Within(s.CurrentLocation.Point(), g.Center, g.RadiusMeters)
	}

	return g, nil
}

func (m *Manager) Geofences(resourceID string) []models.Geofence {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.Geofence{}, m.geofences[resourceID]...)
}

// Shutdown stops every running sampler without changing resource status.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	running := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Status != models.TrackingEnded {
			running = append(running, s)
		}
	}
	m.mu.Unlock()

	for _, s := range running {
		s.cancel()
		<-s.done
	}
}

func (m *Manager) runSampler(ctx context.Context, bookingID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx, bookingID)
		}
	}
}

// sample takes one location sample for the session. Failures are logged
// and the session keeps running.
func (m *Manager) sample(ctx context.Context, bookingID string) {
	const op = "tracking.Manager.sample"

	defer func() {
		if r := recover(); r != nil {
			m.log.Error("Sample panicked", slog.String("booking_id", bookingID), slog.Any("panic", r))
		}
	}()

	m.mu.Lock()
	s, ok := m.sessions[bookingID]
	if !ok || s.Status != models.TrackingActive {
		m.mu.Unlock()
		return
	}
	resourceID := s.ResourceID
	m.mu.Unlock()

	loc, err := location.Lookup(ctx, m.provider, resourceID, m.locationTimeout)
	if err != nil {
		m.metrics.RecordSample(ctx, false)
		if ctx.Err() == nil {
			m.log.Warn("Location sample failed",
				slog.String("op", op),
				slog.String("booking_id", bookingID),
				sl.Err(err),
			)
		}
		return
	}

	m.mu.Lock()
	if s.Status != models.TrackingActive {
		m.mu.Unlock()
		return
	}
	s.route.push(loc)
	s.CurrentLocation = &loc
	s.LastLocationUpdate = m.nowFn()
	fired := m.evaluateGeofences(s, loc)
	listeners := append([]AlertListener(nil), m.listeners...)
	m.mu.Unlock()

	m.metrics.RecordSample(ctx, true)
	m.markBooked(ctx, s, loc)

	for _, a := range fired {
		m.metrics.RecordGeofenceAlert(ctx, string(a.Kind))
		m.log.Info("Geofence alert",
			slog.String("booking_id", a.BookingID),
			slog.String("geofence_id", a.GeofenceID),
			slog.String("kind", string(a.Kind)),
			slog.String("message", a.Message),
		)
		for _, l := range listeners {
			l(ctx, a)
		}
	}
}

// evaluateGeofences must be called with m.mu held.
func (m *Manager) evaluateGeofences(s *session, loc models.Location) []models.GeofenceAlert {
	var fired []models.GeofenceAlert

	for _, g := range m.geofences[s.ResourceID] {
		now := geo.Within(loc.Point(), g.Center, g.RadiusMeters)
		prev, known := s.inside[g.ID]
		s.inside[g.ID] = now

		if !known || prev == now {
			continue
		}

		entered := !prev && now
		if g.Kind.FiresOnExit() == entered {
			continue
		}

		alert := models.GeofenceAlert{
			ID:           uuid.NewString(),
			GeofenceID:   g.ID,
			ResourceID:   s.ResourceID,
			BookingID:    s.BookingID,
			Kind:         g.Kind,
			Center:       g.Center,
			RadiusMeters: g.RadiusMeters,
			Message:      g.Message,
			TriggeredAt:  m.nowFn(),
		}
		m.alerts[s.BookingID] = append(m.alerts[s.BookingID], alert)
		s.GeofenceAlertIDs = append(s.GeofenceAlertIDs, alert.ID)
		fired = append(fired, alert)
	}

	return fired
}

func (m *Manager) markBooked(ctx context.Context, s *session, loc models.Location) {
	bookingID := s.BookingID
	if _, err := m.registry.Update(ctx, status.Update{
		ResourceID:       s.ResourceID,
		ResourceType:     s.resourceType,
		Status:           models.ResourceBooked,
		Location:         &loc,
		CurrentBookingID: &bookingID,
	}); err != nil {
		m.log.Error("Failed to update resource status",
			slog.String("resource_id", s.ResourceID),
			sl.Err(err),
		)
	}
}

func (m *Manager) running(bookingID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[bookingID]
	return ok && s.Status != models.TrackingEnded
}

func (m *Manager) lastLocation(bookingID string) *models.Location {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[bookingID]
	if !ok || s.CurrentLocation == nil {
		return nil
	}
	loc := *s.CurrentLocation
	return &loc
}

func (m *Manager) resolveType(ctx context.Context, resourceID string) (string, error) {
	if m.types != nil {
		if t, ok := m.types.ResourceType(ctx, resourceID); ok {
			return t, nil
		}
	}
	if rs, ok := m.registry.Get(resourceID); ok {
		return rs.ResourceType, nil
	}
	return "", fmt.Errorf("resource %s has no known type: %w", resourceID, response.ErrNotFound)
}

// snapshot must be called with the manager lock held.
func (s *session) snapshot() models.TrackingSession {
	out := s.TrackingSession
	out.Route = s.route.items()
	out.GeofenceAlertIDs = append([]string{}, s.GeofenceAlertIDs...)
	if s.CurrentLocation != nil {
		loc := *s.CurrentLocation
		out.CurrentLocation = &loc
	}
	return out
}
