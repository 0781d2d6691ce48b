// Package booking owns booking records and their state machine.
//
//	pending -> confirmed -> active -> completed
//	pending | confirmed | active -> cancelled
//
// Transitions drive the side effects on the availability calendar, the
// tracking manager and the status registry.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"availability-service/internal/availability"
	"availability-service/internal/lock"
	"availability-service/internal/models"
	"availability-service/internal/status"
	"availability-service/internal/storage"
	"availability-service/internal/telemetry"
	"availability-service/pkg/response"
	"availability-service/pkg/sl"
)

const defaultLockTTL = 10 * time.Second

var transitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingPending:   {models.BookingConfirmed, models.BookingCancelled},
	models.BookingConfirmed: {models.BookingActive, models.BookingCancelled},
	models.BookingActive:    {models.BookingCompleted, models.BookingCancelled},
}

// CanTransition reports whether from -> to is in the state machine.
func CanTransition(from, to models.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Calendar interface {
	ResourceType(ctx context.Context, resourceID string) (string, bool)
	CheckAvailability(ctx context.Context, resourceID string, start, end time.Time) bool
	BlockDates(ctx context.Context, resourceID, bookingID string, start, end time.Time) error
	ReleaseDates(ctx context.Context, resourceID, bookingID string) error
}

type Tracker interface {
	Start(ctx context.Context, bookingID, resourceID, userID string) (models.TrackingSession, error)
	End(ctx context.Context, bookingID string) error
}

type StatusWriter interface {
	Update(ctx context.Context, u status.Update) (models.ResourceStatus, error)
}

// Listener is called after every create and every applied transition.
type Listener func(ctx context.Context, b models.Booking)

type CreateRequest struct {
	ResourceID string
	UserID     string
	StartDate  time.Time
	EndDate    time.Time
}

type Lifecycle struct {
	log      *slog.Logger
	kv       storage.KV
	locker   lock.Locker
	calendar Calendar
	tracker  Tracker
	registry StatusWriter
	metrics  *telemetry.BookingMetrics
	lockTTL  time.Duration
	nowFn    func() time.Time

	mu       sync.Mutex
	bookings map[string]models.Booking

	// transitions on one booking, side effects included, run one at a time
	tmu    sync.Mutex
	tlocks map[string]*sync.Mutex

	lmu       sync.RWMutex
	listeners []Listener
}

type Option func(*Lifecycle)

func WithLockTTL(ttl time.Duration) Option {
	return func(l *Lifecycle) {
		if ttl > 0 {
			l.lockTTL = ttl
		}
	}
}

func WithMetrics(m *telemetry.BookingMetrics) Option {
	return func(l *Lifecycle) {
		l.metrics = m
	}
}

func WithClock(nowFn func() time.Time) Option {
	return func(l *Lifecycle) {
		l.nowFn = nowFn
	}
}

func New(log *slog.Logger, kv storage.KV, locker lock.Locker, calendar Calendar, tracker Tracker, registry StatusWriter, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		log:      log.With(slog.String("component", "booking")),
		kv:       kv,
		locker:   locker,
		calendar: calendar,
		tracker:  tracker,
		registry: registry,
		lockTTL:  defaultLockTTL,
		nowFn:    time.Now,
		bookings: make(map[string]models.Booking),
		tlocks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lifecycle) AddListener(fn Listener) {
	l.lmu.Lock()
	defer l.lmu.Unlock()

	l.listeners = append(l.listeners, fn)
}

func bookingKey(id string) string {
	return "booking:" + id
}

func userIndexKey(userID string) string {
	return "bookings:user:" + userID
}

func resourceIndexKey(resourceID string) string {
	return "bookings:resource:" + resourceID
}

// Create books [StartDate, EndDate] on a resource. The calendar check and
// the block run under a per-resource lock.
func (l *Lifecycle) Create(ctx context.Context, req CreateRequest) (models.Booking, error) {
	const op = "booking.Lifecycle.Create"

	log := l.log.With(
		slog.String("op", op),
		slog.String("resource_id", req.ResourceID),
		slog.String("user_id", req.UserID),
	)

	if req.ResourceID == "" || req.UserID == "" {
		return models.Booking{}, fmt.Errorf("%s: resource and user id are required: %w", op, response.ErrBadRequest)
	}

	start, end := availability.Day(req.StartDate), availability.Day(req.EndDate)
	if !start.Before(end) {
		return models.Booking{}, fmt.Errorf("%s: %w", op, response.ErrInvalidRange)
	}

	lockKey := fmt.Sprintf("calendar:%s", req.ResourceID)
	locked, err := l.locker.Lock(ctx, lockKey, l.lockTTL)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return models.Booking{}, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		if err := l.locker.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
			log.Error("Failed to release lock", sl.Err(err))
		}
	}()

	resourceType, ok := l.calendar.ResourceType(ctx, req.ResourceID)
	if !ok {
		return models.Booking{}, fmt.Errorf("%s: calendar for %s: %w", op, req.ResourceID, response.ErrNotFound)
	}

	if !l.calendar.CheckAvailability(ctx, req.ResourceID, start, end) {
		return models.Booking{}, fmt.Errorf("%s: %w", op, response.ErrDatesUnavailable)
	}

	now := l.nowFn()
	b := models.Booking{
		ID:           uuid.NewString(),
		ResourceID:   req.ResourceID,
		ResourceType: resourceType,
		UserID:       req.UserID,
		Status:       models.BookingPending,
		StartDate:    start,
		EndDate:      end,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := l.calendar.BlockDates(ctx, b.ResourceID, b.ID, start, end); err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	l.mu.Lock()
	err = l.persistLocked(ctx, b, true)
	if err == nil {
		l.bookings[b.ID] = b
	}
	l.mu.Unlock()

	if err != nil {
		if rerr := l.calendar.ReleaseDates(ctx, b.ResourceID, b.ID); rerr != nil {
			log.Error("Failed to roll back blocked dates", sl.Err(rerr))
		}
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	l.metrics.RecordTransition(ctx, "", string(b.Status))
	log.Info("Booking created", slog.String("booking_id", b.ID))
	l.notify(ctx, b)

	return b, nil
}

// UpdateStatus moves a booking to status to and runs the side effects of
// the transition. Cancelling a cancelled or completed booking is a no-op.
func (l *Lifecycle) UpdateStatus(ctx context.Context, id string, to models.BookingStatus) (models.Booking, error) {
	const op = "booking.Lifecycle.UpdateStatus"

	log := l.log.With(slog.String("op", op), slog.String("booking_id", id))

	if !to.Valid() {
		return models.Booking{}, fmt.Errorf("%s: status %q: %w", op, to, response.ErrInvalidStatus)
	}

	tl := l.transitionLock(id)
	tl.Lock()
	defer tl.Unlock()

	l.mu.Lock()
	current, err := l.loadLocked(ctx, id)
	if err != nil {
		l.mu.Unlock()
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	if to == models.BookingCancelled && current.Status.Terminal() {
		l.mu.Unlock()
		log.Debug("Cancel on finished booking ignored", slog.String("status", string(current.Status)))
		return current, nil
	}
	if !CanTransition(current.Status, to) {
		l.mu.Unlock()
		return models.Booking{}, fmt.Errorf("%s: %s -> %s: %w", op, current.Status, to, response.ErrIllegalTransition)
	}

	from := current.Status
	next := current
	next.Status = to
	next.UpdatedAt = l.nowFn()

	if err := l.persistLocked(ctx, next, false); err != nil {
		l.mu.Unlock()
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	l.bookings[id] = next
	l.mu.Unlock()

	l.applySideEffects(ctx, log, from, next)

	if to == models.BookingActive || from == models.BookingActive {
		// tracking may have refreshed the live location
		if b, err := l.Get(ctx, id); err == nil {
			next = b
		}
	}

	l.metrics.RecordTransition(ctx, string(from), string(to))
	log.Info("Booking status changed",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	l.notify(ctx, next)

	return next, nil
}

func (l *Lifecycle) transitionLock(id string) *sync.Mutex {
	l.tmu.Lock()
	defer l.tmu.Unlock()

	m, ok := l.tlocks[id]
	if !ok {
		m = &sync.Mutex{}
		l.tlocks[id] = m
	}
	return m
}

func (l *Lifecycle) applySideEffects(ctx context.Context, log *slog.Logger, from models.BookingStatus, b models.Booking) {
	switch b.Status {
	case models.BookingCancelled:
		if err := l.calendar.ReleaseDates(ctx, b.ResourceID, b.ID); err != nil {
			log.Error("Failed to release dates", sl.Err(err))
		}
		if from == models.BookingActive {
			l.endTracking(ctx, log, b)
		}

	case models.BookingActive:
		session, err := l.tracker.Start(ctx, b.ID, b.ResourceID, b.UserID)
		if err != nil {
			log.Warn("Live tracking not started", sl.Err(err))
			bookingID := b.ID
			if _, err := l.registry.Update(ctx, status.Update{
				ResourceID:       b.ResourceID,
				ResourceType:     b.ResourceType,
				Status:           models.ResourceBooked,
				CurrentBookingID: &bookingID,
			}); err != nil {
				log.Error("Failed to mark resource booked", sl.Err(err))
			}
			return
		}
		l.setLiveLocation(b.ID, session.CurrentLocation)

	case models.BookingCompleted:
		l.endTracking(ctx, log, b)
	}
}

// endTracking stops the session, or releases the resource directly when
// tracking never started.
func (l *Lifecycle) endTracking(ctx context.Context, log *slog.Logger, b models.Booking) {
	err := l.tracker.End(ctx, b.ID)
	if err == nil {
		return
	}
	if !errors.Is(err, response.ErrNotFound) {
		log.Error("Failed to end tracking", sl.Err(err))
	}

	if _, err := l.registry.Update(ctx, status.Update{
		ResourceID:   b.ResourceID,
		ResourceType: b.ResourceType,
		Status:       models.ResourceAvailable,
	}); err != nil {
		log.Error("Failed to mark resource available", sl.Err(err))
	}
}

func (l *Lifecycle) setLiveLocation(id string, loc *models.Location) {
	if loc == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bookings[id]
	if !ok {
		return
	}
	c := *loc
	b.LiveLocation = &c
	if err := l.persistLocked(context.Background(), b, false); err != nil {
		l.log.Error("Failed to store live location", slog.String("booking_id", id), sl.Err(err))
		return
	}
	l.bookings[id] = b
}

func (l *Lifecycle) Get(ctx context.Context, id string) (models.Booking, error) {
	const op = "booking.Lifecycle.Get"

	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := l.loadLocked(ctx, id)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// ListByUser returns the user's bookings, oldest first. Lookup failures
// degrade to an empty list.
func (l *Lifecycle) ListByUser(ctx context.Context, userID string) []models.Booking {
	return l.listByIndex(ctx, userIndexKey(userID))
}

func (l *Lifecycle) ListByResource(ctx context.Context, resourceID string) []models.Booking {
	return l.listByIndex(ctx, resourceIndexKey(resourceID))
}

func (l *Lifecycle) listByIndex(ctx context.Context, key string) []models.Booking {
	const op = "booking.Lifecycle.listByIndex"

	out := []models.Booking{}

	l.mu.Lock()
	defer l.mu.Unlock()

	var ids []string
	if _, err := storage.GetJSON(ctx, l.kv, key, &ids); err != nil {
		l.log.Error("Failed to read booking index", slog.String("op", op), slog.String("key", key), sl.Err(err))
		return out
	}

	for _, id := range ids {
		b, err := l.loadLocked(ctx, id)
		if err != nil {
			l.log.Warn("Indexed booking missing", slog.String("booking_id", id), sl.Err(err))
			continue
		}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out
}

func (l *Lifecycle) loadLocked(ctx context.Context, id string) (models.Booking, error) {
	if b, ok := l.bookings[id]; ok {
		return b, nil
	}

	var b models.Booking
	found, err := storage.GetJSON(ctx, l.kv, bookingKey(id), &b)
	if err != nil {
		return models.Booking{}, err
	}
	if !found {
		return models.Booking{}, fmt.Errorf("booking %s: %w", id, response.ErrNotFound)
	}

	l.bookings[id] = b
	return b, nil
}

// persistLocked writes the booking record last, so a failed create leaves at
// most dangling index entries, which listByIndex skips.
func (l *Lifecycle) persistLocked(ctx context.Context, b models.Booking, created bool) error {
	if created {
		for _, key := range []string{userIndexKey(b.UserID), resourceIndexKey(b.ResourceID)} {
			var ids []string
			if _, err := storage.GetJSON(ctx, l.kv, key, &ids); err != nil {
				return err
			}
			ids = append(ids, b.ID)
			if err := storage.SetJSON(ctx, l.kv, key, ids); err != nil {
				return err
			}
		}
	}

	return storage.SetJSON(ctx, l.kv, bookingKey(b.ID), b)
}

func (l *Lifecycle) notify(ctx context.Context, b models.Booking) {
	l.lmu.RLock()
	listeners := append([]Listener(nil), l.listeners...)
	l.lmu.RUnlock()

	for _, fn := range listeners {
		fn(ctx, b)
	}
}
