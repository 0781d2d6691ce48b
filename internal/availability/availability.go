// Package availability owns the per-resource day calendars and the date
// locks taken by bookings.
//
// A calendar covers a fixed horizon starting on the day it was initialized.
// It never rolls forward: days outside the stored window are reported as
// available.
package availability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"availability-service/internal/models"
	"availability-service/internal/storage"
	"availability-service/pkg/response"
	"availability-service/pkg/sl"
)

const DefaultHorizonDays = 365

type Store struct {
	log         *slog.Logger
	kv          storage.KV
	horizonDays int
	nowFn       func() time.Time

	mu        sync.Mutex
	calendars map[string]*models.ResourceCalendar
}

type Option func(*Store)

// WithClock overrides the clock used for "today" and LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFn = now
	}
}

func WithHorizonDays(days int) Option {
	return func(s *Store) {
		if days > 0 {
			s.horizonDays = days
		}
	}
}

func New(log *slog.Logger, kv storage.KV, opts ...Option) *Store {
	s := &Store{
		log:         log.With(slog.String("component", "availability")),
		kv:          kv,
		horizonDays: DefaultHorizonDays,
		nowFn:       time.Now,
		calendars:   make(map[string]*models.ResourceCalendar),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func calendarKey(resourceID string) string {
	return "availability:" + resourceID
}

func (s *Store) Initialize(ctx context.Context, resourceID, resourceType string) (*models.ResourceCalendar, error) {
	const op = "availability.Initialize"

	if resourceID == "" || resourceType == "" {
		return nil, fmt.Errorf("%s: resource id and type are required: %w", op, response.ErrBadRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadLocked(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s: calendar for %s: %w", op, resourceID, response.ErrAlreadyExists)
	}

	now := s.nowFn()
	today := Day(now)

	cal := &models.ResourceCalendar{
		ResourceID:   resourceID,
		ResourceType: resourceType,
		Slots:        make([]models.AvailabilitySlot, s.horizonDays),
		LastUpdated:  now,
	}
	for i := range cal.Slots {
		cal.Slots[i] = models.AvailabilitySlot{
			Date:        today.AddDate(0, 0, i),
			IsAvailable: true,
		}
	}

	if err := s.persistLocked(ctx, cal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("Calendar initialized",
		slog.String("resource_id", resourceID),
		slog.String("resource_type", resourceType),
		slog.Int("days", s.horizonDays),
	)

	return cloneCalendar(cal), nil
}

// GetCalendar returns a copy of the stored calendar.
func (s *Store) GetCalendar(ctx context.Context, resourceID string) (*models.ResourceCalendar, error) {
	const op = "availability.GetCalendar"

	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.loadLocked(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cal == nil {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return cloneCalendar(cal), nil
}

// ResourceType reports the type the calendar was initialized with.
func (s *Store) ResourceType(ctx context.Context, resourceID string) (string, bool) {
	cal, err := s.GetCalendar(ctx, resourceID)
	if err != nil {
		return "", false
	}
	return cal.ResourceType, true
}

// CheckAvailability reports whether every stored day in [start, end] is free.
// Unknown calendars and days past the horizon count as available.
func (s *Store) CheckAvailability(ctx context.Context, resourceID string, start, end time.Time) bool {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.loadLocked(ctx, resourceID)
	if err != nil {
		s.log.Error("Failed to load calendar", slog.String("resource_id", resourceID), sl.Err(err))
		return true
	}
	if cal == nil {
		return true
	}

	for _, slot := range slotsInRange(cal, start, end) {
		if !slot.IsAvailable {
			return false
		}
	}

	return true
}

// GetAvailableDates lists the free stored days in [start, end].
func (s *Store) GetAvailableDates(ctx context.Context, resourceID string, start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	dates := []time.Time{}
	if start.After(end) {
		return dates
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.loadLocked(ctx, resourceID)
	if err != nil {
		s.log.Error("Failed to load calendar", slog.String("resource_id", resourceID), sl.Err(err))
		return dates
	}
	if cal == nil {
		return dates
	}

	for _, slot := range slotsInRange(cal, start, end) {
		if slot.IsAvailable {
			dates = append(dates, slot.Date)
		}
	}

	return dates
}

// BlockDates hands every stored day in [start, end] to bookingID, replacing
// any previous owner.
func (s *Store) BlockDates(ctx context.Context, resourceID, bookingID string, start, end time.Time) error {
	const op = "availability.BlockDates"

	start, end = Day(start), Day(end)
	if start.After(end) {
		return fmt.Errorf("%s: %w", op, response.ErrInvalidRange)
	}

	return s.mutate(ctx, op, resourceID, func(cal *models.ResourceCalendar) bool {
		changed := false
		for i := range cal.Slots {
			slot := &cal.Slots[i]
			if slot.Date.Before(start) || slot.Date.After(end) {
				continue
			}
			id := bookingID
			slot.IsAvailable = false
			slot.BookingID = &id
			slot.BlockedReason = models.BlockedBooking
			changed = true
		}
		return changed
	})
}

// ReleaseDates frees every day held by bookingID. Releasing an unknown
// booking is a no-op.
func (s *Store) ReleaseDates(ctx context.Context, resourceID, bookingID string) error {
	const op = "availability.ReleaseDates"

	return s.mutate(ctx, op, resourceID, func(cal *models.ResourceCalendar) bool {
		released := 0
		for i := range cal.Slots {
			slot := &cal.Slots[i]
			if slot.BookingID == nil || *slot.BookingID != bookingID {
				continue
			}
			*slot = models.AvailabilitySlot{Date: slot.Date, IsAvailable: true}
			released++
		}
		if released > 0 {
			s.log.Debug("Dates released",
				slog.String("resource_id", resourceID),
				slog.String("booking_id", bookingID),
				slog.Int("days", released),
			)
		}
		return released > 0
	})
}

// BlockForReason marks free days in [start, end] as blocked for maintenance
// or by the owner. Days held by a booking are left alone. It returns how many
// days were blocked.
func (s *Store) BlockForReason(ctx context.Context, resourceID string, start, end time.Time, reason models.BlockedReason) (int, error) {
	const op = "availability.BlockForReason"

	if reason != models.BlockedMaintenance && reason != models.BlockedOwner {
		return 0, fmt.Errorf("%s: reason %q: %w", op, reason, response.ErrBadRequest)
	}

	start, end = Day(start), Day(end)
	if start.After(end) {
		return 0, fmt.Errorf("%s: %w", op, response.ErrInvalidRange)
	}

	blocked := 0
	err := s.mutate(ctx, op, resourceID, func(cal *models.ResourceCalendar) bool {
		for i := range cal.Slots {
			slot := &cal.Slots[i]
			if slot.Date.Before(start) || slot.Date.After(end) {
				continue
			}
			if slot.BlockedReason == models.BlockedBooking {
				continue
			}
			slot.IsAvailable = false
			slot.BlockedReason = reason
			blocked++
		}
		return blocked > 0
	})

	return blocked, err
}

// Unblock frees maintenance and owner blocks in [start, end].
func (s *Store) Unblock(ctx context.Context, resourceID string, start, end time.Time) (int, error) {
	const op = "availability.Unblock"

	start, end = Day(start), Day(end)
	if start.After(end) {
		return 0, fmt.Errorf("%s: %w", op, response.ErrInvalidRange)
	}

	freed := 0
	err := s.mutate(ctx, op, resourceID, func(cal *models.ResourceCalendar) bool {
		for i := range cal.Slots {
			slot := &cal.Slots[i]
			if slot.Date.Before(start) || slot.Date.After(end) {
				continue
			}
			if slot.IsAvailable || slot.BlockedReason == models.BlockedBooking {
				continue
			}
			*slot = models.AvailabilitySlot{Date: slot.Date, IsAvailable: true}
			freed++
		}
		return freed > 0
	})

	return freed, err
}

// mutate applies fn to a copy of the calendar and swaps it in only after the
// copy has been persisted.
func (s *Store) mutate(ctx context.Context, op, resourceID string, fn func(cal *models.ResourceCalendar) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.loadLocked(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if cal == nil {
		return fmt.Errorf("%s: calendar for %s: %w", op, resourceID, response.ErrNotFound)
	}

	next := cloneCalendar(cal)
	if !fn(next) {
		return nil
	}
	next.LastUpdated = s.nowFn()

	if err := s.persistLocked(ctx, next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) loadLocked(ctx context.Context, resourceID string) (*models.ResourceCalendar, error) {
	if cal, ok := s.calendars[resourceID]; ok {
		return cal, nil
	}

	var cal models.ResourceCalendar
	found, err := storage.GetJSON(ctx, s.kv, calendarKey(resourceID), &cal)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	s.calendars[resourceID] = &cal
	return &cal, nil
}

func (s *Store) persistLocked(ctx context.Context, cal *models.ResourceCalendar) error {
	if err := storage.SetJSON(ctx, s.kv, calendarKey(cal.ResourceID), cal); err != nil {
		return err
	}
	s.calendars[cal.ResourceID] = cal
	return nil
}

// slotsInRange returns the stored slots whose day falls in [start, end].
func slotsInRange(cal *models.ResourceCalendar, start, end time.Time) []models.AvailabilitySlot {
	if len(cal.Slots) == 0 {
		return nil
	}

	first := cal.Slots[0].Date
	from := daysBetween(first, start)
	to := daysBetween(first, end)

	if from < 0 {
		from = 0
	}
	if to >= len(cal.Slots) {
		to = len(cal.Slots) - 1
	}
	if from > to {
		return nil
	}

	return cal.Slots[from : to+1]
}

func daysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

func cloneCalendar(cal *models.ResourceCalendar) *models.ResourceCalendar {
	out := *cal
	out.Slots = make([]models.AvailabilitySlot, len(cal.Slots))
	for i, slot := range cal.Slots {
		out.Slots[i] = slot
		if slot.BookingID != nil {
			id := *slot.BookingID
			out.Slots[i].BookingID = &id
		}
	}
	return &out
}
