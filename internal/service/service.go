package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"availability-service/api"
	"availability-service/internal/availability"
	"availability-service/internal/booking"
	"availability-service/internal/location"
	"availability-service/internal/models"
	"availability-service/internal/notifier"
	"availability-service/internal/status"
	"availability-service/internal/tracking"
	"availability-service/pkg/geo"
	"availability-service/pkg/response"
)

// Service adapts the engine components to the HTTP API's request and
// response shapes.
type Service struct {
	calendars *availability.Store
	bookings  *booking.Lifecycle
	registry  *status.Registry
	notifier  *notifier.Notifier
	tracking  *tracking.Manager
	reporter  location.Reporter
}

func NewService(
	calendars *availability.Store,
	bookings *booking.Lifecycle,
	registry *status.Registry,
	n *notifier.Notifier,
	t *tracking.Manager,
	reporter location.Reporter,
) *Service {
	return &Service{
		calendars: calendars,
		bookings:  bookings,
		registry:  registry,
		notifier:  n,
		tracking:  t,
		reporter:  reporter,
	}
}

// Calendars

func (s *Service) InitializeCalendar(ctx context.Context, req *api.CalendarInitRequest) (*api.CalendarResponse, error) {
	const op = "service.InitializeCalendar"

	cal, err := s.calendars.Initialize(ctx, req.ResourceID, req.ResourceType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toCalendarResponse(cal), nil
}

func (s *Service) GetCalendar(ctx context.Context, resourceID string) (*api.CalendarResponse, error) {
	const op = "service.GetCalendar"

	cal, err := s.calendars.GetCalendar(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toCalendarResponse(cal), nil
}

func (s *Service) CheckAvailability(ctx context.Context, resourceID, startStr, endStr string) (*api.AvailabilityResponse, error) {
	const op = "service.CheckAvailability"

	start, end, err := parseRange(startStr, endStr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	dates := s.calendars.GetAvailableDates(ctx, resourceID, start, end)
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(api.DateLayout)
	}

	return &api.AvailabilityResponse{
		ResourceID: resourceID,
		StartDate:  start.Format(api.DateLayout),
		EndDate:    end.Format(api.DateLayout),
		Available:  s.calendars.CheckAvailability(ctx, resourceID, start, end),
		Dates:      out,
	}, nil
}

func (s *Service) BlockDates(ctx context.Context, resourceID string, req *api.BlockRequest) (*api.BlockResponse, error) {
	const op = "service.BlockDates"

	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reason := models.BlockedReason(strings.ToLower(req.Reason))
	if reason == "" {
		reason = models.BlockedOwner
	}
	if reason != models.BlockedMaintenance && reason != models.BlockedOwner {
		return nil, fmt.Errorf("%s: reason %q: %w", op, req.Reason, response.ErrBadRequest)
	}

	days, err := s.calendars.BlockForReason(ctx, resourceID, start, end, reason)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &api.BlockResponse{ResourceID: resourceID, Days: days}, nil
}

func (s *Service) UnblockDates(ctx context.Context, resourceID, startStr, endStr string) (*api.BlockResponse, error) {
	const op = "service.UnblockDates"

	start, end, err := parseRange(startStr, endStr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	days, err := s.calendars.Unblock(ctx, resourceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &api.BlockResponse{ResourceID: resourceID, Days: days}, nil
}

// Bookings

func (s *Service) CreateBooking(ctx context.Context, req *api.BookingRequest) (*api.BookingResponse, error) {
	const op = "service.CreateBooking"

	start, err := parseDate(req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid start_date: %w", op, err)
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid end_date: %w", op, err)
	}

	b, err := s.bookings.Create(ctx, booking.CreateRequest{
		ResourceID: req.ResourceID,
		UserID:     req.UserID,
		StartDate:  start,
		EndDate:    end,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toBookingResponse(b), nil
}

func (s *Service) GetBooking(ctx context.Context, id string) (*api.BookingResponse, error) {
	const op = "service.GetBooking"

	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toBookingResponse(b), nil
}

func (s *Service) ListBookings(ctx context.Context, userID, resourceID string) ([]*api.BookingResponse, error) {
	const op = "service.ListBookings"

	var list []models.Booking
	switch {
	case userID != "":
		list = s.bookings.ListByUser(ctx, userID)
		if resourceID != "" {
			filtered := list[:0]
			for _, b := range list {
				if b.ResourceID == resourceID {
					filtered = append(filtered, b)
				}
			}
			list = filtered
		}
	case resourceID != "":
		list = s.bookings.ListByResource(ctx, resourceID)
	default:
		return nil, fmt.Errorf("%s: user_id or resource_id is required: %w", op, response.ErrBadRequest)
	}

	out := make([]*api.BookingResponse, len(list))
	for i, b := range list {
		out[i] = toBookingResponse(b)
	}
	return out, nil
}

func (s *Service) UpdateBookingStatus(ctx context.Context, id string, req *api.BookingStatusRequest) (*api.BookingResponse, error) {
	const op = "service.UpdateBookingStatus"

	b, err := s.bookings.UpdateStatus(ctx, id, models.BookingStatus(strings.ToLower(req.Status)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toBookingResponse(b), nil
}

// Resources

func (s *Service) UpdateResourceStatus(ctx context.Context, resourceID string, req *api.ResourceStatusRequest) (*models.ResourceStatus, error) {
	const op = "service.UpdateResourceStatus"

	resourceType := req.ResourceType
	if resourceType == "" {
		if t, ok := s.calendars.ResourceType(ctx, resourceID); ok {
			resourceType = t
		} else if rs, ok := s.registry.Get(resourceID); ok {
			resourceType = rs.ResourceType
		}
	}

	rs, err := s.registry.Update(ctx, status.Update{
		ResourceID:          resourceID,
		ResourceType:        resourceType,
		Status:              models.ResourceState(strings.ToLower(req.Status)),
		Location:            toLocation(req.Location),
		City:                req.City,
		EstimatedReturnTime: req.EstimatedReturnTime,
		CurrentBookingID:    req.CurrentBookingID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &rs, nil
}

func (s *Service) GetResourceStatus(_ context.Context, resourceID string) (*models.ResourceStatus, error) {
	const op = "service.GetResourceStatus"

	rs, ok := s.registry.Get(resourceID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	return &rs, nil
}

func (s *Service) QueryResources(_ context.Context, q api.ResourceQuery) ([]models.ResourceStatus, error) {
	const op = "service.QueryResources"

	if q.ResourceType == "" {
		return nil, fmt.Errorf("%s: type is required: %w", op, response.ErrBadRequest)
	}

	filters, err := toFilters(q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.registry.Query(status.Query{
		ResourceType:  q.ResourceType,
		UserLocation:  filters.UserLocation,
		MaxDistanceKm: filters.MaxDistanceKm,
		City:          filters.City,
	}), nil
}

func (s *Service) ReportLocation(ctx context.Context, resourceID string, req *api.LocationReportRequest) error {
	const op = "service.ReportLocation"

	if req.SharingEnabled != nil {
		if err := s.reporter.SetSharing(ctx, resourceID, *req.SharingEnabled); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !*req.SharingEnabled {
			return nil
		}
	}

	if err := s.reporter.Report(ctx, resourceID, *toLocation(&req.Location)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Subscriptions

func (s *Service) Subscribe(ctx context.Context, userID string, q api.ResourceQuery) (models.Subscription, <-chan notifier.Update, error) {
	const op = "service.Subscribe"

	filters, err := toFilters(q)
	if err != nil {
		return models.Subscription{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	sub, ch, err := s.notifier.Subscribe(ctx, userID, q.ResourceType, filters)
	if err != nil {
		return models.Subscription{}, nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, ch, nil
}

func (s *Service) Unsubscribe(ctx context.Context, id string) error {
	return s.notifier.Unsubscribe(ctx, id)
}

// Tracking

func (s *Service) GetTracking(_ context.Context, bookingID string) (*api.TrackingResponse, error) {
	const op = "service.GetTracking"

	session, ok := s.tracking.Session(bookingID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return &api.TrackingResponse{
		Session: session,
		Alerts:  s.tracking.Alerts(bookingID),
	}, nil
}

func (s *Service) PauseTracking(ctx context.Context, bookingID string) (*api.TrackingResponse, error) {
	const op = "service.PauseTracking"

	if _, err := s.tracking.Pause(ctx, bookingID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.GetTracking(ctx, bookingID)
}

func (s *Service) ResumeTracking(ctx context.Context, bookingID string) (*api.TrackingResponse, error) {
	const op = "service.ResumeTracking"

	if _, err := s.tracking.Resume(ctx, bookingID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.GetTracking(ctx, bookingID)
}

func (s *Service) AddGeofence(ctx context.Context, req *api.GeofenceRequest) (*models.Geofence, error) {
	const op = "service.AddGeofence"

	g, err := s.tracking.AddGeofence(ctx,
		req.ResourceID,
		models.GeofenceKind(strings.ToLower(req.Kind)),
		geo.Point{Latitude: req.Latitude, Longitude: req.Longitude},
		req.RadiusMeters,
		req.Message,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &g, nil
}

// helpers

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(api.DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("date %q: %w", s, response.ErrInvalidRange)
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := parseDate(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if availability.Day(start).After(availability.Day(end)) {
		return time.Time{}, time.Time{}, fmt.Errorf("start after end: %w", response.ErrInvalidRange)
	}
	return start, end, nil
}

func toFilters(q api.ResourceQuery) (models.SubscriptionFilters, error) {
	f := models.SubscriptionFilters{City: q.City}

	if (q.Latitude == nil) != (q.Longitude == nil) {
		return f, fmt.Errorf("lat and lng must be given together: %w", response.ErrBadRequest)
	}
	if q.Latitude != nil {
		if !finite(*q.Latitude) || !finite(*q.Longitude) || math.Abs(*q.Latitude) > 90 || math.Abs(*q.Longitude) > 180 {
			return f, fmt.Errorf("lat/lng out of range: %w", response.ErrBadRequest)
		}
		f.UserLocation = &models.Location{Latitude: *q.Latitude, Longitude: *q.Longitude}
	}
	if q.MaxDistanceKm != nil {
		if !finite(*q.MaxDistanceKm) || *q.MaxDistanceKm < 0 {
			return f, fmt.Errorf("max_distance must be a non-negative number: %w", response.ErrBadRequest)
		}
		d := *q.MaxDistanceKm
		f.MaxDistanceKm = &d
	}

	return f, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func toLocation(l *api.Location) *models.Location {
	if l == nil {
		return nil
	}
	loc := &models.Location{
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Accuracy:  l.Accuracy,
	}
	if l.Timestamp != nil {
		loc.Timestamp = *l.Timestamp
	}
	return loc
}

func toCalendarResponse(cal *models.ResourceCalendar) *api.CalendarResponse {
	slots := make([]api.SlotResponse, len(cal.Slots))
	for i, slot := range cal.Slots {
		slots[i] = api.SlotResponse{
			Date:          slot.Date.Format(api.DateLayout),
			IsAvailable:   slot.IsAvailable,
			BookingID:     slot.BookingID,
			BlockedReason: string(slot.BlockedReason),
		}
	}

	return &api.CalendarResponse{
		ResourceID:   cal.ResourceID,
		ResourceType: cal.ResourceType,
		LastUpdated:  cal.LastUpdated,
		Slots:        slots,
	}
}

func toBookingResponse(b models.Booking) *api.BookingResponse {
	out := &api.BookingResponse{
		ID:           b.ID,
		ResourceID:   b.ResourceID,
		ResourceType: b.ResourceType,
		UserID:       b.UserID,
		Status:       string(b.Status),
		StartDate:    b.StartDate.Format(api.DateLayout),
		EndDate:      b.EndDate.Format(api.DateLayout),
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
	if b.LiveLocation != nil {
		ts := b.LiveLocation.Timestamp
		out.LiveLocation = &api.Location{
			Latitude:  b.LiveLocation.Latitude,
			Longitude: b.LiveLocation.Longitude,
			Accuracy:  b.LiveLocation.Accuracy,
			Timestamp: &ts,
		}
	}
	return out
}
