package models

import (
	"time"

	"availability-service/pkg/geo"
)

type BlockedReason string

const (
	BlockedBooking     BlockedReason = "booking"
	BlockedMaintenance BlockedReason = "maintenance"
	BlockedOwner       BlockedReason = "owner"
)

// AvailabilitySlot is one calendar day. BookingID is set only when the day
// is held by a booking (BlockedReason == BlockedBooking).
type AvailabilitySlot struct {
	Date          time.Time     `json:"date"`
	IsAvailable   bool          `json:"is_available"`
	BookingID     *string       `json:"booking_id,omitempty"`
	BlockedReason BlockedReason `json:"blocked_reason,omitempty"`
}

type ResourceCalendar struct {
	ResourceID   string             `json:"resource_id"`
	ResourceType string             `json:"resource_type"`
	Slots        []AvailabilitySlot `json:"slots"`
	LastUpdated  time.Time          `json:"last_updated"`
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingActive    BookingStatus = "active"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingActive, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

type Booking struct {
	ID           string        `json:"id"`
	ResourceID   string        `json:"resource_id"`
	ResourceType string        `json:"resource_type"`
	UserID       string        `json:"user_id"`
	Status       BookingStatus `json:"status"`
	StartDate    time.Time     `json:"start_date"`
	EndDate      time.Time     `json:"end_date"`
	LiveLocation *Location     `json:"live_location,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

func (l Location) Point() geo.Point {
	return geo.Point{Latitude: l.Latitude, Longitude: l.Longitude}
}

type ResourceState string

const (
	ResourceAvailable   ResourceState = "available"
	ResourceBooked      ResourceState = "booked"
	ResourceMaintenance ResourceState = "maintenance"
	ResourceOffline     ResourceState = "offline"
)

func (s ResourceState) Valid() bool {
	switch s {
	case ResourceAvailable, ResourceBooked, ResourceMaintenance, ResourceOffline:
		return true
	}
	return false
}

type ResourceStatus struct {
	ResourceID          string        `json:"resource_id"`
	ResourceType        string        `json:"resource_type"`
	Status              ResourceState `json:"status"`
	Location            *Location     `json:"location,omitempty"`
	City                string        `json:"city,omitempty"`
	LastUpdated         time.Time     `json:"last_updated"`
	EstimatedReturnTime *time.Time    `json:"estimated_return_time,omitempty"`
	CurrentBookingID    *string       `json:"current_booking_id,omitempty"`
}

type SubscriptionFilters struct {
	City          string    `json:"city,omitempty"`
	MaxDistanceKm *float64  `json:"max_distance,omitempty"`
	UserLocation  *Location `json:"user_location,omitempty"`
}

type Subscription struct {
	ID           string              `json:"id"`
	UserID       string              `json:"user_id"`
	ResourceType string              `json:"resource_type"`
	Filters      SubscriptionFilters `json:"filters"`
	CreatedAt    time.Time           `json:"created_at"`
}

type TrackingStatus string

const (
	TrackingActive TrackingStatus = "active"
	TrackingPaused TrackingStatus = "paused"
	TrackingEnded  TrackingStatus = "ended"
)

type TrackingSession struct {
	BookingID          string         `json:"booking_id"`
	ResourceID         string         `json:"resource_id"`
	UserID             string         `json:"user_id"`
	Status             TrackingStatus `json:"status"`
	StartTime          time.Time      `json:"start_time"`
	LastLocationUpdate time.Time      `json:"last_location_update"`
	CurrentLocation    *Location      `json:"current_location,omitempty"`
	Route              []Location     `json:"route"`
	GeofenceAlertIDs   []string       `json:"geofence_alert_ids"`
}

type GeofenceKind string

const (
	GeofencePickup    GeofenceKind = "pickup"
	GeofenceDropoff   GeofenceKind = "dropoff"
	GeofenceZoneExit  GeofenceKind = "zone_exit"
	GeofenceZoneEnter GeofenceKind = "zone_enter"
)

func (k GeofenceKind) Valid() bool {
	switch k {
	case GeofencePickup, GeofenceDropoff, GeofenceZoneExit, GeofenceZoneEnter:
		return true
	}
	return false
}

// FiresOnExit reports whether the geofence triggers when leaving the zone
// rather than entering it.
func (k GeofenceKind) FiresOnExit() bool {
	return k == GeofenceZoneExit
}

type Geofence struct {
	ID           string       `json:"id"`
	ResourceID   string       `json:"resource_id"`
	Kind         GeofenceKind `json:"kind"`
	Center       geo.Point    `json:"center"`
	RadiusMeters float64      `json:"radius_meters"`
	Message      string       `json:"message"`
}

type GeofenceAlert struct {
	ID           string       `json:"id"`
	GeofenceID   string       `json:"geofence_id"`
	ResourceID   string       `json:"resource_id"`
	BookingID    string       `json:"booking_id"`
	Kind         GeofenceKind `json:"kind"`
	Center       geo.Point    `json:"center"`
	RadiusMeters float64      `json:"radius_meters"`
	Message      string       `json:"message"`
	TriggeredAt  time.Time    `json:"triggered_at"`
}
