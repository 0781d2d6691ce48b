package api

import (
	"time"

	"availability-service/internal/models"
)

// Dates on the wire are calendar days, "2006-01-02". RFC3339 is accepted on input.
const DateLayout = "2006-01-02"

type CalendarInitRequest struct {
	ResourceID   string `json:"resource_id"`
	ResourceType string `json:"resource_type"`
}

type SlotResponse struct {
	Date          string  `json:"date"`
	IsAvailable   bool    `json:"is_available"`
	BookingID     *string `json:"booking_id,omitempty"`
	BlockedReason string  `json:"blocked_reason,omitempty"`
}

type CalendarResponse struct {
	ResourceID   string         `json:"resource_id"`
	ResourceType string         `json:"resource_type"`
	LastUpdated  time.Time      `json:"last_updated"`
	Slots        []SlotResponse `json:"slots"`
}

type AvailabilityResponse struct {
	ResourceID string   `json:"resource_id"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	Available  bool     `json:"available"`
	Dates      []string `json:"available_dates"`
}

type BlockRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

type BlockResponse struct {
	ResourceID string `json:"resource_id"`
	Days       int    `json:"days"`
}

type BookingRequest struct {
	ResourceID string `json:"resource_id"`
	UserID     string `json:"user_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

type BookingStatusRequest struct {
	Status string `json:"status"`
}

type Location struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Accuracy  float64    `json:"accuracy,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type BookingResponse struct {
	ID           string    `json:"id"`
	ResourceID   string    `json:"resource_id"`
	ResourceType string    `json:"resource_type"`
	UserID       string    `json:"user_id"`
	Status       string    `json:"status"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	LiveLocation *Location `json:"live_location,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ResourceStatusRequest struct {
	ResourceType        string     `json:"resource_type"`
	Status              string     `json:"status"`
	Location            *Location  `json:"location,omitempty"`
	City                string     `json:"city,omitempty"`
	EstimatedReturnTime *time.Time `json:"estimated_return_time,omitempty"`
	CurrentBookingID    *string    `json:"current_booking_id,omitempty"`
}

type ResourceQuery struct {
	ResourceType  string
	Latitude      *float64
	Longitude     *float64
	MaxDistanceKm *float64
	City          string
}

type LocationReportRequest struct {
	Location
	SharingEnabled *bool `json:"sharing_enabled,omitempty"`
}

type GeofenceRequest struct {
	ResourceID   string  `json:"resource_id"`
	Kind         string  `json:"kind"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
	Message      string  `json:"message"`
}

type TrackingResponse struct {
	Session models.TrackingSession `json:"session"`
	Alerts  []models.GeofenceAlert `json:"alerts"`
}
