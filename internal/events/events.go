// Package events publishes resource status, booking and geofence events to
// an external broker.
package events

import (
	"context"
	"time"
)

const (
	TypeStatusPrefix   = "status."
	TypeBookingPrefix  = "booking."
	TypeGeofencePrefix = "geofence."
)

// Event is one message on the bus. Type doubles as the routing key.
type Event struct {
	Type    string    `json:"type"`
	Key     string    `json:"key"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

func (Noop) Close() error { return nil }
