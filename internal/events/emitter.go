package events

import (
	"context"
	"log/slog"
	"time"

	"availability-service/internal/models"
	"availability-service/pkg/sl"
)

const (
	defaultQueueSize = 256
	drainTimeout     = 5 * time.Second
)

// Emitter queues events in memory and publishes them from a single
// goroutine, so callers never wait on the broker. A full queue drops the
// new event.
type Emitter struct {
	log   *slog.Logger
	pub   Publisher
	queue chan Event
	nowFn func() time.Time
}

func NewEmitter(log *slog.Logger, pub Publisher, queueSize int) *Emitter {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Emitter{
		log:   log.With(slog.String("component", "events")),
		pub:   pub,
		queue: make(chan Event, queueSize),
		nowFn: time.Now,
	}
}

func (e *Emitter) Emit(_ context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = e.nowFn()
	}

	select {
	case e.queue <- ev:
	default:
		e.log.Warn("Event queue full, dropping event", slog.String("type", ev.Type), slog.String("key", ev.Key))
	}
}

// Run publishes queued events until ctx is cancelled, then drains what is
// left with a bounded timeout.
func (e *Emitter) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-e.queue:
			e.publish(ctx, ev)
		case <-ctx.Done():
			e.drain()
			return nil
		}
	}
}

func (e *Emitter) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case ev := <-e.queue:
			e.publish(ctx, ev)
		default:
			return
		}
	}
}

func (e *Emitter) publish(ctx context.Context, ev Event) {
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.log.Error("Failed to publish event",
			slog.String("type", ev.Type),
			slog.String("key", ev.Key),
			sl.Err(err),
		)
	}
}

// OnStatusChange is registered as a status registry listener.
func (e *Emitter) OnStatusChange(ctx context.Context, rs models.ResourceStatus) {
	e.Emit(ctx, Event{
		Type:    TypeStatusPrefix + rs.ResourceType,
		Key:     rs.ResourceID,
		At:      rs.LastUpdated,
		Payload: rs,
	})
}

// OnBooking emits booking.<status> for a created or transitioned booking.
func (e *Emitter) OnBooking(ctx context.Context, b models.Booking) {
	e.Emit(ctx, Event{
		Type:    TypeBookingPrefix + string(b.Status),
		Key:     b.ID,
		At:      b.UpdatedAt,
		Payload: b,
	})
}

// OnGeofenceAlert is registered as a tracking alert listener.
func (e *Emitter) OnGeofenceAlert(ctx context.Context, a models.GeofenceAlert) {
	e.Emit(ctx, Event{
		Type:    TypeGeofencePrefix + string(a.Kind),
		Key:     a.BookingID,
		At:      a.TriggeredAt,
		Payload: a,
	})
}

func (e *Emitter) Close() error {
	return e.pub.Close()
}
