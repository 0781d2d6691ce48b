package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"availability-service/internal/config"
	"availability-service/internal/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmitter_PublishesInOrder(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	pub := &recordingPublisher{}
	e := NewEmitter(discardLogger(), pub, 8)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()

	e.OnStatusChange(ctx, models.ResourceStatus{ResourceID: "bike-1", ResourceType: "bike", Status: models.ResourceBooked})
	e.OnBooking(ctx, models.Booking{ID: "B1", Status: models.BookingConfirmed})
	e.OnGeofenceAlert(ctx, models.GeofenceAlert{BookingID: "B1", Kind: models.GeofencePickup})

	expected := []string{"status.bike", "booking.confirmed", "geofence.pickup"}
	require.Eventually(t, func() bool {
		return len(pub.types()) == len(expected)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, expected, pub.types())

	cancel()
	<-done
}

func TestEmitter_DrainsOnShutdown(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	e := NewEmitter(discardLogger(), pub, 8)

	ctx, cancel := context.WithCancel(context.Background())
	e.Emit(ctx, Event{Type: "booking.pending", Key: "B1"})
	e.Emit(ctx, Event{Type: "booking.cancelled", Key: "B1"})
	cancel()

	require.NoError(t, e.Run(ctx))
	assert.Len(t, pub.types(), 2)
}

func TestEmitter_FullQueueDropsAndFailuresAreLogged(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{fail: true}
	e := NewEmitter(discardLogger(), pub, 1)

	ctx := context.Background()
	e.Emit(ctx, Event{Type: "a"})
	e.Emit(ctx, Event{Type: "b"})
	assert.Len(t, e.queue, 1)

	ev := <-e.queue
	assert.Equal(t, "a", ev.Type)
	assert.False(t, ev.At.IsZero())

	assert.NotPanics(t, func() { e.publish(ctx, ev) })
}

func TestNew(t *testing.T) {
	t.Parallel()

	p, err := New(config.Events{Driver: "none"})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, p)

	p, err = New(config.Events{Driver: "kafka", Brokers: []string{"localhost:9092"}, Topic: "t"})
	require.NoError(t, err)
	assert.IsType(t, &KafkaPublisher{}, p)
	assert.NoError(t, p.Close())

	_, err = New(config.Events{Driver: "carrier-pigeon"})
	assert.Error(t, err)
}
