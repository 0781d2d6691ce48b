// Package notifier fans resource status snapshots out to subscribers.
//
// Every subscriber receives a full snapshot on subscribe, on every tick of
// Run, and whenever the status registry records a change that matches the
// subscription's filters. Snapshots are delivered on a buffered channel;
// when a subscriber falls behind the oldest pending snapshot is dropped.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"availability-service/internal/models"
	"availability-service/internal/status"
	"availability-service/internal/telemetry"
	"availability-service/pkg/response"
	"availability-service/pkg/sl"
)

const (
	defaultTickInterval = 30 * time.Second
	defaultBufferSize   = 16
)

type Reason string

const (
	ReasonInitial Reason = "initial"
	ReasonTick    Reason = "tick"
	ReasonChange  Reason = "change"
)

// Update is one snapshot pushed to a subscriber.
type Update struct {
	SubscriptionID string                  `json:"subscription_id"`
	Reason         Reason                  `json:"reason"`
	Resources      []models.ResourceStatus `json:"resources"`
	At             time.Time               `json:"at"`
}

// Querier is the part of the status registry the notifier reads from.
type Querier interface {
	Query(q status.Query) []models.ResourceStatus
}

type subscription struct {
	models.Subscription

	mu     sync.Mutex
	ch     chan Update
	closed bool
}

type Notifier struct {
	log        *slog.Logger
	registry   Querier
	interval   time.Duration
	bufferSize int
	nowFn      func() time.Time
	metrics    *telemetry.NotifierMetrics

	mu   sync.RWMutex
	subs map[string]*subscription
}

type Option func(*Notifier)

func WithTickInterval(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.interval = d
		}
	}
}

func WithBufferSize(size int) Option {
	return func(n *Notifier) {
		if size > 0 {
			n.bufferSize = size
		}
	}
}

func WithMetrics(m *telemetry.NotifierMetrics) Option {
	return func(n *Notifier) {
		n.metrics = m
	}
}

func WithClock(nowFn func() time.Time) Option {
	return func(n *Notifier) {
		n.nowFn = nowFn
	}
}

func New(log *slog.Logger, registry Querier, opts ...Option) *Notifier {
	n := &Notifier{
		log:        log.With(slog.String("component", "notifier")),
		registry:   registry,
		interval:   defaultTickInterval,
		bufferSize: defaultBufferSize,
		nowFn:      time.Now,
		subs:       make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subscribe registers a subscription. The returned channel already holds
// the initial snapshot.
func (n *Notifier) Subscribe(ctx context.Context, userID, resourceType string, filters models.SubscriptionFilters) (models.Subscription, <-chan Update, error) {
	const op = "notifier.Notifier.Subscribe"

	if resourceType == "" {
		return models.Subscription{}, nil, fmt.Errorf("%s: resource type is required: %w", op, response.ErrBadRequest)
	}
	if filters.MaxDistanceKm != nil && *filters.MaxDistanceKm < 0 {
		return models.Subscription{}, nil, fmt.Errorf("%s: negative max distance: %w", op, response.ErrBadRequest)
	}

	sub := &subscription{
		Subscription: models.Subscription{
			ID:           uuid.NewString(),
			UserID:       userID,
			ResourceType: resourceType,
			Filters:      copyFilters(filters),
			CreatedAt:    n.nowFn(),
		},
		ch: make(chan Update, n.bufferSize),
	}

	// initial snapshot goes in before the subscription becomes visible to
	// ticks and change pushes, so it is always the first update
	n.push(ctx, sub, ReasonInitial)

	n.mu.Lock()
	n.subs[sub.ID] = sub
	n.mu.Unlock()

	n.metrics.RecordSubscriptions(ctx, 1)
	n.log.Info("Subscription created",
		slog.String("subscription_id", sub.ID),
		slog.String("user_id", userID),
		slog.String("resource_type", resourceType),
	)

	return sub.Subscription, sub.ch, nil
}

// Unsubscribe removes the subscription and closes its channel. Nothing is
// delivered after it returns.
func (n *Notifier) Unsubscribe(ctx context.Context, id string) error {
	const op = "notifier.Notifier.Unsubscribe"

	n.mu.Lock()
	sub, ok := n.subs[id]
	delete(n.subs, id)
	n.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: subscription %s: %w", op, id, response.ErrNotFound)
	}

	sub.mu.Lock()
	sub.closed = true
	close(sub.ch)
	sub.mu.Unlock()

	n.metrics.RecordSubscriptions(ctx, -1)
	n.log.Info("Subscription removed", slog.String("subscription_id", id))

	return nil
}

// Run pushes a snapshot to every subscription once per tick interval until
// ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	n.log.Info("Notifier started", slog.Duration("interval", n.interval))

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.log.Info("Notifier stopped")
			return nil
		case <-ticker.C:
			n.Tick(ctx)
		}
	}
}

// Tick refreshes every subscription once.
func (n *Notifier) Tick(ctx context.Context) {
	for _, sub := range n.snapshot() {
		n.safePush(ctx, sub, ReasonTick)
	}
}

// OnStatusChange is registered as a status registry listener.
func (n *Notifier) OnStatusChange(ctx context.Context, rs models.ResourceStatus) {
	for _, sub := range n.snapshot() {
		if !matches(sub.Subscription, rs) {
			continue
		}
		n.safePush(ctx, sub, ReasonChange)
	}
}

// Count returns the number of live subscriptions.
func (n *Notifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return len(n.subs)
}

func (n *Notifier) snapshot() []*subscription {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]*subscription, 0, len(n.subs))
	for _, sub := range n.subs {
		out = append(out, sub)
	}
	return out
}

func (n *Notifier) safePush(ctx context.Context, sub *subscription, reason Reason) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("Subscription refresh panicked",
				slog.String("subscription_id", sub.ID),
				slog.Any("panic", r),
			)
		}
	}()

	n.push(ctx, sub, reason)
}

func (n *Notifier) push(ctx context.Context, sub *subscription, reason Reason) {
	f := sub.Filters
	resources := n.registry.Query(status.Query{
		ResourceType:  sub.ResourceType,
		UserLocation:  f.UserLocation,
		MaxDistanceKm: f.MaxDistanceKm,
		City:          f.City,
	})

	u := Update{
		SubscriptionID: sub.ID,
		Reason:         reason,
		Resources:      resources,
		At:             n.nowFn(),
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return
	}

	select {
	case sub.ch <- u:
	default:
		// drop the oldest pending snapshot to make room
		select {
		case <-sub.ch:
			n.metrics.RecordDropped(ctx)
			n.log.Warn("Subscriber is behind, dropped oldest update", slog.String("subscription_id", sub.ID))
		default:
		}
		select {
		case sub.ch <- u:
		default:
			n.log.Error("Failed to deliver update",
				slog.String("subscription_id", sub.ID),
				sl.Err(fmt.Errorf("buffer full")),
			)
			return
		}
	}

	n.metrics.RecordPush(ctx, string(reason))
}

func matches(sub models.Subscription, rs models.ResourceStatus) bool {
	if rs.ResourceType != sub.ResourceType {
		return false
	}
	f := sub.Filters
	if f.City != "" && rs.City != "" && rs.City != f.City {
		return false
	}
	if f.UserLocation != nil && f.MaxDistanceKm != nil {
		return status.InRange(rs, *f.UserLocation, *f.MaxDistanceKm)
	}
	return true
}

func copyFilters(f models.SubscriptionFilters) models.SubscriptionFilters {
	if f.MaxDistanceKm != nil {
		d := *f.MaxDistanceKm
		f.MaxDistanceKm = &d
	}
	if f.UserLocation != nil {
		l := *f.UserLocation
		f.UserLocation = &l
	}
	return f
}
