// Package telemetry provides OpenTelemetry metrics for the availability service.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// BookingMetricsMeterName is the name used for the booking lifecycle meter
	BookingMetricsMeterName = "availability-service/booking"

	// NotifierMetricsMeterName is the name used for the subscription notifier meter
	NotifierMetricsMeterName = "availability-service/notifier"

	// TrackingMetricsMeterName is the name used for the tracking session meter
	TrackingMetricsMeterName = "availability-service/tracking"
)

// BookingMetrics holds the instruments for booking state transitions
type BookingMetrics struct {
	transitions metric.Int64Counter
}

// NewBookingMetrics creates booking metrics. A nil provider yields nil (no-op) metrics.
func NewBookingMetrics(provider metric.MeterProvider) (*BookingMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(BookingMetricsMeterName)

	transitions, err := meter.Int64Counter(
		"booking_transitions",
		metric.WithDescription("Number of booking status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	return &BookingMetrics{transitions: transitions}, nil
}

// RecordTransition counts one booking moving into status to
func (m *BookingMetrics) RecordTransition(ctx context.Context, from, to string) {
	if m == nil || m.transitions == nil {
		return
	}

	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// NotifierMetrics holds the instruments for subscription fan-out
type NotifierMetrics struct {
	pushes        metric.Int64Counter
	dropped       metric.Int64Counter
	subscriptions metric.Int64UpDownCounter
}

// NewNotifierMetrics creates notifier metrics. A nil provider yields nil (no-op) metrics.
func NewNotifierMetrics(provider metric.MeterProvider) (*NotifierMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(NotifierMetricsMeterName)

	pushes, err := meter.Int64Counter(
		"notifier_pushes",
		metric.WithDescription("Number of snapshots pushed to subscribers"),
		metric.WithUnit("{push}"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"notifier_dropped",
		metric.WithDescription("Number of snapshots dropped because a subscriber fell behind"),
		metric.WithUnit("{push}"),
	)
	if err != nil {
		return nil, err
	}

	subscriptions, err := meter.Int64UpDownCounter(
		"notifier_subscriptions",
		metric.WithDescription("Number of live subscriptions"),
		metric.WithUnit("{subscription}"),
	)
	if err != nil {
		return nil, err
	}

	return &NotifierMetrics{
		pushes:        pushes,
		dropped:       dropped,
		subscriptions: subscriptions,
	}, nil
}

// RecordPush counts one snapshot delivered for the given reason
func (m *NotifierMetrics) RecordPush(ctx context.Context, reason string) {
	if m == nil || m.pushes == nil {
		return
	}
	m.pushes.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordDropped counts one snapshot evicted from a full subscriber buffer
func (m *NotifierMetrics) RecordDropped(ctx context.Context) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Add(ctx, 1)
}

// RecordSubscriptions adjusts the live subscription count by delta
func (m *NotifierMetrics) RecordSubscriptions(ctx context.Context, delta int64) {
	if m == nil || m.subscriptions == nil {
		return
	}
	m.subscriptions.Add(ctx, delta)
}

// TrackingMetrics holds the instruments for live tracking sessions
type TrackingMetrics struct {
	samples        metric.Int64Counter
	activeSessions metric.Int64UpDownCounter
	geofenceAlerts metric.Int64Counter
}

// NewTrackingMetrics creates tracking metrics. A nil provider yields nil (no-op) metrics.
func NewTrackingMetrics(provider metric.MeterProvider) (*TrackingMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(TrackingMetricsMeterName)

	samples, err := meter.Int64Counter(
		"tracking_samples",
		metric.WithDescription("Number of location samples taken by tracking sessions"),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, err
	}

	activeSessions, err := meter.Int64UpDownCounter(
		"tracking_active_sessions",
		metric.WithDescription("Number of running tracking sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	geofenceAlerts, err := meter.Int64Counter(
		"tracking_geofence_alerts",
		metric.WithDescription("Number of geofence alerts fired"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	return &TrackingMetrics{
		samples:        samples,
		activeSessions: activeSessions,
		geofenceAlerts: geofenceAlerts,
	}, nil
}

// RecordSample counts one location sample
func (m *TrackingMetrics) RecordSample(ctx context.Context, success bool) {
	if m == nil || m.samples == nil {
		return
	}
	m.samples.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordActiveSessions adjusts the running session count by delta
func (m *TrackingMetrics) RecordActiveSessions(ctx context.Context, delta int64) {
	if m == nil || m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, delta)
}

// RecordGeofenceAlert counts one fired geofence alert
func (m *TrackingMetrics) RecordGeofenceAlert(ctx context.Context, kind string) {
	if m == nil || m.geofenceAlerts == nil {
		return
	}
	m.geofenceAlerts.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
