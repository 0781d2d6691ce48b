package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum for %s", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNilProviderYieldsNilMetrics(t *testing.T) {
	t.Parallel()

	b, err := NewBookingMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	n, err := NewNotifierMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, n)

	tr, err := NewTrackingMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, tr)

	// nil receivers must not panic
	ctx := context.Background()
	b.RecordTransition(ctx, "pending", "confirmed")
	n.RecordPush(ctx, "tick")
	n.RecordDropped(ctx)
	n.RecordSubscriptions(ctx, 1)
	tr.RecordSample(ctx, true)
	tr.RecordActiveSessions(ctx, 1)
	tr.RecordGeofenceAlert(ctx, "pickup")
}

func TestMetricsRecorded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(ctx) }()

	b, err := NewBookingMetrics(mp)
	require.NoError(t, err)
	n, err := NewNotifierMetrics(mp)
	require.NoError(t, err)
	tr, err := NewTrackingMetrics(mp)
	require.NoError(t, err)

	b.RecordTransition(ctx, "pending", "confirmed")
	b.RecordTransition(ctx, "confirmed", "cancelled")
	n.RecordPush(ctx, "initial")
	n.RecordPush(ctx, "tick")
	n.RecordPush(ctx, "change")
	n.RecordDropped(ctx)
	n.RecordSubscriptions(ctx, 1)
	n.RecordSubscriptions(ctx, 1)
	n.RecordSubscriptions(ctx, -1)
	tr.RecordSample(ctx, true)
	tr.RecordActiveSessions(ctx, 1)
	tr.RecordGeofenceAlert(ctx, "zone_exit")

	got := collect(t, reader)

	assert.Equal(t, int64(2), sumOf(t, got["booking_transitions"]))
	assert.Equal(t, int64(3), sumOf(t, got["notifier_pushes"]))
	assert.Equal(t, int64(1), sumOf(t, got["notifier_dropped"]))
	assert.Equal(t, int64(1), sumOf(t, got["notifier_subscriptions"]))
	assert.Equal(t, int64(1), sumOf(t, got["tracking_samples"]))
	assert.Equal(t, int64(1), sumOf(t, got["tracking_active_sessions"]))
	assert.Equal(t, int64(1), sumOf(t, got["tracking_geofence_alerts"]))
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	t.Run("disabled has no handler", func(t *testing.T) {
		t.Parallel()

		p, err := NewProvider(false)
		require.NoError(t, err)
		assert.NotNil(t, p.MeterProvider)
		assert.Nil(t, p.Handler)
		assert.NoError(t, p.Shutdown(context.Background()))
	})

	t.Run("enabled exposes prometheus metrics", func(t *testing.T) {
		t.Parallel()

		p, err := NewProvider(true)
		require.NoError(t, err)
		defer func() { _ = p.Shutdown(context.Background()) }()
		require.NotNil(t, p.Handler)

		m, err := NewNotifierMetrics(p.MeterProvider)
		require.NoError(t, err)
		m.RecordPush(context.Background(), "tick")

		rec := httptest.NewRecorder()
		p.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "notifier_pushes")
	})
}
