package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"availability-service/api"
	"availability-service/internal/availability"
	"availability-service/internal/booking"
	"availability-service/internal/http-server/router"
	"availability-service/internal/location"
	"availability-service/internal/lock"
	"availability-service/internal/notifier"
	"availability-service/internal/service"
	"availability-service/internal/status"
	"availability-service/internal/storage/memory"
	"availability-service/internal/tracking"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	kv := memory.New()

	calendars := availability.New(log, kv)
	registry := status.New(log)
	n := notifier.New(log, registry, notifier.WithTickInterval(time.Hour))
	registry.AddListener(n.OnStatusChange)

	locs := location.NewMemoryStore(time.Minute)
	tracker := tracking.New(log, locs, registry, calendars, tracking.WithSampleInterval(time.Hour))
	t.Cleanup(tracker.Shutdown)

	bookings := booking.New(log, kv, lock.NewMemoryLock(), calendars, tracker, registry)
	s := service.NewService(calendars, bookings, registry, n, tracker, locs)

	srv := httptest.NewServer(router.New(log, s, router.Options{
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}),
	}))
	t.Cleanup(srv.Close)

	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, srv.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func date(days int) string {
	return availability.Day(time.Now()).AddDate(0, 0, days).Format(api.DateLayout)
}

func TestCalendarRoutes(t *testing.T) {
	t.Parallel()

	srv := newServer(t)

	code, body := do(t, srv, http.MethodPost, "/calendars", api.CalendarInitRequest{ResourceID: "room-7", ResourceType: "hotel_room"})
	require.Equal(t, http.StatusCreated, code)
	assert.Empty(t, errorCode(body))

	code, body = do(t, srv, http.MethodPost, "/calendars", api.CalendarInitRequest{ResourceID: "room-7", ResourceType: "hotel_room"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", errorCode(body))

	code, body = do(t, srv, http.MethodGet, "/calendars/room-7/availability?start="+date(1)+"&end="+date(3), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["available"])

	code, body = do(t, srv, http.MethodGet, "/calendars/room-7/availability?start="+date(3)+"&end="+date(1), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_RANGE", errorCode(body))

	code, _ = do(t, srv, http.MethodPost, "/calendars/room-7/blocks", api.BlockRequest{StartDate: date(1), EndDate: date(1), Reason: "maintenance"})
	require.Equal(t, http.StatusOK, code)

	code, body = do(t, srv, http.MethodGet, "/calendars/room-7/availability?start="+date(1)+"&end="+date(3), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["available"])

	code, body = do(t, srv, http.MethodDelete, "/calendars/room-7/blocks?start="+date(0)+"&end="+date(5), nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["days"])

	code, body = do(t, srv, http.MethodGet, "/calendars/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestBookingRoutes(t *testing.T) {
	t.Parallel()

	srv := newServer(t)

	code, _ := do(t, srv, http.MethodPost, "/calendars", api.CalendarInitRequest{ResourceID: "car-9", ResourceType: "car"})
	require.Equal(t, http.StatusCreated, code)

	code, body := do(t, srv, http.MethodPost, "/bookings", api.BookingRequest{ResourceID: "car-9", UserID: "u1", StartDate: date(2), EndDate: date(4)})
	require.Equal(t, http.StatusCreated, code)
	booked := body["booking"].(map[string]any)
	id := booked["id"].(string)
	assert.Equal(t, "pending", booked["status"])

	code, body = do(t, srv, http.MethodPost, "/bookings", api.BookingRequest{ResourceID: "car-9", UserID: "u2", StartDate: date(3), EndDate: date(5)})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "DATES_NOT_AVAILABLE", errorCode(body))

	code, body = do(t, srv, http.MethodPost, "/bookings", api.BookingRequest{ResourceID: "car-9", UserID: "u2", StartDate: "next week", EndDate: date(5)})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_RANGE", errorCode(body))
	assert.Contains(t, body["error"].(map[string]any)["message"], "valid dates")

	code, body = do(t, srv, http.MethodPut, "/bookings/"+id+"/status", api.BookingStatusRequest{Status: "completed"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ILLEGAL_TRANSITION", errorCode(body))

	code, _ = do(t, srv, http.MethodPut, "/bookings/"+id+"/status", api.BookingStatusRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, code)

	code, body = do(t, srv, http.MethodGet, "/bookings/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "confirmed", body["booking"].(map[string]any)["status"])

	code, body = do(t, srv, http.MethodGet, "/bookings?user_id=u1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["bookings"], 1)

	code, _ = do(t, srv, http.MethodGet, "/bookings", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, srv, http.MethodGet, "/bookings/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTrackingRoutes(t *testing.T) {
	t.Parallel()

	srv := newServer(t)

	do(t, srv, http.MethodPost, "/calendars", api.CalendarInitRequest{ResourceID: "bike-3", ResourceType: "bike"})
	code, _ := do(t, srv, http.MethodPost, "/resources/bike-3/location", api.LocationReportRequest{
		Location: api.Location{Latitude: 52.52, Longitude: 13.405},
	})
	require.Equal(t, http.StatusNoContent, code)

	code, body := do(t, srv, http.MethodPost, "/geofences", api.GeofenceRequest{
		ResourceID: "bike-3", Kind: "zone_exit", Latitude: 52.52, Longitude: 13.405, RadiusMeters: 500,
	})
	require.Equal(t, http.StatusCreated, code)
	assert.NotEmpty(t, body["geofence"])

	code, _ = do(t, srv, http.MethodPost, "/geofences", api.GeofenceRequest{ResourceID: "bike-3", Kind: "teleport", RadiusMeters: 5})
	assert.Equal(t, http.StatusBadRequest, code)

	_, body = do(t, srv, http.MethodPost, "/bookings", api.BookingRequest{ResourceID: "bike-3", UserID: "u1", StartDate: date(0), EndDate: date(1)})
	id := body["booking"].(map[string]any)["id"].(string)
	do(t, srv, http.MethodPut, "/bookings/"+id+"/status", api.BookingStatusRequest{Status: "confirmed"})
	code, _ = do(t, srv, http.MethodPut, "/bookings/"+id+"/status", api.BookingStatusRequest{Status: "active"})
	require.Equal(t, http.StatusOK, code)

	code, body = do(t, srv, http.MethodGet, "/tracking/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "active", body["session"].(map[string]any)["status"])

	code, body = do(t, srv, http.MethodPost, "/tracking/"+id+"/pause", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paused", body["session"].(map[string]any)["status"])

	code, body = do(t, srv, http.MethodPost, "/tracking/"+id+"/resume", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "active", body["session"].(map[string]any)["status"])

	code, body = do(t, srv, http.MethodGet, "/resources/bike-3/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "booked", body["resource"].(map[string]any)["status"])

	code, _ = do(t, srv, http.MethodGet, "/tracking/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestResourceRoutes(t *testing.T) {
	t.Parallel()

	srv := newServer(t)

	code, _ := do(t, srv, http.MethodPut, "/resources/scooter-1/status", api.ResourceStatusRequest{
		ResourceType: "scooter",
		Status:       "available",
		Location:     &api.Location{Latitude: 48.857, Longitude: 2.352},
	})
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, srv, http.MethodPut, "/resources/scooter-1/status", api.ResourceStatusRequest{Status: "flying"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := do(t, srv, http.MethodGet, "/resources?type=scooter&lat=48.8566&lng=2.3522&max_distance=5", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["resources"], 1)

	code, body = do(t, srv, http.MethodGet, "/resources?type=scooter&lat=40.7128&lng=-74.006&max_distance=5", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["resources"])

	code, _ = do(t, srv, http.MethodGet, "/resources?type=scooter&lat=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, srv, http.MethodGet, "/resources/ghost/status", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsAndCORS(t *testing.T) {
	t.Parallel()

	srv := newServer(t)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/bookings", nil)
	require.NoError(t, err)
	preflight, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer preflight.Body.Close()
	assert.Equal(t, http.StatusOK, preflight.StatusCode)
}

func TestSubscriptionStream(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/subscriptions/stream?user_id=u1&type=bike&lat=48.8566&lng=2.3522&max_distance=50"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first notifier.Update
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, notifier.ReasonInitial, first.Reason)
	assert.Empty(t, first.Resources)

	code, _ := do(t, srv, http.MethodPut, "/resources/bike-1/status", api.ResourceStatusRequest{
		ResourceType: "bike",
		Status:       "available",
		Location:     &api.Location{Latitude: 48.86, Longitude: 2.35},
	})
	require.Equal(t, http.StatusOK, code)

	var change notifier.Update
	require.NoError(t, conn.ReadJSON(&change))
	assert.Equal(t, notifier.ReasonChange, change.Reason)
	require.Len(t, change.Resources, 1)
	assert.Equal(t, "bike-1", change.Resources[0].ResourceID)
	assert.Equal(t, first.SubscriptionID, change.SubscriptionID)
}

func TestSubscriptionStreamRejectsBadFilters(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/subscriptions/stream?user_id=u1"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
