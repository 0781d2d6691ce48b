package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"

	bookingCreate "availability-service/internal/http-server/handlers/bookings/create"
	bookingGet "availability-service/internal/http-server/handlers/bookings/get"
	bookingStatus "availability-service/internal/http-server/handlers/bookings/status"
	calendarAvailability "availability-service/internal/http-server/handlers/calendars/availability"
	calendarBlock "availability-service/internal/http-server/handlers/calendars/block"
	calendarCreate "availability-service/internal/http-server/handlers/calendars/create"
	calendarGet "availability-service/internal/http-server/handlers/calendars/get"
	calendarUnblock "availability-service/internal/http-server/handlers/calendars/unblock"
	geofenceCreate "availability-service/internal/http-server/handlers/geofences/create"
	resourceGet "availability-service/internal/http-server/handlers/resources/get"
	resourceLocation "availability-service/internal/http-server/handlers/resources/location"
	resourceQuery "availability-service/internal/http-server/handlers/resources/query"
	resourceUpdate "availability-service/internal/http-server/handlers/resources/update"
	subscriptionStream "availability-service/internal/http-server/handlers/subscriptions/stream"
	trackingControl "availability-service/internal/http-server/handlers/tracking/control"
	trackingGet "availability-service/internal/http-server/handlers/tracking/get"
	svc "availability-service/internal/service"
	"availability-service/pkg/middleware/mwLogger"
)

type Options struct {
	// MetricsHandler is mounted at MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func New(log *slog.Logger, service *svc.Service, opts Options) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Calendars
	router.Post("/calendars", calendarCreate.New(log, service))
	router.Get("/calendars/{id}", calendarGet.New(log, service))
	router.Get("/calendars/{id}/availability", calendarAvailability.New(log, service))
	router.Post("/calendars/{id}/blocks", calendarBlock.New(log, service))
	router.Delete("/calendars/{id}/blocks", calendarUnblock.New(log, service))

	// Bookings
	router.Post("/bookings", bookingCreate.New(log, service))
	router.Get("/bookings", bookingGet.New(log, service))
	router.Get("/bookings/{id}", bookingGet.New(log, service))
	router.Put("/bookings/{id}/status", bookingStatus.New(log, service))

	// Resources
	router.Get("/resources", resourceQuery.New(log, service))
	router.Get("/resources/{id}/status", resourceGet.New(log, service))
	router.Put("/resources/{id}/status", resourceUpdate.New(log, service))
	router.Post("/resources/{id}/location", resourceLocation.New(log, service))

	// Subscriptions
	router.Get("/subscriptions/stream", subscriptionStream.New(log, service))

	// Tracking
	router.Get("/tracking/{booking_id}", trackingGet.New(log, service))
	router.Post("/tracking/{booking_id}/pause", trackingControl.New(log, "pause", service.PauseTracking))
	router.Post("/tracking/{booking_id}/resume", trackingControl.New(log, "resume", service.ResumeTracking))
	router.Post("/geofences", geofenceCreate.New(log, service))

	if opts.MetricsHandler != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Method(http.MethodGet, path, opts.MetricsHandler)
	}

	return router
}
