package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"availability-service/api"
	"availability-service/pkg/response"
	"availability-service/pkg/sl"
)

type TrackingGetter interface {
	GetTracking(ctx context.Context, bookingID string) (*api.TrackingResponse, error)
}

type Response struct {
	response.Response
	*api.TrackingResponse
}

func New(log *slog.Logger, getter TrackingGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tracking.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "booking_id")

		res, err := getter.GetTracking(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("tracking session not found", slog.String("booking_id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "tracking session not found"))
			return
		}

		if err != nil {
			log.Error("Failed to get tracking session", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get tracking session"))
			return
		}

		render.JSON(w, r, Response{TrackingResponse: res})
	}
}
