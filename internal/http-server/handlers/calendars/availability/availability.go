package availability

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

type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, resourceID, start, end string) (*api.AvailabilityResponse, error)
}

type Response struct {
	response.Response
	*api.AvailabilityResponse
}

func New(log *slog.Logger, checker AvailabilityChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.calendars.availability.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		start := r.URL.Query().Get("start")
		end := r.URL.Query().Get("end")

		if start == "" || end == "" {
			log.Error("start or end is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "start and end are required"))
			return
		}

		res, err := checker.CheckAvailability(r.Context(), id, start, end)

		if errors.Is(err, response.ErrInvalidRange) {
			log.Error("invalid range", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.INVALID_RANGE), "invalid date range"))
			return
		}

		if err != nil {
			log.Error("Failed to check availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to check availability"))
			return
		}

		render.JSON(w, r, Response{AvailabilityResponse: res})
	}
}
