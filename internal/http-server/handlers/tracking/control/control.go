// Package control serves the pause and resume actions on a tracking session.
package control

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

type Action func(ctx context.Context, bookingID string) (*api.TrackingResponse, error)

type Response struct {
	response.Response
	*api.TrackingResponse
}

// New serves action under the given name, e.g. "pause".
func New(log *slog.Logger, name string, action Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tracking.control.New"

		log := log.With(
			slog.String("op", op),
			slog.String("action", name),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "booking_id")

		res, err := action(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("tracking session not found", slog.String("booking_id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "tracking session not found"))
			return
		}

		if errors.Is(err, response.ErrIllegalTransition) {
			log.Error("illegal transition", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.ILLEGAL_TRANSITION), "tracking session has ended"))
			return
		}

		if err != nil {
			log.Error("Failed to "+name+" tracking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to "+name+" tracking"))
			return
		}

		log.Info("Tracking session updated", slog.String("booking_id", id), slog.String("status", string(res.Session.Status)))
		render.JSON(w, r, Response{TrackingResponse: res})
	}
}
