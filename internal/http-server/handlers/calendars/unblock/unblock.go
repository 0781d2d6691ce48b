package unblock

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

type DateUnblocker interface {
	UnblockDates(ctx context.Context, resourceID, start, end string) (*api.BlockResponse, error)
}

type Response struct {
	response.Response
	*api.BlockResponse
}

func New(log *slog.Logger, unblocker DateUnblocker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.calendars.unblock.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		res, err := unblocker.UnblockDates(r.Context(), id, r.URL.Query().Get("start"), r.URL.Query().Get("end"))

		if errors.Is(err, response.ErrInvalidRange) {
			log.Error("invalid range", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.INVALID_RANGE), "invalid date range"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("calendar not found", slog.String("resource_id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "calendar not found"))
			return
		}

		if err != nil {
			log.Error("Failed to unblock dates", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to unblock dates"))
			return
		}

		log.Info("Dates unblocked", slog.String("resource_id", id), slog.Int("days", res.Days))
		render.JSON(w, r, Response{BlockResponse: res})
	}
}
