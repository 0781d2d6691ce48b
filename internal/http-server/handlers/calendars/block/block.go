package block

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

type DateBlocker interface {
	BlockDates(ctx context.Context, resourceID string, req *api.BlockRequest) (*api.BlockResponse, error)
}

type Request struct {
	api.BlockRequest
}

type Response struct {
	response.Response
	*api.BlockResponse
}

func New(log *slog.Logger, blocker DateBlocker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.calendars.block.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		res, err := blocker.BlockDates(r.Context(), id, &req.BlockRequest)

		if errors.Is(err, response.ErrInvalidRange) {
			log.Error("invalid range", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.INVALID_RANGE), "invalid date range"))
			return
		}

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("invalid block request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "reason must be maintenance or owner"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("calendar not found", slog.String("resource_id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "calendar not found"))
			return
		}

		if err != nil {
			log.Error("Failed to block dates", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to block dates"))
			return
		}

		log.Info("Dates blocked", slog.String("resource_id", id), slog.Int("days", res.Days))
		render.JSON(w, r, Response{BlockResponse: res})
	}
}
