package location

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

type LocationReporter interface {
	ReportLocation(ctx context.Context, resourceID string, req *api.LocationReportRequest) error
}

type Request struct {
	api.LocationReportRequest
}

func New(log *slog.Logger, reporter LocationReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resources.location.New"

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

		err := reporter.ReportLocation(r.Context(), id, &req.LocationReportRequest)

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("invalid location report", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid location"))
			return
		}

		if err != nil {
			log.Error("Failed to report location", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to report location"))
			return
		}

		log.Debug("Location reported", slog.String("resource_id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}
