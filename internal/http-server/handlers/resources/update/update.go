package update

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"availability-service/api"
	"availability-service/internal/models"
	"availability-service/pkg/response"
	"availability-service/pkg/sl"
)

type StatusUpdater interface {
	UpdateResourceStatus(ctx context.Context, resourceID string, req *api.ResourceStatusRequest) (*models.ResourceStatus, error)
}

type Request struct {
	api.ResourceStatusRequest
}

type Response struct {
	response.Response
	Resource *models.ResourceStatus `json:"resource,omitempty"`
}

func New(log *slog.Logger, updater StatusUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resources.update.New"

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

		rs, err := updater.UpdateResourceStatus(r.Context(), id, &req.ResourceStatusRequest)

		if errors.Is(err, response.ErrInvalidStatus) {
			log.Error("invalid status", slog.String("status", req.Status))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid status"))
			return
		}

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("invalid status update", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "resource_type is required for unknown resources"))
			return
		}

		if err != nil {
			log.Error("Failed to update resource status", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to update resource status"))
			return
		}

		log.Info("Resource status updated", slog.String("resource_id", id), slog.String("status", string(rs.Status)))
		render.JSON(w, r, Response{Resource: rs})
	}
}
