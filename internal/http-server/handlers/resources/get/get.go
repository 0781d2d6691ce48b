package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"availability-service/internal/models"
	"availability-service/pkg/response"
	"availability-service/pkg/sl"
)

type StatusGetter interface {
	GetResourceStatus(ctx context.Context, resourceID string) (*models.ResourceStatus, error)
}

type Response struct {
	response.Response
	Resource *models.ResourceStatus `json:"resource,omitempty"`
}

func New(log *slog.Logger, getter StatusGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resources.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		rs, err := getter.GetResourceStatus(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found", slog.String("resource_id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to get resource status", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get resource status"))
			return
		}

		render.JSON(w, r, Response{Resource: rs})
	}
}
