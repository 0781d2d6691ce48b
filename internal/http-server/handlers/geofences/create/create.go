package create

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"availability-service/api"
	"availability-service/internal/models"
	"availability-service/pkg/response"
	"availability-service/pkg/sl"
)

type GeofenceCreator interface {
	AddGeofence(ctx context.Context, req *api.GeofenceRequest) (*models.Geofence, error)
}

type Request struct {
	api.GeofenceRequest
}

type Response struct {
	response.Response
	Geofence *models.Geofence `json:"geofence,omitempty"`
}

func New(log *slog.Logger, creator GeofenceCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.geofences.create.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		g, err := creator.AddGeofence(r.Context(), &req.GeofenceRequest)

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("invalid geofence", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "resource_id, a known kind and a positive radius are required"))
			return
		}

		if err != nil {
			log.Error("Failed to add geofence", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to add geofence"))
			return
		}

		log.Info("Geofence added", slog.String("geofence_id", g.ID), slog.String("resource_id", g.ResourceID))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{Geofence: g})
	}
}
