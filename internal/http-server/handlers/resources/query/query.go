package query

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

type ResourceQuerier interface {
	QueryResources(ctx context.Context, q api.ResourceQuery) ([]models.ResourceStatus, error)
}

type Response struct {
	response.Response
	Resources []models.ResourceStatus `json:"resources"`
}

func New(log *slog.Logger, querier ResourceQuerier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resources.query.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		q, err := api.ParseResourceQuery(r.URL.Query())
		if err != nil {
			log.Error("Failed to parse query", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), err.Error()))
			return
		}

		resources, err := querier.QueryResources(r.Context(), q)

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("invalid query", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "type is required, lat and lng go together"))
			return
		}

		if err != nil {
			log.Error("Failed to query resources", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to query resources"))
			return
		}

		log.Info("Resources queried", slog.String("type", q.ResourceType), slog.Int("count", len(resources)))
		render.JSON(w, r, Response{Resources: resources})
	}
}
