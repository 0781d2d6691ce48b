package create

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"availability-service/api"
	"availability-service/pkg/response"
	"availability-service/pkg/sl"
)

type CalendarInitializer interface {
	InitializeCalendar(ctx context.Context, req *api.CalendarInitRequest) (*api.CalendarResponse, error)
}

type Request struct {
	api.CalendarInitRequest
}

type Response struct {
	response.Response
	Calendar *api.CalendarResponse `json:"calendar,omitempty"`
}

func New(log *slog.Logger, initializer CalendarInitializer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.calendars.create.New"

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

		if req.ResourceID == "" || req.ResourceType == "" {
			log.Error("resource_id or resource_type is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "resource_id and resource_type are required"))
			return
		}

		cal, err := initializer.InitializeCalendar(r.Context(), &req.CalendarInitRequest)

		if errors.Is(err, response.ErrAlreadyExists) {
			log.Error("calendar already exists", slog.String("resource_id", req.ResourceID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CONFLICT), "calendar already exists"))
			return
		}

		if err != nil {
			log.Error("Failed to initialize calendar", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to initialize calendar"))
			return
		}

		log.Info("Calendar initialized", slog.String("resource_id", cal.ResourceID), slog.Int("days", len(cal.Slots)))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{Calendar: cal})
	}
}
