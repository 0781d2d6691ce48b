// Package stream serves resource status subscriptions over a websocket.
//
// The subscription is registered before the upgrade so that bad filters are
// answered with a plain JSON 400. Once upgraded, every notifier.Update is
// written as one JSON text frame until the client goes away or the server
// shuts down.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"availability-service/api"
	"availability-service/internal/models"
	"availability-service/internal/notifier"
	"availability-service/pkg/response"
	"availability-service/pkg/sl"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Subscriber interface {
	Subscribe(ctx context.Context, userID string, q api.ResourceQuery) (models.Subscription, <-chan notifier.Update, error)
	Unsubscribe(ctx context.Context, id string) error
}

func New(log *slog.Logger, subscriber Subscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.subscriptions.stream.New"

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

		userID := r.URL.Query().Get("user_id")

		sub, updates, err := subscriber.Subscribe(r.Context(), userID, q)

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("invalid subscription", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "type is required, lat and lng go together"))
			return
		}

		if err != nil {
			log.Error("Failed to subscribe", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to subscribe"))
			return
		}

		log = log.With(slog.String("subscription_id", sub.ID))

		defer func() {
			if err := subscriber.Unsubscribe(context.Background(), sub.ID); err != nil && !errors.Is(err, response.ErrNotFound) {
				log.Error("Failed to unsubscribe", sl.Err(err))
			}
		}()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied to the client.
			log.Error("Failed to upgrade connection", sl.Err(err))
			return
		}
		defer conn.Close()

		log.Info("Subscription stream opened", slog.String("resource_type", sub.ResourceType))

		closed := make(chan struct{})
		go readPump(conn, closed)

		ping := time.NewTicker(pingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-closed:
				log.Info("Subscription stream closed by client")
				return

			case <-r.Context().Done():
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return

			case u, ok := <-updates:
				if !ok {
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "subscription closed"))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(u); err != nil {
					log.Warn("Failed to write update", sl.Err(err))
					return
				}

			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					log.Warn("Failed to ping client", sl.Err(err))
					return
				}
			}
		}
	}
}

// readPump discards client frames so control messages are processed, and
// closes done when the connection fails.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
