// Package factory builds the configured key-value storage driver.
package factory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"availability-service/internal/config"
	"availability-service/internal/storage"
	"availability-service/internal/storage/memory"
	"availability-service/internal/storage/postgres"
	"availability-service/internal/storage/redis"
	"availability-service/pkg/sl"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func New(ctx context.Context, log *slog.Logger, cfg config.Storage) (storage.KV, error) {
	const op = "storage.factory.New"

	switch cfg.Driver {
	case "memory":
		return memory.New(), nil

	case "redis":
		s := redis.New(cfg.RedisAddr)
		if err := waitReady(ctx, log, s, cfg.ConnectTimeout); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil

	case "postgres":
		s, err := postgres.New(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := waitReady(ctx, log, s, cfg.ConnectTimeout); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil
	}

	return nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.Driver)
}

// waitReady pings the backend with exponential backoff until it answers or
// the connect timeout elapses.
func waitReady(ctx context.Context, log *slog.Logger, p pinger, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := p.Ping(pingCtx); err != nil {
			log.Warn("Storage not ready", slog.Int("attempt", attempt), sl.Err(err))
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(timeout),
	)

	return err
}
