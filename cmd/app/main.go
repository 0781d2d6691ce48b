package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"availability-service/internal/availability"
	"availability-service/internal/booking"
	"availability-service/internal/config"
	"availability-service/internal/events"
	"availability-service/internal/http-server/router"
	"availability-service/internal/location"
	"availability-service/internal/lock"
	"availability-service/internal/notifier"
	svc "availability-service/internal/service"
	"availability-service/internal/status"
	"availability-service/internal/storage/factory"
	"availability-service/internal/telemetry"
	"availability-service/internal/tracking"
	slogpretty "availability-service/pkg/handlers/slogpretty"
	"availability-service/pkg/sl"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type closer interface {
	Close() error
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.NewProvider(cfg.Metrics.Enabled)
	if err != nil {
		log.Error("Failed to init metrics", sl.Err(err))
		os.Exit(1)
	}

	bookingMetrics, err := telemetry.NewBookingMetrics(provider.MeterProvider)
	if err != nil {
		log.Error("Failed to init booking metrics", sl.Err(err))
		os.Exit(1)
	}
	notifierMetrics, err := telemetry.NewNotifierMetrics(provider.MeterProvider)
	if err != nil {
		log.Error("Failed to init notifier metrics", sl.Err(err))
		os.Exit(1)
	}
	trackingMetrics, err := telemetry.NewTrackingMetrics(provider.MeterProvider)
	if err != nil {
		log.Error("Failed to init tracking metrics", sl.Err(err))
		os.Exit(1)
	}

	storage, err := factory.New(ctx, log, cfg.Storage)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}
	log.Info("Storage ready", slog.String("driver", cfg.Storage.Driver))

	locker, err := setupLocker(cfg)
	if err != nil {
		log.Error("Failed to init lock", sl.Err(err))
		os.Exit(1)
	}

	locations, err := setupLocationStore(cfg)
	if err != nil {
		log.Error("Failed to init location store", sl.Err(err))
		os.Exit(1)
	}

	publisher, err := events.New(cfg.Events)
	if err != nil {
		log.Error("Failed to init event publisher", sl.Err(err))
		os.Exit(1)
	}
	emitter := events.NewEmitter(log, publisher, 0)

	calendars := availability.New(log, storage, availability.WithHorizonDays(cfg.Calendar.HorizonDays))
	registry := status.New(log)

	n := notifier.New(log, registry,
		notifier.WithTickInterval(cfg.Notifier.TickInterval),
		notifier.WithBufferSize(cfg.Notifier.BufferSize),
		notifier.WithMetrics(notifierMetrics),
	)

	tracker := tracking.New(log, locations, registry, calendars,
		tracking.WithSampleInterval(cfg.Tracking.SampleInterval),
		tracking.WithRouteLimit(cfg.Tracking.RouteLimit),
		tracking.WithLocationTimeout(cfg.Tracking.LocationTimeout),
		tracking.WithMetrics(trackingMetrics),
	)

	bookings := booking.New(log, storage, locker, calendars, tracker, registry,
		booking.WithLockTTL(cfg.Lock.TTL),
		booking.WithMetrics(bookingMetrics),
	)

	registry.AddListener(n.OnStatusChange)
	registry.AddListener(emitter.OnStatusChange)
	bookings.AddListener(emitter.OnBooking)
	tracker.AddAlertListener(emitter.OnGeofenceAlert)

	service := svc.NewService(calendars, bookings, registry, n, tracker, locations)

	handler := router.New(log, service, router.Options{
		MetricsHandler: provider.Handler,
		MetricsPath:    cfg.Metrics.Path,
	})

	// Subscription streams set their own write deadlines, so WriteTimeout stays unset.
	serv := &http.Server{
		Addr:        cfg.Address,
		Handler:     handler,
		ReadTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout: cfg.HTTPServer.IdleTimeout,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return n.Run(gctx)
	})

	g.Go(func() error {
		return emitter.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

		if err := serv.Shutdown(sctx); err != nil {
			log.Error("Server shutdown failed", sl.Err(err))
			return err
		}
		log.Info("Server shutdown complete")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Service stopped unexpectedly", sl.Err(err))
	}

	tracker.Shutdown()
	log.Info("Tracking sessions stopped")

	closeAll(log, map[string]closer{
		"storage":   storage,
		"locker":    locker,
		"locations": locations,
		"events":    emitter,
	})

	if err := provider.Shutdown(context.Background()); err != nil {
		log.Error("Failed to shut down metrics", sl.Err(err))
	}

	log.Info("Shutdown finished, server stopped")

}

type lockCloser interface {
	lock.Locker
	closer
}

func setupLocker(cfg *config.Config) (lockCloser, error) {
	if cfg.Lock.Driver == "redis" {
		return lock.NewRedisLock(cfg.Storage.RedisAddr)
	}
	return lock.NewMemoryLock(), nil
}

func setupLocationStore(cfg *config.Config) (location.Store, error) {
	if cfg.Location.Driver == "redis" {
		return location.NewRedisStore(cfg.Storage.RedisAddr, cfg.Location.StaleAfter)
	}
	return location.NewMemoryStore(cfg.Location.StaleAfter), nil
}

func closeAll(log *slog.Logger, closers map[string]closer) {
	for name, c := range closers {
		if c == nil {
			log.Debug("Nothing to close", slog.String("component", name))
			continue
		}
		if err := c.Close(); err != nil {
			log.Error("Failed to close", slog.String("component", name), sl.Err(err))
		} else {
			log.Info("Closed", slog.String("component", name))
		}
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog(os.Stdout)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog(out io.Writer) *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(out)

	return slog.New(handler)
}
