// README: Entry point; loads config, wires services, starts HTTP server and
// background planning.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"relaxedrive/internal/audit"
	"relaxedrive/internal/broadcast"
	"relaxedrive/internal/config"
	"relaxedrive/internal/event"
	httptransport "relaxedrive/internal/http"
	"relaxedrive/internal/infra"
	"relaxedrive/internal/modules/driver"
	"relaxedrive/internal/modules/location"
	"relaxedrive/internal/modules/order"
	"relaxedrive/internal/modules/planning"
	"relaxedrive/internal/modules/trip"
	"relaxedrive/internal/resilience"
	"relaxedrive/internal/routing"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB)
	if err != nil {
		logger.Error("database init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Error("redis init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		logger.Error("routing init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	bus := event.NewBus(event.WithLogger(logger))
	defer bus.Close()
	hub := broadcast.NewHub(logger)

	locationStore := location.NewStore(dbPool, redisClient)
	locationSvc := location.NewService(locationStore, logger)

	driverStore := driver.NewStore(dbPool)
	driverSvc := driver.NewService(driverStore, locationSvc, logger)

	tripStore := trip.NewStore(dbPool)
	tripSvc := trip.NewService(tripStore, logger)

	orderStore := order.NewPGStore(dbPool)
	orderSvc := order.NewService(orderStore,
		order.WithRouter(gateway),
		order.WithDrivers(driverSvc),
		order.WithTripRecorder(tripSvc),
		order.WithBus(bus),
		order.WithAudit(audit.NewSlog(logger)),
		order.WithLogger(logger),
	)

	planner := planning.NewPlanner(orderStore, driverSvc, gateway,
		planning.WithWindow(cfg.Planning.Window),
		planning.WithFarETAThreshold(cfg.Planning.FarETAThreshold),
		planning.WithTopDrivers(cfg.Planning.TopDrivers),
		planning.WithLogger(logger),
	)
	trigger := planning.NewTrigger(planner, orderStore,
		planning.WithTick(cfg.Planning.Tick),
		planning.WithBus(bus),
		planning.WithBroadcaster(hub),
		planning.WithOrderLister(orderStore),
		planning.WithTriggerLogger(logger),
	)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Order:    orderSvc,
		Drivers:  driverSvc,
		Location: locationSvc,
		Trips:    tripSvc,
		Planning: trigger,
		Hub:      hub,
		Logger:   logger,
	})

	go hub.Run(ctx)
	go trigger.Run(ctx)

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("dispatch api listening", slog.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newGateway builds the resilient routing stack: Google primary when a key
// is configured, OSRM otherwise, with OSRM always serving as fallback.
func newGateway(cfg config.Config, logger *slog.Logger) (*routing.Gateway, error) {
	osrm := routing.NewOSRMProvider(cfg.Routing.OSRMBaseURL, cfg.Routing.NominatimBaseURL)

	var primary routing.Provider = osrm
	if cfg.Routing.GoogleAPIKey != "" {
		google, err := routing.NewGoogleProvider(cfg.Routing.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		primary = google
	}

	retrier := resilience.NewRetrier(
		resilience.WithRetries(cfg.Resilience.Retries),
		resilience.WithBackoff(cfg.Resilience.Backoff),
	)
	breaker := resilience.NewBreaker(
		resilience.WithThreshold(cfg.Resilience.BreakerThreshold),
		resilience.WithOpenDuration(cfg.Resilience.BreakerOpenFor),
	)

	return routing.NewGateway(primary, osrm,
		routing.WithRetrier(retrier),
		routing.WithBreaker(breaker),
		routing.WithLogger(logger),
	), nil
}
