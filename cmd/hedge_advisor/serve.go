package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"hedge_advisor/internal/advisor"
	"hedge_advisor/internal/infrastructure/health"
	"hedge_advisor/internal/infrastructure/metrics"
	"hedge_advisor/internal/journal"
	"hedge_advisor/internal/pricefeed"
	"hedge_advisor/pkg/liveserver"
	"hedge_advisor/pkg/logging"
	"hedge_advisor/pkg/telemetry"

	"golang.org/x/sync/errgroup"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "configs/hedge_advisor.yaml", "Path to configuration file (empty for defaults)")
	port := fs.String("port", "", "Server port (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Server.Port = *port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	logging.SetGlobalLogger(logger)

	logger.Info("Starting hedge_advisor",
		"version", version,
		"port", cfg.Server.Port,
		"journal", cfg.Journal.Driver,
		"default_profile", cfg.Advisor.DefaultProfile,
		"tracing", cfg.Telemetry.EnableTracing,
		"price_feed_key", cfg.PriceFeed.APIKey.Hint(),
	)

	tel, err := telemetry.Setup(telemetry.Options{
		ServiceName:   cfg.App.Name,
		Version:       version,
		Environment:   cfg.App.Environment,
		EnableMetrics: cfg.Telemetry.EnableMetrics,
		EnableTracing: cfg.Telemetry.EnableTracing,
		Output:        stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	store, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	svc := advisor.NewService(advisor.Options{
		Journal:       store,
		Metrics:       telemetry.GetGlobalMetrics(),
		SweepWorkers:  cfg.Advisor.SweepWorkers,
		SweepMaxSteps: cfg.Advisor.SweepMaxSteps,
	}, logger)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("Failed to close journal", "error", err)
		}
	}()

	hm := health.NewHealthManager(logger, 2*time.Second)
	hm.Register("journal", journalCheck(store))

	hub := liveserver.NewHub(logger)
	server := liveserver.NewServer(hub, svc, logger, cfg.Server.AllowedOrigins)
	server.SetProduction(cfg.Server.Production)
	server.SetMaxConnections(cfg.Server.MaxConnections)
	server.SetRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst)
	server.SetHealth(hm)
	if cfg.PriceFeed.BaseURL != "" {
		timeout := time.Duration(cfg.PriceFeed.TimeoutSeconds) * time.Second
		server.SetPriceFeed(pricefeed.New(cfg.PriceFeed.BaseURL, cfg.PriceFeed.APIKey.Reveal(), timeout, logger))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return server.Start(gctx, cfg.Server.Port)
	})
	if cfg.Telemetry.EnableMetrics && cfg.Telemetry.MetricsPort > 0 {
		ms := metrics.NewServer(cfg.Telemetry.MetricsPort, logger)
		g.Go(func() error {
			return ms.Run(gctx)
		})
	}

	logger.Info("hedge_advisor is running",
		"api_url", fmt.Sprintf("http://localhost%s/api/recommendations", cfg.Server.Port),
		"websocket_url", fmt.Sprintf("ws://localhost%s/ws", cfg.Server.Port),
		"health_url", fmt.Sprintf("http://localhost%s/health", cfg.Server.Port),
	)

	err = g.Wait()
	logger.Info("hedge_advisor stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func journalCheck(store journal.Store) health.CheckFunc {
	if p, ok := store.(pinger); ok {
		return p.Ping
	}
	return func(ctx context.Context) error {
		_, err := store.Recent(ctx, 1)
		return err
	}
}
