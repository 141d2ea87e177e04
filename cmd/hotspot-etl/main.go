package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/accident-hotspot-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/accident-hotspot-service/internal/adapter/kafka"
	"github.com/couchcryptid/accident-hotspot-service/internal/adapter/mapbox"
	"github.com/couchcryptid/accident-hotspot-service/internal/config"
	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"github.com/couchcryptid/accident-hotspot-service/internal/hotspot"
	"github.com/couchcryptid/accident-hotspot-service/internal/observability"
	"github.com/couchcryptid/accident-hotspot-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Cluster centre naming is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, cfg.MapboxRateLimit, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled",
			"cache_size", cfg.MapboxCacheSize,
			"timeout", cfg.MapboxTimeout,
			"rate_limit", cfg.MapboxRateLimit,
		)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	resolver, err := hotspot.NewAreaResolver(cfg.Areas)
	if err != nil {
		logger.Error("invalid area configuration", "error", err)
		os.Exit(1)
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	detector := pipeline.NewDetector(resolver, cfg.Hotspot, geocoder, logger, metrics)

	p := pipeline.New(reader, detector, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, detector, logger)

	logger.Info("hotspot detection configured",
		"algorithm", cfg.Hotspot.Algorithm,
		"features", cfg.Hotspot.Features,
		"standardize", cfg.Hotspot.Standardize,
		"areas", len(cfg.Areas),
		"batch_size", cfg.BatchSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
