// Command analytics starts the standalone analytics aggregation service.
//
// It consumes network events from Kafka, aggregates them in memory (request
// counts, latency percentiles, cache hit rate, top queries, references and
// neighbour terms) and exposes GET /api/v1/analytics for dashboards. When
// Postgres is enabled, snapshots are persisted periodically and served from
// GET /api/v1/analytics/snapshots.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	if !cfg.Kafka.Enabled {
		slog.Error("standalone analytics requires kafka.enabled")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	agg := analytics.NewAggregator(cfg.Analytics, m)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.NetworkEvents, analytics.HandleEvent(agg))

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("consumer error", "error", err)
			stop()
		}
	}()
	slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.NetworkEvents, "group", cfg.Kafka.ConsumerGroup)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		select {
		case <-consumerDone:
			return health.ComponentHealth{Status: health.StatusDown, Message: "consumer stopped"}
		default:
			return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
		}
	})

	var snapshots analytics.SnapshotLister
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		checker.Register("postgres", health.PingCheck(pg.Ping, false))

		store, err := aggregator.NewStore(ctx, pg)
		if err != nil {
			slog.Error("failed to prepare analytics store", "error", err)
			os.Exit(1)
		}
		snapshots = store
		done := aggregator.RunPeriodic(ctx, store, agg, cfg.Analytics.SnapshotInterval)
		defer func() { <-done }()
		slog.Info("analytics snapshots enabled", "interval", cfg.Analytics.SnapshotInterval)
	}

	mux := http.NewServeMux()
	analytics.NewHandler(agg, snapshots).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Metrics(m, "/api/v1/analytics", "/api/v1/analytics/snapshots", "/health/live", "/health/ready"),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		stop()
	}

	<-consumerDone
	slog.Info("analytics service stopped")
}
