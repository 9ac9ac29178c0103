package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contentloop/webhook-relay/internal/api"
	"github.com/contentloop/webhook-relay/internal/bus"
	"github.com/contentloop/webhook-relay/internal/config"
	"github.com/contentloop/webhook-relay/internal/engine"
	"github.com/contentloop/webhook-relay/internal/metrics"
	"github.com/contentloop/webhook-relay/internal/queue"
	"github.com/contentloop/webhook-relay/internal/store"
	ws "github.com/contentloop/webhook-relay/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	redisClient, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	registry := prometheus.NewRegistry()
	sink := metrics.NewPrometheusSink(registry, logger)

	hub := ws.NewHub(logger)
	go hub.Run()

	// Delivery pipeline: bus → dispatcher → queue → poller → pool → executor
	workQueue := queue.New(redisClient)

	eventBus := bus.New(logger)
	dispatcher := engine.NewDispatcher(pgStore, pgStore, workQueue, cfg.DedupWindow, sink, logger)
	dispatcher.Register(eventBus)

	executor := engine.NewExecutor(pgStore, workQueue,
		engine.BackoffSchedule(cfg.BackoffSchedule), cfg.DeliveryTimeout, hub, sink, logger)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	pool := queue.NewPool(cfg.NumWorkers, executor, logger)
	pool.Start(workerCtx)

	poller := queue.NewPoller(workQueue, pool, logger)
	go poller.Start(workerCtx)

	router := api.NewRouter(pgStore, workQueue, eventBus, hub, registry, cfg.DefaultRetryBudget)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Stop pulling new work, finish in-flight handlers and attempts.
	// Unexecuted queue items stay in Redis for the next start.
	stopWorkers()
	eventBus.Wait()
	pool.Stop()

	logger.Info("server stopped")
}
