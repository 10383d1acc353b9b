// Copyright 2025 The Mediaflow Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// mediaflowd is the orchestration daemon: it exposes the workflow HTTP API
// and dispatches stage chains to the worker queues.
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
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mediaflow/mediaflow/internal/api"
	"github.com/mediaflow/mediaflow/internal/broker"
	"github.com/mediaflow/mediaflow/internal/config"
	"github.com/mediaflow/mediaflow/internal/log"
	"github.com/mediaflow/mediaflow/internal/orchestrator"
	"github.com/mediaflow/mediaflow/internal/state"
)

// Version information (injected via ldflags at build time)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML configuration file")
		listenAddr  = flag.String("listen", "", "HTTP listen address (overrides config)")
		storageRoot = flag.String("storage-root", "", "Shared storage root (overrides config)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("mediaflowd %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *storageRoot != "" {
		cfg.Storage.Root = *storageRoot
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("Cannot reach state store", slog.String("addr", cfg.Redis.Addr), slog.Any("error", err))
		os.Exit(1)
	}

	store := state.NewRedisStore(client, cfg.ContextTTL)
	locker := state.NewRedisLocker(client, logger)

	taskBroker := broker.NewAsynqBroker(cfg.BrokerRedis(), logger)
	defer taskBroker.Close()

	orch := orchestrator.New(store, locker, taskBroker, orchestrator.Options{
		StorageRoot: cfg.Storage.Root,
		LockTTL:     cfg.LockTTL,
		ContextTTL:  cfg.ContextTTL,
	}, logger)

	router := api.NewRouter(api.RouterConfig{Version: version}, logger)
	router.SetMetricsHandler(promhttp.Handler())
	router.AddHealthCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	api.NewWorkflowsHandler(orch).RegisterRoutes(router.Mux())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mediaflowd listening", slog.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown did not complete cleanly", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
