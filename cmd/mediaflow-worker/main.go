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

// mediaflow-worker consumes stage task queues and executes the built-in
// stages through the lifecycle template.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/mediaflow/mediaflow/internal/broker"
	"github.com/mediaflow/mediaflow/internal/config"
	"github.com/mediaflow/mediaflow/internal/executor"
	"github.com/mediaflow/mediaflow/internal/log"
	"github.com/mediaflow/mediaflow/internal/stage"
	"github.com/mediaflow/mediaflow/internal/state"
	"github.com/mediaflow/mediaflow/internal/storage"
)

// Version information (injected via ldflags at build time)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML configuration file")
		storageRoot = flag.String("storage-root", "", "Shared storage root (overrides config)")
		concurrency = flag.Int("concurrency", 0, "Parallel stage invocations (overrides config)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("mediaflow-worker %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if *storageRoot != "" {
		cfg.Storage.Root = *storageRoot
	}
	if *concurrency > 0 {
		cfg.Broker.Concurrency = *concurrency
	}

	registry := executor.NewRegistry()
	for _, s := range []executor.Stage{
		stage.NewProbeMedia(),
		stage.NewExtractAudio(),
	} {
		if err := registry.Register(s); err != nil {
			logger.Error("Failed to register stage", slog.String("stage", s.Name()), slog.Any("error", err))
			os.Exit(1)
		}
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

	taskBroker := broker.NewAsynqBroker(cfg.BrokerRedis(), logger)
	defer taskBroker.Close()

	var objStore storage.ObjectStore
	if cfg.Minio.AutoUpload {
		ms, err := storage.NewMinioStore(pingCtx, cfg.Minio)
		if err != nil {
			logger.Error("Cannot reach object store", slog.Any("error", err))
			os.Exit(1)
		}
		objStore = ms
	}
	uploader := storage.NewUploader(objStore, logger, storage.UploaderOptions{
		Enabled: cfg.Minio.AutoUpload,
		Retries: cfg.Minio.UploadRetries,
		Timeout: cfg.Minio.UploadTimeout,
	})

	runner := executor.NewRunner(registry, store, taskBroker, uploader, cfg.Storage.Root, logger)

	brokerCfg := cfg.BrokerRedis()
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     brokerCfg.Addr,
			Password: brokerCfg.Password,
			DB:       brokerCfg.DB,
		},
		asynq.Config{
			Concurrency: cfg.Broker.Concurrency,
			Queues:      registry.Queues(),
		},
	)

	mux := asynq.NewServeMux()
	for _, name := range registry.Names() {
		mux.Handle(name, runner)
	}

	if err := srv.Start(mux); err != nil {
		logger.Error("Failed to start worker server", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("mediaflow-worker started",
		slog.Any("stages", registry.Names()),
		slog.Int("concurrency", cfg.Broker.Concurrency))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", slog.String("signal", sig.String()))

	srv.Shutdown()
	logger.Info("Shutdown complete")
}
