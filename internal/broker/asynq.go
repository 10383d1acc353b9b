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

package broker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mediaflow/mediaflow/internal/config"
	"github.com/mediaflow/mediaflow/pkg/errors"
)

// stageTaskTimeout bounds a single stage invocation at the broker level.
// Stage bodies may run for minutes (GPU transcription, OCR over frames);
// anything past this is presumed wedged and re-delivered.
const stageTaskTimeout = 2 * time.Hour

// AsynqBroker dispatches stage tasks over asynq's Redis-backed queues.
// Task type is the stage name; the queue is derived from the stage prefix,
// so each worker service consumes only its own queue.
type AsynqBroker struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewAsynqBroker creates a broker client over the given Redis connection.
func NewAsynqBroker(cfg config.RedisConfig, logger *slog.Logger) *AsynqBroker {
	if logger == nil {
		logger = slog.Default()
	}
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &AsynqBroker{client: client, logger: logger}
}

// Enqueue implements Broker.
//
// Broker-level retry is disabled: the executor template records FAILED
// itself and at-least-once redelivery of a recorded failure would only
// repeat it. Recovery goes through the orchestration retry mode instead.
func (b *AsynqBroker) Enqueue(ctx context.Context, sig Signature) error {
	data, err := sig.Payload.Marshal()
	if err != nil {
		return err
	}

	task := asynq.NewTask(sig.Stage, data)
	info, err := b.client.EnqueueContext(ctx, task,
		asynq.Queue(sig.Queue),
		asynq.MaxRetry(0),
		asynq.Timeout(stageTaskTimeout),
	)
	if err != nil {
		return &errors.TransientError{Op: "broker enqueue", Cause: err}
	}

	b.logger.Info("stage task enqueued",
		slog.String("workflow_id", sig.Payload.Context.WorkflowID),
		slog.String("stage", sig.Stage),
		slog.String("queue", sig.Queue),
		slog.String("task_id", info.ID))
	return nil
}

// Close implements Broker.
func (b *AsynqBroker) Close() error {
	return b.client.Close()
}
