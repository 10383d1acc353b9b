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

package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hibiken/asynq"

	"github.com/mediaflow/mediaflow/internal/broker"
	"github.com/mediaflow/mediaflow/internal/metrics"
	"github.com/mediaflow/mediaflow/internal/state"
	"github.com/mediaflow/mediaflow/internal/storage"
	"github.com/mediaflow/mediaflow/pkg/errors"
	"github.com/mediaflow/mediaflow/pkg/workflow"
)

// persistRetries bounds the attempts to write a stage record. On
// exhaustion the result is abandoned; the next orchestration pass observes
// the stage as non-SUCCESS and re-executes it in retry mode.
const persistRetries = 5

// secretKeyMarkers are the substrings that mark a parameter as sensitive.
var secretKeyMarkers = []string{"api_key", "token", "password", "secret"}

// Runner executes stages inside the lifecycle template.
type Runner struct {
	registry    *Registry
	store       state.Store
	broker      broker.Broker
	uploader    *storage.Uploader
	storageRoot string
	logger      *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(registry *Registry, store state.Store, b broker.Broker, uploader *storage.Uploader, storageRoot string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		registry:    registry,
		store:       store,
		broker:      b,
		uploader:    uploader,
		storageRoot: storageRoot,
		logger:      logger,
	}
}

// ProcessTask is the asynq handler: one task, one stage invocation. It
// never reports a recorded stage failure to the broker; only infrastructure
// failures (the record could not be written at all) surface as task errors.
func (r *Runner) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := broker.UnmarshalPayload(t.Payload())
	if err != nil {
		// Malformed payloads cannot succeed on redelivery.
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}
	return r.Run(ctx, payload)
}

// Run executes the head of the payload's pending chain and, on success,
// enqueues the successor with the updated context.
func (r *Runner) Run(ctx context.Context, payload *broker.Payload) error {
	stageName := payload.Pending[0]
	logger := r.logger.With(
		slog.String("workflow_id", payload.Context.WorkflowID),
		slog.String("stage", stageName))

	// The record is authoritative over the payload snapshot: the
	// orchestrator and every predecessor persist before enqueueing, and
	// its absence means the workflow was cancelled or expired mid-chain.
	wc, err := r.loadContext(ctx, payload.Context.WorkflowID)
	if err != nil {
		var notFound *errors.NotFoundError
		if errors.As(err, &notFound) {
			logger.Warn("workflow record gone; halting chain")
			return nil
		}
		return err
	}

	start := time.Now()
	layout := storage.Layout{Root: r.storageRoot, WorkflowID: wc.WorkflowID}

	stage := r.registry.Get(stageName)
	if stage == nil {
		return r.recordFailure(ctx, wc, stageName, nil, start,
			fmt.Errorf("no executor registered for stage %s", stageName))
	}

	// Mark RUNNING so the status endpoint reflects progress. Best-effort:
	// the terminal record below is the one that matters.
	wc.SetStage(stageName, &workflow.StageExecution{Status: workflow.StatusRunning})
	if err := r.store.Update(ctx, wc); err != nil {
		logger.Warn("could not persist RUNNING status", slog.Any("error", err))
	}

	// Resolve the stage's parameters and write them back so the stage body
	// reads resolved values.
	resolved, err := workflow.ResolveParams(wc.InputParams.NodeParams[stageName], wc)
	if err != nil {
		return r.recordFailure(ctx, wc, stageName, nil, start, err)
	}
	if resolved != nil {
		if wc.InputParams.NodeParams == nil {
			wc.InputParams.NodeParams = make(workflow.NodeParams)
		}
		wc.InputParams.NodeParams[stageName] = resolved
	}

	in := &Input{Workflow: wc, Stage: stageName, Params: resolved, Layout: layout}

	if err := stage.ValidateInput(in); err != nil {
		return r.recordFailure(ctx, wc, stageName, resolved, start, err)
	}

	output, err := stage.Execute(ctx, in)
	if err != nil {
		return r.recordFailure(ctx, wc, stageName, resolved, start, err)
	}
	if output == nil {
		output = make(map[string]any)
	}

	// Upload artifacts and inject <field>_minio_url companions. Upload
	// problems are sidelined into the output, never into the status.
	r.uploader.NormalizeOutputs(ctx, layout, stageName, output, stage.CustomPathFields())

	duration := time.Since(start).Seconds()
	wc.SetStage(stageName, &workflow.StageExecution{
		Status:      workflow.StatusSuccess,
		InputParams: Redact(resolved),
		Output:      output,
		Duration:    duration,
	})

	if err := r.persist(ctx, wc); err != nil {
		logger.Error("abandoning stage result: could not persist context", slog.Any("error", err))
		return err
	}

	metrics.StageExecutions.WithLabelValues(stageName, string(workflow.StatusSuccess)).Inc()
	metrics.StageDuration.WithLabelValues(stageName).Observe(duration)
	logger.Info("stage succeeded", slog.Float64("duration_s", duration))

	return r.continueChain(ctx, wc, payload.Pending[1:])
}

// loadContext reads the workflow record with bounded retries on transient
// store failures.
func (r *Runner) loadContext(ctx context.Context, workflowID string) (*workflow.Context, error) {
	var wc *workflow.Context
	op := func() error {
		var err error
		wc, err = r.store.Get(ctx, workflowID)
		if err != nil && !errors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), persistRetries-1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return wc, nil
}

// persist writes the context with bounded retries.
func (r *Runner) persist(ctx context.Context, wc *workflow.Context) error {
	op := func() error {
		err := r.store.Update(ctx, wc)
		if err != nil && !errors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), persistRetries-1), ctx)
	return backoff.Retry(op, policy)
}

// recordFailure writes the FAILED record and the workflow-level error,
// then swallows the stage error: a recorded failure is a handled outcome,
// and redelivering it could not change the result.
func (r *Runner) recordFailure(ctx context.Context, wc *workflow.Context, stageName string, params map[string]any, start time.Time, cause error) error {
	duration := time.Since(start).Seconds()
	wc.SetStage(stageName, &workflow.StageExecution{
		Status:      workflow.StatusFailed,
		InputParams: Redact(params),
		Error:       cause.Error(),
		Duration:    duration,
	})
	wc.Error = fmt.Sprintf("%s failed: %s", stageName, cause.Error())

	if err := r.persist(ctx, wc); err != nil {
		r.logger.Error("could not persist stage failure",
			slog.String("workflow_id", wc.WorkflowID),
			slog.String("stage", stageName),
			slog.Any("error", err))
		return err
	}

	metrics.StageExecutions.WithLabelValues(stageName, string(workflow.StatusFailed)).Inc()
	r.logger.Error("stage failed",
		slog.String("workflow_id", wc.WorkflowID),
		slog.String("stage", stageName),
		slog.Float64("duration_s", duration),
		slog.Any("error", cause))
	return nil
}

// continueChain enqueues the next pending stage with the updated context.
func (r *Runner) continueChain(ctx context.Context, wc *workflow.Context, pending []string) error {
	if len(pending) == 0 {
		r.logger.Info("workflow chain complete", slog.String("workflow_id", wc.WorkflowID))
		return nil
	}
	sigs, err := broker.BuildChain(wc, pending)
	if err != nil {
		return err
	}
	if err := broker.Dispatch(ctx, r.broker, sigs); err != nil {
		// The stage itself succeeded and is recorded; a retry-mode pass
		// will re-dispatch from the next stage.
		return err
	}
	metrics.TasksDispatched.WithLabelValues(sigs[0].Queue).Inc()
	return nil
}

// Redact returns a copy of params with secret-bearing keys masked.
// Key names are matched case-insensitively on the markers api_key, token,
// password, and secret; nested maps are masked recursively.
func Redact(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if isSecretKey(k) {
			out[k] = "***"
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = Redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range secretKeyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
