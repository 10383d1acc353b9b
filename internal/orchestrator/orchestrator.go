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

// Package orchestrator implements the create/incremental/retry protocol:
// the critical section that reads the workflow record, diffs the submitted
// chain against it, merges parameters, persists, and dispatches — all under
// the per-workflow mutex so concurrent requests for the same workflow
// serialize.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mediaflow/mediaflow/internal/broker"
	"github.com/mediaflow/mediaflow/internal/metrics"
	"github.com/mediaflow/mediaflow/internal/state"
	"github.com/mediaflow/mediaflow/pkg/errors"
	"github.com/mediaflow/mediaflow/pkg/workflow"
)

// Request is a parsed orchestration submission. Defaults are applied by
// normalize: mode full, strategy merge.
type Request struct {
	// VideoPath is the input media; required iff Mode is full.
	VideoPath string

	// WorkflowID targets an existing workflow; required iff Mode is not full.
	WorkflowID string

	// Mode selects full, incremental, or retry.
	Mode workflow.ExecutionMode

	// MergeStrategy governs how NodeParams combine with stored ones.
	MergeStrategy workflow.MergeStrategy

	// Chain is the submitted stage list.
	Chain []string

	// NodeParams carries per-stage parameters.
	NodeParams workflow.NodeParams

	// InputData carries workflow-level scalar inputs.
	InputData map[string]any
}

// Response is the orchestration outcome returned to the client.
type Response struct {
	WorkflowID     string `json:"workflow_id"`
	ExecutionMode  string `json:"execution_mode"`
	TasksTotal     int    `json:"tasks_total"`
	TasksSkipped   int    `json:"tasks_skipped"`
	TasksToExecute int    `json:"tasks_to_execute"`
	Message        string `json:"message"`
}

// Orchestrator executes orchestration requests against the state store and
// the broker.
type Orchestrator struct {
	store       state.Store
	locker      state.Locker
	broker      broker.Broker
	storageRoot string
	lockTTL     time.Duration
	contextTTL  time.Duration
	logger      *slog.Logger
}

// Options configures an Orchestrator.
type Options struct {
	// StorageRoot is the base directory for per-workflow shared storage.
	StorageRoot string

	// LockTTL bounds the critical section (default 30s).
	LockTTL time.Duration

	// ContextTTL is the record lifetime, refreshed on mutation (default 7d).
	ContextTTL time.Duration
}

// New creates an Orchestrator.
func New(store state.Store, locker state.Locker, b broker.Broker, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.ContextTTL <= 0 {
		opts.ContextTTL = 7 * 24 * time.Hour
	}
	return &Orchestrator{
		store:       store,
		locker:      locker,
		broker:      b,
		storageRoot: opts.StorageRoot,
		lockTTL:     opts.LockTTL,
		contextTTL:  opts.ContextTTL,
		logger:      logger,
	}
}

// normalize applies defaults and checks mode-vs-field consistency.
func (r *Request) normalize() error {
	if r.Mode == "" {
		r.Mode = workflow.ModeFull
	}
	if !r.Mode.Valid() {
		return &errors.ValidationError{
			Field:      "execution_mode",
			Message:    fmt.Sprintf("unsupported mode %q", r.Mode),
			Suggestion: "use full, incremental, or retry",
		}
	}
	if r.MergeStrategy == "" {
		r.MergeStrategy = workflow.StrategyMerge
	}
	if !r.MergeStrategy.Valid() {
		return &errors.ValidationError{
			Field:      "param_merge_strategy",
			Message:    fmt.Sprintf("unsupported strategy %q", r.MergeStrategy),
			Suggestion: "use merge, override, or strict",
		}
	}

	if r.Mode == workflow.ModeFull {
		if r.VideoPath == "" {
			return &errors.ValidationError{
				Field:   "video_path",
				Message: "video_path is required in full mode",
			}
		}
		if r.WorkflowID != "" {
			return &errors.ValidationError{
				Field:      "workflow_id",
				Message:    "workflow_id must not be supplied in full mode",
				Suggestion: "full mode always creates a new workflow; use incremental or retry to address an existing one",
			}
		}
		return nil
	}

	if r.WorkflowID == "" {
		return &errors.ValidationError{
			Field:   "workflow_id",
			Message: fmt.Sprintf("workflow_id is required in %s mode", r.Mode),
		}
	}
	return nil
}

// Run executes the orchestration protocol and returns the dispatch counts.
// Every failure branch leaves the stored context untouched.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*Response, error) {
	if err := req.normalize(); err != nil {
		metrics.Requests.WithLabelValues(string(req.Mode), "rejected").Inc()
		return nil, err
	}

	var resp *Response
	var err error
	if req.Mode == workflow.ModeFull {
		resp, err = o.runFull(ctx, req)
	} else {
		resp, err = o.runExisting(ctx, req)
	}

	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	metrics.Requests.WithLabelValues(string(req.Mode), outcome).Inc()
	return resp, err
}

func (o *Orchestrator) runFull(ctx context.Context, req *Request) (*Response, error) {
	diff, err := workflow.Diff(nil, req.Chain, workflow.ModeFull)
	if err != nil {
		return nil, err
	}

	workflowID := uuid.NewString()
	layoutRoot, err := o.createStorageDir(workflowID)
	if err != nil {
		return nil, err
	}

	wc := workflow.NewContext(workflowID, workflow.InputParams{
		VideoPath:     req.VideoPath,
		WorkflowChain: append([]string(nil), req.Chain...),
		NodeParams:    req.NodeParams,
		InputData:     req.InputData,
	}, layoutRoot)

	if err := o.store.Create(ctx, wc); err != nil {
		return nil, err
	}
	if err := o.dispatch(ctx, wc, diff.TasksToExecute); err != nil {
		return nil, err
	}

	metrics.WorkflowsCreated.Inc()
	o.logger.Info("workflow created",
		slog.String("workflow_id", workflowID),
		slog.Int("stages", len(req.Chain)))

	return &Response{
		WorkflowID:     workflowID,
		ExecutionMode:  string(workflow.ModeFull),
		TasksTotal:     len(req.Chain),
		TasksToExecute: len(diff.TasksToExecute),
		Message:        "workflow created and dispatched",
	}, nil
}

func (o *Orchestrator) runExisting(ctx context.Context, req *Request) (*Response, error) {
	token, err := o.locker.AcquireLock(ctx, req.WorkflowID, o.lockTTL)
	if err != nil {
		return nil, err
	}
	if token == "" {
		metrics.LockContention.Inc()
		return nil, &errors.ConflictError{
			Resource: "workflow",
			ID:       req.WorkflowID,
			Message:  "another orchestration request is in flight; retry shortly",
		}
	}
	defer o.locker.ReleaseLock(ctx, req.WorkflowID, token)

	wc, err := o.store.Get(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(wc.SharedStoragePath); statErr != nil {
		return nil, &errors.GoneError{
			Resource: "workflow",
			ID:       req.WorkflowID,
			Path:     wc.SharedStoragePath,
		}
	}

	diff, err := workflow.Diff(wc, req.Chain, req.Mode)
	if err != nil {
		return nil, err
	}

	merged, err := workflow.MergeNodeParams(wc.InputParams.NodeParams, req.NodeParams, req.MergeStrategy, o.logger)
	if err != nil {
		return nil, err
	}

	// The submitted chain becomes canonical, in retry mode too.
	wc.InputParams.WorkflowChain = append([]string(nil), req.Chain...)
	wc.InputParams.NodeParams = merged
	mergeInputData(wc, req.InputData)
	if req.Mode == workflow.ModeRetry {
		wc.Error = ""
	}

	if err := o.store.Update(ctx, wc); err != nil {
		return nil, err
	}

	resp := &Response{
		WorkflowID:     wc.WorkflowID,
		ExecutionMode:  string(req.Mode),
		TasksTotal:     len(req.Chain),
		TasksSkipped:   len(diff.TasksToSkip),
		TasksToExecute: len(diff.TasksToExecute),
	}

	if len(diff.TasksToExecute) == 0 {
		resp.Message = "nothing to execute; all stages already successful"
		o.logger.Info("orchestration no-op",
			slog.String("workflow_id", wc.WorkflowID),
			slog.String("mode", string(req.Mode)))
		return resp, nil
	}

	if err := o.dispatch(ctx, wc, diff.TasksToExecute); err != nil {
		return nil, err
	}

	resp.Message = fmt.Sprintf("dispatched %d of %d stages", len(diff.TasksToExecute), len(req.Chain))
	o.logger.Info("workflow dispatched",
		slog.String("workflow_id", wc.WorkflowID),
		slog.String("mode", string(req.Mode)),
		slog.Int("skipped", len(diff.TasksToSkip)),
		slog.Int("to_execute", len(diff.TasksToExecute)))
	return resp, nil
}

// Status returns the persisted context. A recorded workflow-level error does
// not hide the record; absence alone is 404.
func (o *Orchestrator) Status(ctx context.Context, workflowID string) (*workflow.Context, error) {
	return o.store.Get(ctx, workflowID)
}

// Delete removes the workflow record. In-flight stage tasks observe the
// absence at pickup and halt.
func (o *Orchestrator) Delete(ctx context.Context, workflowID string) error {
	return o.store.Delete(ctx, workflowID)
}

func (o *Orchestrator) createStorageDir(workflowID string) (string, error) {
	path := filepath.Join(o.storageRoot, workflowID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating shared storage for workflow %s", workflowID)
	}
	return path, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, wc *workflow.Context, stages []string) error {
	sigs, err := broker.BuildChain(wc, stages)
	if err != nil {
		return err
	}
	if err := broker.Dispatch(ctx, o.broker, sigs); err != nil {
		return err
	}
	metrics.TasksDispatched.WithLabelValues(sigs[0].Queue).Inc()
	return nil
}

// mergeInputData unions submitted input data into the context, new values
// winning on collision.
func mergeInputData(wc *workflow.Context, submitted map[string]any) {
	if len(submitted) == 0 {
		return
	}
	if wc.InputParams.InputData == nil {
		wc.InputParams.InputData = make(map[string]any, len(submitted))
	}
	for k, v := range submitted {
		wc.InputParams.InputData[k] = v
	}
}
