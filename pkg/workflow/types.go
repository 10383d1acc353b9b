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

// Package workflow defines the workflow context model shared between the
// orchestration daemon and the stage workers, plus the pure logic that
// operates on it: placeholder resolution, chain diffing, and node-parameter
// merging.
package workflow

import (
	"encoding/json"
	"fmt"
	"time"
)

// StageStatus represents the lifecycle state of one stage attempt.
type StageStatus string

const (
	// StatusPending means the stage has been dispatched but not yet picked up.
	StatusPending StageStatus = "PENDING"
	// StatusRunning means a worker is currently executing the stage.
	StatusRunning StageStatus = "RUNNING"
	// StatusSuccess is the terminal state of a completed stage.
	StatusSuccess StageStatus = "SUCCESS"
	// StatusFailed is the terminal state of a stage whose validation or core
	// logic raised an error.
	StatusFailed StageStatus = "FAILED"
	// StatusSkipped marks a stage the diff engine excluded from re-execution.
	StatusSkipped StageStatus = "SKIPPED"
)

// UnmarshalJSON accepts the legacy COMPLETED value as an alias for SUCCESS.
// SUCCESS is the only form ever written.
func (s *StageStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "COMPLETED" {
		*s = StatusSuccess
		return nil
	}
	*s = StageStatus(raw)
	return nil
}

// Terminal reports whether the status is a terminal state.
func (s StageStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusSkipped
}

// ExecutionMode selects how a submitted chain relates to the recorded one.
type ExecutionMode string

const (
	// ModeFull starts a fresh workflow and executes the whole chain.
	ModeFull ExecutionMode = "full"
	// ModeIncremental appends new stages to a fully successful chain.
	ModeIncremental ExecutionMode = "incremental"
	// ModeRetry re-executes from the first non-successful stage.
	ModeRetry ExecutionMode = "retry"
)

// Valid reports whether the mode is one of the three supported modes.
func (m ExecutionMode) Valid() bool {
	switch m {
	case ModeFull, ModeIncremental, ModeRetry:
		return true
	}
	return false
}

// MergeStrategy selects how submitted node parameters combine with stored ones.
type MergeStrategy string

const (
	// StrategyMerge unions the maps; new values win on collision.
	StrategyMerge MergeStrategy = "merge"
	// StrategyOverride discards stored parameters entirely.
	StrategyOverride MergeStrategy = "override"
	// StrategyStrict fails on any collision where values differ.
	StrategyStrict MergeStrategy = "strict"
)

// Valid reports whether the strategy is supported.
func (s MergeStrategy) Valid() bool {
	switch s {
	case StrategyMerge, StrategyOverride, StrategyStrict:
		return true
	}
	return false
}

// NodeParams maps stage names to their parameter maps. Values may contain
// unresolved `${{ stages.X.output.Y }}` placeholders until stage entry.
type NodeParams map[string]map[string]any

// InputParams holds the client-submitted inputs of a workflow.
type InputParams struct {
	// VideoPath is the original input; a local path or a remote URL.
	VideoPath string `json:"video_path"`

	// WorkflowChain is the currently recorded ordered stage list. It may be
	// extended by incremental runs and replaced wholesale by retry runs.
	WorkflowChain []string `json:"workflow_chain"`

	// NodeParams carries per-stage parameters.
	NodeParams NodeParams `json:"node_params,omitempty"`

	// InputData carries workflow-level scalar inputs consulted by the
	// executors' parameter fallback when a stage parameter is absent.
	InputData map[string]any `json:"input_data,omitempty"`
}

// StageExecution records the last attempt of one stage.
type StageExecution struct {
	Status StageStatus `json:"status"`

	// InputParams is the snapshot of resolved inputs at stage entry,
	// with secret-bearing keys redacted.
	InputParams map[string]any `json:"input_params,omitempty"`

	// Output is the producer-defined result map. Path fields gain a
	// companion <field>_minio_url after successful upload.
	Output map[string]any `json:"output,omitempty"`

	// Error is populated only on FAILED.
	Error string `json:"error,omitempty"`

	// Duration is the wall time of this attempt in seconds.
	Duration float64 `json:"duration,omitempty"`
}

// Context is the single root record of a workflow. It is created at
// workflow start, mutated after every stage, and destroyed by TTL expiry.
type Context struct {
	WorkflowID        string                     `json:"workflow_id"`
	CreateAt          time.Time                  `json:"create_at"`
	InputParams       InputParams                `json:"input_params"`
	SharedStoragePath string                     `json:"shared_storage_path"`
	Stages            map[string]*StageExecution `json:"stages"`

	// Error holds the last fatal workflow-level error. A non-empty value
	// does not make the workflow terminal; retry mode ignores it.
	Error string `json:"error,omitempty"`
}

// NewContext creates a workflow context with an empty stage map.
func NewContext(workflowID string, params InputParams, storagePath string) *Context {
	return &Context{
		WorkflowID:        workflowID,
		CreateAt:          time.Now().UTC(),
		InputParams:       params,
		SharedStoragePath: storagePath,
		Stages:            make(map[string]*StageExecution),
	}
}

// Stage returns the execution record for the named stage, or nil if the
// stage has never been attempted.
func (c *Context) Stage(name string) *StageExecution {
	if c.Stages == nil {
		return nil
	}
	return c.Stages[name]
}

// SetStage writes the execution record for the named stage, replacing any
// previous attempt. Only the last attempt is kept.
func (c *Context) SetStage(name string, exec *StageExecution) {
	if c.Stages == nil {
		c.Stages = make(map[string]*StageExecution)
	}
	c.Stages[name] = exec
}

// StageSucceeded reports whether the named stage has a SUCCESS record.
func (c *Context) StageSucceeded(name string) bool {
	exec := c.Stage(name)
	return exec != nil && exec.Status == StatusSuccess
}

// Marshal serializes the context for persistence and queue transport.
func (c *Context) Marshal() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling workflow context %s: %w", c.WorkflowID, err)
	}
	return data, nil
}

// UnmarshalContext deserializes a context produced by Marshal.
func UnmarshalContext(data []byte) (*Context, error) {
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling workflow context: %w", err)
	}
	if c.Stages == nil {
		c.Stages = make(map[string]*StageExecution)
	}
	return &c, nil
}

// Clone returns a deep copy of the context via JSON round-trip. Used where
// a mutation must not leak into a caller-held snapshot.
func (c *Context) Clone() (*Context, error) {
	data, err := c.Marshal()
	if err != nil {
		return nil, err
	}
	return UnmarshalContext(data)
}
