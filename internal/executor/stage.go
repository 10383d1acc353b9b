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

// Package executor runs stages inside the fixed lifecycle template:
// validate, resolve parameters, execute core logic, normalize outputs,
// record the attempt, persist, and continue or halt the chain. The
// template is the only place stage status transitions are written; stage
// implementations are leaves that never touch the context record.
package executor

import (
	"context"

	"github.com/mediaflow/mediaflow/internal/storage"
	"github.com/mediaflow/mediaflow/pkg/workflow"
)

// Input is what a stage implementation receives: the live context, its own
// resolved parameters, and the artifact layout for its workflow.
type Input struct {
	// Workflow is the live context. Stages read from it; only the runner
	// writes to it.
	Workflow *workflow.Context

	// Stage is the executing stage's name.
	Stage string

	// Params holds the stage's node parameters with placeholders resolved.
	Params map[string]any

	// Layout derives local artifact paths and object keys.
	Layout storage.Layout
}

// Stage is the contract every worker stage implements. The runner owns the
// lifecycle; a stage only validates, computes, and declares how its
// outputs are classified.
type Stage interface {
	// Name returns the dotted stage name, e.g. "ffmpeg.extract_audio".
	Name() string

	// ValidateInput checks that the stage can run against the given input.
	// A validation error records the attempt as FAILED without invoking
	// the core logic.
	ValidateInput(in *Input) error

	// Execute runs the stage's core logic and returns its raw output map.
	Execute(ctx context.Context, in *Input) (map[string]any, error)

	// CacheKeyFields names the parameters that identify equivalent
	// invocations. Consumed by higher-level deduplication, not by the
	// runner.
	CacheKeyFields() []string

	// RequiredOutputFields names the fields downstream consumers expect.
	// Informational; the runner does not enforce them.
	RequiredOutputFields() []string

	// CustomPathFields maps output fields that hold uploadable artifacts
	// but fall outside the *_path extension rule to their declared file
	// types.
	CustomPathFields() map[string]string
}
