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

package workflow

import (
	"fmt"
	"strings"

	"github.com/mediaflow/mediaflow/pkg/errors"
)

// DiffResult is the outcome of comparing a submitted chain against the
// recorded execution trace.
type DiffResult struct {
	// TasksToSkip are stages whose recorded SUCCESS is honored.
	TasksToSkip []string

	// TasksToExecute are stages to dispatch, in chain order. Empty means
	// nothing to do: the orchestration layer responds success without
	// dispatching.
	TasksToExecute []string
}

// Diff computes the skip and execute sets for a submitted chain under the
// given mode. The context may be nil only for ModeFull.
//
// Admissibility rules:
//   - every mode rejects an empty chain
//   - incremental requires the recorded chain to be a prefix of the
//     submitted chain (equality allowed, so re-submitting an applied
//     request diffs to empty) and every recorded stage to be SUCCESS
//   - retry accepts any chain; it skips the longest success prefix and
//     re-executes from the first non-SUCCESS stage onward
func Diff(c *Context, submitted []string, mode ExecutionMode) (*DiffResult, error) {
	if err := ValidateChain(submitted); err != nil {
		return nil, err
	}

	switch mode {
	case ModeFull:
		return &DiffResult{TasksToExecute: append([]string(nil), submitted...)}, nil

	case ModeIncremental:
		return diffIncremental(c, submitted)

	case ModeRetry:
		return diffRetry(c, submitted), nil

	default:
		return nil, &errors.ValidationError{
			Field:   "execution_mode",
			Message: fmt.Sprintf("unsupported mode %q", mode),
		}
	}
}

func diffIncremental(c *Context, submitted []string) (*DiffResult, error) {
	recorded := c.InputParams.WorkflowChain
	if !HasPrefix(submitted, recorded) {
		return nil, &errors.ValidationError{
			Field: "workflow_chain",
			Message: fmt.Sprintf("incremental chain [%s] does not extend recorded chain [%s]",
				strings.Join(submitted, ", "), strings.Join(recorded, ", ")),
			Suggestion: "an incremental submission must repeat the recorded chain and append new stages",
		}
	}
	for _, stage := range recorded {
		if !c.StageSucceeded(stage) {
			return nil, &errors.ValidationError{
				Field:      "execution_mode",
				Message:    fmt.Sprintf("stage %s is not successful; incremental requires a fully successful chain", stage),
				Suggestion: "use execution_mode=retry to re-run failed stages",
			}
		}
	}
	return &DiffResult{
		TasksToSkip:    append([]string(nil), recorded...),
		TasksToExecute: append([]string(nil), submitted[len(recorded):]...),
	}, nil
}

func diffRetry(c *Context, submitted []string) *DiffResult {
	// Skip the longest success prefix; re-execute everything after it.
	// Invariant 2 of the context model guarantees no SUCCESS appears after
	// a non-SUCCESS stage, so prefix scanning is sufficient.
	cut := 0
	for _, stage := range submitted {
		if !c.StageSucceeded(stage) {
			break
		}
		cut++
	}
	return &DiffResult{
		TasksToSkip:    append([]string(nil), submitted[:cut]...),
		TasksToExecute: append([]string(nil), submitted[cut:]...),
	}
}
