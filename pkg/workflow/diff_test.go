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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaflow/mediaflow/pkg/errors"
)

func diffContext(chain []string, statuses map[string]StageStatus) *Context {
	c := NewContext("wf-d", InputParams{VideoPath: "v.mp4", WorkflowChain: chain}, "/tmp/wf-d")
	for stage, status := range statuses {
		c.SetStage(stage, &StageExecution{Status: status})
	}
	return c
}

func TestDiffFullExecutesEverything(t *testing.T) {
	res, err := Diff(nil, []string{"a.x", "b.y"}, ModeFull)
	require.NoError(t, err)
	assert.Empty(t, res.TasksToSkip)
	assert.Equal(t, []string{"a.x", "b.y"}, res.TasksToExecute)
}

func TestDiffEmptyChainRejected(t *testing.T) {
	for _, mode := range []ExecutionMode{ModeFull, ModeIncremental, ModeRetry} {
		_, err := Diff(diffContext(nil, nil), nil, mode)
		var valErr *errors.ValidationError
		require.ErrorAs(t, err, &valErr, "mode %s", mode)
		assert.Equal(t, "workflow_chain", valErr.Field)
	}
}

func TestDiffIncrementalAppendsTail(t *testing.T) {
	c := diffContext([]string{"a.x"}, map[string]StageStatus{"a.x": StatusSuccess})

	res, err := Diff(c, []string{"a.x", "b.y"}, ModeIncremental)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.x"}, res.TasksToSkip)
	assert.Equal(t, []string{"b.y"}, res.TasksToExecute)
}

func TestDiffIncrementalIdenticalChainIsNoOp(t *testing.T) {
	chain := []string{"a.x", "b.y"}
	c := diffContext(chain, map[string]StageStatus{"a.x": StatusSuccess, "b.y": StatusSuccess})

	res, err := Diff(c, chain, ModeIncremental)
	require.NoError(t, err)
	assert.Equal(t, chain, res.TasksToSkip)
	assert.Empty(t, res.TasksToExecute)
}

func TestDiffIncrementalNonPrefixRejected(t *testing.T) {
	c := diffContext([]string{"a.x", "b.y"}, map[string]StageStatus{
		"a.x": StatusSuccess, "b.y": StatusSuccess,
	})

	_, err := Diff(c, []string{"a.x", "c.z"}, ModeIncremental)
	var valErr *errors.ValidationError
	require.ErrorAs(t, err, &valErr)
	// The error cites both chains so the client can see the divergence.
	assert.Contains(t, valErr.Message, "a.x, c.z")
	assert.Contains(t, valErr.Message, "a.x, b.y")
}

func TestDiffIncrementalFailedStageDirectsToRetry(t *testing.T) {
	c := diffContext([]string{"a.x", "b.y"}, map[string]StageStatus{
		"a.x": StatusSuccess, "b.y": StatusFailed,
	})

	_, err := Diff(c, []string{"a.x", "b.y", "c.z"}, ModeIncremental)
	var valErr *errors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Suggestion, "retry")
}

func TestDiffRetrySkipsSuccessPrefix(t *testing.T) {
	c := diffContext([]string{"a.x", "b.y", "c.z"}, map[string]StageStatus{
		"a.x": StatusSuccess, "b.y": StatusFailed,
	})

	res, err := Diff(c, []string{"a.x", "b.y", "c.z"}, ModeRetry)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.x"}, res.TasksToSkip)
	assert.Equal(t, []string{"b.y", "c.z"}, res.TasksToExecute)
}

func TestDiffRetryAllSuccessfulIsEmpty(t *testing.T) {
	c := diffContext([]string{"a.x", "b.y"}, map[string]StageStatus{
		"a.x": StatusSuccess, "b.y": StatusSuccess,
	})

	res, err := Diff(c, []string{"a.x", "b.y"}, ModeRetry)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.x", "b.y"}, res.TasksToSkip)
	assert.Empty(t, res.TasksToExecute)
}

func TestDiffRetryUnattemptedChainExecutesAll(t *testing.T) {
	c := diffContext([]string{"a.x"}, nil)

	res, err := Diff(c, []string{"a.x", "b.y"}, ModeRetry)
	require.NoError(t, err)
	assert.Empty(t, res.TasksToSkip)
	assert.Equal(t, []string{"a.x", "b.y"}, res.TasksToExecute)
}

func TestDiffRetryChainReplacementAllowed(t *testing.T) {
	// Retry has no prefix requirement: the submitted chain becomes canonical.
	c := diffContext([]string{"a.x", "b.y"}, map[string]StageStatus{
		"a.x": StatusSuccess, "b.y": StatusFailed,
	})

	res, err := Diff(c, []string{"a.x", "d.w"}, ModeRetry)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.x"}, res.TasksToSkip)
	assert.Equal(t, []string{"d.w"}, res.TasksToExecute)
}
