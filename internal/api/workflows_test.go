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

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaflow/mediaflow/internal/broker"
	"github.com/mediaflow/mediaflow/internal/orchestrator"
	"github.com/mediaflow/mediaflow/internal/state"
	"github.com/mediaflow/mediaflow/pkg/workflow"
)

type apiEnv struct {
	router *Router
	store  state.Store
	locker state.Locker
	broker *broker.MemoryBroker
	root   string
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := state.NewRedisStore(client, time.Hour)
	locker := state.NewRedisLocker(client, nil)
	mb := broker.NewMemoryBroker()
	root := t.TempDir()

	orch := orchestrator.New(store, locker, mb, orchestrator.Options{StorageRoot: root}, nil)
	router := NewRouter(RouterConfig{Version: "test"}, nil)
	NewWorkflowsHandler(orch).RegisterRoutes(router.Mux())

	return &apiEnv{router: router, store: store, locker: locker, broker: mb, root: root}
}

func (e *apiEnv) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/workflows", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) seed(t *testing.T, wc *workflow.Context) {
	t.Helper()
	wc.SharedStoragePath = filepath.Join(e.root, wc.WorkflowID)
	require.NoError(t, os.MkdirAll(wc.SharedStoragePath, 0o755))
	require.NoError(t, e.store.Create(context.Background(), wc))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSubmitFullWorkflow(t *testing.T) {
	e := newAPIEnv(t)

	w := e.post(t, `{
		"execution_mode": "full",
		"video_path": "/in/v.mp4",
		"workflow_config": {"workflow_chain": ["ffmpeg.extract_audio"]}
	}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.NotEmpty(t, body["workflow_id"])
	assert.EqualValues(t, 1, body["tasks_total"])
	assert.EqualValues(t, 0, body["tasks_skipped"])
	assert.EqualValues(t, 1, body["tasks_to_execute"])

	assert.DirExists(t, filepath.Join(e.root, body["workflow_id"].(string)))
	assert.Equal(t, 1, e.broker.Len())
}

func TestSubmitForwardsUnknownKeys(t *testing.T) {
	e := newAPIEnv(t)

	w := e.post(t, `{
		"execution_mode": "full",
		"video_path": "/in/v.mp4",
		"workflow_config": {"workflow_chain": ["whisper.transcribe"]},
		"whisper.transcribe": {"model": "large-v3"},
		"language": "de"
	}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	body := decodeBody(t, w)
	wc, err := e.store.Get(context.Background(), body["workflow_id"].(string))
	require.NoError(t, err)

	// Object-valued unknown keys become per-stage node_params; scalars
	// land in input_data.
	assert.Equal(t, "large-v3", wc.InputParams.NodeParams["whisper.transcribe"]["model"])
	assert.Equal(t, "de", wc.InputParams.InputData["language"])
}

func TestSubmitValidationFailures(t *testing.T) {
	e := newAPIEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"execution_mode": `},
		{"empty chain", `{"execution_mode": "full", "video_path": "/in/v.mp4"}`},
		{"missing video_path", `{"execution_mode": "full", "workflow_config": {"workflow_chain": ["a.b"]}}`},
		{"chain not an array", `{"execution_mode": "full", "video_path": "/v.mp4", "workflow_config": {"workflow_chain": "a.b"}}`},
		{"non-string stage", `{"execution_mode": "full", "video_path": "/v.mp4", "workflow_config": {"workflow_chain": [42]}}`},
		{"undotted stage name", `{"execution_mode": "full", "video_path": "/v.mp4", "workflow_config": {"workflow_chain": ["noprefix"]}}`},
		{"unknown mode", `{"execution_mode": "replay", "workflow_id": "w", "workflow_config": {"workflow_chain": ["a.b"]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.post(t, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, 0, e.broker.Len())
}

func TestSubmitIncrementalRejectedNonPrefix(t *testing.T) {
	e := newAPIEnv(t)
	wc := workflow.NewContext("wf-c", workflow.InputParams{
		WorkflowChain: []string{"ffmpeg.extract_audio", "whisper.transcribe"},
	}, "")
	e.seed(t, wc)

	w := e.post(t, `{
		"execution_mode": "incremental",
		"workflow_id": "wf-c",
		"workflow_config": {"workflow_chain": ["ffmpeg.extract_audio", "llm.summarize"]}
	}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "does not extend")
}

func TestSubmitMissingWorkflowReturns404(t *testing.T) {
	e := newAPIEnv(t)
	w := e.post(t, `{
		"execution_mode": "retry",
		"workflow_id": "absent",
		"workflow_config": {"workflow_chain": ["ffmpeg.extract_audio"]}
	}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitLockContentionReturns409(t *testing.T) {
	e := newAPIEnv(t)
	wc := workflow.NewContext("wf-f", workflow.InputParams{
		WorkflowChain: []string{"ffmpeg.extract_audio"},
	}, "")
	wc.SetStage("ffmpeg.extract_audio", &workflow.StageExecution{Status: workflow.StatusSuccess})
	e.seed(t, wc)

	token, err := e.locker.AcquireLock(context.Background(), "wf-f", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	w := e.post(t, `{
		"execution_mode": "incremental",
		"workflow_id": "wf-f",
		"workflow_config": {"workflow_chain": ["ffmpeg.extract_audio", "whisper.transcribe"]}
	}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmitGoneStorageReturns410(t *testing.T) {
	e := newAPIEnv(t)
	wc := workflow.NewContext("wf-gone", workflow.InputParams{
		WorkflowChain: []string{"ffmpeg.extract_audio"},
	}, "")
	e.seed(t, wc)
	require.NoError(t, os.RemoveAll(wc.SharedStoragePath))

	w := e.post(t, `{
		"execution_mode": "retry",
		"workflow_id": "wf-gone",
		"workflow_config": {"workflow_chain": ["ffmpeg.extract_audio"]}
	}`)
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestSubmitStrictMergeConflictReturns400(t *testing.T) {
	e := newAPIEnv(t)
	wc := workflow.NewContext("wf-e", workflow.InputParams{
		WorkflowChain: []string{"whisper.transcribe"},
		NodeParams:    workflow.NodeParams{"whisper.transcribe": {"q": 1}},
	}, "")
	wc.SetStage("whisper.transcribe", &workflow.StageExecution{Status: workflow.StatusSuccess})
	e.seed(t, wc)

	w := e.post(t, `{
		"execution_mode": "retry",
		"workflow_id": "wf-e",
		"param_merge_strategy": "strict",
		"workflow_config": {"workflow_chain": ["whisper.transcribe"]},
		"whisper.transcribe": {"q": 2}
	}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	conflicts, ok := body["conflicts"].([]any)
	require.True(t, ok, "response must carry the conflict set: %s", w.Body.String())
	require.Len(t, conflicts, 1)
	conflict := conflicts[0].(map[string]any)
	assert.Equal(t, "whisper.transcribe.q", conflict["key"])
	assert.EqualValues(t, 1, conflict["old_value"])
	assert.EqualValues(t, 2, conflict["new_value"])
}

func TestStatusEndpoint(t *testing.T) {
	e := newAPIEnv(t)
	wc := workflow.NewContext("wf-s", workflow.InputParams{
		WorkflowChain: []string{"ffmpeg.extract_audio"},
	}, "")
	wc.Error = "ffmpeg.extract_audio failed: boom"
	e.seed(t, wc)

	req := httptest.NewRequest(http.MethodGet, "/v1/workflows/status/wf-s", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// An errored record is still returned.
	body := decodeBody(t, w)
	assert.Equal(t, "wf-s", body["workflow_id"])
	assert.Equal(t, "ffmpeg.extract_audio failed: boom", body["error"])

	req = httptest.NewRequest(http.MethodGet, "/v1/workflows/status/absent", nil)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteEndpoint(t *testing.T) {
	e := newAPIEnv(t)
	wc := workflow.NewContext("wf-del", workflow.InputParams{
		WorkflowChain: []string{"ffmpeg.extract_audio"},
	}, "")
	e.seed(t, wc)

	req := httptest.NewRequest(http.MethodDelete, "/v1/workflows/wf-del", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := e.store.Get(context.Background(), "wf-del")
	assert.Error(t, err)
}
