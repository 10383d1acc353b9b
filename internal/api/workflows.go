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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mediaflow/mediaflow/internal/httputil"
	"github.com/mediaflow/mediaflow/internal/orchestrator"
	"github.com/mediaflow/mediaflow/pkg/errors"
	"github.com/mediaflow/mediaflow/pkg/workflow"
)

// reservedKeys are the request fields consumed by the protocol itself.
// Every other top-level key is forwarded: objects as per-stage node_params,
// scalars as workflow-level input_data.
var reservedKeys = map[string]struct{}{
	"video_path":           {},
	"workflow_id":          {},
	"execution_mode":       {},
	"param_merge_strategy": {},
	"workflow_config":      {},
}

// WorkflowsHandler handles workflow orchestration API requests.
type WorkflowsHandler struct {
	orch *orchestrator.Orchestrator
}

// NewWorkflowsHandler creates a new workflows handler.
func NewWorkflowsHandler(orch *orchestrator.Orchestrator) *WorkflowsHandler {
	return &WorkflowsHandler{orch: orch}
}

// RegisterRoutes registers workflow API routes on the router.
func (h *WorkflowsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/workflows", h.handleSubmit)
	mux.HandleFunc("GET /v1/workflows/status/{workflow_id}", h.handleStatus)
	mux.HandleFunc("DELETE /v1/workflows/{workflow_id}", h.handleDelete)
}

// handleSubmit handles POST /v1/workflows: full, incremental, and retry
// submissions, differentiated by execution_mode.
func (h *WorkflowsHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSubmitRequest(r)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	resp, err := h.orch.Run(r.Context(), req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, resp)
}

// handleStatus handles GET /v1/workflows/status/{workflow_id}. The record is
// returned whenever it exists; a non-null error field does not hide it.
func (h *WorkflowsHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("workflow_id")
	wc, err := h.orch.Status(r.Context(), id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wc)
}

// handleDelete handles DELETE /v1/workflows/{workflow_id}. Workers holding
// tasks for the deleted workflow observe the absence at pickup and halt.
func (h *WorkflowsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("workflow_id")
	if err := h.orch.Delete(r.Context(), id); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"workflow_id": id,
		"status":      "deleted",
	})
}

// decodeSubmitRequest parses the submission body into an orchestration
// request.
func decodeSubmitRequest(r *http.Request) (*orchestrator.Request, error) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, &errors.ValidationError{
			Field:   "body",
			Message: fmt.Sprintf("invalid JSON: %v", err),
		}
	}

	req := &orchestrator.Request{
		VideoPath:     stringField(raw, "video_path"),
		WorkflowID:    stringField(raw, "workflow_id"),
		Mode:          workflow.ExecutionMode(stringField(raw, "execution_mode")),
		MergeStrategy: workflow.MergeStrategy(stringField(raw, "param_merge_strategy")),
	}

	if cfg, ok := raw["workflow_config"].(map[string]any); ok {
		chain, err := decodeChain(cfg["workflow_chain"])
		if err != nil {
			return nil, err
		}
		req.Chain = chain

		if np, ok := cfg["node_params"].(map[string]any); ok {
			if err := addNodeParams(req, np); err != nil {
				return nil, err
			}
		}
	}

	for key, value := range raw {
		if _, reserved := reservedKeys[key]; reserved {
			continue
		}
		if stageParams, ok := value.(map[string]any); ok {
			if req.NodeParams == nil {
				req.NodeParams = make(workflow.NodeParams)
			}
			req.NodeParams[key] = stageParams
			continue
		}
		if req.InputData == nil {
			req.InputData = make(map[string]any)
		}
		req.InputData[key] = value
	}

	return req, nil
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func decodeChain(value any) ([]string, error) {
	if value == nil {
		return nil, nil
	}
	items, ok := value.([]any)
	if !ok {
		return nil, &errors.ValidationError{
			Field:   "workflow_config.workflow_chain",
			Message: "workflow_chain must be an array of stage names",
		}
	}
	chain := make([]string, 0, len(items))
	for _, item := range items {
		stage, ok := item.(string)
		if !ok {
			return nil, &errors.ValidationError{
				Field:   "workflow_config.workflow_chain",
				Message: fmt.Sprintf("stage name must be a string, got %T", item),
			}
		}
		chain = append(chain, stage)
	}
	return chain, nil
}

func addNodeParams(req *orchestrator.Request, np map[string]any) error {
	for stage, value := range np {
		params, ok := value.(map[string]any)
		if !ok {
			return &errors.ValidationError{
				Field:   "workflow_config.node_params",
				Message: fmt.Sprintf("node_params.%s must be an object", stage),
			}
		}
		if req.NodeParams == nil {
			req.NodeParams = make(workflow.NodeParams)
		}
		req.NodeParams[stage] = params
	}
	return nil
}
