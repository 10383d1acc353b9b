package httputil

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mediaflow/mediaflow/pkg/errors"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		data       any
		wantStatus int
		wantJSON   string
	}{
		{
			name:       "success with map",
			status:     http.StatusOK,
			data:       map[string]string{"message": "success"},
			wantStatus: http.StatusOK,
			wantJSON:   `{"message":"success"}`,
		},
		{
			name:       "accepted with struct",
			status:     http.StatusAccepted,
			data:       struct{ WorkflowID string }{WorkflowID: "wf-1"},
			wantStatus: http.StatusAccepted,
			wantJSON:   `{"WorkflowID":"wf-1"}`,
		},
		{
			name:       "error status code",
			status:     http.StatusInternalServerError,
			data:       map[string]string{"error": "something went wrong"},
			wantStatus: http.StatusInternalServerError,
			wantJSON:   `{"error":"something went wrong"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteJSON(w, tt.status, tt.data)

			if w.Code != tt.wantStatus {
				t.Errorf("WriteJSON() status = %v, want %v", w.Code, tt.wantStatus)
			}

			contentType := w.Header().Get("Content-Type")
			if contentType != "application/json" {
				t.Errorf("WriteJSON() Content-Type = %v, want application/json", contentType)
			}

			var got, want map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("Failed to unmarshal response: %v", err)
			}
			if err := json.Unmarshal([]byte(tt.wantJSON), &want); err != nil {
				t.Fatalf("Failed to unmarshal expected JSON: %v", err)
			}

			for k, v := range want {
				if got[k] != v {
					t.Errorf("WriteJSON() response[%s] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "invalid input")

	if w.Code != http.StatusBadRequest {
		t.Errorf("WriteError() status = %v, want %v", w.Code, http.StatusBadRequest)
	}

	var response map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response["error"] != "invalid input" {
		t.Errorf("WriteError() error message = %v, want %v", response["error"], "invalid input")
	}
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "validation error",
			err:        &errors.ValidationError{Field: "workflow_chain", Message: "cannot be empty"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "resolution error",
			err:        &errors.ResolutionError{Stage: "ffmpeg.extract_audio", Field: "audio_path"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid stage name",
			err:        &errors.InvalidStageNameError{Stage: "noprefix"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not found",
			err:        &errors.NotFoundError{Resource: "workflow", ID: "wf-1"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "lock contention",
			err:        &errors.ConflictError{Resource: "workflow", ID: "wf-1"},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "gone",
			err:        &errors.GoneError{Resource: "workflow", ID: "wf-1", Path: "/data/wf-1"},
			wantStatus: http.StatusGone,
		},
		{
			name:       "wrapped validation error",
			err:        errors.Wrap(&errors.ValidationError{Message: "bad"}, "handling request"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown error",
			err:        stderrors.New("redis is down"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteDomainError(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("WriteDomainError() status = %v, want %v", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestWriteDomainErrorSuggestion(t *testing.T) {
	w := httptest.NewRecorder()
	WriteDomainError(w, &errors.ValidationError{
		Field:      "workflow_chain",
		Message:    "recorded chain is not a prefix",
		Suggestion: "use execution_mode=retry",
	})

	var response map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response["suggestion"] != "use execution_mode=retry" {
		t.Errorf("suggestion = %q, want %q", response["suggestion"], "use execution_mode=retry")
	}
}

func TestWriteDomainErrorParameterConflicts(t *testing.T) {
	w := httptest.NewRecorder()
	WriteDomainError(w, &errors.ParameterConflictError{
		Conflicts: []errors.ParameterConflict{
			{Key: "whisper.transcribe.model", OldValue: "base", NewValue: "large-v3"},
		},
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %v, want %v", w.Code, http.StatusBadRequest)
	}

	var response struct {
		Error     string                     `json:"error"`
		Conflicts []errors.ParameterConflict `json:"conflicts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(response.Conflicts) != 1 || response.Conflicts[0].Key != "whisper.transcribe.model" {
		t.Errorf("conflicts = %+v, want the colliding key", response.Conflicts)
	}
}
