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

package errors

import (
	"strings"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "workflow_chain", Message: "must not be empty"}
	if got := err.Error(); got != "validation failed on workflow_chain: must not be empty" {
		t.Errorf("unexpected message: %s", got)
	}

	err = &ValidationError{Message: "bad request"}
	if got := err.Error(); got != "validation failed: bad request" {
		t.Errorf("unexpected message without field: %s", got)
	}
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{Resource: "workflow", ID: "abc-123"}
	if got := err.Error(); got != "workflow not found: abc-123" {
		t.Errorf("unexpected message: %s", got)
	}
}

func TestGoneError(t *testing.T) {
	err := &GoneError{Resource: "workflow", ID: "abc", Path: "/data/abc"}
	if !strings.Contains(err.Error(), "/data/abc") {
		t.Errorf("expected path in message, got %s", err.Error())
	}
}

func TestResolutionError(t *testing.T) {
	err := &ResolutionError{Stage: "asr.transcribe", Field: "segments", Available: []string{"text", "language"}}
	msg := err.Error()
	if !strings.Contains(msg, "stages.asr.transcribe.output.segments") {
		t.Errorf("expected placeholder path in message, got %s", msg)
	}
	if !strings.Contains(msg, "text, language") {
		t.Errorf("expected available fields in message, got %s", msg)
	}

	empty := &ResolutionError{Stage: "asr.transcribe", Field: "segments"}
	if !strings.Contains(empty.Error(), "no recorded output") {
		t.Errorf("unexpected message for empty output: %s", empty.Error())
	}
}

func TestParameterConflictError(t *testing.T) {
	err := &ParameterConflictError{Conflicts: []ParameterConflict{
		{Key: "asr.transcribe.model", OldValue: "small", NewValue: "large"},
	}}
	msg := err.Error()
	if !strings.Contains(msg, "asr.transcribe.model") || !strings.Contains(msg, "old=small") {
		t.Errorf("expected conflict details in message, got %s", msg)
	}
}

func TestTransientErrorUnwrap(t *testing.T) {
	cause := New("connection refused")
	err := &TransientError{Op: "state store update", Cause: cause}
	if !Is(err, cause) {
		t.Error("expected errors.Is to match the cause")
	}
	if !IsRetryable(err) {
		t.Error("expected transient error to be retryable")
	}
	if IsRetryable(cause) {
		t.Error("plain error must not be retryable")
	}
}

func TestInvalidStageNameError(t *testing.T) {
	err := &InvalidStageNameError{Stage: "noservice"}
	if !strings.Contains(err.Error(), "noservice") {
		t.Errorf("expected stage name in message, got %s", err.Error())
	}
}
