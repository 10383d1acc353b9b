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
	"fmt"
	"strings"
	"time"
)

// ValidationError represents user input validation failures.
// Use this for invalid request fields, malformed data, or mode/field
// combinations that violate the orchestration protocol.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
// Use this when a requested resource does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "workflow", "stage")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// GoneError indicates a resource that existed but whose backing data has
// been removed, e.g. a workflow whose shared storage directory is missing.
type GoneError struct {
	// Resource is the type of resource
	Resource string

	// ID is the resource identifier
	ID string

	// Path is the missing filesystem location (if applicable)
	Path string
}

// Error implements the error interface.
func (e *GoneError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s is gone: %s no longer exists", e.Resource, e.ID, e.Path)
	}
	return fmt.Sprintf("%s %s is gone", e.Resource, e.ID)
}

// ConflictError represents contention on a shared resource, typically the
// workflow mutex being held by a concurrent request.
type ConflictError struct {
	// Resource is the contended resource type
	Resource string

	// ID is the resource identifier
	ID string

	// Message is the human-readable error description
	Message string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("conflict on %s %s: %s", e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("conflict on %s %s", e.Resource, e.ID)
}

// ResolutionError indicates a parameter placeholder that points at a stage
// or output field that is not present in the workflow context.
type ResolutionError struct {
	// Stage is the referenced stage name
	Stage string

	// Field is the referenced output field
	Field string

	// Available lists the output keys actually present on the stage
	Available []string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if len(e.Available) > 0 {
		return fmt.Sprintf("cannot resolve stages.%s.output.%s: available fields are [%s]",
			e.Stage, e.Field, strings.Join(e.Available, ", "))
	}
	return fmt.Sprintf("cannot resolve stages.%s.output.%s: stage has no recorded output", e.Stage, e.Field)
}

// ParameterConflict describes one colliding node parameter under strict merge.
type ParameterConflict struct {
	Key      string `json:"key"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// ParameterConflictError is raised by strict merge when stored and submitted
// node parameters disagree. It carries the full conflict set so clients can
// see every colliding key at once.
type ParameterConflictError struct {
	Conflicts []ParameterConflict
}

// Error implements the error interface.
func (e *ParameterConflictError) Error() string {
	keys := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		keys[i] = fmt.Sprintf("%s (old=%v, new=%v)", c.Key, c.OldValue, c.NewValue)
	}
	return fmt.Sprintf("parameter conflict under strict merge: %s", strings.Join(keys, "; "))
}

// InvalidStageNameError indicates a stage name that cannot be routed to a
// worker queue (no service prefix before the first dot).
type InvalidStageNameError struct {
	// Stage is the offending stage name
	Stage string
}

// Error implements the error interface.
func (e *InvalidStageNameError) Error() string {
	return fmt.Sprintf("invalid stage name %q: expected <service>.<operation>", e.Stage)
}

// TransientError represents a temporarily unavailable dependency such as the
// state store or the broker. Callers retry with bounded backoff; exhaustion
// surfaces as a server error.
type TransientError struct {
	// Op describes the failing operation (e.g., "state store update")
	Op string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("%s temporarily unavailable: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TransientError) Unwrap() error {
	return e.Cause
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "redis.addr")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
// Use this when an operation exceeds its configured timeout.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "artifact upload")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
