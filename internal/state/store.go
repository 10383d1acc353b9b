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

// Package state persists workflow contexts in Redis and provides the
// per-workflow distributed mutex used by the orchestration critical section.
package state

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediaflow/mediaflow/pkg/errors"
	"github.com/mediaflow/mediaflow/pkg/workflow"
)

const statePrefix = "workflow_state:"

// Store defines the persistence operations for workflow contexts.
type Store interface {
	// Create writes a new context. Fails if the workflow already exists.
	Create(ctx context.Context, wc *workflow.Context) error

	// Get retrieves a context by workflow ID.
	Get(ctx context.Context, workflowID string) (*workflow.Context, error)

	// Update replaces a context unconditionally and resets its TTL.
	Update(ctx context.Context, wc *workflow.Context) error

	// Expire resets the TTL without rewriting the payload.
	Expire(ctx context.Context, workflowID string, ttl time.Duration) error

	// Delete removes a context record.
	Delete(ctx context.Context, workflowID string) error
}

// RedisStore is the Redis-backed Store implementation. The full context is
// stored as one JSON value per workflow, so every mutation is a single
// atomic SET.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store writing records with the given default TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func stateKey(workflowID string) string {
	return statePrefix + workflowID
}

// Create writes the context if absent, with the default TTL.
func (s *RedisStore) Create(ctx context.Context, wc *workflow.Context) error {
	if wc == nil || wc.WorkflowID == "" {
		return &errors.ValidationError{Field: "workflow_id", Message: "workflow ID cannot be empty"}
	}
	data, err := wc.Marshal()
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, stateKey(wc.WorkflowID), data, s.ttl).Result()
	if err != nil {
		return &errors.TransientError{Op: "state store create", Cause: err}
	}
	if !ok {
		return &errors.ValidationError{
			Field:      "workflow_id",
			Message:    "workflow " + wc.WorkflowID + " already exists",
			Suggestion: "use execution_mode=incremental or retry to modify an existing workflow",
		}
	}
	return nil
}

// Get retrieves a context by workflow ID.
func (s *RedisStore) Get(ctx context.Context, workflowID string) (*workflow.Context, error) {
	if workflowID == "" {
		return nil, &errors.ValidationError{Field: "workflow_id", Message: "workflow ID cannot be empty"}
	}
	data, err := s.client.Get(ctx, stateKey(workflowID)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, &errors.NotFoundError{Resource: "workflow", ID: workflowID}
	}
	if err != nil {
		return nil, &errors.TransientError{Op: "state store get", Cause: err}
	}
	return workflow.UnmarshalContext(data)
}

// Update replaces the context and resets its TTL.
func (s *RedisStore) Update(ctx context.Context, wc *workflow.Context) error {
	if wc == nil || wc.WorkflowID == "" {
		return &errors.ValidationError{Field: "workflow_id", Message: "workflow ID cannot be empty"}
	}
	data, err := wc.Marshal()
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, stateKey(wc.WorkflowID), data, s.ttl).Err(); err != nil {
		return &errors.TransientError{Op: "state store update", Cause: err}
	}
	return nil
}

// Expire resets the TTL of an existing record.
func (s *RedisStore) Expire(ctx context.Context, workflowID string, ttl time.Duration) error {
	ok, err := s.client.Expire(ctx, stateKey(workflowID), ttl).Result()
	if err != nil {
		return &errors.TransientError{Op: "state store expire", Cause: err}
	}
	if !ok {
		return &errors.NotFoundError{Resource: "workflow", ID: workflowID}
	}
	return nil
}

// Delete removes the context record. Deleting an absent record is not an
// error: the outcome is the same.
func (s *RedisStore) Delete(ctx context.Context, workflowID string) error {
	if err := s.client.Del(ctx, stateKey(workflowID)).Err(); err != nil {
		return &errors.TransientError{Op: "state store delete", Cause: err}
	}
	return nil
}
