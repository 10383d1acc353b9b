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

package state

import (
	"context"
	"log/slog"

	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mediaflow/mediaflow/pkg/errors"
)

const lockPrefix = "workflow_lock:"

// releaseScript deletes the lock key only when its value still matches the
// caller's token. Running it server-side makes compare-and-delete atomic.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker provides the per-workflow distributed mutex.
type Locker interface {
	// AcquireLock attempts a set-if-absent of the workflow lock with a
	// fresh UUID token and the given TTL. It returns the token on success
	// and "" when the lock is held elsewhere. Contention is not an error;
	// callers surface it as a conflict and never busy-wait.
	AcquireLock(ctx context.Context, workflowID string, ttl time.Duration) (string, error)

	// ReleaseLock deletes the lock only if it still holds the caller's
	// token. A mismatch (expired or re-acquired elsewhere) is logged and
	// swallowed; it is an expected outcome, never an error.
	ReleaseLock(ctx context.Context, workflowID, token string)
}

// RedisLocker is the Redis-backed Locker.
type RedisLocker struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisLocker creates a locker using the given client.
func NewRedisLocker(client *redis.Client, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: client, logger: logger}
}

func lockKey(workflowID string) string {
	return lockPrefix + workflowID
}

// AcquireLock implements Locker.
func (l *RedisLocker) AcquireLock(ctx context.Context, workflowID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(workflowID), token, ttl).Result()
	if err != nil {
		return "", &errors.TransientError{Op: "lock acquire", Cause: err}
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseLock implements Locker.
func (l *RedisLocker) ReleaseLock(ctx context.Context, workflowID, token string) {
	released, err := releaseScript.Run(ctx, l.client, []string{lockKey(workflowID)}, token).Int()
	if err != nil {
		l.logger.Error("failed to release workflow lock",
			slog.String("workflow_id", workflowID),
			slog.Any("error", err))
		return
	}
	if released == 0 {
		l.logger.Warn("workflow lock not released: token mismatch or lock expired",
			slog.String("workflow_id", workflowID))
	}
}
