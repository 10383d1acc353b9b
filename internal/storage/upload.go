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

package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Uploader normalizes stage outputs: every output field naming a local
// artifact gains a companion <field>_minio_url on successful upload, or a
// <field>_upload_error when the retry budget runs out. Upload failures
// never fail the stage; the local path stays authoritative.
type Uploader struct {
	store   ObjectStore
	logger  *slog.Logger
	enabled bool
	retries int
	timeout time.Duration
}

// UploaderOptions configures an Uploader.
type UploaderOptions struct {
	// Enabled mirrors the auto_upload toggle; when false, NormalizeOutputs
	// leaves outputs untouched.
	Enabled bool

	// Retries is the per-file attempt budget (default 3).
	Retries int

	// Timeout bounds the total time spent on one file, retries included
	// (default 5m).
	Timeout time.Duration
}

// NewUploader creates an Uploader over the given object store. A nil store
// behaves as if uploads were disabled.
func NewUploader(store ObjectStore, logger *slog.Logger, opts UploaderOptions) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	return &Uploader{
		store:   store,
		logger:  logger,
		enabled: opts.Enabled && store != nil,
		retries: opts.Retries,
		timeout: opts.Timeout,
	}
}

// NormalizeOutputs mutates output in place, uploading artifact fields for
// the given workflow stage. Two field classes are uploaded:
//
//   - standard: fields named *_path holding a string whose extension maps
//     to a known type directory
//   - custom: fields listed in customFields, with the stage-declared type
//     directory
//
// customFields maps field name to declared file type; it wins over the
// extension rule when both apply.
func (u *Uploader) NormalizeOutputs(ctx context.Context, layout Layout, stage string, output map[string]any, customFields map[string]string) {
	if !u.enabled || len(output) == 0 {
		return
	}

	for field, typeDir := range uploadPlan(output, customFields) {
		local, _ := output[field].(string)
		key := layout.OutputKey(stage, typeDir, filepath.Base(local))

		url, err := u.uploadWithRetry(ctx, local, key)
		if err != nil {
			u.logger.Warn("artifact upload failed; local path remains authoritative",
				slog.String("workflow_id", layout.WorkflowID),
				slog.String("stage", stage),
				slog.String("field", field),
				slog.Any("error", err))
			output[field+"_upload_error"] = err.Error()
			continue
		}
		output[field+"_minio_url"] = url
	}
}

// uploadPlan selects the output fields to upload and their type dirs.
func uploadPlan(output map[string]any, customFields map[string]string) map[string]string {
	plan := make(map[string]string)
	for field, value := range output {
		local, ok := value.(string)
		if !ok || local == "" {
			continue
		}
		if fileType, custom := customFields[field]; custom {
			plan[field] = CanonicalTypeDir(fileType)
			continue
		}
		if !strings.HasSuffix(field, "_path") {
			continue
		}
		if typeDir := TypeDirForPath(local); typeDir != "" {
			plan[field] = typeDir
		}
	}
	return plan
}

func (u *Uploader) uploadWithRetry(ctx context.Context, localPath, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(u.retries-1)),
		ctx)

	var url string
	op := func() error {
		var err error
		url, err = u.store.Upload(ctx, localPath, key)
		return err
	}
	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return url, nil
}
