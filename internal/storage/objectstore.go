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
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mediaflow/mediaflow/internal/config"
	"github.com/mediaflow/mediaflow/pkg/errors"
)

// ObjectStore abstracts the object-storage client. The core only needs
// upload, download, and delete; client internals stay behind this boundary.
type ObjectStore interface {
	// Upload stores the local file under key and returns its public URL.
	Upload(ctx context.Context, localPath, key string) (string, error)

	// Download fetches the object at rawURL into dir and returns the local
	// file path.
	Download(ctx context.Context, rawURL, dir string) (string, error)

	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
}

// MinioStore is the MinIO-backed ObjectStore.
type MinioStore struct {
	client   *minio.Client
	endpoint string
	bucket   string
	useSSL   bool
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(ctx context.Context, cfg config.MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, &errors.ConfigError{Key: "minio.endpoint", Reason: "cannot create client", Cause: err}
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, &errors.TransientError{Op: "object store bucket check", Cause: err}
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, &errors.TransientError{Op: "object store bucket create", Cause: err}
		}
	}

	return &MinioStore{
		client:   client,
		endpoint: cfg.Endpoint,
		bucket:   cfg.Bucket,
		useSSL:   cfg.UseSSL,
	}, nil
}

// Upload implements ObjectStore.
func (s *MinioStore) Upload(ctx context.Context, localPath, key string) (string, error) {
	if _, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{}); err != nil {
		return "", &errors.TransientError{Op: "object upload", Cause: err}
	}
	return s.URLForKey(key), nil
}

// Download implements ObjectStore.
func (s *MinioStore) Download(ctx context.Context, rawURL, dir string) (string, error) {
	key, err := s.keyFromURL(rawURL)
	if err != nil {
		return "", err
	}
	local := filepath.Join(dir, path.Base(key))
	if err := s.client.FGetObject(ctx, s.bucket, key, local, minio.GetObjectOptions{}); err != nil {
		return "", &errors.TransientError{Op: "object download", Cause: err}
	}
	return local, nil
}

// Delete implements ObjectStore.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return &errors.TransientError{Op: "object delete", Cause: err}
	}
	return nil
}

// URLForKey derives the public-style URL of an object key.
func (s *MinioStore) URLForKey(key string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, key)
}

// keyFromURL inverts URLForKey, accepting any URL whose path starts with
// the configured bucket.
func (s *MinioStore) keyFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &errors.ValidationError{Field: "url", Message: "malformed object URL: " + rawURL}
	}
	key, found := strings.CutPrefix(strings.TrimPrefix(u.Path, "/"), s.bucket+"/")
	if !found || key == "" {
		return "", &errors.ValidationError{Field: "url", Message: "object URL outside bucket " + s.bucket}
	}
	return key, nil
}
