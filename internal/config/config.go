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

// Package config provides configuration for the orchestration daemon and
// the stage workers. Values come from defaults, an optional YAML file, and
// environment overrides, in that order of precedence (environment wins).
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mediaflow/mediaflow/pkg/errors"
)

// Config holds the full configuration shared by both binaries.
type Config struct {
	// ListenAddr is the daemon HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`

	// Redis configures the state store connection.
	Redis RedisConfig `yaml:"redis"`

	// Broker configures the task queue connection.
	Broker BrokerConfig `yaml:"broker"`

	// Minio configures the object store.
	Minio MinioConfig `yaml:"minio"`

	// Storage configures the shared filesystem layout.
	Storage StorageConfig `yaml:"storage"`

	// ContextTTL bounds the lifetime of a workflow context record.
	// Refreshed on every successful mutation.
	ContextTTL time.Duration `yaml:"context_ttl"`

	// LockTTL bounds the workflow mutex hold window.
	LockTTL time.Duration `yaml:"lock_ttl"`
}

// RedisConfig contains state store connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// BrokerConfig contains task broker settings. The broker shares the Redis
// deployment by default but may point at a dedicated instance.
type BrokerConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// Concurrency is the number of stage invocations a worker processes in
	// parallel. Stage invocations are heavyweight; the default is 1.
	Concurrency int `yaml:"concurrency"`
}

// MinioConfig contains object store settings.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`

	// AutoUpload controls whether stage outputs are mirrored to the object
	// store. When false, outputs stay on shared storage and no
	// <field>_minio_url companions are written.
	AutoUpload bool `yaml:"auto_upload"`

	// UploadRetries is the per-file upload attempt budget.
	UploadRetries int `yaml:"upload_retries"`

	// UploadTimeout bounds the total time spent uploading one file,
	// retries included.
	UploadTimeout time.Duration `yaml:"upload_timeout"`
}

// StorageConfig contains shared filesystem settings.
type StorageConfig struct {
	// Root is the directory under which per-workflow storage lives.
	Root string `yaml:"root"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Broker: BrokerConfig{
			Concurrency: 1,
		},
		Minio: MinioConfig{
			Bucket:        "mediaflow",
			AutoUpload:    true,
			UploadRetries: 3,
			UploadTimeout: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Root: "/data/workflows",
		},
		ContextTTL: 7 * 24 * time.Hour,
		LockTTL:    30 * time.Second,
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and environment overrides. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &errors.ConfigError{Key: "config_file", Reason: "cannot read " + path, Cause: err}
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &errors.ConfigError{Key: "config_file", Reason: "invalid YAML in " + path, Cause: err}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays MEDIAFLOW_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	setString(&cfg.ListenAddr, "MEDIAFLOW_LISTEN_ADDR")
	setString(&cfg.Redis.Addr, "MEDIAFLOW_REDIS_ADDR")
	setString(&cfg.Redis.Password, "MEDIAFLOW_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MEDIAFLOW_REDIS_DB")
	setString(&cfg.Broker.Addr, "MEDIAFLOW_BROKER_ADDR")
	setString(&cfg.Broker.Password, "MEDIAFLOW_BROKER_PASSWORD")
	setInt(&cfg.Broker.DB, "MEDIAFLOW_BROKER_DB")
	setInt(&cfg.Broker.Concurrency, "MEDIAFLOW_WORKER_CONCURRENCY")
	setString(&cfg.Minio.Endpoint, "MEDIAFLOW_MINIO_ENDPOINT")
	setString(&cfg.Minio.AccessKey, "MEDIAFLOW_MINIO_ACCESS_KEY")
	setString(&cfg.Minio.SecretKey, "MEDIAFLOW_MINIO_SECRET_KEY")
	setString(&cfg.Minio.Bucket, "MEDIAFLOW_MINIO_BUCKET")
	setBool(&cfg.Minio.UseSSL, "MEDIAFLOW_MINIO_USE_SSL")
	setBool(&cfg.Minio.AutoUpload, "MEDIAFLOW_AUTO_UPLOAD_TO_MINIO")
	setString(&cfg.Storage.Root, "MEDIAFLOW_STORAGE_ROOT")
	setDuration(&cfg.ContextTTL, "MEDIAFLOW_CONTEXT_TTL")
	setDuration(&cfg.LockTTL, "MEDIAFLOW_LOCK_TTL")
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return &errors.ConfigError{Key: "redis.addr", Reason: "state store address is required"}
	}
	if c.Storage.Root == "" {
		return &errors.ConfigError{Key: "storage.root", Reason: "shared storage root is required"}
	}
	if c.ContextTTL <= 0 {
		return &errors.ConfigError{Key: "context_ttl", Reason: "must be positive"}
	}
	if c.LockTTL <= 0 {
		return &errors.ConfigError{Key: "lock_ttl", Reason: "must be positive"}
	}
	if c.Minio.AutoUpload && c.Minio.Endpoint == "" {
		return &errors.ConfigError{
			Key:    "minio.endpoint",
			Reason: "required while auto_upload is enabled; set MEDIAFLOW_AUTO_UPLOAD_TO_MINIO=false to run without an object store",
		}
	}
	if c.Broker.Concurrency < 1 {
		return &errors.ConfigError{Key: "broker.concurrency", Reason: "must be at least 1"}
	}
	return nil
}

// BrokerRedis returns the broker connection settings, falling back to the
// state store Redis when no dedicated broker address is configured.
func (c *Config) BrokerRedis() RedisConfig {
	if c.Broker.Addr != "" {
		return RedisConfig{Addr: c.Broker.Addr, Password: c.Broker.Password, DB: c.Broker.DB}
	}
	return c.Redis
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
