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

// Package api provides the HTTP API for the orchestration daemon.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mediaflow/mediaflow/internal/httputil"
	"github.com/mediaflow/mediaflow/internal/log"
)

// RouterConfig holds configuration for the API router.
type RouterConfig struct {
	Version string
}

// MetricsHandler provides a Prometheus metrics endpoint.
type MetricsHandler interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// HealthCheck probes one backend dependency.
type HealthCheck func(ctx context.Context) error

// Router wraps an http.ServeMux with request logging and health reporting.
type Router struct {
	mux    *http.ServeMux
	config RouterConfig
	checks map[string]HealthCheck
	logger *slog.Logger
}

// NewRouter creates a new HTTP router with the base endpoints registered.
func NewRouter(cfg RouterConfig, logger *slog.Logger) *Router {
	if logger == nil {
		logger = log.New(log.FromEnv())
	}
	r := &Router{
		mux:    http.NewServeMux(),
		config: cfg,
		checks: make(map[string]HealthCheck),
		logger: log.WithComponent(logger, "api"),
	}

	r.mux.HandleFunc("GET /healthz", r.handleHealth)
	r.mux.HandleFunc("GET /v1/version", r.handleVersion)
	r.mux.HandleFunc("GET /", r.handleRoot)

	return r
}

// SetMetricsHandler registers the Prometheus metrics endpoint.
func (r *Router) SetMetricsHandler(handler MetricsHandler) {
	if handler != nil {
		r.mux.HandleFunc("GET /metrics", handler.ServeHTTP)
	}
}

// AddHealthCheck registers a named backend probe consulted by /healthz.
func (r *Router) AddHealthCheck(name string, check HealthCheck) {
	r.checks[name] = check
}

// Mux returns the underlying ServeMux for registering additional routes.
func (r *Router) Mux() *http.ServeMux {
	return r.mux
}

// ServeHTTP implements http.Handler with request logging applied.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	defer func() {
		r.logger.Info("request completed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}()

	r.mux.ServeHTTP(w, req)
}

// handleHealth handles GET /healthz. Any failing backend turns the response
// into a 503 with the per-check detail.
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	backends := make(map[string]string, len(r.checks))
	for name, check := range r.checks {
		if err := check(ctx); err != nil {
			backends[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		backends[name] = "ok"
	}

	body := map[string]any{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(backends) > 0 {
		body["backends"] = backends
	}
	httputil.WriteJSON(w, status, body)
}

// handleVersion handles GET /v1/version.
func (r *Router) handleVersion(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"version": r.config.Version,
	})
}

// handleRoot handles GET / for basic connectivity.
func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"name":    "mediaflowd",
		"version": r.config.Version,
	})
}
