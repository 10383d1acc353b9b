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

// Package metrics exposes Prometheus instrumentation for the orchestration
// core and the stage workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorkflowsCreated counts fresh workflow creations.
	WorkflowsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediaflow_workflows_created_total",
		Help: "Number of workflows created in full mode.",
	})

	// Requests counts orchestration requests by mode and outcome.
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaflow_orchestration_requests_total",
		Help: "Number of orchestration requests by execution mode and outcome.",
	}, []string{"mode", "outcome"})

	// LockContention counts requests rejected because the workflow mutex
	// was held elsewhere.
	LockContention = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediaflow_lock_contention_total",
		Help: "Number of orchestration requests rejected on lock contention.",
	})

	// TasksDispatched counts stage tasks submitted to the broker, by queue.
	TasksDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaflow_tasks_dispatched_total",
		Help: "Number of stage tasks dispatched to worker queues.",
	}, []string{"queue"})

	// StageExecutions counts completed stage attempts by stage and status.
	StageExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaflow_stage_executions_total",
		Help: "Number of stage attempts by stage name and terminal status.",
	}, []string{"stage", "status"})

	// StageDuration observes stage wall time in seconds.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediaflow_stage_duration_seconds",
		Help:    "Wall time of stage attempts.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 16),
	}, []string{"stage"})
)
