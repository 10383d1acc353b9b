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

package executor

import (
	"sort"
	"sync"

	"github.com/mediaflow/mediaflow/pkg/errors"
	"github.com/mediaflow/mediaflow/pkg/workflow"
)

// Registry holds the stages a worker process can execute.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// Register adds a stage. Registering the same name twice is a programming
// error and fails.
func (r *Registry) Register(s Stage) error {
	name := s.Name()
	if _, err := workflow.QueueForStage(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stages[name]; exists {
		return &errors.ValidationError{
			Field:   "stage",
			Message: "stage " + name + " is already registered",
		}
	}
	r.stages[name] = s
	return nil
}

// Get returns the stage registered under name, or nil.
func (r *Registry) Get(name string) Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stages[name]
}

// Names returns the registered stage names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stages))
	for name := range r.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Queues returns the set of broker queues the registered stages consume,
// each with equal weight. Used to configure the worker server.
func (r *Registry) Queues() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	queues := make(map[string]int)
	for name := range r.stages {
		// Names were validated at registration.
		queue, _ := workflow.QueueForStage(name)
		queues[queue] = 1
	}
	return queues
}
