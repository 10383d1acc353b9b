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

package broker

import (
	"context"
	"sync"
)

// MemoryBroker is an in-memory Broker that records enqueued signatures.
// It is thread-safe and suitable for tests or single-process runs.
type MemoryBroker struct {
	mu       sync.Mutex
	Enqueued []Signature
}

// NewMemoryBroker creates a new in-memory broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{}
}

// Enqueue implements Broker.
func (m *MemoryBroker) Enqueue(ctx context.Context, sig Signature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Enqueued = append(m.Enqueued, sig)
	return nil
}

// Close implements Broker.
func (m *MemoryBroker) Close() error { return nil }

// Len returns the number of enqueued signatures.
func (m *MemoryBroker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Enqueued)
}

// Last returns the most recently enqueued signature, or nil.
func (m *MemoryBroker) Last() *Signature {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Enqueued) == 0 {
		return nil
	}
	return &m.Enqueued[len(m.Enqueued)-1]
}
