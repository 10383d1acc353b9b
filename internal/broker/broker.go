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

// Package broker builds stage task chains and dispatches them to the
// per-stage worker queues.
//
// The broker carries the full workflow context inside every task payload,
// together with the ordered list of still-pending stages. Chained
// semantics are executor-driven: after a stage succeeds, its worker
// enqueues the next pending stage with the updated context; a failed stage
// enqueues nothing, which halts the chain.
package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mediaflow/mediaflow/pkg/errors"
	"github.com/mediaflow/mediaflow/pkg/workflow"
)

// Payload is the serialized body of one stage task.
type Payload struct {
	// Context is the full workflow context as of dispatch. Passing the
	// value, not a reference, avoids a race between dispatch and read.
	Context *workflow.Context `json:"context"`

	// Pending lists the remaining stages in chain order; Pending[0] is the
	// stage this task executes.
	Pending []string `json:"pending"`
}

// Marshal serializes the payload for the wire.
func (p *Payload) Marshal() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling task payload: %w", err)
	}
	return data, nil
}

// UnmarshalPayload deserializes a payload produced by Marshal.
func UnmarshalPayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling task payload: %w", err)
	}
	if p.Context == nil {
		return nil, &errors.ValidationError{Field: "context", Message: "task payload has no workflow context"}
	}
	if len(p.Pending) == 0 {
		return nil, &errors.ValidationError{Field: "pending", Message: "task payload has no pending stages"}
	}
	return &p, nil
}

// Signature describes one queued task: the stage, its queue, and its
// payload. Only the head of a chain is enqueued by the orchestrator; the
// rest document the routing the executors will follow.
type Signature struct {
	Stage   string
	Queue   string
	Payload Payload
}

// BuildChain translates the stages to execute into task signatures over
// the given context snapshot. It performs no I/O. The first signature
// carries the initial context explicitly; every later signature receives
// the context as updated by its predecessor at enqueue time.
func BuildChain(wc *workflow.Context, stages []string) ([]Signature, error) {
	if len(stages) == 0 {
		return nil, &errors.ValidationError{
			Field:   "workflow_chain",
			Message: "cannot build an empty task chain",
		}
	}
	sigs := make([]Signature, len(stages))
	for i, stage := range stages {
		queue, err := workflow.QueueForStage(stage)
		if err != nil {
			return nil, err
		}
		sigs[i] = Signature{
			Stage:   stage,
			Queue:   queue,
			Payload: Payload{Context: wc, Pending: stages[i:]},
		}
	}
	return sigs, nil
}

// Broker dispatches stage tasks.
type Broker interface {
	// Enqueue submits one task signature to its queue.
	Enqueue(ctx context.Context, sig Signature) error

	// Close releases broker resources.
	Close() error
}

// Dispatch submits the head of a built chain. Successor stages are
// enqueued by the executing workers as the chain progresses.
func Dispatch(ctx context.Context, b Broker, sigs []Signature) error {
	if len(sigs) == 0 {
		return &errors.ValidationError{Field: "chain", Message: "nothing to dispatch"}
	}
	return b.Enqueue(ctx, sigs[0])
}
