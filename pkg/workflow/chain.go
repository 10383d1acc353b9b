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

package workflow

import (
	"strings"

	"github.com/mediaflow/mediaflow/pkg/errors"
)

// QueueForStage derives the broker queue name from a stage name: the prefix
// before the first dot plus "_queue". Example: "ffmpeg.extract_audio"
// routes to "ffmpeg_queue".
func QueueForStage(stage string) (string, error) {
	service, _, found := strings.Cut(stage, ".")
	if !found || service == "" {
		return "", &errors.InvalidStageNameError{Stage: stage}
	}
	return service + "_queue", nil
}

// ValidateChain checks that the chain is non-empty, free of duplicates, and
// that every stage name is routable.
func ValidateChain(chain []string) error {
	if len(chain) == 0 {
		return &errors.ValidationError{
			Field:      "workflow_chain",
			Message:    "chain must contain at least one stage",
			Suggestion: "supply workflow_config.workflow_chain with the stages to run",
		}
	}
	seen := make(map[string]struct{}, len(chain))
	for _, stage := range chain {
		if _, err := QueueForStage(stage); err != nil {
			return err
		}
		if _, dup := seen[stage]; dup {
			return &errors.ValidationError{
				Field:   "workflow_chain",
				Message: "duplicate stage " + stage,
			}
		}
		seen[stage] = struct{}{}
	}
	return nil
}

// HasPrefix reports whether prefix is a (possibly equal) leading
// subsequence of chain.
func HasPrefix(chain, prefix []string) bool {
	if len(prefix) > len(chain) {
		return false
	}
	for i, stage := range prefix {
		if chain[i] != stage {
			return false
		}
	}
	return true
}
