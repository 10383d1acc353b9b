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
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/mediaflow/mediaflow/pkg/errors"
)

// MergeNodeParams combines stored node parameters with a new submission
// under the given strategy and returns the merged map. Inputs are never
// mutated.
//
//   - merge: union per stage; on key collision the new value wins and the
//     collision is logged
//   - override: the new map replaces the stored one entirely
//   - strict: like merge, but any collision where the values differ fails
//     with the complete conflict set
func MergeNodeParams(stored, submitted NodeParams, strategy MergeStrategy, logger *slog.Logger) (NodeParams, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strategy {
	case StrategyOverride:
		return cloneNodeParams(submitted), nil

	case StrategyStrict:
		if conflicts := collectConflicts(stored, submitted); len(conflicts) > 0 {
			return nil, &errors.ParameterConflictError{Conflicts: conflicts}
		}
		return unionNodeParams(stored, submitted, nil), nil

	case StrategyMerge:
		return unionNodeParams(stored, submitted, logger), nil

	default:
		return nil, &errors.ValidationError{
			Field:   "param_merge_strategy",
			Message: fmt.Sprintf("unsupported strategy %q", strategy),
		}
	}
}

func cloneNodeParams(params NodeParams) NodeParams {
	out := make(NodeParams, len(params))
	for stage, kv := range params {
		m := make(map[string]any, len(kv))
		for k, v := range kv {
			m[k] = v
		}
		out[stage] = m
	}
	return out
}

func unionNodeParams(stored, submitted NodeParams, logger *slog.Logger) NodeParams {
	merged := cloneNodeParams(stored)
	for stage, kv := range submitted {
		if merged[stage] == nil {
			merged[stage] = make(map[string]any, len(kv))
		}
		for k, v := range kv {
			if old, exists := merged[stage][k]; exists && logger != nil && !reflect.DeepEqual(old, v) {
				logger.Info("node parameter overridden",
					slog.String("stage", stage),
					slog.String("param", k),
					slog.Any("old", old),
					slog.Any("new", v))
			}
			merged[stage][k] = v
		}
	}
	return merged
}

func collectConflicts(stored, submitted NodeParams) []errors.ParameterConflict {
	var conflicts []errors.ParameterConflict
	for stage, kv := range submitted {
		old, exists := stored[stage]
		if !exists {
			continue
		}
		for k, v := range kv {
			oldVal, collides := old[k]
			if collides && !reflect.DeepEqual(oldVal, v) {
				conflicts = append(conflicts, errors.ParameterConflict{
					Key:      stage + "." + k,
					OldValue: oldVal,
					NewValue: v,
				})
			}
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Key < conflicts[j].Key })
	return conflicts
}
