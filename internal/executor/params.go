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
	"github.com/mediaflow/mediaflow/pkg/workflow"
)

// ParamSpec describes one stage parameter and where to look for it when
// the stage's own parameters do not carry it.
type ParamSpec struct {
	// Name is the parameter name.
	Name string

	// Upstream optionally names a stage whose output is consulted as the
	// third fallback source.
	Upstream string

	// Alias optionally renames the upstream output field; defaults to Name.
	Alias string

	// Default is the static fallback when no source has the parameter.
	Default any
}

// Param resolves one parameter through the multi-level fallback:
//
//  1. the stage's resolved node parameters
//  2. workflow-level input_data, with opportunistic placeholder resolution
//     when the value is a string
//  3. the declared upstream stage's output field (Alias or Name)
//  4. the static default
//
// The first non-nil source wins. A dangling placeholder in input_data is a
// resolution error; an absent parameter is not.
func (in *Input) Param(spec ParamSpec) (any, error) {
	if v, ok := in.Params[spec.Name]; ok && v != nil {
		return v, nil
	}

	if v, ok := in.Workflow.InputParams.InputData[spec.Name]; ok && v != nil {
		if s, isString := v.(string); isString {
			return workflow.ResolveValue(s, in.Workflow)
		}
		return v, nil
	}

	if spec.Upstream != "" {
		field := spec.Alias
		if field == "" {
			field = spec.Name
		}
		if exec := in.Workflow.Stage(spec.Upstream); exec != nil {
			if v, ok := exec.Output[field]; ok && v != nil {
				return v, nil
			}
		}
	}

	return spec.Default, nil
}

// StringParam resolves a parameter and coerces it to a string. Missing or
// non-string values yield "".
func (in *Input) StringParam(spec ParamSpec) (string, error) {
	v, err := in.Param(spec)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}
