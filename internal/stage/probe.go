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

package stage

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/mediaflow/mediaflow/internal/executor"
	"github.com/mediaflow/mediaflow/pkg/errors"
)

// ProbeMedia inspects the input media with ffprobe and records the container
// format, duration, and stream layout.
type ProbeMedia struct {
	run commandRunner
}

// NewProbeMedia creates the ffmpeg.probe_media stage.
func NewProbeMedia() *ProbeMedia {
	return &ProbeMedia{run: runCommand}
}

// Name implements executor.Stage.
func (s *ProbeMedia) Name() string { return "ffmpeg.probe_media" }

// ValidateInput implements executor.Stage.
func (s *ProbeMedia) ValidateInput(in *executor.Input) error {
	if s.inputPath(in) == "" {
		return &errors.ValidationError{
			Field:   "video_path",
			Message: "no input media: neither stage params nor the workflow supply video_path",
		}
	}
	return nil
}

// Execute implements executor.Stage.
func (s *ProbeMedia) Execute(ctx context.Context, in *executor.Input) (map[string]any, error) {
	input := s.inputPath(in)

	raw, err := s.run(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		input)
	if err != nil {
		return nil, err
	}

	var probe struct {
		Format struct {
			FormatName string `json:"format_name"`
			Duration   string `json:"duration"`
		} `json:"format"`
		Streams []map[string]any `json:"streams"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, errors.Wrap(err, "parsing ffprobe output")
	}

	duration, _ := strconv.ParseFloat(probe.Format.Duration, 64)
	return map[string]any{
		"format_name": probe.Format.FormatName,
		"duration":    duration,
		"streams":     probe.Streams,
	}, nil
}

// CacheKeyFields implements executor.Stage.
func (s *ProbeMedia) CacheKeyFields() []string { return []string{"video_path"} }

// RequiredOutputFields implements executor.Stage.
func (s *ProbeMedia) RequiredOutputFields() []string { return []string{"format_name", "duration"} }

// CustomPathFields implements executor.Stage.
func (s *ProbeMedia) CustomPathFields() map[string]string { return nil }

func (s *ProbeMedia) inputPath(in *executor.Input) string {
	if p, _ := in.Params["video_path"].(string); p != "" {
		return p
	}
	return in.Workflow.InputParams.VideoPath
}
