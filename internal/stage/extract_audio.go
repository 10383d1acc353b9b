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
	"fmt"
	"os"
	"path/filepath"

	"github.com/mediaflow/mediaflow/internal/executor"
	"github.com/mediaflow/mediaflow/internal/storage"
	"github.com/mediaflow/mediaflow/pkg/errors"
)

const (
	defaultSampleRate = 16000
	defaultChannels   = 1
)

// ExtractAudio demuxes and resamples the audio track of the input media
// into a WAV file under the workflow's shared storage.
type ExtractAudio struct {
	run commandRunner
}

// NewExtractAudio creates the ffmpeg.extract_audio stage.
func NewExtractAudio() *ExtractAudio {
	return &ExtractAudio{run: runCommand}
}

// Name implements executor.Stage.
func (s *ExtractAudio) Name() string { return "ffmpeg.extract_audio" }

// ValidateInput implements executor.Stage.
func (s *ExtractAudio) ValidateInput(in *executor.Input) error {
	if s.inputPath(in) == "" {
		return &errors.ValidationError{
			Field:   "video_path",
			Message: "no input media: neither stage params nor the workflow supply video_path",
		}
	}
	if rate := s.sampleRate(in); rate <= 0 {
		return &errors.ValidationError{
			Field:   "sample_rate",
			Message: fmt.Sprintf("sample_rate must be positive, got %d", rate),
		}
	}
	return nil
}

// Execute implements executor.Stage.
func (s *ExtractAudio) Execute(ctx context.Context, in *executor.Input) (map[string]any, error) {
	input := s.inputPath(in)
	rate := s.sampleRate(in)
	channels := s.channels(in)

	outPath := in.Layout.OutputPath(s.Name(), storage.TypeAudio, "audio.wav")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating stage output directory")
	}

	if _, err := s.run(ctx, "ffmpeg",
		"-y",
		"-i", input,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", rate),
		"-ac", fmt.Sprintf("%d", channels),
		outPath); err != nil {
		return nil, err
	}

	return map[string]any{
		"audio_path":  outPath,
		"sample_rate": rate,
		"channels":    channels,
	}, nil
}

// CacheKeyFields implements executor.Stage.
func (s *ExtractAudio) CacheKeyFields() []string {
	return []string{"video_path", "sample_rate", "channels"}
}

// RequiredOutputFields implements executor.Stage.
func (s *ExtractAudio) RequiredOutputFields() []string { return []string{"audio_path"} }

// CustomPathFields implements executor.Stage.
func (s *ExtractAudio) CustomPathFields() map[string]string { return nil }

func (s *ExtractAudio) inputPath(in *executor.Input) string {
	if p, _ := in.Params["video_path"].(string); p != "" {
		return p
	}
	return in.Workflow.InputParams.VideoPath
}

// sampleRate reads the sample_rate parameter; JSON numbers arrive as
// float64.
func (s *ExtractAudio) sampleRate(in *executor.Input) int {
	return intParam(in.Params, "sample_rate", defaultSampleRate)
}

func (s *ExtractAudio) channels(in *executor.Input) int {
	return intParam(in.Params, "channels", defaultChannels)
}

func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}
