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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaflow/mediaflow/internal/executor"
	"github.com/mediaflow/mediaflow/internal/storage"
	"github.com/mediaflow/mediaflow/pkg/workflow"
)

func stageInput(t *testing.T, params map[string]any) *executor.Input {
	t.Helper()
	wc := workflow.NewContext("wf-1", workflow.InputParams{
		VideoPath: "/in/v.mp4",
	}, "")
	return &executor.Input{
		Workflow: wc,
		Params:   params,
		Layout:   storage.Layout{Root: t.TempDir(), WorkflowID: "wf-1"},
	}
}

func TestProbeMediaValidate(t *testing.T) {
	s := NewProbeMedia()

	in := stageInput(t, nil)
	assert.NoError(t, s.ValidateInput(in), "workflow video_path suffices")

	in.Workflow.InputParams.VideoPath = ""
	assert.Error(t, s.ValidateInput(in))

	in.Params = map[string]any{"video_path": "/override.mp4"}
	assert.NoError(t, s.ValidateInput(in))
}

func TestProbeMediaExecute(t *testing.T) {
	var gotArgs []string
	s := &ProbeMedia{run: func(ctx context.Context, name string, args ...string) (string, error) {
		gotArgs = append([]string{name}, args...)
		return `{
			"format": {"format_name": "mov,mp4,m4a", "duration": "12.480000"},
			"streams": [{"codec_type": "video"}, {"codec_type": "audio"}]
		}`, nil
	}}

	out, err := s.Execute(context.Background(), stageInput(t, nil))
	require.NoError(t, err)

	assert.Equal(t, "ffprobe", gotArgs[0])
	assert.Equal(t, "/in/v.mp4", gotArgs[len(gotArgs)-1])
	assert.Equal(t, "mov,mp4,m4a", out["format_name"])
	assert.Equal(t, 12.48, out["duration"])
	assert.Len(t, out["streams"], 2)
}

func TestProbeMediaExecuteBadOutput(t *testing.T) {
	s := &ProbeMedia{run: func(context.Context, string, ...string) (string, error) {
		return "not json", nil
	}}
	_, err := s.Execute(context.Background(), stageInput(t, nil))
	assert.Error(t, err)
}

func TestExtractAudioValidate(t *testing.T) {
	s := NewExtractAudio()

	assert.NoError(t, s.ValidateInput(stageInput(t, nil)))
	assert.Error(t, s.ValidateInput(stageInput(t, map[string]any{"sample_rate": -1})))

	in := stageInput(t, nil)
	in.Workflow.InputParams.VideoPath = ""
	assert.Error(t, s.ValidateInput(in))
}

func TestExtractAudioExecute(t *testing.T) {
	var gotArgs []string
	s := &ExtractAudio{run: func(ctx context.Context, name string, args ...string) (string, error) {
		gotArgs = append([]string{name}, args...)
		return "", nil
	}}

	// JSON-decoded numbers arrive as float64.
	in := stageInput(t, map[string]any{"sample_rate": float64(44100), "channels": float64(2)})
	out, err := s.Execute(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "ffmpeg", gotArgs[0])
	assert.Contains(t, gotArgs, "44100")
	assert.Contains(t, gotArgs, "-vn")

	audioPath, ok := out["audio_path"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(audioPath, "audio.wav"))
	assert.Contains(t, audioPath, "nodes")
	assert.Equal(t, 44100, out["sample_rate"])
	assert.Equal(t, 2, out["channels"])

	// The output directory was created for ffmpeg to write into.
	assert.DirExists(t, strings.TrimSuffix(audioPath, "/audio.wav"))
}

func TestExtractAudioExecuteDefaults(t *testing.T) {
	s := &ExtractAudio{run: func(context.Context, string, ...string) (string, error) {
		return "", nil
	}}
	out, err := s.Execute(context.Background(), stageInput(t, nil))
	require.NoError(t, err)
	assert.Equal(t, defaultSampleRate, out["sample_rate"])
	assert.Equal(t, defaultChannels, out["channels"])
}

func TestExtractAudioExecuteToolFailure(t *testing.T) {
	s := &ExtractAudio{run: func(context.Context, string, ...string) (string, error) {
		return "", errors.New("ffmpeg failed: no audio stream")
	}}
	_, err := s.Execute(context.Background(), stageInput(t, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio stream")
}
