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

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayoutPaths(t *testing.T) {
	l := Layout{Root: "/data/workflows", WorkflowID: "wf-1"}

	assert.Equal(t, "/data/workflows/wf-1", l.Dir())
	assert.Equal(t,
		"/data/workflows/wf-1/nodes/ffmpeg.extract_audio/audio/v.wav",
		l.OutputPath("ffmpeg.extract_audio", "audio", "v.wav"))
	assert.Equal(t,
		"/data/workflows/wf-1/temp/asr.transcribe/chunk_0.wav",
		l.TempPath("asr.transcribe", "chunk_0.wav"))
}

func TestLayoutKeysMirrorLocalPaths(t *testing.T) {
	l := Layout{Root: "/data/workflows", WorkflowID: "wf-1"}

	// Object keys drop the root but keep the same shape.
	assert.Equal(t,
		"wf-1/nodes/ffmpeg.extract_audio/audio/v.wav",
		l.OutputKey("ffmpeg.extract_audio", "audio", "v.wav"))
	assert.Equal(t,
		"wf-1/temp/asr.transcribe/chunk_0.wav",
		l.TempKey("asr.transcribe", "chunk_0.wav"))
}

func TestCanonicalTypeDir(t *testing.T) {
	tests := map[string]string{
		"audio":    "audio",
		"image":    "images",
		"Images":   "images",
		"subtitle": "subtitles",
		"json":     "data",
		"metadata": "data",
		"archive":  "archives",
		"weights":  "weights", // unknown types pass through literally
	}
	for in, want := range tests {
		assert.Equal(t, want, CanonicalTypeDir(in), "type %q", in)
	}
}

func TestTypeDirForPath(t *testing.T) {
	tests := map[string]string{
		"/x/v.wav":       "audio",
		"/x/v.MP4":       "video",
		"/x/frame.png":   "images",
		"/x/subs.srt":    "subtitles",
		"/x/result.json": "data",
		"/x/bundle.zip":  "archives",
		"/x/model.bin":   "",
		"/x/noext":       "",
	}
	for in, want := range tests {
		assert.Equal(t, want, TypeDirForPath(in), "path %q", in)
	}
}
