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

// Package storage imposes the deterministic artifact path scheme on stage
// outputs and mirrors local paths into the object store. Local layout and
// object keys deliberately share the same shape so artifacts are
// addressable across services:
//
//	<root>/<workflow_id>/nodes/<stage>/<type_dir>/<filename>
//	<root>/<workflow_id>/temp/<stage>/<filename>
package storage

import (
	"path"
	"path/filepath"
	"strings"
)

// Canonical type directories for stage-declared file types.
const (
	TypeAudio     = "audio"
	TypeVideo     = "video"
	TypeImages    = "images"
	TypeSubtitles = "subtitles"
	TypeData      = "data"
	TypeArchives  = "archives"
)

// typeAliases maps stage-declared type names to canonical type directories.
var typeAliases = map[string]string{
	"audio":     TypeAudio,
	"video":     TypeVideo,
	"image":     TypeImages,
	"images":    TypeImages,
	"subtitle":  TypeSubtitles,
	"subtitles": TypeSubtitles,
	"data":      TypeData,
	"json":      TypeData,
	"metadata":  TypeData,
	"archive":   TypeArchives,
	"archives":  TypeArchives,
}

// extTypes maps recognized file extensions to type directories. An output
// field named *_path whose basename carries one of these extensions is
// uploaded under the corresponding directory.
var extTypes = map[string]string{
	".wav":  TypeAudio,
	".mp3":  TypeAudio,
	".aac":  TypeAudio,
	".flac": TypeAudio,
	".m4a":  TypeAudio,
	".ogg":  TypeAudio,
	".mp4":  TypeVideo,
	".mkv":  TypeVideo,
	".avi":  TypeVideo,
	".mov":  TypeVideo,
	".webm": TypeVideo,
	".png":  TypeImages,
	".jpg":  TypeImages,
	".jpeg": TypeImages,
	".bmp":  TypeImages,
	".webp": TypeImages,
	".srt":  TypeSubtitles,
	".vtt":  TypeSubtitles,
	".ass":  TypeSubtitles,
	".json": TypeData,
	".zip":  TypeArchives,
	".tar":  TypeArchives,
	".gz":   TypeArchives,
}

// CanonicalTypeDir maps a stage-declared file type to its canonical
// directory name. Unknown types pass through literally.
func CanonicalTypeDir(fileType string) string {
	if canonical, ok := typeAliases[strings.ToLower(fileType)]; ok {
		return canonical
	}
	return fileType
}

// TypeDirForPath returns the type directory implied by the path's
// extension, or "" when the extension is not recognized.
func TypeDirForPath(p string) string {
	return extTypes[strings.ToLower(filepath.Ext(p))]
}

// Layout derives local paths and object keys for one workflow.
type Layout struct {
	// Root is the shared storage root directory.
	Root string

	// WorkflowID scopes all derived paths.
	WorkflowID string
}

// Dir returns the workflow's shared storage directory.
func (l Layout) Dir() string {
	return filepath.Join(l.Root, l.WorkflowID)
}

// OutputPath returns the local path for a stage output file.
func (l Layout) OutputPath(stage, fileType, filename string) string {
	return filepath.Join(l.Root, l.WorkflowID, "nodes", stage, CanonicalTypeDir(fileType), filename)
}

// TempPath returns the local path for a stage scratch file.
func (l Layout) TempPath(stage, filename string) string {
	return filepath.Join(l.Root, l.WorkflowID, "temp", stage, filename)
}

// OutputKey returns the object-store key for a stage output file. Keys use
// forward slashes regardless of platform.
func (l Layout) OutputKey(stage, fileType, filename string) string {
	return path.Join(l.WorkflowID, "nodes", stage, CanonicalTypeDir(fileType), filename)
}

// TempKey returns the object-store key for a stage scratch file.
func (l Layout) TempKey(stage, filename string) string {
	return path.Join(l.WorkflowID, "temp", stage, filename)
}
