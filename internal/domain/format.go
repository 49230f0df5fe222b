// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"path/filepath"
	"strings"
)

// playbackExtensions are containers clients play directly; only files
// with these extensions appear in the catalog.
var playbackExtensions = []string{"mp4", "mov"}

// videoExtensions are containers accepted from torrents for preparation.
var videoExtensions = []string{"mp4", "mov", "mkv", "ts", "avi"}

// FileExtension returns the lowercase extension without the dot.
func FileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// IsPlaybackFile reports whether the file is directly playable.
func IsPlaybackFile(name string) bool {
	ext := FileExtension(name)
	for _, e := range playbackExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// IsVideoFile reports whether the file is a preparation candidate.
func IsVideoFile(name string) bool {
	ext := FileExtension(name)
	for _, e := range videoExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
