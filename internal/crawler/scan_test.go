// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package crawler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericContent(t *testing.T) {
	tests := []struct {
		name   string
		number int
		found  bool
	}{
		{name: "1Ambush.mov", number: 1, found: true},
		{name: "176hey.exe", number: 176, found: true},
		{name: "02Ambush.mov", number: 2, found: true},
		{name: "22ey17.exe", number: 22, found: true},
		{name: "eyslkvjsdlkj03k.exe", number: 3, found: true},
		{name: "1", number: 1, found: true},
		{name: "Ambush.mov", found: false},
		{name: "0Special", found: false},
		{name: "000.mp4", found: false},
		{name: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			number, found := numericContent(tt.name)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.number, number)
		})
	}
}

func TestScanSeasonIgnoresUnplayableFiles(t *testing.T) {
	mediaDir := t.TempDir()
	seasonDir := filepath.Join(mediaDir, "Breaking", "1")

	writeFile(t, filepath.Join(seasonDir, "1pilot.mp4"), "")
	writeFile(t, filepath.Join(seasonDir, "2cat.mkv"), "")
	writeFile(t, filepath.Join(seasonDir, "3notes.txt"), "")
	writeFile(t, filepath.Join(seasonDir, "trailer.mp4"), "")

	episodes, ok := scanSeason(mediaDir, filepath.Join("Breaking", "1"))
	require.True(t, ok)
	require.Len(t, episodes, 1)
	assert.Equal(t, filepath.Join("Breaking", "1", "1pilot.mp4"), episodes[1].MediaFile)
}

func TestScanSeasonDropsEmptySeason(t *testing.T) {
	mediaDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(mediaDir, "Breaking", "3"), 0o755))

	_, ok := scanSeason(mediaDir, filepath.Join("Breaking", "3"))
	assert.False(t, ok)
}

func TestScanEntryUsesRelativePaths(t *testing.T) {
	mediaDir := t.TempDir()
	dir := filepath.Join(mediaDir, "Inception")
	writeMeta(t, dir, "Inception")
	writeFile(t, filepath.Join(dir, "Ambush.mov"), "")

	entry, ok := scanEntry(mediaDir, "Inception")
	require.True(t, ok)
	require.NotNil(t, entry.Movie)
	assert.Equal(t, filepath.Join("Inception", "Ambush.mov"), entry.Movie.MediaFile)
	assert.False(t, filepath.IsAbs(entry.Movie.MediaFile))
}

func TestScanEntryDecodesTrackNames(t *testing.T) {
	mediaDir := t.TempDir()
	dir := filepath.Join(mediaDir, "Encoded")
	writeMeta(t, dir, "Encoded")
	// "aGV5" is the url-safe base64 form of "hey".
	writeFile(t, filepath.Join(dir, "aGV5.mp4"), "")

	entry, ok := scanEntry(mediaDir, "Encoded")
	require.True(t, ok)
	require.NotNil(t, entry.Movie)
	assert.Equal(t, "hey", entry.Movie.TrackName)
}

func TestReadMetadata(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "valid", content: `{"title":"Inception","thumbnail":"t.jpg"}`, wantErr: false},
		{name: "corrupt", content: `{nope`, wantErr: true},
		{name: "missing title", content: `{"thumbnail":"t.jpg"}`, wantErr: true},
		{name: "empty", content: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			meta, err := readMetadata(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Inception", meta.Title)
			assert.Equal(t, "t.jpg", meta.Thumbnail)
		})
	}
}
