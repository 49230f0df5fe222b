// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryRoundTripMovie(t *testing.T) {
	extra := TorrentExtra{
		Kind:     ExtraMovie,
		Metadata: MediaMetadata{Title: "Jellyfish", Thumbnail: "https://img.example/j.png"},
	}

	category, err := extra.EncodeCategory()
	require.NoError(t, err)

	decoded, err := DecodeCategory(category)
	require.NoError(t, err)
	assert.Equal(t, extra, decoded)
}

func TestCategoryRoundTripSeriesWithMapping(t *testing.T) {
	form := EpisodeFileMappingForm{
		"season1/the-looks-S1E1.mkv": {Season: 1, Episode: 1},
		"season1/the-looks-S1E2.mkv": {Season: 1, Episode: 2},
	}
	mapping, err := form.Validate([]string{
		"season1/the-looks-S1E1.mkv",
		"season1/the-looks-S1E2.mkv",
	})
	require.NoError(t, err)

	extra := TorrentExtra{
		Kind:        ExtraSeries,
		Metadata:    MediaMetadata{Title: "The Looks", Thumbnail: "t"},
		FileMapping: &mapping,
	}

	category, err := extra.EncodeCategory()
	require.NoError(t, err)

	decoded, err := DecodeCategory(category)
	require.NoError(t, err)
	assert.Equal(t, extra.Kind, decoded.Kind)
	assert.Equal(t, extra.Metadata, decoded.Metadata)
	require.NotNil(t, decoded.FileMapping)
	assert.Equal(t, mapping.Entries(), decoded.FileMapping.Entries())
}

func TestDecodeCategoryRejectsGarbage(t *testing.T) {
	tests := []struct {
		name     string
		category string
	}{
		{name: "not base64", category: "definitely not base64!"},
		{name: "base64 of non-json", category: "bWlsaw=="},
		{name: "unknown kind", category: mustEncode(t, `{"type":"music","metadata":{"title":"x","thumbnail":""}}`)},
		{name: "empty category", category: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCategory(tt.category)
			assert.Error(t, err)
		})
	}
}

// mustEncode base64url-encodes raw JSON, bypassing the typed encoder.
func mustEncode(t *testing.T, raw string) string {
	t.Helper()
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func TestProcessReady(t *testing.T) {
	mapping, err := EpisodeFileMappingForm{}.Validate(nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		extra TorrentExtra
		ready bool
	}{
		{
			name:  "movie is always ready",
			extra: TorrentExtra{Kind: ExtraMovie},
			ready: true,
		},
		{
			name:  "series without mapping is not ready",
			extra: TorrentExtra{Kind: ExtraSeries},
			ready: false,
		},
		{
			name:  "series with mapping is ready",
			extra: TorrentExtra{Kind: ExtraSeries, FileMapping: &mapping},
			ready: true,
		},
		{
			name:  "unknown kind is never ready",
			extra: TorrentExtra{Kind: "music"},
			ready: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ready, tt.extra.ProcessReady())
		})
	}
}

func TestEncodeCategoryRejectsUnknownKind(t *testing.T) {
	_, err := TorrentExtra{Kind: "music"}.EncodeCategory()
	assert.Error(t, err)
}
