// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"encoding/base64"
	"path/filepath"
	"strings"
)

// MediaMetadata is the user-facing description of an entry. It is the
// exact shape persisted as meta.json inside every library directory.
type MediaMetadata struct {
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
}

// MediaPaths locates one playable item: the media file, its display
// name and any paired subtitles. All paths are relative to the media
// root.
type MediaPaths struct {
	MediaFile string     `json:"mediaFile"`
	TrackName string     `json:"trackName"`
	Subtitles []Subtitle `json:"subtitles"`
}

// Subtitle pairs a text subtitle with the mp4 track container derived
// from it. Both files exist whenever a Subtitle is emitted.
type Subtitle struct {
	Language  Language `json:"language"`
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	TrackPath string   `json:"trackPath"`
}

// SeriesContent maps season number to episode number to paths. Both
// levels use strictly positive numbers and neither level is empty in an
// emitted entry.
type SeriesContent map[int]map[int]MediaPaths

// MediaEntry is one top-level directory of the media root. Exactly one
// of Movie and Series is set.
type MediaEntry struct {
	ID       string        `json:"id"`
	Metadata MediaMetadata `json:"metadata"`
	Movie    *MediaPaths   `json:"movie,omitempty"`
	Series   SeriesContent `json:"series,omitempty"`
}

// IsSeries reports whether the entry holds series content.
func (e MediaEntry) IsSeries() bool {
	return e.Series != nil
}

// Catalog is the crawler's output: every known entry keyed by ID.
type Catalog map[string]MediaEntry

// Clone returns a shallow copy suitable for publishing, so later catalog
// mutations don't race with readers of the previous snapshot.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for id, entry := range c {
		out[id] = entry
	}
	return out
}

// NextEpisode returns the episode that follows cur in playback order:
// the smallest higher episode within the same season, otherwise the
// earliest episode of the next season that has one.
func (s SeriesContent) NextEpisode(cur EpisodeIdentifier) (EpisodeIdentifier, bool) {
	if episodes, ok := s[cur.Season]; ok {
		next, found := 0, false
		for e := range episodes {
			if e > cur.Episode && (!found || e < next) {
				next, found = e, true
			}
		}
		if found {
			return EpisodeIdentifier{Season: cur.Season, Episode: next}, true
		}
	}

	season, found := 0, false
	for sn := range s {
		if sn > cur.Season && (!found || sn < season) {
			season, found = sn, true
		}
	}
	if !found {
		return EpisodeIdentifier{}, false
	}

	return s.earliestIn(season)
}

// EarliestEpisode returns the first episode of the first season, used
// when playback starts without a bookmark.
func (s SeriesContent) EarliestEpisode() (EpisodeIdentifier, bool) {
	season, found := 0, false
	for sn := range s {
		if !found || sn < season {
			season, found = sn, true
		}
	}
	if !found {
		return EpisodeIdentifier{}, false
	}

	return s.earliestIn(season)
}

func (s SeriesContent) earliestIn(season int) (EpisodeIdentifier, bool) {
	episode, found := 0, false
	for e := range s[season] {
		if !found || e < episode {
			episode, found = e, true
		}
	}
	if !found {
		return EpisodeIdentifier{}, false
	}

	return EpisodeIdentifier{Season: season, Episode: episode}, true
}

// Paths returns the MediaPaths for the given episode.
func (s SeriesContent) Paths(id EpisodeIdentifier) (MediaPaths, bool) {
	episodes, ok := s[id.Season]
	if !ok {
		return MediaPaths{}, false
	}
	paths, ok := episodes[id.Episode]
	return paths, ok
}

// DecodeName reverses the base64url encoding some uploaders apply to
// file stems. Callers fall back to the raw stem when it fails.
func DecodeName(stem string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(stem)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// TrackNameFromFile derives the display name for a media file: the
// base64url-decoded stem when decodable, the raw stem otherwise.
func TrackNameFromFile(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if decoded, err := DecodeName(stem); err == nil {
		return decoded
	}
	return stem
}
