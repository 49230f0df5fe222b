// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ExtraKind tags the two torrent payload shapes.
type ExtraKind string

const (
	ExtraMovie  ExtraKind = "movie"
	ExtraSeries ExtraKind = "series"
)

// TorrentExtra is the per-torrent metadata this system owns. qBittorrent
// offers no user-data field on torrents, so the extra travels base64url
// encoded inside the free-form category string and is decoded wherever
// it is needed.
type TorrentExtra struct {
	Kind        ExtraKind           `json:"type"`
	Metadata    MediaMetadata       `json:"metadata"`
	FileMapping *EpisodeFileMapping `json:"fileMapping,omitempty"`
}

// ProcessReady reports whether a completed torrent carrying this extra
// can be prepared: movies always, series only once a file mapping has
// been attached.
func (e TorrentExtra) ProcessReady() bool {
	switch e.Kind {
	case ExtraMovie:
		return true
	case ExtraSeries:
		return e.FileMapping != nil
	}
	return false
}

// EncodeCategory serializes the extra into the category carrier string.
func (e TorrentExtra) EncodeCategory() (string, error) {
	if e.Kind != ExtraMovie && e.Kind != ExtraSeries {
		return "", fmt.Errorf("encode category: unknown extra kind %q", e.Kind)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode category: %w", err)
	}

	return base64.URLEncoding.EncodeToString(payload), nil
}

// DecodeCategory reverses EncodeCategory. Torrents whose category does
// not decode are treated by callers as carrying no usable extra.
func DecodeCategory(category string) (TorrentExtra, error) {
	payload, err := base64.URLEncoding.DecodeString(category)
	if err != nil {
		return TorrentExtra{}, fmt.Errorf("decode category: %w", err)
	}

	var extra TorrentExtra
	if err := json.Unmarshal(payload, &extra); err != nil {
		return TorrentExtra{}, fmt.Errorf("decode category: %w", err)
	}

	if extra.Kind != ExtraMovie && extra.Kind != ExtraSeries {
		return TorrentExtra{}, fmt.Errorf("decode category: unknown extra kind %q", extra.Kind)
	}

	return extra, nil
}
