// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrMappingUnknownFile rejects a mapping keyed by a file the torrent
	// does not contain.
	ErrMappingUnknownFile = errors.New("mapping refers to a file not in the torrent")

	// ErrMappingDuplicateEpisode rejects a mapping assigning two files to
	// the same episode.
	ErrMappingDuplicateEpisode = errors.New("mapping assigns the same episode twice")
)

// EpisodeFileMappingForm is a series file mapping as submitted by a
// client: torrent file path → episode. It carries no guarantees; call
// Validate to obtain an EpisodeFileMapping the processor will act on.
type EpisodeFileMappingForm map[string]EpisodeIdentifier

// EpisodeFileMapping is a validated mapping: every file name was present
// in the torrent's file list at validation time and all episode
// identifiers are pairwise distinct. Values are only produced by
// Validate or decoded from a category written by this system.
type EpisodeFileMapping struct {
	entries map[string]EpisodeIdentifier
}

// Validate checks the form against the torrent's real file list and
// returns the validated mapping. A single unknown file or duplicate
// episode rejects the whole form.
func (f EpisodeFileMappingForm) Validate(files []string) (EpisodeFileMapping, error) {
	seen := make(map[EpisodeIdentifier]string, len(f))
	entries := make(map[string]EpisodeIdentifier, len(f))

	for file, id := range f {
		if !slices.Contains(files, file) {
			return EpisodeFileMapping{}, fmt.Errorf("%w: %q", ErrMappingUnknownFile, file)
		}
		if prev, dup := seen[id]; dup {
			return EpisodeFileMapping{}, fmt.Errorf("%w: %q and %q both map to S%dE%d",
				ErrMappingDuplicateEpisode, prev, file, id.Season, id.Episode)
		}
		seen[id] = file
		entries[file] = id
	}

	return EpisodeFileMapping{entries: entries}, nil
}

// Entries exposes the mapping for iteration. Callers must not mutate it.
func (m EpisodeFileMapping) Entries() map[string]EpisodeIdentifier {
	return m.entries
}

// Len returns the number of mapped files.
func (m EpisodeFileMapping) Len() int {
	return len(m.entries)
}

// MarshalJSON encodes the mapping as a plain file → episode object.
func (m EpisodeFileMapping) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.entries)
}

// UnmarshalJSON decodes a mapping previously written by MarshalJSON.
// Categories are written only through validated mappings, so the decoded
// value is trusted.
func (m *EpisodeFileMapping) UnmarshalJSON(data []byte) error {
	var entries map[string]EpisodeIdentifier
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	m.entries = entries
	return nil
}
