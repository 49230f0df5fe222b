// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package crawler

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/autobrr/streambrr/internal/domain"
	"github.com/rs/zerolog/log"
)

const metadataFile = "meta.json"

// scanLibrary walks every top-level directory of the media root and
// collects the entries that classify. Anything that does not classify
// is left out of the catalog.
func scanLibrary(mediaDir string) domain.Catalog {
	contents, err := os.ReadDir(mediaDir)
	if err != nil {
		log.Error().Err(err).Str("dir", mediaDir).Msg("Cannot read media directory")
		return domain.Catalog{}
	}

	catalog := make(domain.Catalog, len(contents))
	for _, dirEntry := range contents {
		if !dirEntry.IsDir() {
			continue
		}
		entry, ok := scanEntry(mediaDir, dirEntry.Name())
		if !ok {
			continue
		}
		catalog[entry.ID] = entry
	}

	return catalog
}

// scanEntry builds the MediaEntry for one library directory. The
// directory name is the entry ID. A top-level playback file makes the
// entry a movie; otherwise season directories make it a series. Both
// require a readable meta.json.
func scanEntry(mediaDir, id string) (domain.MediaEntry, bool) {
	dir := filepath.Join(mediaDir, id)
	contents, err := os.ReadDir(dir)
	if err != nil {
		return domain.MediaEntry{}, false
	}

	var (
		meta      *domain.MediaMetadata
		movieFile string
		series    = domain.SeriesContent{}
	)
	for _, entry := range contents {
		name := entry.Name()
		if entry.IsDir() {
			season, ok := numericContent(name)
			if !ok {
				continue
			}
			if episodes, ok := scanSeason(mediaDir, filepath.Join(id, name)); ok {
				series[season] = episodes
			}
			continue
		}
		if name == metadataFile {
			m, err := readMetadata(filepath.Join(dir, name))
			if err != nil {
				log.Warn().Err(err).Str("path", dir).Msg("Skipping media directory with corrupt metadata")
				return domain.MediaEntry{}, false
			}
			meta = &m
			continue
		}
		if movieFile == "" && domain.IsPlaybackFile(name) {
			movieFile = name
		}
	}

	if meta == nil {
		log.Warn().Str("path", dir).Msg("Skipping media directory without metadata")
		return domain.MediaEntry{}, false
	}

	if movieFile != "" {
		return domain.MediaEntry{
			ID:       id,
			Metadata: *meta,
			Movie: &domain.MediaPaths{
				MediaFile: filepath.Join(id, movieFile),
				TrackName: domain.TrackNameFromFile(movieFile),
				Subtitles: movieSubtitles(mediaDir, filepath.Join(id, subtitlesDir)),
			},
		}, true
	}

	if len(series) > 0 {
		return domain.MediaEntry{ID: id, Metadata: *meta, Series: series}, true
	}

	return domain.MediaEntry{}, false
}

// scanSeason collects the numbered episode files of one season
// directory. Empty seasons are dropped so they never appear in the
// catalog.
func scanSeason(mediaDir, relDir string) (map[int]domain.MediaPaths, bool) {
	contents, err := os.ReadDir(filepath.Join(mediaDir, relDir))
	if err != nil {
		return nil, false
	}

	subtitles := seriesSubtitles(mediaDir, filepath.Join(relDir, subtitlesDir))

	episodes := make(map[int]domain.MediaPaths)
	for _, entry := range contents {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !domain.IsPlaybackFile(name) {
			continue
		}
		number, ok := numericContent(name)
		if !ok {
			continue
		}
		episodes[number] = domain.MediaPaths{
			MediaFile: filepath.Join(relDir, name),
			TrackName: domain.TrackNameFromFile(name),
			Subtitles: subtitles[number],
		}
	}

	if len(episodes) == 0 {
		return nil, false
	}
	return episodes, true
}

func readMetadata(path string) (domain.MediaMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.MediaMetadata{}, err
	}

	var meta domain.MediaMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.MediaMetadata{}, err
	}
	if meta.Title == "" {
		return domain.MediaMetadata{}, errors.New("metadata has no title")
	}

	return meta, nil
}

// numericContent extracts the first maximal run of ASCII digits from a
// file or directory name: "22ey17.exe" yields 22, "eyslkvjsdlkj03k"
// yields 3. Season and episode numbers start at 1, so names without
// digits or with an all-zero run yield no number.
func numericContent(name string) (int, bool) {
	start, end := -1, -1
	for i := 0; i < len(name); i++ {
		digit := name[i] >= '0' && name[i] <= '9'
		if digit && start < 0 {
			start = i
		}
		if !digit && start >= 0 {
			end = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}
	if end < 0 {
		end = len(name)
	}

	number, err := strconv.Atoi(name[start:end])
	if err != nil || number == 0 {
		return 0, false
	}
	return number, true
}
