// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package subtitles

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/autobrr/streambrr/internal/domain"
	"github.com/rs/zerolog/log"
)

// Search passes a search through to the provider. The query is the
// entry's media file name as uploaded, recovered from its stored stem.
// Safe to call from any goroutine.
func (s *Service) Search(ctx context.Context, id string, lang domain.Language, episode *domain.EpisodeIdentifier) ([]DownloadOption, error) {
	if s.provider == nil {
		return nil, ErrProviderDisabled
	}

	h := s.media.Clone()
	defer h.Close()

	entry, ok := h.Latest()[id]
	if !ok {
		return nil, fmt.Errorf("no media entry %q", id)
	}

	paths, err := mediaPathsFor(entry, episode)
	if err != nil {
		return nil, err
	}

	return s.provider.Search(ctx, searchQuery(entry, paths.MediaFile), lang, episode)
}

func mediaPathsFor(entry domain.MediaEntry, episode *domain.EpisodeIdentifier) (domain.MediaPaths, error) {
	if entry.IsSeries() {
		if episode == nil {
			return domain.MediaPaths{}, fmt.Errorf("media entry %q is a series, an episode is required", entry.ID)
		}
		paths, ok := entry.Series.Paths(*episode)
		if !ok {
			return domain.MediaPaths{}, fmt.Errorf("media entry %q has no S%dE%d", entry.ID, episode.Season, episode.Episode)
		}
		return paths, nil
	}

	if episode != nil {
		return domain.MediaPaths{}, fmt.Errorf("media entry %q is a movie, no episode applies", entry.ID)
	}
	return *entry.Movie, nil
}

// searchQuery decodes the stored file stem. Ingested media carries its
// original name base64url encoded; anything else is searched verbatim.
func searchQuery(entry domain.MediaEntry, mediaFile string) string {
	stem := strings.TrimSuffix(filepath.Base(mediaFile), filepath.Ext(mediaFile))

	decoded, err := domain.DecodeName(stem)
	if err != nil {
		log.Warn().
			Str("title", entry.Metadata.Title).
			Str("stem", stem).
			Msg("Could not decode the media file stem, searching for it verbatim")
		return stem
	}
	return decoded
}
