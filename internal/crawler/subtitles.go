// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package crawler

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/autobrr/streambrr/internal/domain"
)

const subtitlesDir = "subtitles"

// subtitleStem is the parsed form of a subtitle file stem:
// <digits?><lang3><name>. The digits carry the episode number for
// series subtitles and are absent for movie subtitles.
type subtitleStem struct {
	name     string
	language domain.Language
	episode  int
	numbered bool
}

// parseSubtitleStem rejects stems whose language code is not a valid
// ISO-639-2T code, which is how arbitrary files in a subtitles
// directory are kept out of the catalog.
func parseSubtitleStem(stem string) (subtitleStem, bool) {
	digits := 0
	for digits < len(stem) && stem[digits] >= '0' && stem[digits] <= '9' {
		digits++
	}
	if len(stem) < digits+3 {
		return subtitleStem{}, false
	}

	language, err := domain.ParseLanguage(stem[digits : digits+3])
	if err != nil {
		return subtitleStem{}, false
	}

	parsed := subtitleStem{name: stem[digits+3:], language: language}
	if digits > 0 {
		number, err := strconv.Atoi(stem[:digits])
		if err != nil {
			return subtitleStem{}, false
		}
		parsed.episode = number
		parsed.numbered = true
	}

	return parsed, true
}

// subtitlePair tracks the two files a usable subtitle consists of: the
// text source and the mp4 track container derived from it. Only stems
// with both members emit a catalog subtitle.
type subtitlePair struct {
	stem      subtitleStem
	textFile  string
	trackFile string
}

func (p subtitlePair) subtitle(relDir string) domain.Subtitle {
	return domain.Subtitle{
		Language:  p.stem.language,
		Name:      p.stem.name,
		Path:      filepath.Join(relDir, p.textFile),
		TrackPath: filepath.Join(relDir, p.trackFile),
	}
}

// explorePairs reads one subtitles directory and returns the complete
// pairs in stem order. A missing directory yields no pairs.
func explorePairs(dir string) []subtitlePair {
	contents, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	pairs := make(map[string]*subtitlePair)
	for _, entry := range contents {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := domain.FileExtension(name)
		if ext != "srt" && ext != "vtt" && ext != "mp4" {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		parsed, ok := parseSubtitleStem(stem)
		if !ok {
			continue
		}

		pair := pairs[stem]
		if pair == nil {
			pair = &subtitlePair{}
			pairs[stem] = pair
		}
		pair.stem = parsed
		if ext == "mp4" {
			pair.trackFile = name
		} else {
			pair.textFile = name
		}
	}

	stems := make([]string, 0, len(pairs))
	for stem := range pairs {
		stems = append(stems, stem)
	}
	sort.Strings(stems)

	var complete []subtitlePair
	for _, stem := range stems {
		pair := pairs[stem]
		if pair.textFile == "" || pair.trackFile == "" {
			continue
		}
		complete = append(complete, *pair)
	}

	return complete
}

// seriesSubtitles groups the pairs of one season's subtitles directory
// by episode number. Stems without a number cannot be attached to an
// episode and are dropped.
func seriesSubtitles(mediaDir, relDir string) map[int][]domain.Subtitle {
	pairs := explorePairs(filepath.Join(mediaDir, relDir))
	if len(pairs) == 0 {
		return nil
	}

	out := make(map[int][]domain.Subtitle)
	for _, pair := range pairs {
		if !pair.stem.numbered {
			continue
		}
		out[pair.stem.episode] = append(out[pair.stem.episode], pair.subtitle(relDir))
	}

	return out
}

// movieSubtitles returns the pairs of a movie's subtitles directory.
// Numbered stems belong to series layouts and are dropped here.
func movieSubtitles(mediaDir, relDir string) []domain.Subtitle {
	var out []domain.Subtitle
	for _, pair := range explorePairs(filepath.Join(mediaDir, relDir)) {
		if pair.stem.numbered {
			continue
		}
		out = append(out, pair.subtitle(relDir))
	}
	return out
}
