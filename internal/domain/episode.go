// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// EpisodeIdentifier addresses one episode within a series. Identifiers
// order lexicographically: first by season, then by episode.
type EpisodeIdentifier struct {
	Season  int `json:"seasonNo"`
	Episode int `json:"episodeNo"`
}

// Less reports whether e sorts before other.
func (e EpisodeIdentifier) Less(other EpisodeIdentifier) bool {
	if e.Season != other.Season {
		return e.Season < other.Season
	}
	return e.Episode < other.Episode
}
