// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package app bundles the live service handles that outlive any single
// consumer. The serve command builds one State; metrics and every other
// long-lived reader work on their own Clone.
package app

import (
	"github.com/autobrr/streambrr/internal/crawler"
	"github.com/autobrr/streambrr/internal/domain"
	"github.com/autobrr/streambrr/internal/qbittorrent"
	"github.com/autobrr/streambrr/internal/subtitles"
	"github.com/autobrr/streambrr/pkg/sigwatch"
)

// State carries the media root plus one handle per service loop. A
// watcher handle serves a single goroutine, so every concurrent
// consumer must work on its own Clone and close it when done.
type State struct {
	MediaDir   string
	Torrents   *qbittorrent.Handle
	Media      *crawler.Handle
	Subtitles  *subtitles.Handle
	Processing *sigwatch.Cell[domain.HashSet]
}

// New assembles the state from freshly created pairs.
func New(cfg *domain.Config, torrents *qbittorrent.Handle, media *crawler.Handle, subs *subtitles.Handle, processing *sigwatch.Cell[domain.HashSet]) *State {
	return &State{
		MediaDir:   cfg.MediaDir,
		Torrents:   torrents,
		Media:      media,
		Subtitles:  subs,
		Processing: processing,
	}
}

// Clone derives an independent set of handles for another goroutine.
// The processing cell is shared, cells are safe for concurrent use.
func (s *State) Clone() *State {
	return &State{
		MediaDir:   s.MediaDir,
		Torrents:   s.Torrents.Clone(),
		Media:      s.Media.Clone(),
		Subtitles:  s.Subtitles.Clone(),
		Processing: s.Processing,
	}
}

// Close releases the watcher handles. Closing the last handle of a pair
// ends the matching service loop's command stream.
func (s *State) Close() {
	s.Torrents.Close()
	s.Media.Close()
	s.Subtitles.Close()
}

// Downloads summarizes the current torrent list for clients, folding
// the processing set into each entry's state. Torrents added outside
// this server carry no decodable category and are omitted.
func (s *State) Downloads() []domain.Download {
	processing := s.Processing.Latest()

	torrents := s.Torrents.Latest()
	downloads := make([]domain.Download, 0, len(torrents))
	for _, t := range torrents {
		d, ok := domain.DownloadFor(t, processing.Has(t.Hash))
		if !ok {
			continue
		}
		downloads = append(downloads, d)
	}
	return downloads
}
