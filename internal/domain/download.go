// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	qbt "github.com/autobrr/go-qbittorrent"
)

// DownloadState is the client-facing view of a torrent's lifecycle,
// folded down from qBittorrent's state zoo plus the processor's
// in-flight set.
type DownloadState string

const (
	DownloadPaused     DownloadState = "paused"
	DownloadFailed     DownloadState = "failed"
	DownloadInProgress DownloadState = "inProgress"
	DownloadProcessing DownloadState = "processing"
	DownloadComplete   DownloadState = "complete"
)

// DownloadStateFor folds a torrent's state for display. A hash in the
// processing set overrides everything else: the files are already being
// moved, whatever qBittorrent still reports.
func DownloadStateFor(t qbt.Torrent, processing bool) DownloadState {
	if processing {
		return DownloadProcessing
	}

	switch t.State {
	case qbt.TorrentStateError, qbt.TorrentStateMissingFiles:
		return DownloadFailed
	case qbt.TorrentStateUploading, qbt.TorrentStateStalledUp,
		qbt.TorrentStatePausedUp, qbt.TorrentStateStoppedUp,
		qbt.TorrentStateQueuedUp, qbt.TorrentStateForcedUp,
		qbt.TorrentStateCheckingUp:
		return DownloadComplete
	case qbt.TorrentStatePausedDl, qbt.TorrentStateStoppedDl:
		return DownloadPaused
	default:
		return DownloadInProgress
	}
}

// Download is the client-facing summary of one torrent the server owns.
type Download struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Progress         float64       `json:"progress"`
	NeedsFileMapping bool          `json:"needsFileMapping"`
	State            DownloadState `json:"state"`
}

// DownloadFor summarizes a torrent for clients. Torrents whose category
// does not decode were not added by this server; those report ok false
// and stay out of download listings.
func DownloadFor(t qbt.Torrent, processing bool) (Download, bool) {
	extra, err := DecodeCategory(t.Category)
	if err != nil {
		return Download{}, false
	}

	return Download{
		ID:               t.Hash,
		Title:            extra.Metadata.Title,
		Progress:         t.Progress,
		NeedsFileMapping: extra.Kind == ExtraSeries && extra.FileMapping == nil,
		State:            DownloadStateFor(t, processing),
	}, true
}

// HashSet is a set of torrent hashes. The processor publishes snapshots
// of it as the processing list.
type HashSet map[string]struct{}

// NewHashSet builds a set from the given hashes.
func NewHashSet(hashes ...string) HashSet {
	s := make(HashSet, len(hashes))
	for _, h := range hashes {
		s[h] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s HashSet) Has(hash string) bool {
	_, ok := s[hash]
	return ok
}

// Add inserts a hash.
func (s HashSet) Add(hash string) {
	s[hash] = struct{}{}
}

// Union returns a new set containing both operands' hashes.
func (s HashSet) Union(other HashSet) HashSet {
	out := make(HashSet, len(s)+len(other))
	for h := range s {
		out[h] = struct{}{}
	}
	for h := range other {
		out[h] = struct{}{}
	}
	return out
}

// Clone returns an independent copy for publishing.
func (s HashSet) Clone() HashSet {
	out := make(HashSet, len(s))
	for h := range s {
		out[h] = struct{}{}
	}
	return out
}
