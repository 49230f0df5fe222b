// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package processor watches the torrent list and turns finished
// downloads into library entries: it moves their payload into the media
// root, converts containers the clients cannot play, removes the
// torrent from the client and asks the crawler to pick the result up.
//
// The loop owns the processing list. A hash enters it when preparation
// starts and leaves it when the torrent disappears from the client or
// its preparation failed, so a failed prepare is reconsidered on the
// next torrent list.
package processor

import (
	"context"
	"fmt"
	"sync"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/autobrr/streambrr/internal/crawler"
	"github.com/autobrr/streambrr/internal/domain"
	"github.com/autobrr/streambrr/internal/qbittorrent"
	"github.com/autobrr/streambrr/pkg/sigwatch"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// converter is the slice of transcode.Transcoder the processor needs,
// split out so tests can substitute the ffmpeg invocation.
type converter interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
}

// Processor drives one iteration per published torrent list. The
// torrents handle must be dedicated to this goroutine.
type Processor struct {
	mediaDir   string
	torrents   *qbittorrent.Handle
	media      *crawler.Handle
	processing *sigwatch.Cell[domain.HashSet]
	convert    converter
}

func New(cfg *domain.Config, torrents *qbittorrent.Handle, media *crawler.Handle, processing *sigwatch.Cell[domain.HashSet], transcoder converter) *Processor {
	return &Processor{
		mediaDir:   cfg.MediaDir,
		torrents:   torrents,
		media:      media,
		processing: processing,
		convert:    transcoder,
	}
}

// Run processes the current torrent list, then blocks until the next
// one is published. It returns when the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		p.iterate(ctx)

		if err := p.torrents.Changed(ctx); err != nil {
			return err
		}
	}
}

// prepareJob pairs a torrent with its already-decoded extra so the
// category is parsed once per iteration.
type prepareJob struct {
	torrent qbt.Torrent
	extra   domain.TorrentExtra
}

func (p *Processor) iterate(ctx context.Context) {
	torrents := p.torrents.Latest()

	listed := domain.NewHashSet()
	for _, t := range torrents {
		listed.Add(t.Hash)
	}

	// Hashes whose torrents left the client can never be reconsidered;
	// dropping them keeps the set bounded and lets a re-added torrent
	// process fresh.
	processing := domain.NewHashSet()
	for hash := range p.processing.Latest() {
		if listed.Has(hash) {
			processing.Add(hash)
		}
	}

	var (
		jobs   []prepareJob
		faulty []string
	)
	for _, t := range torrents {
		switch {
		case isFaulty(t):
			faulty = append(faulty, t.Hash)
		case processing.Has(t.Hash) || !isDone(t):
			// already in flight, or still downloading
		default:
			extra, err := domain.DecodeCategory(t.Category)
			if err != nil {
				log.Error().Err(err).Str("hash", t.Hash).Msg("Could not decode torrent category")
				continue
			}
			if !extra.ProcessReady() {
				continue
			}
			jobs = append(jobs, prepareJob{torrent: t, extra: extra})
			processing.Add(t.Hash)
		}
	}

	// Announce before any work begins so clients see the torrent switch
	// into the processing stage.
	p.processing.Publish(processing.Clone())

	prepared := p.prepareAll(ctx, jobs)

	dropped := false
	for _, job := range jobs {
		if !prepared.Has(job.torrent.Hash) {
			delete(processing, job.torrent.Hash)
			dropped = true
		}
	}
	if dropped {
		p.processing.Publish(processing.Clone())
	}

	removals := make([]string, 0, len(prepared)+len(faulty))
	for hash := range prepared {
		removals = append(removals, hash)
	}
	removals = append(removals, faulty...)
	if len(removals) == 0 {
		return
	}

	p.removeAll(ctx, removals)

	if err := p.media.Send(ctx, crawler.CrawlAll{}); err != nil {
		log.Error().Err(err).Msg("Could not request a library crawl")
	}
}

// prepareAll runs every preparation concurrently and returns the hashes
// that finished. Failures are logged, never retried here.
func (p *Processor) prepareAll(ctx context.Context, jobs []prepareJob) domain.HashSet {
	prepared := domain.NewHashSet()
	if len(jobs) == 0 {
		return prepared
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, job := range jobs {
		g.Go(func() error {
			log.Info().
				Str("name", job.torrent.Name).
				Str("title", job.extra.Metadata.Title).
				Msg("Preparing torrent")

			if err := p.prepare(ctx, job); err != nil {
				log.Error().Err(err).
					Str("hash", job.torrent.Hash).
					Str("title", job.extra.Metadata.Title).
					Msg("Could not prepare torrent")
				return nil
			}

			mu.Lock()
			prepared.Add(job.torrent.Hash)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return prepared
}

func (p *Processor) prepare(ctx context.Context, job prepareJob) error {
	switch job.extra.Kind {
	case domain.ExtraMovie:
		return p.prepareMovie(ctx, job.torrent, job.extra.Metadata)
	case domain.ExtraSeries:
		return p.prepareSeries(ctx, job.torrent, job.extra)
	}
	return fmt.Errorf("unknown extra kind %q", job.extra.Kind)
}

// removeAll deletes the given torrents from the client. Each removal is
// its own command; failures are logged and the torrent stays until a
// later iteration retires it.
func (p *Processor) removeAll(ctx context.Context, hashes []string) {
	var g errgroup.Group
	for _, hash := range hashes {
		g.Go(func() error {
			h := p.torrents.Clone()
			defer h.Close()

			if err := qbittorrent.Remove(ctx, h, hash); err != nil {
				log.Error().Err(err).Str("hash", hash).Msg("Could not remove torrent")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// isDone reports the two states a finished torrent rests in on the
// seeding side: actively uploading or stalled without peers.
func isDone(t qbt.Torrent) bool {
	return t.State == qbt.TorrentStateUploading || t.State == qbt.TorrentStateStalledUp
}

func isFaulty(t qbt.Torrent) bool {
	return t.State == qbt.TorrentStateError || t.State == qbt.TorrentStateMissingFiles
}
