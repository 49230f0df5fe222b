// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package crawler turns the on-disk media library into the catalog the
// other services consume. It holds no state beyond the last published
// snapshot: every command triggers a fresh walk of the affected
// directories, so external edits to the library are picked up on the
// next crawl.
package crawler

import (
	"context"
	"fmt"
	"os"

	"github.com/autobrr/streambrr/internal/domain"
	"github.com/autobrr/streambrr/pkg/sigwatch"
	"github.com/rs/zerolog/log"
)

// Command is a crawl request.
type Command interface {
	isCommand()
}

// CrawlAll rebuilds the entire catalog from the media root.
type CrawlAll struct{}

// CrawlOne re-scans a single library directory. When the directory no
// longer exists or no longer yields a valid entry, the ID is dropped
// from the catalog.
type CrawlOne struct {
	ID string
}

func (CrawlAll) isCommand() {}
func (CrawlOne) isCommand() {}

// Handle is the caller-side view of the crawler service.
type Handle = sigwatch.Watcher[Command, domain.Catalog]

// NewPair creates the connected handle/receiver pair with an empty
// catalog as the initial state.
func NewPair() (*Handle, *sigwatch.Receiver[Command, domain.Catalog]) {
	return sigwatch.Pair[Command, domain.Catalog](domain.Catalog{})
}

// Crawler walks the media root on demand and publishes catalog
// snapshots.
type Crawler struct {
	mediaDir string
}

func New(cfg *domain.Config) *Crawler {
	return &Crawler{mediaDir: cfg.MediaDir}
}

// Run consumes crawl commands until the context is cancelled or every
// handle has been closed.
func (c *Crawler) Run(ctx context.Context, rx *sigwatch.Receiver[Command, domain.Catalog]) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-rx.Commands():
			if !ok {
				return nil
			}
			if err := c.handle(rx, cmd); err != nil {
				return err
			}
		}
	}
}

func (c *Crawler) handle(rx *sigwatch.Receiver[Command, domain.Catalog], cmd Command) error {
	if err := os.MkdirAll(c.mediaDir, 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}

	switch cmd := cmd.(type) {
	case CrawlAll:
		log.Info().Msg("Crawling media items")
		catalog := scanLibrary(c.mediaDir)
		log.Info().Int("count", len(catalog)).Msg("Found media items")
		rx.Publish(catalog)

	case CrawlOne:
		catalog := rx.Latest().Clone()
		if entry, ok := scanEntry(c.mediaDir, cmd.ID); ok {
			catalog[cmd.ID] = entry
			log.Debug().Str("id", cmd.ID).Msg("Refreshed media entry")
		} else {
			delete(catalog, cmd.ID)
			log.Debug().Str("id", cmd.ID).Msg("Dropped media entry")
		}
		rx.Publish(catalog)
	}

	return nil
}
