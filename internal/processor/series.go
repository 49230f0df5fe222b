// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/autobrr/streambrr/internal/domain"
	"github.com/autobrr/streambrr/pkg/pathutil"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// episodeMove pairs one mapped torrent file with its place in the
// library.
type episodeMove struct {
	source string
	target string
}

// prepareSeries moves every mapped episode file into the series
// directory under `<season>/<episode>-<file>`. All sources are verified
// before the first move; a missing source or a failed move aborts the
// batch and removes the series directory again, but only when this run
// created it. Directories holding earlier seasons are never removed.
func (p *Processor) prepareSeries(ctx context.Context, t qbt.Torrent, extra domain.TorrentExtra) error {
	targetDir := filepath.Join(p.mediaDir, pathutil.SanitizeTitle(extra.Metadata.Title))

	_, err := os.Stat(targetDir)
	created := os.IsNotExist(err)

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", targetDir, err)
	}

	moves := make([]episodeMove, 0, extra.FileMapping.Len())
	for file, id := range extra.FileMapping.Entries() {
		moves = append(moves, episodeMove{
			source: filepath.Join(t.SavePath, file),
			target: filepath.Join(targetDir, strconv.Itoa(id.Season),
				fmt.Sprintf("%d-%s", id.Episode, filepath.Base(file))),
		})
	}
	slices.SortFunc(moves, func(a, b episodeMove) int {
		return strings.Compare(a.source, b.source)
	})

	if err := checkSources(moves); err != nil {
		rollback(targetDir, created)
		return err
	}

	for _, m := range moves {
		if err := os.MkdirAll(filepath.Dir(m.target), 0o755); err != nil {
			rollback(targetDir, created)
			return fmt.Errorf("create %s: %w", filepath.Dir(m.target), err)
		}
		if err := moveFile(m.source, m.target); err != nil {
			rollback(targetDir, created)
			return err
		}
	}

	if err := writeMetadata(targetDir, extra.Metadata); err != nil {
		return err
	}

	// Wait collects the first error only after every conversion has run,
	// so one bad file does not abort its siblings.
	var g errgroup.Group
	for _, m := range moves {
		g.Go(func() error {
			return p.convertIfNeeded(ctx, m.target)
		})
	}
	return g.Wait()
}

// checkSources verifies every mapped file still exists before anything
// moves, reporting all missing paths at once.
func checkSources(moves []episodeMove) error {
	var (
		mu      sync.Mutex
		missing []string
		g       errgroup.Group
	)
	for _, m := range moves {
		g.Go(func() error {
			if _, err := os.Stat(m.source); err != nil {
				mu.Lock()
				missing = append(missing, m.source)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("missing source files: %s", strings.Join(missing, ", "))
	}
	return nil
}

// rollback removes a series directory this preparation created. Moved
// files are not restored to the download directory.
func rollback(targetDir string, created bool) {
	if !created {
		return
	}
	if err := os.RemoveAll(targetDir); err != nil {
		log.Error().Err(err).Str("dir", targetDir).Msg("Could not roll back series directory")
	}
}
