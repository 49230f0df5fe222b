// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package processor

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/autobrr/streambrr/internal/domain"
	"github.com/autobrr/streambrr/pkg/pathutil"
)

// prepareMovie moves the first video file of a finished movie download
// into its own library directory, writes the metadata next to it and
// converts the container when the players cannot stream it as is.
func (p *Processor) prepareMovie(ctx context.Context, t qbt.Torrent, meta domain.MediaMetadata) error {
	source, err := findFirstVideo(t.ContentPath)
	if err != nil {
		return err
	}

	targetDir := filepath.Join(p.mediaDir, pathutil.SanitizeTitle(meta.Title))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", targetDir, err)
	}

	target := filepath.Join(targetDir, "movie-tbd"+filepath.Ext(source))
	if err := moveFile(source, target); err != nil {
		return err
	}

	if err := writeMetadata(targetDir, meta); err != nil {
		return err
	}

	return p.convertIfNeeded(ctx, target)
}

// findFirstVideo returns the first video file under the torrent's
// content path in lexical walk order. For a single-file torrent the
// content path is the file itself.
func findFirstVideo(root string) (string, error) {
	var found string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !domain.IsVideoFile(d.Name()) {
			return nil
		}
		found = path
		return fs.SkipAll
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", root, err)
	}
	if found == "" {
		return "", fmt.Errorf("no video file under %s", root)
	}

	return found, nil
}
