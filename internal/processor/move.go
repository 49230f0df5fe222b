// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/autobrr/streambrr/internal/domain"
	"github.com/autobrr/streambrr/internal/transcode"
	"github.com/autobrr/streambrr/pkg/fsutil"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

const metadataFile = "meta.json"

// moveFile relocates source to target. Within one filesystem this is a
// plain rename; across filesystems the payload is copied and the source
// removed afterwards.
func moveFile(source, target string) error {
	same, err := fsutil.SameFilesystem(source, filepath.Dir(target))
	if err != nil {
		return fmt.Errorf("compare filesystems: %w", err)
	}

	if same {
		if err := os.Rename(source, target); err != nil {
			return fmt.Errorf("rename %s: %w", source, err)
		}
		return nil
	}

	return copyAndRemove(source, target)
}

func copyAndRemove(source, target string) error {
	start := time.Now()

	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open %s: %w", source, err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	written, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", target, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}

	if err := os.Remove(source); err != nil {
		return fmt.Errorf("remove %s: %w", source, err)
	}

	log.Debug().
		Str("target", target).
		Str("size", humanize.IBytes(uint64(written))).
		Dur("duration", time.Since(start)).
		Msg("Copied media file across filesystems")

	return nil
}

// writeMetadata writes the meta.json the crawler keys the entry on,
// replacing any previous one.
func writeMetadata(dir string, meta domain.MediaMetadata) error {
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	path := filepath.Join(dir, metadataFile)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// convertIfNeeded rewrites containers the players cannot stream into an
// mp4 sibling and deletes the original. Already playable files come back
// untouched.
func (p *Processor) convertIfNeeded(ctx context.Context, path string) error {
	if !transcode.NeedsConversion(path) {
		return nil
	}

	output := strings.TrimSuffix(path, filepath.Ext(path)) + ".mp4"
	if err := p.convert.Convert(ctx, path, output); err != nil {
		return fmt.Errorf("convert %s: %w", path, err)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}
