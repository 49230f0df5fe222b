// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package subtitles downloads subtitles from an external provider and
// stores them where the crawler picks them up. Writes are idempotent per
// subtitle: the stored filename embeds the provider's subtitle ID, a
// pre-flight check keeps repeat requests from burning download quota and
// exclusive create settles races between concurrent downloaders.
package subtitles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/autobrr/streambrr/internal/crawler"
	"github.com/autobrr/streambrr/internal/domain"
	"github.com/autobrr/streambrr/pkg/sigwatch"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSubtitleExists reports that the requested subtitle is already
	// stored for this media.
	ErrSubtitleExists = errors.New("subtitle already exists")

	// ErrDownloadQuotaReached maps any provider download failure; the
	// conservative reading protects the remaining quota.
	ErrDownloadQuotaReached = errors.New("subtitle download quota reached")

	// ErrFileSystem wraps I/O failures while storing a subtitle.
	ErrFileSystem = errors.New("subtitle file system error")

	// ErrProviderDisabled rejects commands when no provider is wired in.
	ErrProviderDisabled = errors.New("subtitle provider is disabled")
)

// DownloadOption is one search hit offered for download.
type DownloadOption struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	DownloadCount int             `json:"downloadCount"`
	Language      domain.Language `json:"language"`
}

// Provider is the two-call contract towards the external subtitle
// service. Concrete implementations live with the serving layer; only
// search and download matter here.
type Provider interface {
	Search(ctx context.Context, query string, lang domain.Language, episode *domain.EpisodeIdentifier) ([]DownloadOption, error)
	Download(ctx context.Context, id string) (string, error)
}

type Command interface{ isCommand() }

// DownloadSubtitle stores one subtitle next to the media file it belongs
// to. MediaPath is the catalog's relative media file path; Episode is set
// for series episodes and nil for movies.
type DownloadSubtitle struct {
	MediaPath  string
	Episode    *domain.EpisodeIdentifier
	SubtitleID string
	Language   domain.Language
	Result     chan<- error
}

func (DownloadSubtitle) isCommand() {}

// Handle is the caller side of the subtitle service.
type Handle = sigwatch.Watcher[Command, struct{}]

// NewPair creates the watcher/receiver pair the service loop runs on.
func NewPair() (*Handle, *sigwatch.Receiver[Command, struct{}]) {
	return sigwatch.Pair[Command, struct{}](struct{}{})
}

// Download submits a download command and waits for the verdict.
func Download(ctx context.Context, h *Handle, cmd DownloadSubtitle) error {
	result := make(chan error, 1)
	cmd.Result = result
	if err := h.Send(ctx, cmd); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trackEncoder is the slice of transcode.Transcoder the service needs,
// split out so tests can substitute the ffmpeg invocation.
type trackEncoder interface {
	SubtitleTrack(ctx context.Context, srtPath, outputPath string, lang domain.Language) error
}

// Service executes subtitle commands against the media library.
type Service struct {
	mediaDir string
	media    *crawler.Handle
	provider Provider
	tracks   trackEncoder
}

// New builds the service. provider may be nil, in which case every
// command is rejected with ErrProviderDisabled.
func New(cfg *domain.Config, media *crawler.Handle, provider Provider, tracks trackEncoder) *Service {
	return &Service{
		mediaDir: cfg.MediaDir,
		media:    media,
		provider: provider,
		tracks:   tracks,
	}
}

// Run consumes commands until the context is cancelled or the command
// queue closes.
func (s *Service) Run(ctx context.Context, rx *sigwatch.Receiver[Command, struct{}]) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-rx.Commands():
			if !ok {
				return nil
			}
			s.handle(ctx, cmd)
		}
	}
}

func (s *Service) handle(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case DownloadSubtitle:
		err := s.download(ctx, c)
		if err != nil {
			log.Warn().Err(err).
				Str("media", c.MediaPath).
				Str("subtitle", c.SubtitleID).
				Msg("Could not download subtitle")
		}
		if c.Result != nil {
			c.Result <- err
		}
		if err != nil {
			return
		}

		id := entryID(c.MediaPath)
		if err := s.media.Send(ctx, crawler.CrawlOne{ID: id}); err != nil {
			log.Error().Err(err).Str("id", id).Msg("Could not request a media re-scan")
		}
	}
}

func (s *Service) download(ctx context.Context, c DownloadSubtitle) error {
	if s.provider == nil {
		return ErrProviderDisabled
	}
	if c.SubtitleID == "" || filepath.Base(c.SubtitleID) != c.SubtitleID {
		return fmt.Errorf("subtitle id %q is not usable as a file name", c.SubtitleID)
	}

	target := s.targetPath(c)
	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("%w: %s", ErrSubtitleExists, target)
	}

	payload, err := s.provider.Download(ctx, c.SubtitleID)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDownloadQuotaReached, c.SubtitleID, err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileSystem, err)
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrSubtitleExists, target)
		}
		return fmt.Errorf("%w: %v", ErrFileSystem, err)
	}

	if _, err := f.WriteString(payload); err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrFileSystem, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileSystem, err)
	}

	// The catalog only lists text subtitles that have a matching track
	// container, so derive it right away. A failure here is recoverable
	// by hand; the downloaded text is already safe on disk.
	trackPath := strings.TrimSuffix(target, ".srt") + ".mp4"
	if err := s.tracks.SubtitleTrack(ctx, target, trackPath, c.Language); err != nil {
		log.Error().Err(err).Str("subtitle", target).Msg("Could not generate the subtitle track file")
	}

	return nil
}

// targetPath places the subtitle in the subtitles directory next to the
// media file, named by the crawler's stem convention
// <episode?><lang><id>.srt so the next scan pairs it.
func (s *Service) targetPath(c DownloadSubtitle) string {
	stem := c.Language.ISO6392T() + c.SubtitleID
	if c.Episode != nil {
		stem = strconv.Itoa(c.Episode.Episode) + stem
	}
	dir := filepath.Dir(filepath.Join(s.mediaDir, c.MediaPath))
	return filepath.Join(dir, "subtitles", stem+".srt")
}

// entryID extracts the catalog entry a media path belongs to, its first
// path element.
func entryID(mediaPath string) string {
	return strings.SplitN(filepath.ToSlash(mediaPath), "/", 2)[0]
}
