// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/streambrr/internal/app"
	"github.com/autobrr/streambrr/internal/buildinfo"
	"github.com/autobrr/streambrr/internal/config"
	"github.com/autobrr/streambrr/internal/crawler"
	"github.com/autobrr/streambrr/internal/domain"
	"github.com/autobrr/streambrr/internal/logger"
	"github.com/autobrr/streambrr/internal/metrics"
	"github.com/autobrr/streambrr/internal/processor"
	"github.com/autobrr/streambrr/internal/qbittorrent"
	"github.com/autobrr/streambrr/internal/subtitles"
	"github.com/autobrr/streambrr/internal/transcode"
	"github.com/autobrr/streambrr/pkg/sigwatch"
)

// torrentListInterval drives the periodic UpdateTorrentList that keeps
// every service loop fed with fresh torrent state.
const torrentListInterval = 10 * time.Second

func RunServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the torrent, crawler, processor and subtitle services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file or directory (default is the OS config dir)")

	return cmd
}

func serve(parent context.Context, configPath string) error {
	cfg, err := config.New(configPath, buildinfo.Version)
	if err != nil {
		return err
	}

	logger.Init(cfg.Config)
	cfg.WatchConfig(func(c *domain.Config) {
		logger.SetLogLevel(c.LogLevel)
	})

	log.Info().
		Str("version", buildinfo.Version).
		Str("commit", buildinfo.Commit).
		Str("hostName", cfg.Config.HostName).
		Str("mediaDir", cfg.Config.MediaDir).
		Bool("metricsEnabled", cfg.Config.MetricsEnabled).
		Msg("Starting streambrr")

	if cfg.Config.SubtitleAPIKey == "" {
		log.Debug().Msg("No subtitleApiKey configured, subtitle search and download are disabled")
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	torrents, torrentsRx := qbittorrent.NewPair()
	media, mediaRx := crawler.NewPair()
	subs, subsRx := subtitles.NewPair()
	processing := sigwatch.NewCell(domain.HashSet{})

	state := app.New(cfg.Config, torrents, media, subs, processing)
	defer state.Close()

	procTorrents := state.Torrents.Clone()
	defer procTorrents.Close()
	procMedia := state.Media.Clone()
	defer procMedia.Close()
	subMedia := state.Media.Clone()
	defer subMedia.Close()

	transcoder := transcode.New(cfg.Config.FfmpegPath, cfg.Config.FfprobePath)

	supervisor := qbittorrent.New(cfg.Config)
	library := crawler.New(cfg.Config)
	prepare := processor.New(cfg.Config, procTorrents, procMedia, processing, transcoder)
	subService := subtitles.New(cfg.Config, subMedia, nil, transcoder)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return supervisor.Run(ctx, torrentsRx) })
	g.Go(func() error { return library.Run(ctx, mediaRx) })
	g.Go(func() error { return prepare.Run(ctx) })
	g.Go(func() error { return subService.Run(ctx, subsRx) })

	if cfg.Config.MetricsEnabled {
		metricsState := state.Clone()
		defer metricsState.Close()

		server := metrics.NewServer(metrics.NewManager(metricsState, supervisor.Up), cfg.Config.MetricsHost, cfg.Config.MetricsPort)
		g.Go(server.ListenAndServe)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		if err := state.Media.Send(ctx, crawler.CrawlAll{}); err != nil {
			return err
		}

		// The boot sequence must observe one list update so the processor
		// starts from real torrent state rather than the empty snapshot.
		if err := retry.Do(
			func() error { return qbittorrent.Update(ctx, state.Torrents) },
			retry.Attempts(5),
			retry.Delay(time.Second),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(attempt uint, err error) {
				log.Warn().Err(err).Uint("attempt", attempt+1).Msg("Initial torrent list update failed, retrying")
			}),
		); err != nil {
			return fmt.Errorf("initial torrent list update: %w", err)
		}

		ticker := time.NewTicker(torrentListInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				// the supervisor logs fetch failures with their cause
				if err := qbittorrent.Update(ctx, state.Torrents); err != nil {
					log.Debug().Err(err).Msg("Periodic torrent list update failed")
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info().Msg("Shutting down")
	return nil
}
