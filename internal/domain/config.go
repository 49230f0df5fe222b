// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"path/filepath"
)

// Config represents the application configuration
type Config struct {
	Version       string
	MediaDir      string `toml:"mediaDir" mapstructure:"mediaDir"`
	HostName      string `toml:"hostName" mapstructure:"hostName"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	// QbittorrentBinary is the qbittorrent-nox executable the supervisor
	// spawns. Resolved through PATH when not absolute.
	QbittorrentBinary string `toml:"qbittorrentBinary" mapstructure:"qbittorrentBinary"`

	FfmpegPath     string `toml:"ffmpegPath" mapstructure:"ffmpegPath"`
	FfprobePath    string `toml:"ffprobePath" mapstructure:"ffprobePath"`
	MetricsEnabled bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost    string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort    int    `toml:"metricsPort" mapstructure:"metricsPort"`

	// SubtitleAPIKey authenticates against the external subtitle provider.
	// Search and download are disabled when empty.
	SubtitleAPIKey string `toml:"subtitleApiKey" mapstructure:"subtitleApiKey"`
}

// DownloadDir is where the torrent client writes incomplete payloads,
// kept under the media root so prepares stay on one filesystem in the
// common case.
func (c *Config) DownloadDir() string {
	return filepath.Join(c.MediaDir, "qbittorrent")
}

// QbittorrentProfileDir is the profile the supervisor hands to the
// spawned subprocess.
func (c *Config) QbittorrentProfileDir() string {
	return filepath.Join(c.DataDir, "qbittorrent")
}

// Validate checks invariants that would only surface as confusing
// runtime failures later.
func (c *Config) Validate() error {
	if c.MediaDir == "" {
		return errors.New("mediaDir must not be empty")
	}
	if c.DataDir == "" {
		return errors.New("dataDir must not be empty")
	}
	return nil
}
