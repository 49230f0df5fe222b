// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDerivedDirs(t *testing.T) {
	cfg := &Config{
		MediaDir: "/srv/media",
		DataDir:  "/var/lib/streambrr",
	}

	assert.Equal(t, filepath.Join("/srv/media", "qbittorrent"), cfg.DownloadDir())
	assert.Equal(t, filepath.Join("/var/lib/streambrr", "qbittorrent"), cfg.QbittorrentProfileDir())
}

func TestConfigValidate(t *testing.T) {
	t.Run("complete config passes", func(t *testing.T) {
		cfg := &Config{MediaDir: "./media", DataDir: "./data"}
		require.NoError(t, cfg.Validate())
	})

	t.Run("missing media dir", func(t *testing.T) {
		cfg := &Config{DataDir: "./data"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mediaDir")
	})

	t.Run("missing data dir", func(t *testing.T) {
		cfg := &Config{MediaDir: "./media"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dataDir")
	})
}
