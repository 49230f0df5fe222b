// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads the application configuration from file,
// environment and defaults, and watches the file for runtime changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/streambrr/internal/domain"
	"github.com/autobrr/streambrr/pkg/debounce"
)

// envPrefix is prepended to the SCREAMING_SNAKE form of each config key,
// e.g. mediaDir becomes STREAMBRR__MEDIA_DIR.
const envPrefix = "STREAMBRR__"

var configKeys = []string{
	"mediaDir",
	"hostName",
	"dataDir",
	"logLevel",
	"logPath",
	"logMaxSize",
	"logMaxBackups",
	"qbittorrentBinary",
	"ffmpegPath",
	"ffprobePath",
	"metricsEnabled",
	"metricsHost",
	"metricsPort",
	"subtitleApiKey",
}

const configTemplate = `# config.toml - Auto-generated on first run

# Media library root
# Prepared movies and series live here; the torrent client downloads
# into <mediaDir>/qbittorrent
# Default: "./media"
mediaDir = "./media"

# Name announced to clients on the local network
# Default: the machine hostname
#hostName = ""

# Data directory
# Holds the qBittorrent profile
# Default: next to this config file
#dataDir = ""

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# Log file path
# If not defined, logs to stderr only
# Optional
#logPath = "log/streambrr.log"

# Maximum log file size in megabytes before rotation
# Default: 50
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
# Default: 3
#logMaxBackups = 3

# qBittorrent executable spawned by the supervisor
# Default: "qbittorrent-nox" (resolved through PATH)
#qbittorrentBinary = "qbittorrent-nox"

# Transcoding binaries
# Default: resolved through PATH
#ffmpegPath = "ffmpeg"
#ffprobePath = "ffprobe"

# Prometheus metrics endpoint
# Default: disabled
#metricsEnabled = false
#metricsHost = "127.0.0.1"
#metricsPort = 9074

# Subtitle provider API key
# Subtitle search/download is disabled while empty
#subtitleApiKey = ""
`

// AppConfig owns the loaded configuration and the viper instance backing
// live reloads.
type AppConfig struct {
	Config *domain.Config

	viper *viper.Viper
	mu    sync.Mutex
}

// New loads the configuration. configPath may be empty (use the OS
// config dir), a directory, or a config file path. A default config file
// is written on first run.
func New(configPath, version string) (*AppConfig, error) {
	c := &AppConfig{viper: viper.New()}

	if err := c.load(configPath); err != nil {
		return nil, err
	}
	c.Config.Version = version

	if err := c.Config.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *AppConfig) load(configPath string) error {
	c.viper.SetConfigType("toml")

	file, err := resolveConfigFile(configPath)
	if err != nil {
		return err
	}

	c.setDefaults(filepath.Dir(file))

	if _, err := os.Stat(file); os.IsNotExist(err) {
		if err := writeDefaultConfig(file); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
		log.Info().Str("path", file).Msg("wrote default config file")
	}

	c.viper.SetConfigFile(file)
	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", file, err)
	}

	c.bindEnv()

	cfg := &domain.Config{}
	if err := c.viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	c.Config = cfg

	return nil
}

func (c *AppConfig) setDefaults(configDir string) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "streambrr"
	}

	c.viper.SetDefault("mediaDir", "./media")
	c.viper.SetDefault("hostName", hostname)
	c.viper.SetDefault("dataDir", configDir)
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("qbittorrentBinary", "qbittorrent-nox")
	c.viper.SetDefault("ffmpegPath", "ffmpeg")
	c.viper.SetDefault("ffprobePath", "ffprobe")
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9074)
	c.viper.SetDefault("subtitleApiKey", "")
}

func (c *AppConfig) bindEnv() {
	for _, key := range configKeys {
		// viper's automatic env handling can't map camelCase keys onto
		// prefixed SCREAMING_SNAKE names, so bind each key explicitly.
		_ = c.viper.BindEnv(key, envPrefix+envKey(key))
	}
}

// envKey converts a camelCase config key to SCREAMING_SNAKE.
func envKey(key string) string {
	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// resolveConfigFile turns the --config flag value into a concrete file
// path, defaulting to <user config dir>/streambrr/config.toml.
func resolveConfigFile(configPath string) (string, error) {
	if configPath != "" {
		if strings.HasSuffix(configPath, ".toml") {
			return configPath, nil
		}
		return filepath.Join(configPath, "config.toml"), nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}

	return filepath.Join(base, "streambrr", "config.toml"), nil
}

func writeDefaultConfig(file string) error {
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return err
	}
	return os.WriteFile(file, []byte(configTemplate), 0644)
}

// WatchConfig re-reads the file on change and invokes onUpdate with the
// fresh configuration. Used to adjust the log level without a restart.
// Editors emit several filesystem events for one save, so reloads are
// debounced.
func (c *AppConfig) WatchConfig(onUpdate func(*domain.Config)) {
	reload := debounce.New(500 * time.Millisecond)

	c.viper.OnConfigChange(func(e fsnotify.Event) {
		reload.Do(func() {
			c.reload(e.Name, onUpdate)
		})
	})

	c.viper.WatchConfig()
}

func (c *AppConfig) reload(path string, onUpdate func(*domain.Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.viper.ReadInConfig(); err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to re-read changed config")
		return
	}

	cfg := &domain.Config{Version: c.Config.Version}
	if err := c.viper.Unmarshal(cfg); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal changed config")
		return
	}

	c.Config = cfg
	log.Debug().Str("path", path).Msg("config reloaded")

	if onUpdate != nil {
		onUpdate(cfg)
	}
}
