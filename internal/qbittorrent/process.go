// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// readyBanner is printed by qbittorrent-nox once its WebUI is listening.
const readyBanner = "To control qBittorrent, access the WebUI"

// iniTemplate is written to the profile before every spawn. WebUI\Port=0
// makes the subprocess pick a free port, which we read back from the
// readiness banner.
const iniTemplate = `[BitTorrent]
Session\DefaultSavePath=%s

[LegalNotice]
Accepted=true

[Preferences]
General\Locale=en
MailNotification\req_auth=true
WebUI\Address=127.0.0.1
WebUI\LocalHostAuth=false
WebUI\Port=0
`

var (
	// ErrBinaryNotFound means the qbittorrent-nox binary could not be found.
	ErrBinaryNotFound = errors.New("qbittorrent-nox is not installed")

	// ErrNoReadyBanner means the subprocess exited before printing the WebUI
	// readiness banner.
	ErrNoReadyBanner = errors.New("qbittorrent-nox exited before printing the WebUI banner")
)

// process is a live qbittorrent-nox subprocess plus the port its WebUI
// listens on. done is closed once the subprocess has been reaped.
type process struct {
	port int
	kill func()
	done chan struct{}
}

// exited reports whether the subprocess has terminated on its own.
func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// stop kills the subprocess and waits for it to be reaped.
func (p *process) stop() {
	p.kill()
	<-p.done
}

// writeProfile rewrites qBittorrent.ini under the profile directory. Any
// previous file is removed first so a manually edited WebUI configuration
// cannot survive into the next spawn.
func (s *Supervisor) writeProfile() error {
	configDir := filepath.Join(s.profileDir, "qBittorrent", "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create profile config dir %s: %w", configDir, err)
	}

	iniPath := filepath.Join(configDir, "qBittorrent.ini")
	if err := os.Remove(iniPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove previous %s: %w", iniPath, err)
	}

	f, err := os.OpenFile(iniPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", iniPath, err)
	}

	if _, err := fmt.Fprintf(f, iniTemplate, s.savePath); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", iniPath, err)
	}

	return f.Close()
}

// spawnProcess starts qbittorrent-nox and blocks until its WebUI announces
// readiness on stdout. Spawn and readiness failures are fatal to the
// supervisor.
func (s *Supervisor) spawnProcess(ctx context.Context) (*process, error) {
	if err := s.writeProfile(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, s.binary, "--profile="+s.profileDir)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe %s stdout: %w", s.binary, err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, ErrBinaryNotFound
		}
		return nil, fmt.Errorf("spawn %s: %w", s.binary, err)
	}

	log.Debug().
		Str("binary", s.binary).
		Str("profile", s.profileDir).
		Int("pid", cmd.Process.Pid).
		Msg("Spawned qbittorrent-nox, waiting for the WebUI banner")

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, readyBanner) {
			continue
		}

		port, ok := ExtractWebUIPort(line)
		if !ok {
			_ = cmd.Process.Kill()
			go func() { _ = cmd.Wait() }()
			return nil, fmt.Errorf("cannot extract WebUI port from banner %q", line)
		}

		p := &process{
			port: port,
			kill: func() { _ = cmd.Process.Kill() },
			done: make(chan struct{}),
		}
		go func() {
			// keep draining stdout so the child never blocks on a full pipe
			for scanner.Scan() {
			}
			err := cmd.Wait()
			log.Debug().Err(err).Int("pid", cmd.Process.Pid).Msg("qbittorrent-nox exited")
			close(p.done)
		}()

		log.Info().
			Int("port", port).
			Int("pid", cmd.Process.Pid).
			Msg("qBittorrent WebUI is up")
		return p, nil
	}

	_ = cmd.Wait()
	return nil, ErrNoReadyBanner
}

// ExtractWebUIPort pulls the WebUI port out of the readiness banner: the
// trailing integer after the final ':' on the line.
func ExtractWebUIPort(line string) (int, bool) {
	idx := strings.LastIndexByte(line, ':')
	if idx < 0 {
		return 0, false
	}
	port, err := strconv.Atoi(line[idx+1:])
	if err != nil || port < 0 {
		return 0, false
	}
	return port, true
}
