// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package qbittorrent supervises an embedded qbittorrent-nox subprocess.
// The subprocess is spawned lazily by the first command that needs its Web
// API and torn down again once nothing is downloading. All access runs
// through a single command loop, so callers never race on the subprocess.
package qbittorrent

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/autobrr/autobrr/pkg/ttlcache"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/streambrr/internal/domain"
	"github.com/autobrr/streambrr/pkg/sigwatch"
)

// Command is a request processed by the supervisor loop. Reply channels
// must have capacity 1; the package helpers below take care of that.
type Command interface {
	isCommand()
}

// AddTorrent submits a torrent URL or magnet link. The extra is encoded
// into the torrent's category so it survives inside the subprocess.
type AddTorrent struct {
	URI    string
	Extra  domain.TorrentExtra
	Result chan<- error
}

// RemoveTorrent deletes a torrent together with its downloaded files.
type RemoveTorrent struct {
	Hash   string
	Result chan<- error
}

// GetTorrentContents fetches the file list of a torrent.
type GetTorrentContents struct {
	Hash   string
	Result chan<- ContentsReply
}

// ContentsReply carries the file list of one torrent.
type ContentsReply struct {
	Files qbt.TorrentFiles
	Err   error
}

// SetExtra re-encodes and swaps the category on an existing torrent. Used
// to attach a file mapping after the torrent was added.
type SetExtra struct {
	Hash   string
	Extra  domain.TorrentExtra
	Result chan<- error
}

// UpdateTorrentList refreshes the torrent list and publishes it on the
// broadcast side.
type UpdateTorrentList struct {
	Result chan<- error
}

func (AddTorrent) isCommand()         {}
func (RemoveTorrent) isCommand()      {}
func (GetTorrentContents) isCommand() {}
func (SetExtra) isCommand()           {}
func (UpdateTorrentList) isCommand()  {}

// Handle is the caller-side watcher used to drive the supervisor and read
// the latest torrent list snapshot.
type Handle = sigwatch.Watcher[Command, []qbt.Torrent]

// NewPair creates the watcher/receiver pair the supervisor loop runs on.
func NewPair() (*Handle, *sigwatch.Receiver[Command, []qbt.Torrent]) {
	return sigwatch.Pair[Command, []qbt.Torrent](nil)
}

// webAPI is the slice of Client the loop uses. Swapped for a stub in tests.
type webAPI interface {
	AddTorrent(ctx context.Context, port int, uri, category string) error
	DeleteTorrent(ctx context.Context, port int, hash string) error
	TorrentList(ctx context.Context, port int) ([]qbt.Torrent, error)
	TorrentFiles(ctx context.Context, port int, hash string) (qbt.TorrentFiles, error)
	CreateCategory(ctx context.Context, port int, category string) error
	SetCategory(ctx context.Context, port int, hash, category string) error
}

// Supervisor owns the qbittorrent-nox subprocess and serializes every Web
// API call behind its command loop.
type Supervisor struct {
	binary     string
	profileDir string
	savePath   string

	api   webAPI
	files *ttlcache.Cache[string, qbt.TorrentFiles]

	spawn func(ctx context.Context) (*process, error)
	proc  *process
	up    atomic.Bool
}

// New builds a Supervisor from the app config. The subprocess is not
// started until the first command that needs it.
func New(cfg *domain.Config) *Supervisor {
	s := &Supervisor{
		binary:     cfg.QbittorrentBinary,
		profileDir: cfg.QbittorrentProfileDir(),
		savePath:   cfg.DownloadDir(),
		api:        NewClient(),
		files: ttlcache.New(ttlcache.Options[string, qbt.TorrentFiles]{}.
			SetDefaultTTL(15 * time.Minute)),
	}
	s.spawn = s.spawnProcess
	return s
}

// Run processes commands until the context is cancelled or every handle is
// closed. Spawn failures terminate the loop; per-command API errors only
// reach the caller's reply channel.
func (s *Supervisor) Run(ctx context.Context, rx *sigwatch.Receiver[Command, []qbt.Torrent]) error {
	defer s.teardown()

	log.Debug().Str("profile", s.profileDir).Msg("Torrent supervisor started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-rx.Commands():
			if !ok {
				log.Debug().Msg("All supervisor handles closed, stopping")
				return nil
			}
			if err := s.handle(ctx, rx, cmd); err != nil {
				return err
			}
		}
	}
}

func (s *Supervisor) teardown() {
	if s.proc != nil {
		s.proc.stop()
		s.setProc(nil)
	}
	s.files.Close()
}

// setProc records the current subprocess. Only the command loop writes
// it; the up flag mirrors it for concurrent readers.
func (s *Supervisor) setProc(p *process) {
	s.proc = p
	s.up.Store(p != nil)
}

// Up reports whether the qbittorrent-nox subprocess is currently running.
// Safe to call from any goroutine.
func (s *Supervisor) Up() bool {
	return s.up.Load()
}

func (s *Supervisor) handle(ctx context.Context, rx *sigwatch.Receiver[Command, []qbt.Torrent], cmd Command) error {
	switch c := cmd.(type) {
	case AddTorrent:
		proc, err := s.ensureRunning(ctx, "add torrent")
		if err != nil {
			c.Result <- err
			return err
		}
		c.Result <- s.addTorrent(ctx, proc.port, c.URI, c.Extra)

	case RemoveTorrent:
		proc, err := s.ensureRunning(ctx, "remove torrent")
		if err != nil {
			c.Result <- err
			return err
		}
		err = s.api.DeleteTorrent(ctx, proc.port, c.Hash)
		if err != nil {
			log.Error().Err(err).Str("hash", c.Hash).Msg("Failed to remove torrent")
		} else {
			log.Info().Str("hash", c.Hash).Msg("Removed torrent and its files")
		}
		c.Result <- err

	case GetTorrentContents:
		if files, ok := s.files.Get(c.Hash); ok {
			c.Result <- ContentsReply{Files: files}
			return nil
		}
		proc, err := s.ensureRunning(ctx, "torrent contents")
		if err != nil {
			c.Result <- ContentsReply{Err: err}
			return err
		}
		files, err := s.api.TorrentFiles(ctx, proc.port, c.Hash)
		if err == nil {
			s.files.Set(c.Hash, files, ttlcache.DefaultTTL)
		}
		c.Result <- ContentsReply{Files: files, Err: err}

	case SetExtra:
		proc, err := s.ensureRunning(ctx, "set category")
		if err != nil {
			c.Result <- err
			return err
		}
		c.Result <- s.setExtra(ctx, proc.port, c.Hash, c.Extra)

	case UpdateTorrentList:
		c.Result <- s.updateTorrentList(ctx, rx)
	}

	return nil
}

// ensureRunning returns the live subprocess, spawning one first when none
// is up. A subprocess that died on its own is reaped here.
func (s *Supervisor) ensureRunning(ctx context.Context, reason string) (*process, error) {
	if s.proc != nil && s.proc.exited() {
		s.proc.stop()
		s.setProc(nil)
	}
	if s.proc != nil {
		return s.proc, nil
	}

	log.Debug().Str("reason", reason).Msg("Spawning qbittorrent-nox")

	proc, err := s.spawn(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to spawn qbittorrent-nox")
		return nil, err
	}
	s.setProc(proc)
	return proc, nil
}

func (s *Supervisor) addTorrent(ctx context.Context, port int, uri string, extra domain.TorrentExtra) error {
	category, err := extra.EncodeCategory()
	if err != nil {
		return err
	}

	logAddTorrent(uri, extra)

	if err := s.api.CreateCategory(ctx, port, category); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return s.api.AddTorrent(ctx, port, uri, category)
}

func (s *Supervisor) setExtra(ctx context.Context, port int, hash string, extra domain.TorrentExtra) error {
	category, err := extra.EncodeCategory()
	if err != nil {
		return err
	}

	if err := s.api.CreateCategory(ctx, port, category); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	if err := s.api.SetCategory(ctx, port, hash, category); err != nil {
		return err
	}

	log.Debug().Str("hash", hash).Str("kind", string(extra.Kind)).Msg("Swapped torrent category")
	return nil
}

func (s *Supervisor) updateTorrentList(ctx context.Context, rx *sigwatch.Receiver[Command, []qbt.Torrent]) error {
	if s.proc != nil && s.proc.exited() {
		s.proc.stop()
		s.setProc(nil)
	}
	if s.proc == nil {
		log.Debug().Msg("qbittorrent-nox is down, not updating the torrent list")
		return nil
	}

	torrents, err := s.api.TorrentList(ctx, s.proc.port)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch the torrent list")
		return err
	}

	if shouldStop(torrents) {
		log.Debug().Int("torrents", len(torrents)).Msg("Nothing is downloading, stopping qbittorrent-nox")
		s.proc.stop()
		s.setProc(nil)
	}

	rx.Publish(torrents)
	log.Trace().Int("torrents", len(torrents)).Msg("Published torrent list")
	return nil
}

// shouldStop reports whether the subprocess has no work left: no torrents
// at all, or every torrent paused or finished.
func shouldStop(torrents []qbt.Torrent) bool {
	if len(torrents) == 0 {
		return true
	}
	for _, t := range torrents {
		switch domain.DownloadStateFor(t, false) {
		case domain.DownloadComplete, domain.DownloadPaused:
		default:
			return false
		}
	}
	return true
}

// logAddTorrent logs the submission, with infohash and display name when
// the URI is a parsable magnet link.
func logAddTorrent(uri string, extra domain.TorrentExtra) {
	ev := log.Info().
		Str("kind", string(extra.Kind)).
		Str("title", extra.Metadata.Title)

	if strings.HasPrefix(uri, "magnet:") {
		if m, err := metainfo.ParseMagnetUri(uri); err == nil {
			ev.Str("infohash", m.InfoHash.HexString()).Str("displayName", m.DisplayName)
		} else {
			log.Warn().Err(err).Msg("Submitted magnet link does not parse")
		}
	}

	ev.Msg("Adding torrent")
}

// Add submits a torrent and waits for the supervisor's reply.
func Add(ctx context.Context, h *Handle, uri string, extra domain.TorrentExtra) error {
	result := make(chan error, 1)
	if err := h.Send(ctx, AddTorrent{URI: uri, Extra: extra, Result: result}); err != nil {
		return err
	}
	return await(ctx, result)
}

// Remove deletes a torrent and its files.
func Remove(ctx context.Context, h *Handle, hash string) error {
	result := make(chan error, 1)
	if err := h.Send(ctx, RemoveTorrent{Hash: hash, Result: result}); err != nil {
		return err
	}
	return await(ctx, result)
}

// Contents fetches the file list of a torrent.
func Contents(ctx context.Context, h *Handle, hash string) (qbt.TorrentFiles, error) {
	result := make(chan ContentsReply, 1)
	if err := h.Send(ctx, GetTorrentContents{Hash: hash, Result: result}); err != nil {
		return nil, err
	}
	select {
	case reply := <-result:
		return reply.Files, reply.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetTorrentExtra re-encodes and swaps the category of an existing torrent.
func SetTorrentExtra(ctx context.Context, h *Handle, hash string, extra domain.TorrentExtra) error {
	result := make(chan error, 1)
	if err := h.Send(ctx, SetExtra{Hash: hash, Extra: extra, Result: result}); err != nil {
		return err
	}
	return await(ctx, result)
}

// Update refreshes and publishes the torrent list.
func Update(ctx context.Context, h *Handle) error {
	result := make(chan error, 1)
	if err := h.Send(ctx, UpdateTorrentList{Result: result}); err != nil {
		return err
	}
	return await(ctx, result)
}

func await(ctx context.Context, result <-chan error) error {
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
