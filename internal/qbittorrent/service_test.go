// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/streambrr/internal/domain"
)

type addCall struct {
	uri      string
	category string
}

// stubAPI records Web API calls and serves canned responses.
type stubAPI struct {
	mu         sync.Mutex
	added      []addCall
	categories []string
	setCats    []addCall
	deleted    []string
	listCalls  int
	list       []qbt.Torrent
	listErr    error
	filesCalls int
	files      qbt.TorrentFiles

	addErr error
}

func (s *stubAPI) AddTorrent(_ context.Context, _ int, uri, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, addCall{uri: uri, category: category})
	return s.addErr
}

func (s *stubAPI) DeleteTorrent(_ context.Context, _ int, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, hash)
	return nil
}

func (s *stubAPI) TorrentList(_ context.Context, _ int) ([]qbt.Torrent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return s.list, s.listErr
}

func (s *stubAPI) TorrentFiles(_ context.Context, _ int, _ string) (qbt.TorrentFiles, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesCalls++
	return s.files, nil
}

func (s *stubAPI) CreateCategory(_ context.Context, _ int, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, category)
	return nil
}

func (s *stubAPI) SetCategory(_ context.Context, _ int, hash, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCats = append(s.setCats, addCall{uri: hash, category: category})
	return nil
}

func newFakeProcess(port int) *process {
	p := &process{port: port, done: make(chan struct{})}
	var once sync.Once
	p.kill = func() { once.Do(func() { close(p.done) }) }
	return p
}

// spawnCounter wraps a fake spawn and counts invocations.
type spawnCounter struct {
	mu    sync.Mutex
	count int
	err   error
}

func (sc *spawnCounter) spawn(context.Context) (*process, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.err != nil {
		return nil, sc.err
	}
	sc.count++
	return newFakeProcess(8080), nil
}

func (sc *spawnCounter) spawns() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.count
}

func newTestSupervisor(api webAPI, sc *spawnCounter) *Supervisor {
	s := &Supervisor{
		binary:     "qbittorrent-nox",
		profileDir: "unused",
		savePath:   "unused",
		api:        api,
		files: ttlcache.New(ttlcache.Options[string, qbt.TorrentFiles]{}.
			SetDefaultTTL(time.Minute)),
	}
	s.spawn = sc.spawn
	return s
}

// startLoop runs the supervisor and returns the handle plus a stop func
// that closes the handle and waits for the loop to exit.
func startLoop(t *testing.T, s *Supervisor) (*Handle, func() error) {
	t.Helper()

	h, rx := NewPair()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background(), rx) }()

	return h, func() error {
		h.Close()
		select {
		case err := <-errCh:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("supervisor loop did not stop")
			return nil
		}
	}
}

func movieExtra(title string) domain.TorrentExtra {
	return domain.TorrentExtra{
		Kind:     domain.ExtraMovie,
		Metadata: domain.MediaMetadata{Title: title, Thumbnail: "thumb.jpg"},
	}
}

func TestUpdateWhileDownRepliesOkWithoutSpawning(t *testing.T) {
	api := &stubAPI{}
	sc := &spawnCounter{}
	h, stop := startLoop(t, newTestSupervisor(api, sc))

	require.NoError(t, Update(context.Background(), h))

	assert.Equal(t, 0, sc.spawns())
	assert.Equal(t, 0, api.listCalls)
	require.NoError(t, stop())
}

func TestAddTorrentSpawnsAndCreatesCategory(t *testing.T) {
	api := &stubAPI{}
	sc := &spawnCounter{}
	h, stop := startLoop(t, newTestSupervisor(api, sc))

	extra := movieExtra("Big Buck Bunny")
	require.NoError(t, Add(context.Background(), h, "magnet:?xt=urn:btih:deadbeef", extra))

	wantCategory, err := extra.EncodeCategory()
	require.NoError(t, err)

	assert.Equal(t, 1, sc.spawns())
	require.Len(t, api.categories, 1)
	assert.Equal(t, wantCategory, api.categories[0])
	require.Len(t, api.added, 1)
	assert.Equal(t, addCall{uri: "magnet:?xt=urn:btih:deadbeef", category: wantCategory}, api.added[0])

	require.NoError(t, stop())
}

func TestUpdatePublishesAndStopsIdleClient(t *testing.T) {
	api := &stubAPI{list: []qbt.Torrent{
		{Hash: "aa", State: qbt.TorrentStateStalledUp},
		{Hash: "bb", State: qbt.TorrentStateUploading},
	}}
	sc := &spawnCounter{}
	s := newTestSupervisor(api, sc)
	h, stop := startLoop(t, s)

	assert.False(t, s.Up())

	// spawn via an add, then refresh the list
	require.NoError(t, Add(context.Background(), h, "magnet:?xt=urn:btih:aa", movieExtra("a")))
	assert.True(t, s.Up())
	require.NoError(t, Update(context.Background(), h))

	require.Len(t, h.Latest(), 2)
	assert.Equal(t, 1, api.listCalls)

	// everything is seeding, so the subprocess was stopped; the next
	// update must answer without touching the api
	assert.False(t, s.Up())
	require.NoError(t, Update(context.Background(), h))
	assert.Equal(t, 1, api.listCalls)
	assert.Equal(t, 1, sc.spawns())

	// the next mutating command respawns
	require.NoError(t, Add(context.Background(), h, "magnet:?xt=urn:btih:bb", movieExtra("b")))
	assert.Equal(t, 2, sc.spawns())
	assert.True(t, s.Up())

	require.NoError(t, stop())
}

func TestUpdateKeepsClientWhileDownloading(t *testing.T) {
	api := &stubAPI{list: []qbt.Torrent{
		{Hash: "aa", State: qbt.TorrentStateDownloading},
		{Hash: "bb", State: qbt.TorrentStateStalledUp},
	}}
	sc := &spawnCounter{}
	h, stop := startLoop(t, newTestSupervisor(api, sc))

	require.NoError(t, Add(context.Background(), h, "magnet:?xt=urn:btih:aa", movieExtra("a")))
	require.NoError(t, Update(context.Background(), h))
	require.NoError(t, Update(context.Background(), h))

	// still up: both updates hit the api, no respawn happened
	assert.Equal(t, 2, api.listCalls)
	assert.Equal(t, 1, sc.spawns())

	require.NoError(t, stop())
}

func TestUpdateErrorReachesCaller(t *testing.T) {
	listErr := errors.New("connection refused")
	api := &stubAPI{listErr: listErr}
	sc := &spawnCounter{}
	h, stop := startLoop(t, newTestSupervisor(api, sc))

	require.NoError(t, Add(context.Background(), h, "magnet:?xt=urn:btih:aa", movieExtra("a")))

	err := Update(context.Background(), h)
	assert.ErrorIs(t, err, listErr)

	// a failed fetch is not fatal to the loop
	require.NoError(t, Remove(context.Background(), h, "aa"))
	assert.Equal(t, []string{"aa"}, api.deleted)

	require.NoError(t, stop())
}

func TestSpawnFailureIsFatal(t *testing.T) {
	api := &stubAPI{}
	sc := &spawnCounter{err: ErrBinaryNotFound}
	s := newTestSupervisor(api, sc)

	h, rx := NewPair()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background(), rx) }()

	err := Add(context.Background(), h, "magnet:?xt=urn:btih:aa", movieExtra("a"))
	require.ErrorIs(t, err, ErrBinaryNotFound)

	select {
	case loopErr := <-errCh:
		assert.ErrorIs(t, loopErr, ErrBinaryNotFound)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not terminate on spawn failure")
	}

	h.Close()
}

func TestContentsServedFromCache(t *testing.T) {
	api := &stubAPI{files: qbt.TorrentFiles{{Name: "Show/ep1.mkv"}, {Name: "Show/ep2.mkv"}}}
	sc := &spawnCounter{}
	h, stop := startLoop(t, newTestSupervisor(api, sc))

	files, err := Contents(context.Background(), h, "aa")
	require.NoError(t, err)
	require.Len(t, files, 2)

	again, err := Contents(context.Background(), h, "aa")
	require.NoError(t, err)
	assert.Equal(t, files, again)

	assert.Equal(t, 1, api.filesCalls)

	require.NoError(t, stop())
}

func TestSetExtraSwapsCategory(t *testing.T) {
	api := &stubAPI{}
	sc := &spawnCounter{}
	h, stop := startLoop(t, newTestSupervisor(api, sc))

	extra := movieExtra("Big Buck Bunny")
	require.NoError(t, SetTorrentExtra(context.Background(), h, "aa", extra))

	wantCategory, err := extra.EncodeCategory()
	require.NoError(t, err)

	require.Len(t, api.setCats, 1)
	assert.Equal(t, addCall{uri: "aa", category: wantCategory}, api.setCats[0])
	assert.Equal(t, []string{wantCategory}, api.categories)

	require.NoError(t, stop())
}

func TestShouldStop(t *testing.T) {
	tests := []struct {
		name     string
		torrents []qbt.Torrent
		want     bool
	}{
		{name: "empty list", torrents: nil, want: true},
		{
			name: "all seeding or paused",
			torrents: []qbt.Torrent{
				{State: qbt.TorrentStateUploading},
				{State: qbt.TorrentStateStalledUp},
				{State: qbt.TorrentStatePausedDl},
				{State: qbt.TorrentStateStoppedUp},
			},
			want: true,
		},
		{
			name: "one active download keeps it alive",
			torrents: []qbt.Torrent{
				{State: qbt.TorrentStateStalledUp},
				{State: qbt.TorrentStateDownloading},
			},
			want: false,
		},
		{
			name:     "errored torrent keeps it alive",
			torrents: []qbt.Torrent{{State: qbt.TorrentStateError}},
			want:     false,
		},
		{
			name:     "metadata fetch keeps it alive",
			torrents: []qbt.Torrent{{State: qbt.TorrentStateMetaDl}},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldStop(tt.torrents))
		})
	}
}
