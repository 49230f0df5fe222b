// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package processor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/autobrr/streambrr/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubConverter records conversion requests and writes the output file
// unless primed with an error.
type stubConverter struct {
	mu    sync.Mutex
	calls [][2]string
	err   error
}

func (s *stubConverter) Convert(_ context.Context, inputPath, outputPath string) error {
	s.mu.Lock()
	s.calls = append(s.calls, [2]string{inputPath, outputPath})
	err := s.err
	s.mu.Unlock()

	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte("converted"), 0o644)
}

func (s *stubConverter) converted() [][2]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readMeta(t *testing.T, dir string) domain.MediaMetadata {
	t.Helper()
	payload, err := os.ReadFile(filepath.Join(dir, metadataFile))
	require.NoError(t, err)

	var meta domain.MediaMetadata
	require.NoError(t, json.Unmarshal(payload, &meta))
	return meta
}

func TestPrepareMovieMovesFirstVideo(t *testing.T) {
	downloadDir := t.TempDir()
	mediaDir := t.TempDir()

	contentDir := filepath.Join(downloadDir, "Heat.2.2024.Remux")
	writeFile(t, filepath.Join(contentDir, "aaa.nfo"), "release notes")
	writeFile(t, filepath.Join(contentDir, "film.mov"), "movie payload")
	writeFile(t, filepath.Join(contentDir, "zzz.mov"), "sample")

	conv := &stubConverter{}
	p := &Processor{mediaDir: mediaDir, convert: conv}

	torrent := qbt.Torrent{SavePath: downloadDir, ContentPath: contentDir}
	meta := domain.MediaMetadata{Title: "Heat 2", Thumbnail: "https://img.example/heat2.jpg"}
	require.NoError(t, p.prepareMovie(context.Background(), torrent, meta))

	payload, err := os.ReadFile(filepath.Join(mediaDir, "Heat_2", "movie-tbd.mov"))
	require.NoError(t, err)
	assert.Equal(t, "movie payload", string(payload))

	assert.NoFileExists(t, filepath.Join(contentDir, "film.mov"))
	assert.FileExists(t, filepath.Join(contentDir, "zzz.mov"))
	assert.Equal(t, meta, readMeta(t, filepath.Join(mediaDir, "Heat_2")))
	assert.Empty(t, conv.converted())
}

func TestPrepareMovieConvertsUnplayableContainer(t *testing.T) {
	downloadDir := t.TempDir()
	mediaDir := t.TempDir()

	contentDir := filepath.Join(downloadDir, "Show.Of.Force")
	writeFile(t, filepath.Join(contentDir, "film.mkv"), "matroska payload")

	conv := &stubConverter{}
	p := &Processor{mediaDir: mediaDir, convert: conv}

	torrent := qbt.Torrent{SavePath: downloadDir, ContentPath: contentDir}
	require.NoError(t, p.prepareMovie(context.Background(), torrent, domain.MediaMetadata{Title: "Show of Force"}))

	targetDir := filepath.Join(mediaDir, "Show_of_Force")
	assert.NoFileExists(t, filepath.Join(targetDir, "movie-tbd.mkv"))
	assert.FileExists(t, filepath.Join(targetDir, "movie-tbd.mp4"))

	require.Len(t, conv.converted(), 1)
	assert.Equal(t, [2]string{
		filepath.Join(targetDir, "movie-tbd.mkv"),
		filepath.Join(targetDir, "movie-tbd.mp4"),
	}, conv.converted()[0])
}

func TestPrepareMovieSingleFileTorrent(t *testing.T) {
	downloadDir := t.TempDir()
	mediaDir := t.TempDir()

	file := filepath.Join(downloadDir, "solo.mov")
	writeFile(t, file, "standalone")

	p := &Processor{mediaDir: mediaDir, convert: &stubConverter{}}

	torrent := qbt.Torrent{SavePath: downloadDir, ContentPath: file}
	require.NoError(t, p.prepareMovie(context.Background(), torrent, domain.MediaMetadata{Title: "Solo"}))

	assert.FileExists(t, filepath.Join(mediaDir, "Solo", "movie-tbd.mov"))
	assert.NoFileExists(t, file)
}

func TestPrepareMovieFailsWithoutVideo(t *testing.T) {
	downloadDir := t.TempDir()
	mediaDir := t.TempDir()

	contentDir := filepath.Join(downloadDir, "Docs.Only")
	writeFile(t, filepath.Join(contentDir, "readme.txt"), "nothing to see")

	p := &Processor{mediaDir: mediaDir, convert: &stubConverter{}}

	err := p.prepareMovie(context.Background(), qbt.Torrent{ContentPath: contentDir}, domain.MediaMetadata{Title: "Docs"})
	require.ErrorContains(t, err, "no video file")

	entries, readErr := os.ReadDir(mediaDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestPrepareMovieFailsWhenContentPathMissing(t *testing.T) {
	p := &Processor{mediaDir: t.TempDir(), convert: &stubConverter{}}

	torrent := qbt.Torrent{ContentPath: filepath.Join(t.TempDir(), "gone")}
	err := p.prepareMovie(context.Background(), torrent, domain.MediaMetadata{Title: "Gone"})
	require.ErrorContains(t, err, "walk")
}
