// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package transcode wraps the external ffmpeg and ffprobe tools for
// container conversion and subtitle track generation.
package transcode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/streambrr/internal/domain"
)

// Extensions that stream directly without a container rewrite.
var noConvertExtensions = map[string]struct{}{
	"mp4":  {},
	"hevc": {},
	"mov":  {},
	"avi":  {},
	"ts":   {},
}

// NeedsConversion reports whether the file at path must be rewritten into an
// mp4 container before playback. Extensions outside the known set get a
// conversion attempt with a warning.
func NeedsConversion(path string) bool {
	ext := domain.FileExtension(path)
	if _, ok := noConvertExtensions[ext]; ok {
		return false
	}
	if ext != "mkv" {
		log.Warn().
			Str("path", path).
			Str("extension", ext).
			Msg("Unknown container format, attempting conversion anyway")
	}
	return true
}

// ConvertError reports an ffmpeg run that exited with a non-zero status.
type ConvertError struct {
	// Output is the combined stdout and stderr of the failed run.
	Output string
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("ffmpeg exited with non-zero status: %s", e.Output)
}

// Transcoder runs ffmpeg and ffprobe as child processes.
type Transcoder struct {
	ffmpegPath  string
	ffprobePath string

	run runFunc
}

// New returns a Transcoder using the given binaries. Empty paths fall back
// to looking the tools up on PATH.
func New(ffmpegPath, ffprobePath string) *Transcoder {
	ffmpeg := strings.TrimSpace(ffmpegPath)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	ffprobe := strings.TrimSpace(ffprobePath)
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	return &Transcoder{ffmpegPath: ffmpeg, ffprobePath: ffprobe, run: runCommand}
}

// Convert rewrites the input into an mp4 container at outputPath. The video
// stream is copied as-is; hevc video gets the hvc1 tag so Apple clients play
// it. Audio is copied when already aac and re-encoded otherwise.
func (t *Transcoder) Convert(ctx context.Context, inputPath, outputPath string) error {
	info, err := t.Probe(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("probe input: %w", err)
	}

	args := []string{"-i", inputPath, "-c:v", "copy"}
	if info.VideoCodec == "hevc" {
		args = append(args, "-tag:v", "hvc1")
	}
	if info.AudioCodec == "aac" {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args, "-c:a", "aac")
	}
	args = append(args, "-movflags", "+faststart", "-y", outputPath)

	res, err := t.run(ctx, t.ffmpegPath, args...)
	if err != nil {
		return fmt.Errorf("run ffmpeg: %w", err)
	}
	if res.ExitCode != 0 {
		return &ConvertError{Output: res.Combined()}
	}

	log.Debug().
		Str("input", inputPath).
		Str("output", outputPath).
		Str("videoCodec", info.VideoCodec).
		Str("audioCodec", info.AudioCodec).
		Dur("duration", res.Duration).
		Msg("Converted media file")

	return nil
}

// SubtitleTrack renders an srt file into an mp4 containing a single mov_text
// subtitle stream tagged with the given language.
func (t *Transcoder) SubtitleTrack(ctx context.Context, srtPath, outputPath string, lang domain.Language) error {
	args := []string{"-i", srtPath, "-c:s", "mov_text", "-metadata:s:s:0", "language=" + lang.ISO6392T(), outputPath}

	res, err := t.run(ctx, t.ffmpegPath, args...)
	if err != nil {
		return fmt.Errorf("run ffmpeg: %w", err)
	}
	if res.ExitCode != 0 {
		return &ConvertError{Output: res.Combined()}
	}

	log.Debug().
		Str("subtitle", srtPath).
		Str("track", outputPath).
		Str("language", lang.ISO6392T()).
		Dur("duration", res.Duration).
		Msg("Generated subtitle track")

	return nil
}
