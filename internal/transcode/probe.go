// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package transcode

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const maxProbeTimeout = 30 * time.Second

// StreamInfo holds the codec names of the first video and audio streams
// reported by ffprobe. A missing stream leaves the codec empty.
type StreamInfo struct {
	VideoCodec string
	AudioCodec string
}

// probePayload is the subset of ffprobe JSON output we parse.
type probePayload struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
}

// Probe inspects the media file at path and returns the codecs of its first
// video and audio streams.
func (t *Transcoder) Probe(ctx context.Context, path string) (StreamInfo, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxProbeTimeout)
		defer cancel()
	}

	res, err := t.run(ctx, t.ffprobePath, "-v", "quiet", "-print_format", "json", "-show_streams", path)
	if err != nil {
		return StreamInfo{}, fmt.Errorf("run ffprobe: %w", err)
	}
	if res.ExitCode != 0 {
		return StreamInfo{}, fmt.Errorf("ffprobe exited with status %d: %s", res.ExitCode, res.Combined())
	}

	return parseProbeOutput([]byte(res.Stdout))
}

// parseProbeOutput parses raw ffprobe JSON output, keeping the first stream
// of each codec type.
func parseProbeOutput(data []byte) (StreamInfo, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return StreamInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var info StreamInfo
	for _, stream := range payload.Streams {
		switch stream.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = stream.CodecName
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = stream.CodecName
			}
		}
	}
	return info, nil
}
