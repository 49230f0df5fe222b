// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractWebUIPort(t *testing.T) {
	tests := []struct {
		name string
		line string
		port int
		ok   bool
	}{
		{name: "empty line", line: "", ok: false},
		{name: "bare port", line: ":1234", port: 1234, ok: true},
		{name: "non numeric tail", line: ":hey", ok: false},
		{
			name: "full banner",
			line: "To control qBittorrent, access the WebUI at http://127.0.0.1:8472",
			port: 8472,
			ok:   true,
		},
		{name: "no colon at all", line: "plain text", ok: false},
		{name: "negative tail", line: ":-1", ok: false},
		{name: "trailing garbage after port", line: ":8080 extra", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, ok := ExtractWebUIPort(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.port, port)
			}
		})
	}
}

func TestWriteProfileForcesLocalWebUI(t *testing.T) {
	profileDir := t.TempDir()
	s := &Supervisor{profileDir: profileDir, savePath: "/srv/media/qbittorrent"}

	require.NoError(t, s.writeProfile())

	iniPath := filepath.Join(profileDir, "qBittorrent", "config", "qBittorrent.ini")
	data, err := os.ReadFile(iniPath)
	require.NoError(t, err)

	ini := string(data)
	assert.Contains(t, ini, "[LegalNotice]\nAccepted=true")
	assert.Contains(t, ini, `WebUI\Address=127.0.0.1`)
	assert.Contains(t, ini, `WebUI\LocalHostAuth=false`)
	assert.Contains(t, ini, `WebUI\Port=0`)
	assert.Contains(t, ini, `General\Locale=en`)
	assert.Contains(t, ini, `MailNotification\req_auth=true`)
	assert.Contains(t, ini, `Session\DefaultSavePath=/srv/media/qbittorrent`)
}

func TestWriteProfileReplacesPreviousConfig(t *testing.T) {
	profileDir := t.TempDir()
	s := &Supervisor{profileDir: profileDir, savePath: "/downloads"}

	iniPath := filepath.Join(profileDir, "qBittorrent", "config", "qBittorrent.ini")
	require.NoError(t, os.MkdirAll(filepath.Dir(iniPath), 0o755))
	require.NoError(t, os.WriteFile(iniPath, []byte("WebUI\\Port=9999\n"), 0o644))

	require.NoError(t, s.writeProfile())

	data, err := os.ReadFile(iniPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "9999")
	assert.Contains(t, string(data), `WebUI\Port=0`)
}
