// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappingValidateAccepts(t *testing.T) {
	files := []string{
		"hello/worldS1E1.mov",
		"hello/worldS1E2.mov",
		"extras/behind-the-scenes.mov",
	}

	form := EpisodeFileMappingForm{
		"hello/worldS1E1.mov": {Season: 1, Episode: 1},
		"hello/worldS1E2.mov": {Season: 1, Episode: 2},
	}

	mapping, err := form.Validate(files)
	require.NoError(t, err)
	assert.Equal(t, 2, mapping.Len())
	assert.Equal(t, EpisodeIdentifier{Season: 1, Episode: 2}, mapping.Entries()["hello/worldS1E2.mov"])
}

func TestMappingValidateRejectsUnknownFile(t *testing.T) {
	form := EpisodeFileMappingForm{
		"some/malicious/path": {Season: 1, Episode: 1},
	}

	_, err := form.Validate([]string{"hello/worldS1E1.mov"})
	assert.ErrorIs(t, err, ErrMappingUnknownFile)
}

func TestMappingValidateRejectsDuplicateEpisode(t *testing.T) {
	files := []string{"hello/worldS1E1.mov", "hello/worldS1E2.mov"}

	form := EpisodeFileMappingForm{
		"hello/worldS1E1.mov": {Season: 1, Episode: 1},
		"hello/worldS1E2.mov": {Season: 1, Episode: 1},
	}

	_, err := form.Validate(files)
	assert.ErrorIs(t, err, ErrMappingDuplicateEpisode)
}

func TestMappingValidateEmptyForm(t *testing.T) {
	mapping, err := EpisodeFileMappingForm{}.Validate(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, mapping.Len())
}
