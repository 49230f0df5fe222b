// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build !windows

package fsutil

import (
	"fmt"
	"os"
	"syscall"
)

func sameFilesystem(path1, path2 string) (bool, error) {
	dev1, err := deviceID(path1)
	if err != nil {
		return false, err
	}

	dev2, err := deviceID(path2)
	if err != nil {
		return false, err
	}

	return dev1 == dev2, nil
}

func deviceID(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}

	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("unsupported stat result for %s", path)
	}

	return uint64(st.Dev), nil
}
