// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pathutil derives filesystem-safe directory names from media
// titles.
package pathutil

import "strings"

// SanitizeTitle maps a title onto a single path segment that is safe both
// on disk and in URLs. ASCII letters, digits and the URL-safe punctuation
// set $ - _ . + ! * ' ( ) , pass through unchanged; every other rune
// becomes an underscore.
func SanitizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	for _, r := range title {
		if allowedTitleRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	return b.String()
}

func allowedTitleRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	}

	switch r {
	case '$', '-', '_', '.', '+', '!', '*', '\'', '(', ')', ',':
		return true
	}

	return false
}
