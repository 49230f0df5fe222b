// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"fmt"

	"golang.org/x/text/language"
)

// Language is a subtitle language drawn from the ISO-639 registry. It is
// stored and displayed as the three-letter 639-2T code; the two-letter
// 639-1 code is only used towards external subtitle providers.
type Language struct {
	base language.Base
}

// ParseLanguage accepts exactly a lowercase three-letter ISO-639-2T code
// ("eng", "tur"). Two-letter codes, bibliographic variants ("ger") and
// unknown codes are rejected.
func ParseLanguage(code string) (Language, error) {
	if len(code) != 3 {
		return Language{}, fmt.Errorf("language code %q: want three letters", code)
	}

	base, err := language.ParseBase(code)
	if err != nil {
		return Language{}, fmt.Errorf("language code %q: %w", code, err)
	}
	if base.ISO3() != code {
		return Language{}, fmt.Errorf("language code %q is not the terminological form %q", code, base.ISO3())
	}

	return Language{base: base}, nil
}

// ISO6392T returns the three-letter terminological code, e.g. "deu".
func (l Language) ISO6392T() string {
	return l.base.ISO3()
}

// ISO6391 returns the two-letter code used by subtitle providers, e.g.
// "de". Falls back to the three-letter code for languages without one.
func (l Language) ISO6391() string {
	s := l.base.String()
	if len(s) == 2 {
		return s
	}
	return l.base.ISO3()
}

func (l Language) String() string {
	return l.ISO6392T()
}

// MarshalText encodes the language as its 639-2T code.
func (l Language) MarshalText() ([]byte, error) {
	return []byte(l.ISO6392T()), nil
}

// UnmarshalText parses a 639-2T code.
func (l *Language) UnmarshalText(text []byte) error {
	parsed, err := ParseLanguage(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
