// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var unicodeNormalizer = NewNormalizer(DefaultNormalizerTTL, foldUnicode)

// letters NFKD leaves intact because they are distinct letters, not composed ones
var letterReplacer = strings.NewReplacer(
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O",
	"ß", "ss",
	"ð", "d", "Ð", "D",
	"þ", "th", "Þ", "TH",
)

func foldUnicode(s string) string {
	// transform.Chain is not safe for concurrent use, build it per call
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	// after decomposition so "ǣ" and "ᴭ" reach their base letter first
	return letterReplacer.Replace(result)
}

// NormalizeUnicode removes diacritics and decomposes ligatures.
//   - "Pokémon" → "Pokemon"
//   - "Ōkami" → "Okami"
//   - "ﬁ" → "fi"
func NormalizeUnicode(s string) string {
	return unicodeNormalizer.Normalize(s)
}
