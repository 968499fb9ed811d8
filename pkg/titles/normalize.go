// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package titles turns free-text game titles into a comparable canonical form
// and produces alternate spellings for retrying searches that came back empty.
package titles

import (
	"strings"
	"unicode"

	"github.com/autobrr/gamarr/pkg/stringutils"
)

// romanToArabic covers the numerals that appear in game series names.
var romanToArabic = map[string]string{
	"i":    "1",
	"ii":   "2",
	"iii":  "3",
	"iv":   "4",
	"v":    "5",
	"vi":   "6",
	"vii":  "7",
	"viii": "8",
	"ix":   "9",
	"x":    "10",
	"xi":   "11",
	"xii":  "12",
	"xiii": "13",
}

var arabicToRoman = func() map[string]string {
	m := make(map[string]string, len(romanToArabic))
	for roman, arabic := range romanToArabic {
		m[arabic] = roman
	}
	return m
}()

var brandMarks = strings.NewReplacer(
	"™", " ",
	"®", " ",
	"©", " ",
	"℠", " ",
)

var apostrophes = strings.NewReplacer(
	"'", "",
	"’", "",
	"‘", "",
	"`", "",
)

var normalizer = stringutils.NewNormalizer(stringutils.DefaultNormalizerTTL, normalize)

// Normalize returns the canonical comparable form of a title:
//   - "Final Fantasy VII" → "final fantasy 7"
//   - "Baldur's Gate 3" → "baldurs gate 3"
//   - "Baldurs.Gate.3.v4.1.1.GOG" → "baldurs gate 3 v4 1 1 gog"
//   - "Pokémon™ Sword" → "pokemon sword"
//
// Roman numerals are only replaced when they form a whole word, so "IVORY"
// stays "ivory". The result is stable under repeated application.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	return normalizer.Normalize(text)
}

func normalize(text string) string {
	// marks go before folding, NFKD would otherwise turn "™" into "TM"
	s := brandMarks.Replace(strings.ToLower(text))
	// folding can surface capitals from compatibility forms such as "ℌ"
	s = strings.ToLower(stringutils.NormalizeUnicode(s))
	s = apostrophes.Replace(s)
	s = strings.ReplaceAll(s, "&", " and ")

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for i, field := range fields {
		if arabic, ok := romanToArabic[field]; ok {
			fields[i] = arabic
		}
	}

	return strings.Join(fields, " ")
}

// Tokens returns the words of the normalized title.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}
