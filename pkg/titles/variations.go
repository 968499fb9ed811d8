// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package titles

import (
	"strings"
	"unicode"

	"github.com/autobrr/gamarr/pkg/stringutils"
)

// contractions maps a long form to its short form. Lookups work both ways.
var contractions = map[string]string{
	"brothers":   "bros",
	"versus":     "vs",
	"and":        "&",
	"doctor":     "dr",
	"mister":     "mr",
	"saint":      "st",
	"episode":    "ep",
	"volume":     "vol",
	"edition":    "ed",
	"deluxe":     "dlx",
	"collection": "coll",
	"special":    "spec",
}

var expansions = func() map[string]string {
	m := make(map[string]string, len(contractions))
	for long, short := range contractions {
		m[short] = long
	}
	return m
}()

// GenerateVariations returns alternate spellings of text for retrying a
// search that produced no results. Each variation swaps a single word:
// contractions and their expansions ("Bros" ↔ "Brothers") and Roman and Arabic
// numerals ("VII" ↔ "7"). A final variation applies every swap at once.
// The input's own spelling is never included and the order is stable.
func GenerateVariations(text string) []string {
	words := variationWords(text)
	if len(words) == 0 {
		return nil
	}

	original := strings.Join(words, " ")
	seen := map[string]struct{}{original: {}}
	var variations []string

	add := func(candidate []string) {
		v := strings.Join(candidate, " ")
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		variations = append(variations, v)
	}

	all := make([]string, len(words))
	copy(all, words)
	swaps := 0

	for i, word := range words {
		alt, ok := swapWord(word)
		if !ok {
			continue
		}
		candidate := make([]string, len(words))
		copy(candidate, words)
		candidate[i] = alt
		add(candidate)

		all[i] = alt
		swaps++
	}

	if swaps > 1 {
		add(all)
	}

	return variations
}

func swapWord(word string) (string, bool) {
	if short, ok := contractions[word]; ok {
		return short, true
	}
	if long, ok := expansions[word]; ok {
		return long, true
	}
	if arabic, ok := romanToArabic[word]; ok {
		return arabic, true
	}
	if roman, ok := arabicToRoman[word]; ok {
		return roman, true
	}
	return "", false
}

// variationWords lower-cases and splits text like Normalize does but keeps
// numerals as written and "&" as its own word so both can be swapped.
func variationWords(text string) []string {
	s := brandMarks.Replace(strings.ToLower(text))
	s = strings.ToLower(stringutils.NormalizeUnicode(s))
	s = apostrophes.Replace(s)
	s = strings.ReplaceAll(s, "&", " & ")

	return strings.FieldsFunc(s, func(r rune) bool {
		return r != '&' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
