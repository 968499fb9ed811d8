// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package titles

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"roman numeral", "Final Fantasy VII", "final fantasy 7"},
		{"roman thirteen", "Final Fantasy XIII", "final fantasy 13"},
		{"roman inside word untouched", "IVORY", "ivory"},
		{"roman letters inside words", "Civilization VI: Vivid MIX", "civilization 6 vivid mix"},
		{"apostrophe removed", "Baldur's Gate 3", "baldurs gate 3"},
		{"curly apostrophe removed", "Assassin’s Creed", "assassins creed"},
		{"dotted release name", "Baldurs.Gate.3.v4.1.1.GOG", "baldurs gate 3 v4 1 1 gog"},
		{"brand marks", "Pokémon™ Sword®", "pokemon sword"},
		{"copyright", "©2004 Half-Life 2", "2004 half life 2"},
		{"ampersand", "Ratchet & Clank", "ratchet and clank"},
		{"punctuation and whitespace", "  DOOM:   Eternal!! ", "doom eternal"},
		{"underscores", "The_Witcher_3_Wild_Hunt", "the witcher 3 wild hunt"},
		{"ligature", "ﬁnal", "final"},
		{"compatibility capital", "ℌalo", "halo"},
		{"letters with marks fold fully", "ǣ Ǿ ǿ ᴭ", "ae o o ae"},
		{"empty", "", ""},
		{"only punctuation", "!!!---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	alphabet := []rune("abcxyzABCXYZivxIVX0123 .-_:'’&!?™®©éÉüÖøÆßﬁⅦℌİΣǣǾǿᴭḰ日本語́\t")
	rng := rand.New(rand.NewPCG(42, 7))

	samples := []string{
		"Final Fantasy VII",
		"IVORY",
		"Baldurs.Gate.3.v4.1.1.GOG",
		"Ⅶ Ⅻ ⅷ",
		"İstanbul Σ",
		"ǣ Ǿ ǿ ᴭ",
		"ǿ…1",
		"…ᴭ…Ḱ",
	}
	for i := 0; i < 500; i++ {
		var b strings.Builder
		n := rng.IntN(24)
		for j := 0; j < n; j++ {
			b.WriteRune(alphabet[rng.IntN(len(alphabet))])
		}
		samples = append(samples, b.String())
	}

	for _, s := range samples {
		once := Normalize(s)
		require.Equal(t, once, Normalize(once), "input %q", s)
	}
}

func TestTokens(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"doom", "eternal"}, Tokens("DOOM Eternal"))
	assert.Empty(t, Tokens("  "))
}
