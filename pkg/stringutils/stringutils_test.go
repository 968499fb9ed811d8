// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUnicode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"Pokémon", "Pokemon"},
		{"Ōkami", "Okami"},
		{"Æon Flux", "AEon Flux"},
		{"Straße", "Strasse"},
		{"ǣ", "ae"},
		{"Ǿrn", "Orn"},
		{"ᴭ", "AE"},
		{"ﬁnal", "final"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, NormalizeUnicode(tt.input))
		})
	}
}

func TestNormalizerCachesTransform(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	n := NewNormalizer(time.Minute, func(s string) string {
		calls.Add(1)
		return strings.ToUpper(s)
	})

	assert.Equal(t, "DOOM", n.Normalize("doom"))
	assert.Equal(t, "DOOM", n.Normalize("doom"))
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, "QUAKE", n.Normalize("quake"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestInternNormalized(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", InternNormalized("   "))
	assert.Equal(t, "1337x", InternNormalized(" 1337X "))
	assert.Equal(t, []string{"a", "b"}, InternAll([]string{"a", "b"}))
	assert.Nil(t, InternAll(nil))
}
