// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package releases

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParser_Parse(t *testing.T) {
	t.Parallel()

	t.Run("nil parser returns empty release", func(t *testing.T) {
		t.Parallel()

		var parser *Parser
		assert.Equal(t, Release{}, parser.Parse("Some.Game-CODEX"))
	})

	t.Run("blank name returns empty release", func(t *testing.T) {
		t.Parallel()

		parser := NewDefaultParser()
		assert.Equal(t, Release{}, parser.Parse("   "))
	})

	t.Run("extracts group", func(t *testing.T) {
		t.Parallel()

		parser := NewDefaultParser()
		result := parser.Parse("Some.Game-CODEX")
		assert.Equal(t, "CODEX", result.Group)
	})

	t.Run("cached result is stable", func(t *testing.T) {
		t.Parallel()

		parser := NewDefaultParser()
		first := parser.Parse("Cyberpunk.2077.v2.1-GOG")
		second := parser.Parse("Cyberpunk.2077.v2.1-GOG")
		assert.Equal(t, first, second)
	})
}
