// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "release build",
			info: Info{Version: "v0.4.0", Commit: "a1b2c3d", Date: "2026-10-01T08:00:00Z"},
			want: "Version: v0.4.0\nCommit: a1b2c3d\nBuild date: 2026-10-01T08:00:00Z\n",
		},
		{
			name: "local build",
			info: Info{Version: "dev"},
			want: "Version: dev\nCommit: unknown\nBuild date: unknown\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.info.String())
		})
	}
}

func TestCurrent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Info{Version: Version, Commit: Commit, Date: Date}, Current())
	assert.Contains(t, UserAgent, "gamarr/"+Version)
	assert.Contains(t, UserAgent, runtime.GOOS+" "+runtime.GOARCH)
}
