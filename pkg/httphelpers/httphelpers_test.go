// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package httphelpers

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBasePath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":            "",
		"/":           "",
		"///":         "",
		"  ":          "",
		"api":         "/api",
		"/api/":       "/api",
		" /api/v1// ": "/api/v1",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeBasePath(in), "input %q", in)
	}
}

func TestJoinBasePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base, suffix, want string
	}{
		{"", "", "/"},
		{"", "/", "/"},
		{"", "torznab", "/torznab"},
		{"/jackett", "", "/jackett"},
		{"/jackett", "api/v2.0", "/jackett/api/v2.0"},
		{"/jackett", "/api/v2.0", "/jackett/api/v2.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinBasePath(tt.base, tt.suffix), "%q + %q", tt.base, tt.suffix)
	}
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func TestDrainAndClose(t *testing.T) {
	t.Parallel()

	body := &trackingBody{Reader: strings.NewReader("<rss>unread</rss>")}
	DrainAndClose(&http.Response{Body: body})

	assert.True(t, body.closed)
	n, _ := body.Read(make([]byte, 8))
	assert.Zero(t, n, "body should be fully consumed")

	assert.NotPanics(t, func() { DrainAndClose(nil) })
	assert.NotPanics(t, func() { DrainAndClose(&http.Response{}) })
}
