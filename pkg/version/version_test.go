// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package version

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDevelop(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"", "dev", "main", "latest", "pr-41", "0.3.0-dev", "0.3.0-develop"} {
		assert.True(t, isDevelop(v), v)
	}
	for _, v := range []string{"0.3.0", "v0.3.0", "0.3.0-rc.1"} {
		assert.False(t, isDevelop(v), v)
	}
}

func TestNewerThan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		current string
		tag     string
		want    bool
		wantErr bool
	}{
		{name: "patch bump", current: "0.3.0", tag: "v0.3.1", want: true},
		{name: "major bump", current: "v0.9.4", tag: "v1.0.0", want: true},
		{name: "same release", current: "v1.0.0", tag: "1.0.0"},
		{name: "running ahead of latest", current: "1.2.0", tag: "v1.1.9"},
		{name: "stable ignores prerelease", current: "1.0.0", tag: "v1.1.0-beta.1"},
		{name: "prerelease sees its stable", current: "1.1.0-beta.1", tag: "v1.1.0", want: true},
		{name: "prerelease sees later prerelease", current: "1.1.0-beta.1", tag: "v1.1.0-beta.2", want: true},
		{name: "garbage current", current: "nightly-build", tag: "v1.0.0", wantErr: true},
		{name: "garbage tag", current: "1.0.0", tag: "latest-and-greatest", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := newerThan(tt.current, tt.tag)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newReleaseServer(t *testing.T, status int, body string) *Checker {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/autobrr/gamarr/releases/latest", r.URL.Path)
		assert.Equal(t, "gamarr-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	checker := NewChecker("autobrr", "gamarr", "gamarr-test")
	checker.apiBase = srv.URL
	return checker
}

func TestCheckNewVersion(t *testing.T) {
	t.Parallel()

	checker := newReleaseServer(t, http.StatusOK,
		`{"tag_name": "v1.2.0", "name": "v1.2.0", "html_url": "https://github.com/autobrr/gamarr/releases/tag/v1.2.0", "published_at": "2026-09-01T12:00:00Z"}`)

	newer, release, err := checker.CheckNewVersion(t.Context(), "1.1.0")
	require.NoError(t, err)
	assert.True(t, newer)
	require.NotNil(t, release)
	assert.Equal(t, "v1.2.0", release.TagName)
	assert.Equal(t, "https://github.com/autobrr/gamarr/releases/tag/v1.2.0", release.HTMLURL)
	assert.Equal(t, 2026, release.PublishedAt.Year())

	newer, release, err = checker.CheckNewVersion(t.Context(), "v1.2.0")
	require.NoError(t, err)
	assert.False(t, newer)
	assert.Nil(t, release)

	newer, _, err = checker.CheckNewVersion(t.Context(), "dev")
	require.NoError(t, err)
	assert.False(t, newer)
}

func TestCheckNewVersionStatusError(t *testing.T) {
	t.Parallel()

	checker := newReleaseServer(t, http.StatusForbidden, `{"message": "API rate limit exceeded"}`)

	_, _, err := checker.CheckNewVersion(t.Context(), "1.0.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
