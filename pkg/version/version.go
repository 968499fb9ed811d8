// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package version checks GitHub for newer releases.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/autobrr/gamarr/pkg/httphelpers"
)

const defaultAPIBase = "https://api.github.com"

// Release is the subset of a GitHub release the checker reads.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	HTMLURL     string    `json:"html_url"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Checker queries the latest release of one repository.
type Checker struct {
	Owner     string
	Repo      string
	UserAgent string

	apiBase    string
	httpClient *http.Client
}

func NewChecker(owner, repo, userAgent string) *Checker {
	return &Checker{
		Owner:      owner,
		Repo:       repo,
		UserAgent:  userAgent,
		apiBase:    defaultAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// CheckNewVersion reports whether the latest release is newer than current.
// Development builds never report an update.
func (c *Checker) CheckNewVersion(ctx context.Context, current string) (bool, *Release, error) {
	if isDevelop(current) {
		return false, nil, nil
	}

	release, err := c.latestRelease(ctx)
	if err != nil {
		return false, nil, err
	}

	newer, err := newerThan(current, release.TagName)
	if err != nil {
		return false, nil, err
	}
	if !newer {
		return false, nil, nil
	}
	return true, release, nil
}

func (c *Checker) latestRelease(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.apiBase, c.Owner, c.Repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch latest release: unexpected status %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decode latest release: %w", err)
	}
	return &release, nil
}

func newerThan(current, tag string) (bool, error) {
	cur, err := semver.NewVersion(current)
	if err != nil {
		return false, fmt.Errorf("parse current version %q: %w", current, err)
	}
	latest, err := semver.NewVersion(tag)
	if err != nil {
		return false, fmt.Errorf("parse release version %q: %w", tag, err)
	}

	// stable builds are not offered prereleases
	if latest.Prerelease() != "" && cur.Prerelease() == "" {
		return false, nil
	}
	return latest.GreaterThan(cur), nil
}

func isDevelop(version string) bool {
	switch version {
	case "", "dev", "develop", "main", "latest":
		return true
	}
	return strings.HasPrefix(version, "pr-") ||
		strings.HasSuffix(version, "-dev") ||
		strings.HasSuffix(version, "-develop")
}
