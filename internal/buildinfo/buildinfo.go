// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package buildinfo exposes version metadata injected at link time.
package buildinfo

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""

	// UserAgent is sent with every outbound request.
	UserAgent string
)

func init() {
	UserAgent = fmt.Sprintf("gamarr/%s (%s %s)", Version, runtime.GOOS, runtime.GOARCH)
}

// Info is a snapshot of the build metadata.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
}

func Current() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}

func (i Info) String() string {
	return fmt.Sprintf("Version: %s\nCommit: %s\nBuild date: %s\n", i.Version, orUnknown(i.Commit), orUnknown(i.Date))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
