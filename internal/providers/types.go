// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package providers

import "time"

// CandidateMetadata is one catalog entry that may be the identity of a
// free-text name.
type CandidateMetadata struct {
	ExternalID  string   `json:"externalId"`
	Provider    string   `json:"provider"`
	Title       string   `json:"title"`
	ReleaseYear int      `json:"releaseYear,omitempty"`
	Cover       string   `json:"cover,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Themes      []string `json:"themes,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	Developer   string   `json:"developer,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	Related     []string `json:"related,omitempty"`
}

// ReleaseListing is one untrusted entry returned by an indexer.
type ReleaseListing struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Indexer     string    `json:"indexer"`
	Size        int64     `json:"size"`
	Seeders     int       `json:"seeders"`
	Peers       int       `json:"peers"`
	PublishedAt time.Time `json:"publishedAt"`
	Locator     string    `json:"locator"`
	Categories  []string  `json:"categories,omitempty"`
}
