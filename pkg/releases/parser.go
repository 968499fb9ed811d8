// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package releases parses raw release names into the few structured fields
// the scorer reports alongside a score.
package releases

import (
	"strings"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/moistari/rls"
)

const defaultParserTTL = 10 * time.Minute

// Release is the parsed view of a release name.
type Release struct {
	Title    string `json:"title,omitempty"`
	Group    string `json:"group,omitempty"`
	Version  string `json:"version,omitempty"`
	Platform string `json:"platform,omitempty"`
	Year     int    `json:"year,omitempty"`
	Game     bool   `json:"game,omitempty"`
}

// Parser caches rls parse results; indexers return the same names on every
// search so reparsing them is wasted work.
type Parser struct {
	cache *ttlcache.Cache[string, Release]
}

// NewParser creates a parser whose cached entries live for ttl.
func NewParser(ttl time.Duration) *Parser {
	if ttl <= 0 {
		ttl = defaultParserTTL
	}
	return &Parser{
		cache: ttlcache.New(ttlcache.Options[string, Release]{}.SetDefaultTTL(ttl)),
	}
}

// NewDefaultParser creates a parser using the default TTL.
func NewDefaultParser() *Parser {
	return NewParser(defaultParserTTL)
}

// Parse returns the parsed release for name. A nil parser or a blank name
// yields an empty Release.
func (p *Parser) Parse(name string) Release {
	name = strings.TrimSpace(name)
	if p == nil || name == "" {
		return Release{}
	}

	if cached, ok := p.cache.Get(name); ok {
		return cached
	}

	r := rls.ParseString(name)
	parsed := Release{
		Title:    r.Title,
		Group:    r.Group,
		Version:  r.Version,
		Platform: r.Platform,
		Year:     r.Year,
		Game:     r.Type == rls.Game,
	}

	p.cache.Set(name, parsed, ttlcache.DefaultTTL)
	return parsed
}
