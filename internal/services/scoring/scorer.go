// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scoring ranks release listings against a wanted game.
package scoring

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/gamarr/internal/providers"
	"github.com/autobrr/gamarr/pkg/releases"
	"github.com/autobrr/gamarr/pkg/titles"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Target is the game a listing is scored against.
type Target struct {
	Title    string `json:"title"`
	Year     int    `json:"year,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// Adjustment records one applied bonus or penalty.
type Adjustment struct {
	Reason string `json:"reason"`
	Delta  int    `json:"delta"`
}

// ScoredRelease is a listing with its score. It is derived fresh on every
// search since seeders and age change.
type ScoredRelease struct {
	providers.ReleaseListing

	Score       int          `json:"score"`
	Confidence  Confidence   `json:"confidence"`
	Platform    Platform     `json:"platform,omitempty"`
	Group       string       `json:"group,omitempty"`
	Version     string       `json:"version,omitempty"`
	Adjustments []Adjustment `json:"adjustments,omitempty"`
	Owned       bool         `json:"owned,omitempty"`
	AutoGrab    bool         `json:"autoGrab,omitempty"`
}

var (
	gogMarker     = family(`gog`)
	drmFreeMarker = family(`drm[ ._-]?free`)
	repackMarker  = family(`repack|fitgirl|dodi|elamigos|kaos`)
)

// sceneGroups are well-known scene release groups.
var sceneGroups = map[string]struct{}{
	"codex": {}, "cpy": {}, "plaza": {}, "skidrow": {}, "reloaded": {},
	"hoodlum": {}, "empress": {}, "flt": {}, "tenoke": {}, "rune": {},
	"razor1911": {}, "dinobytes": {}, "prophet": {}, "darksiders": {},
	"simplex": {}, "doge": {}, "tinyiso": {}, "goldberg": {}, "hi2u": {},
}

var wordSplit = regexp.MustCompile(`[^a-z0-9]+`)

type Option func(*Scorer)

// WithClock sets the time source used for the age check.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithParser shares a release parser between scorers.
func WithParser(p *releases.Parser) Option {
	return func(s *Scorer) {
		if p != nil {
			s.parser = p
		}
	}
}

// Scorer is stateless apart from its weights and a parse cache.
type Scorer struct {
	weights Weights
	parser  *releases.Parser
	now     func() time.Time
}

// NewScorer builds a scorer. The zero Weights value means DefaultWeights;
// otherwise weights are used as given, zeros included.
func NewScorer(weights Weights, opts ...Option) *Scorer {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	s := &Scorer{
		weights: weights,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = releases.NewDefaultParser()
	}
	return s
}

func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score runs the scoring pipeline for one listing.
func (s *Scorer) Score(listing providers.ReleaseListing, target Target) ScoredRelease {
	w := s.weights
	out := ScoredRelease{
		ReleaseListing: listing,
		Score:          w.Base,
		Confidence:     ConfidenceMedium,
	}
	add := func(reason string, delta int) {
		out.Score += delta
		out.Adjustments = append(out.Adjustments, Adjustment{Reason: reason, Delta: delta})
	}

	parsed := s.parser.Parse(listing.Title)
	out.Group = parsed.Group
	out.Version = parsed.Version

	// platform
	conflict := false
	detected := DetectPlatforms(listing.Title)
	if want := ParsePlatform(target.Platform); want != PlatformUnknown && len(detected) > 0 {
		if slices.Contains(detected, want) {
			out.Platform = want
			add("platform match", w.PlatformMatch)
		} else {
			out.Platform = detected[0]
			conflict = true
			add("platform conflict", -w.PlatformMismatch)
		}
	} else if len(detected) > 0 {
		out.Platform = detected[0]
	}

	// title
	switch wanted := titles.Normalize(target.Title); {
	case wanted != "" && containsPhrase(titles.Normalize(listing.Title), wanted):
		add("title match", w.TitleContained)
		out.Confidence = ConfidenceHigh
	case wanted != "" && overlapRatio(listing.Title, wanted, w.TitleMinWordLength) > w.TitleOverlapRatio:
		add("title overlap", w.TitleOverlap)
	default:
		add("title mismatch", -w.TitleMismatch)
		out.Confidence = ConfidenceLow
	}

	if target.Year > 0 && strings.Contains(listing.Title, strconv.Itoa(target.Year)) {
		add("year match", w.Year)
	}

	if reason, bonus := s.quality(listing.Title, parsed.Group); bonus != 0 {
		add(reason, bonus)
	}

	switch {
	case listing.Seeders < w.LowSeedersBelow:
		add("low seeders", -w.LowSeeders)
	case listing.Seeders >= w.HealthySeedersFrom:
		add("healthy seeders", w.HealthySeeders)
	}

	if !listing.PublishedAt.IsZero() {
		maxAge := time.Duration(w.StaleAfterDays) * 24 * time.Hour
		if s.now().Sub(listing.PublishedAt) > maxAge {
			add("old listing", -w.Stale)
		}
	}

	if listing.Size < w.MinSizeBytes || listing.Size > w.MaxSizeBytes {
		add("implausible size", -w.ImplausibleSize)
	}

	switch {
	case conflict:
		out.Confidence = ConfidenceLow
	case out.Score >= w.HighConfidenceFrom:
		out.Confidence = ConfidenceHigh
	case out.Score < w.LowConfidenceBelow:
		out.Confidence = ConfidenceLow
	}

	return out
}

// ScoreAll scores every listing against target.
func (s *Scorer) ScoreAll(listings []providers.ReleaseListing, target Target) []ScoredRelease {
	out := make([]ScoredRelease, 0, len(listings))
	for _, l := range listings {
		out = append(out, s.Score(l, target))
	}
	return out
}

// quality returns only the highest-priority marker found.
func (s *Scorer) quality(title, group string) (string, int) {
	lower := strings.ToLower(title)
	w := s.weights
	switch {
	case gogMarker.MatchString(lower):
		return "gog release", w.GOG
	case drmFreeMarker.MatchString(lower):
		return "drm-free release", w.DRMFree
	case repackMarker.MatchString(lower):
		return "repack", w.Repack
	case isSceneRelease(lower, group):
		return "scene release", w.Scene
	}
	return "", 0
}

func isSceneRelease(lowerTitle, group string) bool {
	if _, ok := sceneGroups[strings.ToLower(group)]; ok {
		return true
	}
	for _, word := range wordSplit.Split(lowerTitle, -1) {
		if _, ok := sceneGroups[word]; ok {
			return true
		}
	}
	return false
}

// containsPhrase reports whether needle occurs in haystack on word boundaries.
func containsPhrase(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

func overlapRatio(listingTitle, normalizedTarget string, minLen int) float64 {
	have := make(map[string]struct{})
	for _, tok := range titles.Tokens(listingTitle) {
		have[tok] = struct{}{}
	}

	var considered, matched int
	for _, word := range strings.Fields(normalizedTarget) {
		if len(word) < minLen {
			continue
		}
		considered++
		if _, ok := have[word]; ok {
			matched++
		}
	}
	if considered == 0 {
		return 0
	}
	return float64(matched) / float64(considered)
}

// SortScored orders releases by score, then seeders, both descending.
func SortScored(scored []ScoredRelease) {
	slices.SortStableFunc(scored, func(a, b ScoredRelease) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return b.Seeders - a.Seeders
	})
}

// FilterCandidates drops releases scoring zero or below.
func FilterCandidates(scored []ScoredRelease) []ScoredRelease {
	out := make([]ScoredRelease, 0, len(scored))
	for _, s := range scored {
		if s.Score > 0 {
			out = append(out, s)
		}
	}
	return out
}
