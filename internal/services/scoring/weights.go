// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scoring

import (
	"errors"
	"fmt"
)

// Weights holds every bonus and penalty the scorer applies. Penalties are
// stored as positive magnitudes.
type Weights struct {
	Base int `json:"base"`

	PlatformMismatch int `json:"platformMismatch"`
	PlatformMatch    int `json:"platformMatch"`

	TitleContained     int     `json:"titleContained"`
	TitleOverlap       int     `json:"titleOverlap"`
	TitleMismatch      int     `json:"titleMismatch"`
	TitleOverlapRatio  float64 `json:"titleOverlapRatio"`
	TitleMinWordLength int     `json:"titleMinWordLength"`

	Year int `json:"year"`

	GOG     int `json:"gog"`
	DRMFree int `json:"drmFree"`
	Repack  int `json:"repack"`
	Scene   int `json:"scene"`

	LowSeeders         int   `json:"lowSeeders"`
	LowSeedersBelow    int   `json:"lowSeedersBelow"`
	HealthySeeders     int   `json:"healthySeeders"`
	HealthySeedersFrom int   `json:"healthySeedersFrom"`
	Stale              int   `json:"stale"`
	StaleAfterDays     int   `json:"staleAfterDays"`
	ImplausibleSize    int   `json:"implausibleSize"`
	MinSizeBytes       int64 `json:"minSizeBytes"`
	MaxSizeBytes       int64 `json:"maxSizeBytes"`
	HighConfidenceFrom int   `json:"highConfidenceFrom"`
	LowConfidenceBelow int   `json:"lowConfidenceBelow"`
}

const gib = int64(1) << 30

// DefaultWeights returns the stock scoring table.
func DefaultWeights() Weights {
	return Weights{
		Base:               100,
		PlatformMismatch:   200,
		PlatformMatch:      10,
		TitleContained:     50,
		TitleOverlap:       25,
		TitleMismatch:      50,
		TitleOverlapRatio:  0.5,
		TitleMinWordLength: 4,
		Year:               20,
		GOG:                50,
		DRMFree:            40,
		Repack:             20,
		Scene:              10,
		LowSeeders:         30,
		LowSeedersBelow:    5,
		HealthySeeders:     10,
		HealthySeedersFrom: 20,
		Stale:              20,
		StaleAfterDays:     730,
		ImplausibleSize:    50,
		MinSizeBytes:       gib / 10,
		MaxSizeBytes:       200 * gib,
		HighConfidenceFrom: 150,
		LowConfidenceBelow: 80,
	}
}

// Validate rejects negative magnitudes, an inverted size range and quality
// bonuses out of their priority order. A zero weight is valid and disables
// that adjustment.
func (w Weights) Validate() error {
	for name, v := range map[string]int{
		"platformMismatch": w.PlatformMismatch,
		"platformMatch":    w.PlatformMatch,
		"titleContained":   w.TitleContained,
		"titleOverlap":     w.TitleOverlap,
		"titleMismatch":    w.TitleMismatch,
		"year":             w.Year,
		"scene":            w.Scene,
		"lowSeeders":       w.LowSeeders,
		"healthySeeders":   w.HealthySeeders,
		"stale":            w.Stale,
		"implausibleSize":  w.ImplausibleSize,
	} {
		if v < 0 {
			return fmt.Errorf("scoring %s must not be negative", name)
		}
	}
	if w.TitleOverlapRatio < 0 || w.TitleOverlapRatio > 1 {
		return errors.New("scoring titleOverlapRatio must be between 0 and 1")
	}
	if w.MinSizeBytes < 0 || w.MinSizeBytes > w.MaxSizeBytes {
		return errors.New("scoring size range is inverted")
	}
	if !w.QualityOrdered() {
		return errors.New("scoring quality bonuses must keep the order gog > drmFree > repack > scene")
	}
	return nil
}

// QualityOrdered reports whether the quality bonuses keep their priority
// order GOG > DRM-free > repack > scene.
func (w Weights) QualityOrdered() bool {
	return w.GOG > w.DRMFree && w.DRMFree > w.Repack && w.Repack > w.Scene
}
