// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scoring

import (
	"time"

	"github.com/rs/zerolog/log"
)

// ShouldAutoGrab reports whether a release clears both thresholds.
func ShouldAutoGrab(scored ScoredRelease, minScore, minSeeders int) bool {
	return scored.Score >= minScore && scored.Seeders >= minSeeders
}

// ThresholdSource supplies the current auto-grab thresholds.
type ThresholdSource interface {
	AutoGrabThresholds() (minScore, minSeeders int)
}

// FilterSource is implemented by threshold sources that also carry a
// user-defined filter expression.
type FilterSource interface {
	AutoGrabFilter() *Filter
}

// ThresholdFunc adapts a function to ThresholdSource.
type ThresholdFunc func() (int, int)

func (f ThresholdFunc) AutoGrabThresholds() (int, int) { return f() }

// Policy applies ShouldAutoGrab with thresholds read on every decision.
type Policy struct {
	source ThresholdSource
	now    func() time.Time
}

func NewPolicy(source ThresholdSource) *Policy {
	return &Policy{source: source, now: time.Now}
}

// ShouldAutoGrab is false when the policy has no threshold source. A
// configured filter can only veto a release that clears the thresholds; a
// filter that fails to evaluate vetoes it too.
func (p *Policy) ShouldAutoGrab(scored ScoredRelease) bool {
	if p == nil || p.source == nil {
		return false
	}
	minScore, minSeeders := p.source.AutoGrabThresholds()
	if !ShouldAutoGrab(scored, minScore, minSeeders) {
		return false
	}

	fs, ok := p.source.(FilterSource)
	if !ok {
		return true
	}
	filter := fs.AutoGrabFilter()
	match, err := filter.Match(scored, p.now())
	if err != nil {
		log.Warn().Err(err).Str("filter", filter.String()).Str("title", scored.Title).Msg("Auto-grab filter failed")
		return false
	}
	return match
}

// Annotate sets AutoGrab on every release in place.
func (p *Policy) Annotate(scored []ScoredRelease) {
	for i := range scored {
		scored[i].AutoGrab = p.ShouldAutoGrab(scored[i])
	}
}
