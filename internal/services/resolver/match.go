// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package resolver

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/autobrr/gamarr/internal/providers"
	"github.com/autobrr/gamarr/pkg/titles"
)

// BestMatch picks the candidate for name: an exact normalized title wins,
// then the closest fuzzy match, then the provider's first result.
func BestMatch(name string, candidates []providers.CandidateMetadata) (providers.CandidateMetadata, bool) {
	if len(candidates) == 0 {
		return providers.CandidateMetadata{}, false
	}

	want := titles.Normalize(name)
	normalized := make([]string, len(candidates))
	for i, c := range candidates {
		normalized[i] = titles.Normalize(c.Title)
		if want != "" && normalized[i] == want {
			return c, true
		}
	}

	if want != "" {
		ranks := fuzzy.RankFindNormalizedFold(want, normalized)
		if len(ranks) > 0 {
			sort.Stable(ranks)
			return candidates[ranks[0].OriginalIndex], true
		}
	}

	return candidates[0], true
}
