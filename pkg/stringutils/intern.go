// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package stringutils holds string helpers shared by provider adapters and
// the title normalizer: interning of repeated indexer strings, a TTL-backed
// memoizing normalizer and unicode folding.
package stringutils

import (
	"strings"
	"unique"
)

// Intern returns a canonical copy of s so that repeated values such as
// indexer names and category labels share memory.
func Intern(s string) string {
	if s == "" {
		return ""
	}
	return unique.Make(s).Value()
}

// InternNormalized interns the trimmed, lower-cased form of s.
func InternNormalized(s string) string {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return ""
	}
	return unique.Make(normalized).Value()
}

// InternAll interns every element of values into a new slice.
func InternAll(values []string) []string {
	if len(values) == 0 {
		return values
	}
	result := make([]string, len(values))
	for i, s := range values {
		result[i] = Intern(s)
	}
	return result
}
