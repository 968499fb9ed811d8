// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// RedactedStr replaces secrets in logged or printed configuration.
const RedactedStr = "<redacted>"

// RedactString returns RedactedStr for any non-empty value.
func RedactString(s string) string {
	if s == "" {
		return ""
	}
	return RedactedStr
}

// IsRedactedString reports whether s is the redaction placeholder.
func IsRedactedString(s string) bool {
	return s == RedactedStr
}
