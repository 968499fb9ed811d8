// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scoring

import (
	"regexp"
	"strings"
)

// Platform is a family of related hardware targets.
type Platform string

const (
	PlatformUnknown     Platform = ""
	PlatformPC          Platform = "pc"
	PlatformPlayStation Platform = "playstation"
	PlatformXbox        Platform = "xbox"
	PlatformSwitch      Platform = "switch"
)

const (
	boundaryStart = `(?:^|[^a-z0-9])`
	boundaryEnd   = `(?:[^a-z0-9]|$)`
)

func family(pattern string) *regexp.Regexp {
	return regexp.MustCompile(boundaryStart + `(?:` + pattern + `)` + boundaryEnd)
}

var platformFamilies = []struct {
	platform Platform
	re       *regexp.Regexp
}{
	{PlatformPC, family(`pc|windows|win(?:32|64)|gog|steam|x64`)},
	{PlatformPlayStation, family(`ps[1-5]|psx|psp|ps[ ._-]?vita|playstation(?:[ ._-]?[1-5])?`)},
	{PlatformXbox, family(`xbox(?:[ ._-]?(?:360|one|series(?:[ ._-]?[xs])?))?|x360|xb1|xsx`)},
	{PlatformSwitch, family(`(?:nintendo[ ._-]?)?switch|nsw`)},
}

// DetectPlatforms returns every platform family with an indicator in title.
func DetectPlatforms(title string) []Platform {
	lower := strings.ToLower(title)
	var found []Platform
	for _, f := range platformFamilies {
		if f.re.MatchString(lower) {
			found = append(found, f.platform)
		}
	}
	return found
}

// ParsePlatform maps a target platform such as "PC" or "PS5" to its family.
func ParsePlatform(s string) Platform {
	if found := DetectPlatforms(s); len(found) > 0 {
		return found[0]
	}
	return PlatformUnknown
}
