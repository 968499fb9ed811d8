// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const defaultConfigTemplate = `# config.toml - Auto-generated on first run

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/gamarr.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: 50
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
# Default: 3
#logMaxBackups = 3

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# Data directory, holds gamarr.db unless databasePath is set
# Default: the directory of this file
#dataDir = ""

# Database path
#databasePath = ""

# IGDB metadata (Twitch developer application)
#igdbClientId = ""
#igdbClientSecret = ""

# Torznab indexer aggregator
# Backends: "jackett", "prowlarr", "native"
#torznabUrl = "http://127.0.0.1:9117"
#torznabApiKey = ""
#torznabBackend = "jackett"
#torznabIndexer = "all"
#torznabCategories = [4050, 1000]

# Steam library import
#steamApiKey = ""
#steamId = ""

# Auto-grab thresholds, re-read on every decision
# Default: 150 and 5
#autoGrabMinScore = 150
#autoGrabMinSeeders = 5
# Optional expression a release must also match, e.g.
# 'sizeGB < 80 && ageDays < 365 && group != "kaos"'
# Variables: title indexer score confidence platform group version
# seeders peers sizeGB ageDays categories
#autoGrabFilter = ""

# Delay between resolver batch groups in milliseconds
#resolveGroupDelayMs = 250

# Periodic jobs run by "gamarr serve", in minutes
#cacheSweepMinutes = 30
#feedRefreshMinutes = 60

# Number of entries kept per discovery feed
#feedPopularLimit = 50
#feedTopLimit = 50

# Prometheus metrics
#metricsEnabled = false
#metricsHost = "127.0.0.1"
#metricsPort = 9074
#metricsBasicAuthUsers = "user:password"

# Cache TTL in minutes per cache key family
[cacheTtlMinutes]
#popular-games = 360
#top-releases = 60

# Provider request budget overrides
#[budgets.igdb]
#maxRequests = 3
#windowMs = 1000

# Release scoring weights, penalties as positive magnitudes
#[scoring]
#platformMismatch = 200
#gog = 50
`

// writeDefaultConfig creates path with the default template when it does
// not exist yet.
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o600); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// UpdateLogSettings rewrites the log keys of the config file in place. The
// running snapshot picks the change up through Watch.
func (c *AppConfig) UpdateLogSettings(level, path string, maxSize, maxBackups int) error {
	content, err := os.ReadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	updated := updateLogSettingsInTOML(string(content), level, path, maxSize, maxBackups)

	tmp := c.configPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(updated), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, c.configPath); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

var sectionHeader = regexp.MustCompile(`^\s*\[`)

// updateLogSettingsInTOML replaces top-level log keys, including commented
// ones, where they already are. Missing keys are inserted before the first
// table.
func updateLogSettingsInTOML(content, level, path string, maxSize, maxBackups int) string {
	settings := []struct {
		key   string
		value string
		unset bool
	}{
		{key: "logLevel", value: strconv.Quote(level)},
		{key: "logPath", value: strconv.Quote(path), unset: path == ""},
		{key: "logMaxSize", value: strconv.Itoa(maxSize)},
		{key: "logMaxBackups", value: strconv.Itoa(maxBackups)},
	}

	lines := strings.Split(content, "\n")
	topLevelEnd := len(lines)
	for i, line := range lines {
		if sectionHeader.MatchString(line) {
			topLevelEnd = i
			break
		}
	}

	var missing []string
	for _, s := range settings {
		pattern := regexp.MustCompile(`^\s*#?\s*` + regexp.QuoteMeta(s.key) + `\s*=`)
		replacement := s.key + " = " + s.value
		if s.unset {
			replacement = "#" + s.key + ` = ""`
		}

		found := false
		for i := 0; i < topLevelEnd; i++ {
			if pattern.MatchString(lines[i]) {
				lines[i] = replacement
				found = true
				break
			}
		}
		if !found && !s.unset {
			missing = append(missing, replacement)
		}
	}

	if len(missing) == 0 {
		return strings.Join(lines, "\n")
	}

	block := append([]string{"# Log settings"}, missing...)
	block = append(block, "")

	out := make([]string, 0, len(lines)+len(block))
	out = append(out, lines[:topLevelEnd]...)
	out = append(out, block...)
	out = append(out, lines[topLevelEnd:]...)
	return strings.Join(out, "\n")
}
