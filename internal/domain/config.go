// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Config represents the application configuration
type Config struct {
	Version       string
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`
	DatabasePath  string `toml:"databasePath" mapstructure:"databasePath"`

	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`

	// IGDB authenticates through Twitch client credentials.
	IGDBClientID     string `toml:"igdbClientId" mapstructure:"igdbClientId"`
	IGDBClientSecret string `toml:"igdbClientSecret" mapstructure:"igdbClientSecret"`

	TorznabURL        string `toml:"torznabUrl" mapstructure:"torznabUrl"`
	TorznabAPIKey     string `toml:"torznabApiKey" mapstructure:"torznabApiKey"`
	TorznabBackend    string `toml:"torznabBackend" mapstructure:"torznabBackend"`
	TorznabIndexer    string `toml:"torznabIndexer" mapstructure:"torznabIndexer"`
	TorznabCategories []int  `toml:"torznabCategories" mapstructure:"torznabCategories"`

	SteamAPIKey string `toml:"steamApiKey" mapstructure:"steamApiKey"`
	SteamID     string `toml:"steamId" mapstructure:"steamId"`

	AutoGrabMinScore   int `toml:"autoGrabMinScore" mapstructure:"autoGrabMinScore"`
	AutoGrabMinSeeders int `toml:"autoGrabMinSeeders" mapstructure:"autoGrabMinSeeders"`
	// AutoGrabFilter is an optional expression a release must also satisfy.
	AutoGrabFilter string `toml:"autoGrabFilter" mapstructure:"autoGrabFilter"`

	// ResolveGroupDelayMs spaces consecutive resolver groups.
	ResolveGroupDelayMs int `toml:"resolveGroupDelayMs" mapstructure:"resolveGroupDelayMs"`

	// CacheTTLMinutes is keyed by cache key family, the part of a key
	// before the first colon.
	CacheTTLMinutes    map[string]int          `toml:"cacheTtlMinutes" mapstructure:"cacheTtlMinutes"`
	CacheSweepMinutes  int                     `toml:"cacheSweepMinutes" mapstructure:"cacheSweepMinutes"`
	FeedRefreshMinutes int                     `toml:"feedRefreshMinutes" mapstructure:"feedRefreshMinutes"`
	Budgets            map[string]BudgetConfig `toml:"budgets" mapstructure:"budgets"`

	FeedPopularLimit int `toml:"feedPopularLimit" mapstructure:"feedPopularLimit"`
	FeedTopLimit     int `toml:"feedTopLimit" mapstructure:"feedTopLimit"`
}

// BudgetConfig overrides a provider's request budget.
type BudgetConfig struct {
	MaxRequests int `toml:"maxRequests" mapstructure:"maxRequests"`
	WindowMs    int `toml:"windowMs" mapstructure:"windowMs"`
}

// Validate checks values that would make the application misbehave.
func (c *Config) Validate() error {
	var errs []error

	if c.AutoGrabMinScore < 0 {
		errs = append(errs, errors.New("autoGrabMinScore must not be negative"))
	}
	if c.AutoGrabMinSeeders < 0 {
		errs = append(errs, errors.New("autoGrabMinSeeders must not be negative"))
	}
	if c.ResolveGroupDelayMs < 0 {
		errs = append(errs, errors.New("resolveGroupDelayMs must not be negative"))
	}
	if c.FeedPopularLimit < 0 || c.FeedTopLimit < 0 {
		errs = append(errs, errors.New("feed limits must not be negative"))
	}
	for family, minutes := range c.CacheTTLMinutes {
		if minutes <= 0 {
			errs = append(errs, fmt.Errorf("cacheTtlMinutes.%s must be positive", family))
		}
	}
	for provider, budget := range c.Budgets {
		if budget.MaxRequests <= 0 || budget.WindowMs <= 0 {
			errs = append(errs, fmt.Errorf("budgets.%s requires positive maxRequests and windowMs", provider))
		}
	}
	if c.MetricsEnabled && (c.MetricsPort <= 0 || c.MetricsPort > 65535) {
		errs = append(errs, fmt.Errorf("invalid metricsPort %d", c.MetricsPort))
	}
	for key, value := range map[string]string{
		"igdbClientSecret":      c.IGDBClientSecret,
		"torznabApiKey":         c.TorznabAPIKey,
		"steamApiKey":           c.SteamAPIKey,
		"metricsBasicAuthUsers": c.MetricsBasicAuthUsers,
	} {
		if IsRedactedString(value) {
			errs = append(errs, fmt.Errorf("%s holds the redaction placeholder, paste the real value", key))
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.TorznabBackend)) {
	case "", "jackett", "prowlarr", "native":
	default:
		errs = append(errs, fmt.Errorf("unknown torznabBackend %q", c.TorznabBackend))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	c.IGDBClientSecret = RedactString(c.IGDBClientSecret)
	c.TorznabAPIKey = RedactString(c.TorznabAPIKey)
	c.SteamAPIKey = RedactString(c.SteamAPIKey)
	c.MetricsBasicAuthUsers = RedactString(c.MetricsBasicAuthUsers)
	return c
}
