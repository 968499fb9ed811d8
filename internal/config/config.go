// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads config.toml with environment overrides and keeps an
// atomically swapped snapshot that is refreshed when the file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/gamarr/internal/domain"
	"github.com/autobrr/gamarr/internal/resilient"
	"github.com/autobrr/gamarr/internal/services/scoring"
	"github.com/autobrr/gamarr/pkg/debounce"
)

const (
	appName          = "gamarr"
	envPrefix        = "GAMARR__"
	configFileName   = "config.toml"
	databaseFileName = "gamarr.db"

	defaultCacheTTL = time.Hour
	reloadDebounce  = 500 * time.Millisecond
)

// envBindings maps config keys to their environment variable suffix.
var envBindings = map[string]string{
	"logLevel":              "LOG_LEVEL",
	"logPath":               "LOG_PATH",
	"logMaxSize":            "LOG_MAX_SIZE",
	"logMaxBackups":         "LOG_MAX_BACKUPS",
	"dataDir":               "DATA_DIR",
	"databasePath":          "DATABASE_PATH",
	"metricsEnabled":        "METRICS_ENABLED",
	"metricsHost":           "METRICS_HOST",
	"metricsPort":           "METRICS_PORT",
	"metricsBasicAuthUsers": "METRICS_BASIC_AUTH_USERS",
	"igdbClientId":          "IGDB_CLIENT_ID",
	"igdbClientSecret":      "IGDB_CLIENT_SECRET",
	"torznabUrl":            "TORZNAB_URL",
	"torznabApiKey":         "TORZNAB_API_KEY",
	"torznabBackend":        "TORZNAB_BACKEND",
	"torznabIndexer":        "TORZNAB_INDEXER",
	"torznabCategories":     "TORZNAB_CATEGORIES",
	"steamApiKey":           "STEAM_API_KEY",
	"steamId":               "STEAM_ID",
	"autoGrabMinScore":      "AUTOGRAB_MIN_SCORE",
	"autoGrabMinSeeders":    "AUTOGRAB_MIN_SEEDERS",
	"autoGrabFilter":        "AUTOGRAB_FILTER",
	"resolveGroupDelayMs":   "RESOLVE_GROUP_DELAY_MS",
	"cacheSweepMinutes":     "CACHE_SWEEP_MINUTES",
	"feedRefreshMinutes":    "FEED_REFRESH_MINUTES",
	"feedPopularLimit":      "FEED_POPULAR_LIMIT",
	"feedTopLimit":          "FEED_TOP_LIMIT",
}

var defaultCacheTTLMinutes = map[string]int{
	"popular-games": 360,
	"top-releases":  60,
}

type snapshot struct {
	config  *domain.Config
	weights scoring.Weights
	filter  *scoring.Filter
}

// AppConfig is safe for concurrent use. Accessors read the current snapshot
// on every call so file changes apply without a restart.
type AppConfig struct {
	viper      *viper.Viper
	configPath string
	current    atomic.Pointer[snapshot]

	mu       sync.Mutex
	onReload []func(old, updated *domain.Config)
}

// New loads configPath, creating a default config file when it is missing.
// An empty path resolves to the user config directory; a directory path
// resolves to config.toml inside it.
func New(configPath string) (*AppConfig, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	if err := writeDefaultConfig(path); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, envPrefix+env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	c := &AppConfig{viper: v, configPath: path}
	snap, err := c.load()
	if err != nil {
		return nil, err
	}
	c.current.Store(snap)

	return c, nil
}

func resolveConfigPath(configPath string) (string, error) {
	if configPath == "" {
		return filepath.Join(getDefaultConfigDir(), configFileName), nil
	}
	info, err := os.Stat(configPath)
	if err == nil && info.IsDir() {
		return filepath.Join(configPath, configFileName), nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat config %s: %w", configPath, err)
	}
	if err != nil && !strings.EqualFold(filepath.Ext(configPath), ".toml") {
		return filepath.Join(configPath, configFileName), nil
	}
	return configPath, nil
}

// getDefaultConfigDir honours XDG_CONFIG_HOME. Containers mount /config
// directly, so that value is used as is.
func getDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if xdg == "/config" {
			return xdg
		}
		return filepath.Join(xdg, appName)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, appName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "INFO")
	v.SetDefault("logMaxSize", 50)
	v.SetDefault("logMaxBackups", 3)
	v.SetDefault("metricsHost", "127.0.0.1")
	v.SetDefault("metricsPort", 9074)
	v.SetDefault("torznabBackend", "jackett")
	v.SetDefault("autoGrabMinScore", 150)
	v.SetDefault("autoGrabMinSeeders", 5)
	v.SetDefault("resolveGroupDelayMs", 250)
	v.SetDefault("cacheSweepMinutes", 30)
	v.SetDefault("feedRefreshMinutes", 60)
	v.SetDefault("feedPopularLimit", 50)
	v.SetDefault("feedTopLimit", 50)
}

func (c *AppConfig) load() (*snapshot, error) {
	var cfg domain.Config
	if err := c.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Version = appName

	// keys absent from [scoring] keep their default, explicit zeros stay zero
	weights := scoring.DefaultWeights()
	if c.viper.IsSet("scoring") {
		if err := c.viper.UnmarshalKey("scoring", &weights); err != nil {
			return nil, fmt.Errorf("decode scoring weights: %w", err)
		}
		if err := weights.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	filter, err := scoring.CompileFilter(cfg.AutoGrabFilter)
	if err != nil {
		return nil, fmt.Errorf("invalid config: autoGrabFilter: %w", err)
	}

	return &snapshot{config: &cfg, weights: weights, filter: filter}, nil
}

// Watch reloads the snapshot when the config file changes. A file that fails
// to load or validate leaves the previous snapshot in place.
// Bursts of events from one save are collapsed into a single reload.
func (c *AppConfig) Watch() {
	d := debounce.New(reloadDebounce)
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		d.Do(c.reload)
	})
	c.viper.WatchConfig()
}

func (c *AppConfig) reload() {
	snap, err := c.load()
	if err != nil {
		log.Error().Err(err).Str("path", c.configPath).Msg("Config reload failed, keeping previous values")
		return
	}

	old := c.current.Swap(snap)
	log.Info().Str("path", c.configPath).Msg("Config reloaded")

	c.mu.Lock()
	hooks := slices.Clone(c.onReload)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn(old.config, snap.config)
	}
}

// OnReload registers fn to run after every successful reload.
func (c *AppConfig) OnReload(fn func(old, updated *domain.Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReload = append(c.onReload, fn)
}

// Current returns the active configuration. Callers must not modify it.
func (c *AppConfig) Current() *domain.Config {
	return c.current.Load().config
}

func (c *AppConfig) ConfigPath() string {
	return c.configPath
}

// GetDatabasePath defaults to gamarr.db next to the config file.
func (c *AppConfig) GetDatabasePath() string {
	if p := strings.TrimSpace(c.Current().DatabasePath); p != "" {
		return p
	}
	if dir := strings.TrimSpace(c.Current().DataDir); dir != "" {
		return filepath.Join(dir, databaseFileName)
	}
	return filepath.Join(filepath.Dir(c.configPath), databaseFileName)
}

func (c *AppConfig) AutoGrabThresholds() (minScore, minSeeders int) {
	cfg := c.Current()
	return cfg.AutoGrabMinScore, cfg.AutoGrabMinSeeders
}

// AutoGrabFilter returns the compiled filter expression, nil when unset.
func (c *AppConfig) AutoGrabFilter() *scoring.Filter {
	return c.current.Load().filter
}

// CacheTTL returns the TTL for a cache key, looked up by the key's family.
func (c *AppConfig) CacheTTL(key string) time.Duration {
	family := CacheKeyFamily(key)
	if minutes, ok := c.Current().CacheTTLMinutes[family]; ok && minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	if minutes, ok := defaultCacheTTLMinutes[family]; ok {
		return time.Duration(minutes) * time.Minute
	}
	return defaultCacheTTL
}

// CacheKeyFamily is the lowercased part of key before the first colon.
func CacheKeyFamily(key string) string {
	family, _, _ := strings.Cut(key, ":")
	return strings.ToLower(strings.TrimSpace(family))
}

func (c *AppConfig) BudgetOverride(provider string) (resilient.BudgetConfig, bool) {
	b, ok := c.Current().Budgets[strings.ToLower(provider)]
	if !ok || b.MaxRequests <= 0 || b.WindowMs <= 0 {
		return resilient.BudgetConfig{}, false
	}
	return resilient.BudgetConfig{
		MaxRequests: b.MaxRequests,
		Window:      time.Duration(b.WindowMs) * time.Millisecond,
	}, true
}

// CategoryFilter returns the torznab categories passed to release searches.
func (c *AppConfig) CategoryFilter() []int {
	return slices.Clone(c.Current().TorznabCategories)
}

func (c *AppConfig) ScoringWeights() scoring.Weights {
	return c.current.Load().weights
}

func (c *AppConfig) GroupDelay() time.Duration {
	return time.Duration(c.Current().ResolveGroupDelayMs) * time.Millisecond
}

func (c *AppConfig) CacheSweepInterval() time.Duration {
	return time.Duration(c.Current().CacheSweepMinutes) * time.Minute
}

func (c *AppConfig) FeedRefreshInterval() time.Duration {
	return time.Duration(c.Current().FeedRefreshMinutes) * time.Minute
}
