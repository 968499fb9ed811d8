// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torznab searches release listings through Jackett, Prowlarr or a
// native torznab endpoint.
package torznab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/gamarr/internal/providers"
	"github.com/autobrr/gamarr/internal/resilient"
)

const Name = "torznab"

// Backend selects the URL layout of the torznab server.
type Backend string

const (
	BackendJackett  Backend = "jackett"
	BackendProwlarr Backend = "prowlarr"
	BackendNative   Backend = "native"
)

// DefaultCategories are the newznab PC/Games and Console groups.
var DefaultCategories = []int{4050, 1000}

// DefaultBudget keeps indexers well under their abuse thresholds.
var DefaultBudget = resilient.BudgetConfig{MaxRequests: 1, Window: 2 * time.Second}

// ParseBackend maps a configured backend name, defaulting to jackett.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackendJackett:
		return BackendJackett, nil
	case BackendProwlarr:
		return BackendProwlarr, nil
	case BackendNative:
		return BackendNative, nil
	default:
		return "", fmt.Errorf("unknown torznab backend %q", s)
	}
}

type Config struct {
	BaseURL    string
	APIKey     string
	Backend    Backend
	Indexer    string
	HTTPClient *http.Client
	Observer   resilient.Observer
	Budgets    providers.BudgetSource
}

// Client is the torznab adapter. Authentication is a static API key.
type Client struct {
	*providers.Base

	baseURL string
	apiKey  string
	backend Backend
	indexer string
}

func NewClient(cfg Config) *Client {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendJackett
	}
	indexer := strings.TrimSpace(cfg.Indexer)
	if indexer == "" && backend == BackendJackett {
		indexer = "all"
	}

	return &Client{
		Base: providers.NewBase(providers.BaseConfig{
			Name:       Name,
			Budget:     DefaultBudget,
			HTTPClient: cfg.HTTPClient,
			Observer:   cfg.Observer,
			Budgets:    cfg.Budgets,
			Validate:   validateResponse,
		}),
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		backend: backend,
		indexer: indexer,
	}
}

func (c *Client) IsConfigured() bool {
	if c.baseURL == "" || c.apiKey == "" {
		return false
	}
	return c.backend != BackendProwlarr || c.indexer != ""
}

// Authenticate only validates configuration; the API key never expires.
func (c *Client) Authenticate(context.Context) error {
	if !c.IsConfigured() {
		return resilient.ErrNotConfigured
	}
	return nil
}

// Endpoint returns the API path for the configured backend.
func (c *Client) Endpoint() string {
	switch c.backend {
	case BackendProwlarr:
		return fmt.Sprintf("api/v1/indexer/%s/newznab", url.PathEscape(c.indexer))
	case BackendNative:
		return ""
	default:
		return fmt.Sprintf("api/v2.0/indexers/%s/results/torznab/api", url.PathEscape(c.indexer))
	}
}

// Call issues a torznab request; the API key is added to the parameters.
// <error> documents are reported as errors and retried when rate limited.
func (c *Client) Call(ctx context.Context, endpoint string, query providers.Query) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, resilient.ErrNotConfigured
	}

	params := url.Values{}
	for k, v := range query.Params {
		params[k] = append([]string(nil), v...)
	}
	params.Set("apikey", c.apiKey)
	query.Params = params

	return c.Do(ctx, c.baseURL, endpoint, query, nil, nil)
}

// Search runs a free-text search restricted to categories.
func (c *Client) Search(ctx context.Context, term string, categories []int) ([]providers.ReleaseListing, error) {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	cats := make([]string, 0, len(categories))
	for _, cat := range categories {
		cats = append(cats, strconv.Itoa(cat))
	}

	params := url.Values{}
	params.Set("t", "search")
	params.Set("q", term)
	params.Set("cat", strings.Join(cats, ","))

	body, err := c.Call(ctx, c.Endpoint(), providers.Query{Params: params})
	if err != nil {
		return nil, err
	}

	listings, err := parseFeed(body)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("backend", string(c.backend)).
		Str("query", term).
		Int("results", len(listings)).
		Msg("Torznab search completed")

	return listings, nil
}
