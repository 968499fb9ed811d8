// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package igdb resolves game names against the IGDB catalog. Authentication
// is a Twitch client-credentials exchange.
package igdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/autobrr/gamarr/internal/providers"
	"github.com/autobrr/gamarr/internal/resilient"
)

const (
	Name = "igdb"

	// MaxBatchSize is the number of sub-queries IGDB accepts per multiquery.
	MaxBatchSize = 10

	defaultBaseURL  = "https://api.igdb.com/v4"
	defaultTokenURL = "https://id.twitch.tv/oauth2/token"
)

// DefaultBudget stays under the documented 4 requests per second.
var DefaultBudget = resilient.BudgetConfig{MaxRequests: 3, Window: time.Second}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Config holds the options for constructing a Client.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	HTTPClient   *http.Client
	Observer     resilient.Observer
	Budgets      providers.BudgetSource
	ExpiryMargin time.Duration
}

// Client is the IGDB adapter.
type Client struct {
	*providers.Base

	baseURL string
	enabled bool
	creds   *providers.Credentials
	oauth   clientcredentials.Config
}

// NewClient constructs a new Client using the provided configuration.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	margin := cfg.ExpiryMargin
	if margin <= 0 {
		margin = providers.DefaultExpiryMargin
	}

	return &Client{
		Base: providers.NewBase(providers.BaseConfig{
			Name:       Name,
			Budget:     DefaultBudget,
			HTTPClient: cfg.HTTPClient,
			Observer:   cfg.Observer,
			Budgets:    cfg.Budgets,
		}),
		baseURL: strings.TrimRight(baseURL, "/"),
		enabled: strings.TrimSpace(cfg.ClientID) != "" && strings.TrimSpace(cfg.ClientSecret) != "",
		creds:   providers.NewCredentials(margin),
		oauth: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
	}
}

func (c *Client) IsConfigured() bool {
	return c.enabled
}

// MaxBatchSize reports how many names fit in one SearchBatch call.
func (c *Client) MaxBatchSize() int {
	return MaxBatchSize
}

// Authenticate obtains an app access token unless a valid one is held.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.token(ctx)
	return err
}

func (c *Client) token(ctx context.Context) (string, error) {
	if !c.enabled {
		return "", resilient.ErrNotConfigured
	}
	return c.creds.Ensure(ctx, c.fetchToken)
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Time, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient())

	tok, err := c.oauth.Token(ctx)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < http.StatusInternalServerError {
			return "", time.Time{}, fmt.Errorf("%w: igdb token exchange: %w", resilient.ErrAuthFailed, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", time.Time{}, ctxErr
		}
		return "", time.Time{}, fmt.Errorf("%w: igdb token exchange: %w", resilient.ErrTransientConnection, err)
	}

	log.Debug().
		Time("expires_at", tok.Expiry).
		Msg("Obtained IGDB access token")

	return tok.AccessToken, tok.Expiry, nil
}

func (c *Client) prepare(ctx context.Context, req *http.Request) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Client-ID", c.oauth.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if req.Body != nil {
		req.Header.Set("Content-Type", "text/plain")
	}
	return nil
}

// Call posts an APIcalypse query to endpoint.
func (c *Client) Call(ctx context.Context, endpoint string, query providers.Query) ([]byte, error) {
	if !c.enabled {
		return nil, resilient.ErrNotConfigured
	}
	if query.Method == "" {
		query.Method = http.MethodPost
	}
	return c.Do(ctx, c.baseURL, endpoint, query, c.prepare, c.invalidate)
}

func (c *Client) invalidate(rejected *http.Request) {
	token := strings.TrimPrefix(rejected.Header.Get("Authorization"), "Bearer ")
	if c.creds.Invalidate(token) {
		log.Debug().Str("provider", Name).Msg("Dropped rejected access token")
	}
}

// Search looks up a single name.
func (c *Client) Search(ctx context.Context, name string, limit int) ([]providers.CandidateMetadata, error) {
	body, err := c.Call(ctx, "games", providers.Query{Body: searchBody(name, limit)})
	if err != nil {
		return nil, err
	}

	var games []game
	if err := json.Unmarshal(body, &games); err != nil {
		return nil, fmt.Errorf("decode igdb games: %w", err)
	}
	return toCandidates(games), nil
}

// SearchBatch resolves up to MaxBatchSize names with one multiquery request.
// Names without matches are absent from the result.
func (c *Client) SearchBatch(ctx context.Context, names []string, limit int) (map[string][]providers.CandidateMetadata, error) {
	if len(names) == 0 {
		return map[string][]providers.CandidateMetadata{}, nil
	}
	if len(names) > MaxBatchSize {
		return nil, fmt.Errorf("igdb multiquery accepts at most %d queries, got %d", MaxBatchSize, len(names))
	}

	var sb strings.Builder
	for i, name := range names {
		fmt.Fprintf(&sb, "query games \"%d\" {\n%s};\n", i, searchBody(name, limit))
	}

	body, err := c.Call(ctx, "multiquery", providers.Query{Body: sb.String()})
	if err != nil {
		return nil, err
	}

	var results []multiResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decode igdb multiquery: %w", err)
	}

	out := make(map[string][]providers.CandidateMetadata, len(names))
	for _, r := range results {
		idx, err := strconv.Atoi(r.Name)
		if err != nil || idx < 0 || idx >= len(names) {
			log.Debug().Str("label", r.Name).Msg("Ignoring unexpected IGDB multiquery label")
			continue
		}
		var games []game
		if err := json.Unmarshal(r.Result, &games); err != nil {
			return nil, fmt.Errorf("decode igdb multiquery result %q: %w", r.Name, err)
		}
		out[names[idx]] = toCandidates(games)
	}
	return out, nil
}

// Popular returns the most rated games, used for the popular-games feed.
func (c *Client) Popular(ctx context.Context, limit int) ([]providers.CandidateMetadata, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf("fields %s;\nwhere total_rating_count > 50;\nsort total_rating_count desc;\nlimit %d;\n", gameFields, limit)

	body, err := c.Call(ctx, "games", providers.Query{Body: query})
	if err != nil {
		return nil, err
	}

	var games []game
	if err := json.Unmarshal(body, &games); err != nil {
		return nil, fmt.Errorf("decode igdb games: %w", err)
	}
	return toCandidates(games), nil
}

func searchBody(name string, limit int) string {
	if limit <= 0 {
		limit = 5
	}
	return fmt.Sprintf("search \"%s\";\nfields %s;\nlimit %d;\n", queryEscaper.Replace(name), gameFields, limit)
}
