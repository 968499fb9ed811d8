// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package steam imports owned games from the Steam Web API.
package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/gamarr/internal/providers"
	"github.com/autobrr/gamarr/internal/resilient"
)

const (
	Name = "steam"

	defaultBaseURL = "https://api.steampowered.com"
	ownedGamesPath = "IPlayerService/GetOwnedGames/v1"
)

var DefaultBudget = resilient.BudgetConfig{MaxRequests: 1, Window: 1500 * time.Millisecond}

type Config struct {
	APIKey     string
	SteamID    string
	BaseURL    string
	HTTPClient *http.Client
	Observer   resilient.Observer
	Budgets    providers.BudgetSource
}

// OwnedGame is one entry of a user's library.
type OwnedGame struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	PlaytimeMinutes int64  `json:"playtime_forever"`
	LastPlayed      int64  `json:"rtime_last_played"`
}

type ownedGamesResponse struct {
	Response struct {
		GameCount int         `json:"game_count"`
		Games     []OwnedGame `json:"games"`
	} `json:"response"`
}

type Client struct {
	*providers.Base

	baseURL string
	apiKey  string
	steamID string
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
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
		apiKey:  strings.TrimSpace(cfg.APIKey),
		steamID: strings.TrimSpace(cfg.SteamID),
	}
}

func (c *Client) IsConfigured() bool {
	return c.apiKey != "" && c.steamID != ""
}

func (c *Client) Authenticate(context.Context) error {
	if !c.IsConfigured() {
		return resilient.ErrNotConfigured
	}
	return nil
}

func (c *Client) Call(ctx context.Context, endpoint string, query providers.Query) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, resilient.ErrNotConfigured
	}
	params := url.Values{}
	for k, v := range query.Params {
		params[k] = append([]string(nil), v...)
	}
	params.Set("key", c.apiKey)
	params.Set("format", "json")
	query.Params = params
	return c.Do(ctx, c.baseURL, endpoint, query, nil, nil)
}

// OwnedGames lists the configured account's library, including free games.
func (c *Client) OwnedGames(ctx context.Context) ([]OwnedGame, error) {
	params := url.Values{}
	params.Set("steamid", c.steamID)
	params.Set("include_appinfo", "1")
	params.Set("include_played_free_games", "1")

	body, err := c.Call(ctx, ownedGamesPath, providers.Query{Params: params})
	if err != nil {
		return nil, err
	}

	var resp ownedGamesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode steam owned games: %w", err)
	}
	return resp.Response.Games, nil
}

// ExternalID is the collection key for an owned game.
func (g OwnedGame) ExternalID() string {
	return "steam:" + strconv.FormatInt(g.AppID, 10)
}

// Library returns the owned games as candidates, ready for collection import.
func (c *Client) Library(ctx context.Context) ([]providers.CandidateMetadata, error) {
	games, err := c.OwnedGames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]providers.CandidateMetadata, 0, len(games))
	for _, g := range games {
		out = append(out, g.toCandidate())
	}
	return out, nil
}

func (g OwnedGame) toCandidate() providers.CandidateMetadata {
	return providers.CandidateMetadata{
		ExternalID: g.ExternalID(),
		Provider:   Name,
		Title:      g.Name,
		Cover:      fmt.Sprintf("https://cdn.cloudflare.steamstatic.com/steam/apps/%d/header.jpg", g.AppID),
	}
}
