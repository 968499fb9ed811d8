// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/gamarr/internal/resilient"
	"github.com/autobrr/gamarr/pkg/httphelpers"
)

// Base carries the per-adapter resilient client and applies runtime budget
// overrides before every call. Adapters embed it.
type Base struct {
	name    string
	client  *resilient.Client
	budgets  BudgetSource
	policy   resilient.RetryPolicy
	validate func(*resilient.Response) error
}

// BaseConfig configures the shared adapter scaffolding.
type BaseConfig struct {
	Name       string
	Budget     resilient.BudgetConfig
	Policy     resilient.RetryPolicy
	HTTPClient *http.Client
	Observer   resilient.Observer
	Budgets    BudgetSource
	// Validate checks every successful response, see resilient.Request.
	Validate func(*resilient.Response) error
}

func NewBase(cfg BaseConfig) *Base {
	budget := resilient.NewBudget(cfg.Budget)
	client := resilient.NewClient(cfg.Name, budget,
		resilient.WithHTTPClient(cfg.HTTPClient),
		resilient.WithObserver(cfg.Observer),
	)
	return &Base{
		name:     cfg.Name,
		client:   client,
		budgets:  cfg.Budgets,
		policy:   cfg.Policy,
		validate: cfg.Validate,
	}
}

func (b *Base) Name() string {
	return b.name
}

// Budget returns the adapter's own rate budget.
func (b *Base) Budget() *resilient.Budget {
	return b.client.Budget()
}

// HTTPClient returns the transport used for provider traffic.
func (b *Base) HTTPClient() *http.Client {
	return b.client.HTTPClient()
}

// Execute sends a request through the adapter's resilient client.
func (b *Base) Execute(ctx context.Context, req *resilient.Request) (*resilient.Response, error) {
	b.applyOverride()
	if req.Policy.MaxAttempts == 0 {
		req.Policy = b.policy
	}
	return b.client.Execute(ctx, req)
}

// Do builds a request for endpoint under baseURL and executes it.
func (b *Base) Do(ctx context.Context, baseURL, endpoint string, query Query, prepare func(context.Context, *http.Request) error, invalidate func(*http.Request)) ([]byte, error) {
	target, err := JoinURL(baseURL, endpoint, query.Params)
	if err != nil {
		return nil, err
	}

	method := query.Method
	if method == "" {
		method = http.MethodGet
		if query.Body != "" {
			method = http.MethodPost
		}
	}

	resp, err := b.Execute(ctx, &resilient.Request{
		Method:     method,
		URL:        target,
		Header:     query.Header,
		Body:       []byte(query.Body),
		Prepare:    prepare,
		Invalidate: invalidate,
		Validate:   b.validate,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (b *Base) applyOverride() {
	if b.budgets == nil {
		return
	}
	cfg, ok := b.budgets.BudgetOverride(b.name)
	if !ok || !cfg.Valid() {
		return
	}
	budget := b.client.Budget()
	if budget.Config() != cfg {
		log.Debug().
			Str("provider", b.name).
			Str("budget", cfg.String()).
			Msg("Applying rate budget override")
		budget.Reconfigure(cfg)
	}
}

// JoinURL appends endpoint to the path of base and encodes params after
// any query base already carries.
func JoinURL(base, endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", err
	}
	if endpoint = strings.Trim(endpoint, "/"); endpoint != "" {
		joined := httphelpers.JoinBasePath(httphelpers.NormalizeBasePath(u.EscapedPath()), endpoint)
		if u.Path, err = url.PathUnescape(joined); err != nil {
			return "", err
		}
		u.RawPath = joined
	}
	if len(params) > 0 {
		if u.RawQuery != "" {
			u.RawQuery += "&"
		}
		u.RawQuery += params.Encode()
	}
	return u.String(), nil
}
