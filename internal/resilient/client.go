// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package resilient wraps outbound provider calls with sliding-window
// admission, retry with exponential backoff and a single re-authentication
// on credential rejection.
package resilient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/gamarr/internal/buildinfo"
	"github.com/autobrr/gamarr/pkg/httphelpers"
	"github.com/autobrr/gamarr/pkg/redact"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxBodySize = 32 << 20
	maxCooldown        = 15 * time.Minute
	errorBodyLimit     = 256
)

// Attempt describes one dispatched (or refused) attempt for observers.
type Attempt struct {
	Provider string
	Method   string
	URL      string
	Number   uint
	Status   int
	Duration time.Duration
	Err      error
}

// Observer receives every attempt. It must not block.
type Observer interface {
	ObserveAttempt(Attempt)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Attempt)

func (f ObserverFunc) ObserveAttempt(a Attempt) { f(a) }

// Client executes requests for a single provider against that provider's budget.
type Client struct {
	provider    string
	budget      *Budget
	httpClient  *http.Client
	observer    Observer
	userAgent   string
	maxBodySize int64
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient creates a client for provider. The budget must not be shared
// with another provider.
func NewClient(provider string, budget *Budget, opts ...ClientOption) *Client {
	c := &Client{
		provider:    provider,
		budget:      budget,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		userAgent:   buildinfo.UserAgent,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.budget == nil {
		c.budget = NewBudget(BudgetConfig{})
	}
	return c
}

// Provider returns the provider name used in errors and metrics.
func (c *Client) Provider() string {
	return c.provider
}

// Budget returns the admission budget owned by this client.
func (c *Client) Budget() *Budget {
	return c.budget
}

// HTTPClient returns the underlying transport, shared with token exchanges.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Execute sends req, retrying transient failures and rate limiting with
// exponential backoff. Every attempt waits for budget admission. The first
// credential rejection invalidates credentials and retries once; a second
// one fails with ErrAuthFailed.
func (c *Client) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}

	policy := req.Policy.withDefaults()

	var (
		attempt  uint
		reauthed bool
		result   *Response
	)

	err := retry.Do(
		func() error {
			attempt++
			resp, err := c.attempt(ctx, req, policy, attempt, &reauthed)
			if err != nil {
				return err
			}
			result = resp
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(policy.MaxAttempts),
		retry.Delay(policy.BaseDelay),
		retry.MaxDelay(policy.MaxDelay),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			var reauth *reauthError
			if errors.As(err, &reauth) {
				return 0
			}
			return retry.BackOffDelay(n, err, config)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().
				Err(err).
				Str("provider", c.provider).
				Str("method", req.Method).
				Uint("attempt", n+1).
				Msg("Provider request failed, retrying")
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, err
	}

	result.Attempts = attempt
	return result, nil
}

func (c *Client) attempt(ctx context.Context, req *Request, policy RetryPolicy, n uint, reauthed *bool) (*Response, error) {
	if err := c.budget.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.dispatch(ctx, req, policy, reauthed)
	c.observe(Attempt{
		Provider: c.provider,
		Method:   req.Method,
		URL:      redact.URL(req.URL),
		Number:   n,
		Status:   statusOf(resp, err),
		Duration: time.Since(start),
		Err:      err,
	})
	return resp, err
}

func (c *Client) dispatch(ctx context.Context, req *Request, policy RetryPolicy, reauthed *bool) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.provider, err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	if req.Prepare != nil {
		if err := req.Prepare(ctx, httpReq); err != nil {
			return nil, err
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrTransientConnection, c.provider, redact.URLError(err))
	}
	defer httphelpers.DrainAndClose(resp)

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: read body: %w", ErrTransientConnection, c.provider, err)
	}

	status := resp.StatusCode
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		out := &Response{
			StatusCode: status,
			Header:     resp.Header,
			Body:       data,
		}
		if req.Validate != nil {
			if err := req.Validate(out); err != nil {
				var rl *RateLimitedError
				if errors.As(err, &rl) && rl.RetryAfter > 0 {
					c.cooldown(time.Duration(rl.RetryAfter) * time.Second)
				}
				return nil, err
			}
		}
		return out, nil

	case policy.isAuthStatus(status):
		if *reauthed {
			return nil, fmt.Errorf("%w: %s returned status %d after re-authentication", ErrAuthFailed, c.provider, status)
		}
		*reauthed = true
		if req.Invalidate != nil {
			req.Invalidate(httpReq)
		}
		log.Debug().
			Str("provider", c.provider).
			Int("status", status).
			Msg("Provider rejected credentials, re-authenticating")
		return nil, &reauthError{provider: c.provider, status: status}

	case policy.isRateLimitStatus(status):
		wait := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		if wait <= 0 {
			wait = extractRetryAfter(string(data))
		}
		if wait > 0 {
			wait = c.cooldown(wait)
		}
		return nil, &RateLimitedError{
			Provider:   c.provider,
			Status:     status,
			RetryAfter: int64(wait / time.Second),
		}

	default:
		return nil, &ProviderError{
			Provider:  c.provider,
			Status:    status,
			Body:      truncate(strings.TrimSpace(string(data)), errorBodyLimit),
			Retryable: policy.isRetryableStatus(status),
		}
	}
}

// cooldown pauses admission for wait, capped at maxCooldown, and returns
// the applied pause.
func (c *Client) cooldown(wait time.Duration) time.Duration {
	wait = min(wait, maxCooldown)
	resumeAt := time.Now().Add(wait)
	c.budget.SetCooldown(resumeAt)
	log.Warn().
		Str("provider", c.provider).
		Time("resume_at", resumeAt).
		Msg("Provider rate limit triggered, pausing requests")
	return wait
}

func (c *Client) observe(a Attempt) {
	if a.Err != nil {
		log.Debug().
			Err(a.Err).
			Str("provider", a.Provider).
			Str("url", a.URL).
			Uint("attempt", a.Number).
			Int("status", a.Status).
			Dur("duration", a.Duration).
			Msg("Provider request attempt failed")
	} else {
		log.Trace().
			Str("provider", a.Provider).
			Str("url", a.URL).
			Uint("attempt", a.Number).
			Int("status", a.Status).
			Dur("duration", a.Duration).
			Msg("Provider request attempt succeeded")
	}

	if c.observer != nil {
		c.observer.ObserveAttempt(a)
	}
}

func statusOf(resp *Response, err error) int {
	if resp != nil {
		return resp.StatusCode
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Status
	}
	var rerr *RateLimitedError
	if errors.As(err, &rerr) {
		return rerr.Status
	}
	var aerr *reauthError
	if errors.As(err, &aerr) {
		return aerr.status
	}
	return 0
}

var retryAfterRegex = regexp.MustCompile(`retry[- ]?after[:= ]*(\d+)`)

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// extractRetryAfter finds a "retry after N" hint in an error body.
func extractRetryAfter(body string) time.Duration {
	matches := retryAfterRegex.FindStringSubmatch(strings.ToLower(body))
	if len(matches) == 2 {
		if seconds, err := strconv.Atoi(matches[1]); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
