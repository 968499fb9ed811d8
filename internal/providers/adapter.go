// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package providers holds the shape shared by every external integration:
// one rate budget and one credential per adapter instance, with all traffic
// going through a resilient.Client.
package providers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/autobrr/gamarr/internal/resilient"
)

// Query is the provider-specific part of a call.
type Query struct {
	Method string
	Params url.Values
	Body   string
	Header http.Header
}

// Adapter is implemented by every provider integration.
type Adapter interface {
	Name() string
	IsConfigured() bool
	// Authenticate is idempotent and skipped while the held credential is valid.
	Authenticate(ctx context.Context) error
	Call(ctx context.Context, endpoint string, query Query) ([]byte, error)
}

// BudgetSource supplies runtime overrides for an adapter's rate budget.
// It is consulted on every call.
type BudgetSource interface {
	BudgetOverride(provider string) (resilient.BudgetConfig, bool)
}
