// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package redact removes credentials from URLs before they reach logs or
// error messages.
package redact

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

const placeholder = "REDACTED"

var sensitiveParam = regexp.MustCompile(`(?i)([?&](?:apikey|api_key|passkey|token|password|key|client_secret|access_token)=)[^&#]*`)

// URL replaces the values of credential query parameters.
func URL(raw string) string {
	return sensitiveParam.ReplaceAllString(raw, "${1}"+placeholder)
}

type urlError struct {
	msg string
	err *url.Error
}

func (e *urlError) Error() string { return e.msg }
func (e *urlError) Unwrap() error { return e.err }

// URLError returns err with the URL of any wrapped *url.Error redacted.
// A bare *url.Error is returned as a redacted copy of the same type.
func URLError(err error) error {
	if err == nil {
		return nil
	}

	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}

	clean := &url.Error{Op: ue.Op, URL: URL(ue.URL), Err: ue.Err}
	if direct, ok := err.(*url.Error); ok && direct == ue {
		return clean
	}
	return &urlError{
		msg: strings.ReplaceAll(err.Error(), ue.URL, clean.URL),
		err: clean,
	}
}
