// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package debounce collapses bursts of calls into a single trailing call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs the most recently submitted function once no new
// submission arrived for the configured delay.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
	stopped bool
}

func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Do replaces the pending function and restarts the quiet period. After Stop
// fn runs synchronously.
func (d *Debouncer) Do(fn func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		fn()
		return
	}

	d.pending = fn
	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.fire)
	} else {
		d.timer.Reset(d.delay)
	}
	d.mu.Unlock()
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	fn := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Queued reports whether a function is waiting for its quiet period.
func (d *Debouncer) Queued() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Stop runs a pending function immediately instead of waiting for its timer.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true

	var fn func()
	if d.timer != nil && d.timer.Stop() {
		fn = d.pending
		d.pending = nil
		d.timer = nil
	}
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}
