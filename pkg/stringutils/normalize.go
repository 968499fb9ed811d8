// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
)

const DefaultNormalizerTTL = 5 * time.Minute

// Normalizer memoizes a pure function for ttl after each computation.
// Scoring a page of listings normalizes the same titles many times over.
type Normalizer[K comparable, V any] struct {
	fn   func(K) V
	memo *ttlcache.Cache[K, V]
}

func NewNormalizer[K comparable, V any](ttl time.Duration, fn func(K) V) *Normalizer[K, V] {
	if ttl <= 0 {
		ttl = DefaultNormalizerTTL
	}
	return &Normalizer[K, V]{
		fn:   fn,
		memo: ttlcache.New(ttlcache.Options[K, V]{}.SetDefaultTTL(ttl)),
	}
}

func (n *Normalizer[K, V]) Normalize(key K) V {
	v, ok := n.memo.Get(key)
	if !ok {
		v = n.fn(key)
		n.memo.Set(key, v, ttlcache.DefaultTTL)
	}
	return v
}
