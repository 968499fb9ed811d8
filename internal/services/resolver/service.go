// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package resolver maps many free-text game names to catalog candidates
// while staying inside the provider's rate budget.
package resolver

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/autobrr/gamarr/internal/providers"
	"github.com/autobrr/gamarr/internal/resilient"
)

const (
	DefaultPerNameLimit = 5
	progressSampleSize  = 3
)

// BatchProvider is a metadata adapter able to answer several names per call.
type BatchProvider interface {
	Name() string
	IsConfigured() bool
	MaxBatchSize() int
	Budget() *resilient.Budget
	SearchBatch(ctx context.Context, names []string, limit int) (map[string][]providers.CandidateMetadata, error)
}

// ProgressFunc receives the number of names finished so far, the total and
// a few names from the group that just completed.
type ProgressFunc func(completed, total int, sample []string)

// Result maps every requested name to its candidates; names without matches
// map to an empty slice.
type Result map[string][]providers.CandidateMetadata

type Option func(*Service)

// WithGroupPacing enforces a minimum interval between batch groups.
func WithGroupPacing(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.pacer = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

type Service struct {
	provider BatchProvider
	pacer    *rate.Limiter
}

func NewService(provider BatchProvider, opts ...Option) *Service {
	s := &Service{provider: provider}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type batchResult struct {
	names []string
	found map[string][]providers.CandidateMetadata
	err   error
}

// ResolveBatch resolves names in groups of concurrent batches. A failed
// batch leaves its names empty and never aborts the run. Cancellation stops
// new groups from starting; the partial result is returned with ctx.Err().
func (s *Service) ResolveBatch(ctx context.Context, names []string, perNameLimit int, onProgress ProgressFunc) (Result, error) {
	result := make(Result, len(names))
	unique := make([]string, 0, len(names))
	for _, name := range names {
		if _, seen := result[name]; seen {
			continue
		}
		result[name] = []providers.CandidateMetadata{}
		if strings.TrimSpace(name) != "" {
			unique = append(unique, name)
		}
	}

	if len(unique) == 0 {
		return result, nil
	}
	if s.provider == nil || !s.provider.IsConfigured() {
		return result, resilient.ErrNotConfigured
	}
	if perNameLimit <= 0 {
		perNameLimit = DefaultPerNameLimit
	}

	batches := partition(unique, s.provider.MaxBatchSize())
	total := len(unique)
	completed := 0

	for next := 0; next < len(batches); {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if s.pacer != nil && next > 0 {
			if err := s.pacer.Wait(ctx); err != nil {
				return result, err
			}
		}

		end := min(next+s.groupSize(), len(batches))
		group := batches[next:end]
		next = end

		sample := make([]string, 0, progressSampleSize)
		for _, r := range s.runGroup(ctx, group, perNameLimit) {
			completed += len(r.names)
			if len(sample) < progressSampleSize {
				sample = append(sample, r.names[:min(len(r.names), progressSampleSize-len(sample))]...)
			}
			if r.err != nil {
				continue
			}
			for name, candidates := range r.found {
				if _, ok := result[name]; ok && len(candidates) > 0 {
					result[name] = candidates
				}
			}
		}

		if onProgress != nil {
			onProgress(completed, total, sample)
		}
	}

	log.Debug().
		Str("provider", s.provider.Name()).
		Int("names", total).
		Int("batches", len(batches)).
		Msg("Resolved metadata batch")

	return result, nil
}

// runGroup issues every batch of the group at once and collects the
// results on the calling goroutine.
func (s *Service) runGroup(ctx context.Context, group [][]string, limit int) []batchResult {
	resultsChan := make(chan batchResult, len(group))

	var wg sync.WaitGroup
	for _, batch := range group {
		wg.Add(1)
		go func(batch []string) {
			defer wg.Done()
			found, err := s.provider.SearchBatch(ctx, batch, limit)
			if err != nil {
				log.Warn().
					Err(err).
					Str("provider", s.provider.Name()).
					Int("names", len(batch)).
					Msg("Metadata batch failed, returning empty results for its names")
			}
			resultsChan <- batchResult{names: batch, found: found, err: err}
		}(batch)
	}

	wg.Wait()
	close(resultsChan)

	results := make([]batchResult, 0, len(group))
	for r := range resultsChan {
		results = append(results, r)
	}
	return results
}

// groupSize is read on every group so budget overrides apply mid-run.
func (s *Service) groupSize() int {
	if budget := s.provider.Budget(); budget != nil {
		return max(1, budget.MaxRequests())
	}
	return 1
}

func partition(names []string, size int) [][]string {
	size = max(1, size)
	batches := make([][]string, 0, (len(names)+size-1)/size)
	for start := 0; start < len(names); start += size {
		batches = append(batches, names[start:min(start+size, len(names))])
	}
	return batches
}
