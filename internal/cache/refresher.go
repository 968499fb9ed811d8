// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is a periodic refresh.
type Job struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Run        func(ctx context.Context) error
}

type jobState struct {
	Job
	running atomic.Bool
}

// Refresher runs jobs on their intervals. A job never overlaps with itself.
// Stop prevents future runs but lets an in-flight run finish.
type Refresher struct {
	mu      sync.Mutex
	jobs    map[string]*jobState
	stop    chan struct{}
	stopped atomic.Bool
	once    sync.Once
	wg      sync.WaitGroup
}

func NewRefresher() *Refresher {
	return &Refresher{
		jobs: make(map[string]*jobState),
		stop: make(chan struct{}),
	}
}

// Register adds a job. Jobs registered after Start are started immediately
// by the next Start call only.
func (r *Refresher) Register(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.Name] = &jobState{Job: job}
}

// Start launches one loop per registered job.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		if job.Interval <= 0 || job.Run == nil {
			log.Warn().Str("job", job.Name).Msg("Skipping refresh job without interval")
			continue
		}
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
}

// Trigger runs the named job now. It returns false when the job is unknown,
// already running or the refresher is stopped.
func (r *Refresher) Trigger(ctx context.Context, name string) bool {
	r.mu.Lock()
	job, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.runOnce(ctx, job)
}

// Stop prevents future runs. It does not wait for or cancel a run in flight.
func (r *Refresher) Stop() {
	r.once.Do(func() {
		r.stopped.Store(true)
		close(r.stop)
	})
}

// Wait blocks until every job loop has exited.
func (r *Refresher) Wait() {
	r.wg.Wait()
}

func (r *Refresher) loop(ctx context.Context, job *jobState) {
	defer r.wg.Done()

	if job.RunOnStart {
		r.runOnce(ctx, job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.runOnce(ctx, job)
		}
	}
}

func (r *Refresher) runOnce(ctx context.Context, job *jobState) bool {
	if r.stopped.Load() {
		return false
	}
	if !job.running.CompareAndSwap(false, true) {
		log.Debug().Str("job", job.Name).Msg("Refresh job still running, skipping")
		return false
	}
	defer job.running.Store(false)

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.Warn().Err(err).Str("job", job.Name).Msg("Refresh job failed")
		return true
	}
	log.Debug().Str("job", job.Name).Dur("took", time.Since(start)).Msg("Refresh job completed")
	return true
}

// SweepJob returns a job reaping expired entries from c.
func SweepJob(c *Cache, interval time.Duration) Job {
	return Job{
		Name:     "cache-sweep",
		Interval: interval,
		Run: func(ctx context.Context) error {
			deleted, err := c.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			if deleted > 0 {
				log.Debug().Int64("deleted", deleted).Msg("Swept expired cache entries")
			}
			return nil
		},
	}
}
