// Package memjob is an in-memory job.Store, sufficient to demonstrate the
// disconnect/poll/ack contract end-to-end without an external durable
// backend. Used by the CLI harness and tests.
package memjob

import (
	"context"
	"sync"
	"time"

	"github.com/jv92admin/alfred/job"
)

// Store is a mutex-guarded map of job records.
type Store struct {
	mu        sync.Mutex
	jobs      map[string]job.Job
	retention time.Duration
}

// New constructs an empty store. retention bounds how long a terminal job
// stays loadable; zero means no expiry (suitable for tests).
func New(retention time.Duration) *Store {
	return &Store{jobs: make(map[string]job.Job), retention: retention}
}

func (s *Store) Create(_ context.Context, j job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
	return nil
}

func (s *Store) Load(_ context.Context, id string) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return job.Job{}, job.ErrNotFound
	}
	if s.retention > 0 && j.CompletedAt != nil && time.Since(*j.CompletedAt) > s.retention {
		delete(s.jobs, id)
		return job.Job{}, job.ErrNotFound
	}
	return j, nil
}

func (s *Store) Update(_ context.Context, j job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return job.ErrNotFound
	}
	s.jobs[j.ID] = j
	return nil
}

func (s *Store) Acknowledge(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return job.ErrNotFound
	}
	if j.AcknowledgedAt == nil {
		j.AcknowledgedAt = &at
	}
	s.jobs[id] = j
	return nil
}

// Sweep removes completed/failed jobs past retention; callers may invoke
// this periodically instead of relying on lazy eviction in Load.
func (s *Store) Sweep(now time.Time) {
	if s.retention <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.jobs {
		if j.CompletedAt != nil && now.Sub(*j.CompletedAt) > s.retention {
			delete(s.jobs, id)
		}
	}
}
