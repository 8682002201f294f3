package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/finance-ledger/internal/jobs"
)

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// Store keeps import jobs in a map keyed by job ID. Jobs are copied on the
// way in and out, so callers never share state with the store. Nothing
// survives a restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]jobs.ImportJob
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]jobs.ImportJob)}
}

// SaveJob records the current state of job, replacing any earlier state.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ImportJob) error {
	if job.JobID == "" {
		return errors.New("SaveJob: job ID is required")
	}

	s.mu.Lock()
	s.jobs[job.JobID] = *job
	s.mu.Unlock()
	return nil
}

// GetJob returns a copy of the job with jobID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ImportJob, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return &job, nil
}

// ListJobs returns the jobs matching filter, oldest first, after applying
// the filter's offset and limit.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ImportJob, error) {
	s.mu.RLock()
	matched := make([]*jobs.ImportJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if matches(filter, job) {
			matched = append(matched, &job)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.JobID < b.JobID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	return page(matched, filter.Offset, filter.Limit), nil
}

// UpdateJobStatus sets the status of a stored job. A non-empty errorMsg
// replaces the job's error.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	s.jobs[jobID] = job
	return nil
}

func matches(filter jobs.JobFilter, job jobs.ImportJob) bool {
	if filter.SourceURI != "" && job.SourceURI != filter.SourceURI {
		return false
	}
	return filter.Status == "" || job.Status == filter.Status
}

func page(list []*jobs.ImportJob, offset, limit int) []*jobs.ImportJob {
	if offset > 0 {
		if offset >= len(list) {
			return []*jobs.ImportJob{}
		}
		list = list[offset:]
	}
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

var _ jobs.JobStore = (*Store)(nil)
