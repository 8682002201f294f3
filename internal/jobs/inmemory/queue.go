package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/google/uuid"
)

// ErrQueueClosed is returned when publishing to or starting a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// Queue runs import jobs on a fixed pool of workers fed by a buffered
// channel. Imports write the same ledger file, so one worker is the usual
// setup.
//
// The queue works on its own copy of every published job: callers keep their
// value, and the job store is the place to observe progress.
type Queue struct {
	pending chan *jobs.ImportJob
	done    chan struct{}
	wg      sync.WaitGroup
	store   jobs.JobStore
	workers int

	mu           sync.RWMutex
	closed       bool
	retryBackoff time.Duration
}

// NewQueue creates a queue holding up to bufferSize waiting jobs. workers
// below 1 are treated as 1.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		pending:      make(chan *jobs.ImportJob, bufferSize),
		done:         make(chan struct{}),
		store:        store,
		workers:      workers,
		retryBackoff: time.Second,
	}
}

// SetRetryBackoff sets the base delay between retries. The n-th retry waits
// n times the base.
func (q *Queue) SetRetryBackoff(d time.Duration) {
	q.mu.Lock()
	q.retryBackoff = d
	q.mu.Unlock()
}

// PublishImport fills in the job's ID, status, creation time and retry limit
// when unset, records it and enqueues a copy for the workers.
func (q *Queue) PublishImport(ctx context.Context, job *jobs.ImportJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = jobs.DefaultMaxRetries
	}

	if err := q.save(ctx, job); err != nil {
		return fmt.Errorf("PublishImport: saving job %s: %w", job.JobID, err)
	}

	queued := *job
	select {
	case q.pending <- &queued:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	}
}

// Start launches the workers. Each calls handler for the jobs it receives
// until ctx is cancelled or the queue is stopped.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx, handler)
	}
	return nil
}

func (q *Queue) work(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case job := <-q.pending:
			q.run(ctx, job, handler)
		}
	}
}

// run executes one attempt of job. The job belongs to the calling worker;
// a retry is scheduled on a copy once the attempt's outcome is recorded.
func (q *Queue) run(ctx context.Context, job *jobs.ImportJob, handler jobs.JobHandler) {
	started := time.Now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	job.CompletedAt = nil
	_ = q.save(ctx, job)

	err := handler(ctx, job)

	finished := time.Now()
	job.CompletedAt = &finished

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	case job.RetryCount < job.MaxRetries:
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		job.RetryCount++
	default:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
	}
	_ = q.save(ctx, job)

	if job.Status == jobs.JobStatusRetrying {
		q.retryLater(ctx, *job)
	}
}

// retryLater republishes retry after a linear backoff. If the queue is gone
// by then, the job is recorded as failed.
func (q *Queue) retryLater(ctx context.Context, retry jobs.ImportJob) {
	retry.Status = jobs.JobStatusPending
	retry.StartedAt = nil
	retry.CompletedAt = nil

	q.mu.RLock()
	delay := time.Duration(retry.RetryCount) * q.retryBackoff
	q.mu.RUnlock()

	time.AfterFunc(delay, func() {
		if err := q.PublishImport(ctx, &retry); err != nil {
			retry.Status = jobs.JobStatusFailed
			retry.Error = fmt.Sprintf("retry not scheduled: %v", err)
			_ = q.save(context.Background(), &retry)
		}
	})
}

func (q *Queue) save(ctx context.Context, job *jobs.ImportJob) error {
	if q.store == nil {
		return nil
	}
	return q.store.SaveJob(ctx, job)
}

// Stop closes the queue and waits for running attempts to finish, or for ctx
// to expire. Stopping twice is a no-op.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
