package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dkrasnov/pennyworth/internal/jobs"
)

// Queue is an in-memory implementation of the job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// Suitable for single-instance deployments and testing; a multi-instance
// deployment would swap in Cloud Tasks or Pub/Sub behind the same interfaces.
//
// Jobs are throttled per user before execution: at most throttleBurst applies
// per user per throttlePeriod, mirroring at-least-once schedulers that bound
// concurrent runs per key.
type Queue struct {
	jobChan   chan *jobs.RecurringTransactionJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers int

	limMu    sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter

	// throttleEvery is the refill interval for per-user limiters;
	// overridable in tests.
	throttleEvery time.Duration
}

const (
	defaultWorkers = 5
	defaultRetries = 3

	// 10 applies per user per minute.
	throttleBurst  = 10
	throttlePeriod = time.Minute
)

// NewQueue creates a new in-memory job queue. bufferSize determines how many
// jobs can be queued before PublishRecurringTransaction blocks.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Queue{
		jobChan:       make(chan *jobs.RecurringTransactionJob, bufferSize),
		closeChan:     make(chan struct{}),
		store:         store,
		workers:       workers,
		limiters:      make(map[uuid.UUID]*rate.Limiter),
		throttleEvery: throttlePeriod / throttleBurst,
	}
}

// PublishRecurringTransaction implements the Publisher interface.
func (q *Queue) PublishRecurringTransaction(ctx context.Context, job *jobs.RecurringTransactionJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
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
		job.MaxRetries = defaultRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface. The handler is called concurrently
// for queued jobs, up to the configured worker count.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// limiterFor returns the per-user rate limiter, creating it on first use.
func (q *Queue) limiterFor(userID uuid.UUID) *rate.Limiter {
	q.limMu.Lock()
	defer q.limMu.Unlock()

	lim, ok := q.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(q.throttleEvery), throttleBurst)
		q.limiters[userID] = lim
	}
	return lim
}

// processJob executes a single job with per-user throttling and retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.RecurringTransactionJob, handler jobs.JobHandler) {
	if err := q.limiterFor(job.UserID).Wait(ctx); err != nil {
		return
	}

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Error = err.Error()

		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying

			// Re-enqueue with linear backoff.
			backoff := time.Duration(job.RetryCount) * time.Second
			time.AfterFunc(backoff, func() {
				job.Status = jobs.JobStatusPending
				job.StartedAt = nil
				job.CompletedAt = nil
				_ = q.PublishRecurringTransaction(ctx, job)
			})
		} else {
			job.Status = jobs.JobStatusFailed
		}
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Stop implements the Consumer interface. It stops the queue and waits for
// in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
