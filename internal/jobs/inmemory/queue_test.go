package inmemory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dkrasnov/pennyworth/internal/jobs"
)

func TestQueue_PublishAndConsume(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 2, store)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var processed atomic.Int32
	done := make(chan struct{})

	handler := func(ctx context.Context, job *jobs.RecurringTransactionJob) error {
		if processed.Add(1) == 3 {
			close(done)
		}
		return nil
	}

	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	userID := uuid.New()
	for i := 0; i < 3; i++ {
		job := &jobs.RecurringTransactionJob{
			TransactionID: uuid.New(),
			UserID:        userID,
		}
		if err := q.PublishRecurringTransaction(ctx, job); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		if job.JobID == "" {
			t.Error("expected job ID to be assigned")
		}
		if job.MaxRetries != defaultRetries {
			t.Errorf("MaxRetries = %d, want %d", job.MaxRetries, defaultRetries)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out; processed %d of 3 jobs", processed.Load())
	}

	completed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	// Workers may still be stamping the last completion; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for len(completed) < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		completed, _ = store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted})
	}
	if len(completed) != 3 {
		t.Errorf("completed jobs = %d, want 3", len(completed))
	}
}

func TestQueue_RetriesFailedJob(t *testing.T) {
	q := NewQueue(10, 1, NewStore())
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts atomic.Int32
	succeeded := make(chan struct{})

	handler := func(ctx context.Context, job *jobs.RecurringTransactionJob) error {
		if attempts.Add(1) < 2 {
			return errors.New("transient failure")
		}
		close(succeeded)
		return nil
	}

	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err := q.PublishRecurringTransaction(ctx, &jobs.RecurringTransactionJob{
		TransactionID: uuid.New(),
		UserID:        uuid.New(),
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-succeeded:
		if got := attempts.Load(); got != 2 {
			t.Errorf("attempts = %d, want 2", got)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("job was not retried; attempts = %d", attempts.Load())
	}
}

func TestQueue_ClosedRejectsPublish(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err := q.PublishRecurringTransaction(context.Background(), &jobs.RecurringTransactionJob{
		TransactionID: uuid.New(),
		UserID:        uuid.New(),
	})
	if err == nil {
		t.Error("expected publish to a closed queue to fail")
	}
}

func TestQueue_PerUserThrottle(t *testing.T) {
	q := NewQueue(64, 4, nil)
	q.throttleEvery = 50 * time.Millisecond
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var stamps []time.Time
	done := make(chan struct{})

	const jobsPerUser = throttleBurst + 2

	handler := func(ctx context.Context, job *jobs.RecurringTransactionJob) error {
		mu.Lock()
		stamps = append(stamps, time.Now())
		if len(stamps) == jobsPerUser {
			close(done)
		}
		mu.Unlock()
		return nil
	}

	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	userID := uuid.New()
	start := time.Now()
	for i := 0; i < jobsPerUser; i++ {
		err := q.PublishRecurringTransaction(ctx, &jobs.RecurringTransactionJob{
			TransactionID: uuid.New(),
			UserID:        userID,
		})
		if err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("throttled jobs did not finish in time")
	}

	// The burst admits throttleBurst jobs immediately; the extras must wait
	// at least one refill interval each.
	elapsed := time.Since(start)
	minWait := 2 * q.throttleEvery
	if elapsed < minWait {
		t.Errorf("all %d jobs ran in %v; throttle should have delayed past %v", jobsPerUser, elapsed, minWait)
	}
}
