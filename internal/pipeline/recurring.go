package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dkrasnov/pennyworth/internal/jobs"
	"github.com/dkrasnov/pennyworth/internal/store/postgres"
)

// TriggerRecurring finds every due recurring transaction and fans out one
// apply job per transaction. Returns the number of jobs triggered. Safe to
// re-run: the applier's re-check makes duplicate jobs no-ops.
func (p *Pipeline) TriggerRecurring(ctx context.Context) (int, error) {
	due, err := p.transactions.ListDueRecurring(ctx, p.now())
	if err != nil {
		return 0, fmt.Errorf("TriggerRecurring: %w", err)
	}

	triggered := 0
	for _, t := range due {
		job := &jobs.RecurringTransactionJob{
			TransactionID: t.ID,
			UserID:        t.UserID,
		}
		if err := p.publisher.PublishRecurringTransaction(ctx, job); err != nil {
			p.log.Error().Err(err).
				Str("transaction_id", t.ID.String()).
				Msg("Failed to publish recurring job")
			continue
		}
		triggered++
	}

	p.log.Info().Int("triggered", triggered).Int("due", len(due)).
		Msg("Recurring transactions triggered")
	return triggered, nil
}

// ProcessRecurringTransaction handles one apply job. A payload missing
// either identifier is reported as an error; a transaction that is no
// longer due at apply time is a silent skip.
func (p *Pipeline) ProcessRecurringTransaction(ctx context.Context, job *jobs.RecurringTransactionJob) error {
	if job.TransactionID == uuid.Nil || job.UserID == uuid.Nil {
		return fmt.Errorf("ProcessRecurringTransaction: missing transaction or user ID in job %s", job.JobID)
	}

	err := p.transactions.ApplyRecurring(ctx, job.TransactionID, job.UserID, p.now())
	if errors.Is(err, postgres.ErrNotDue) {
		p.log.Debug().
			Str("transaction_id", job.TransactionID.String()).
			Msg("Recurring transaction no longer due, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("ProcessRecurringTransaction: %w", err)
	}

	p.log.Info().
		Str("transaction_id", job.TransactionID.String()).
		Str("user_id", job.UserID.String()).
		Msg("Recurring transaction realized")
	return nil
}
