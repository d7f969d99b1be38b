package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dkrasnov/pennyworth/internal/domain"
	"github.com/dkrasnov/pennyworth/internal/recurrence"
)

// Transactions is the repository for the transactions table. It is the only
// code allowed to touch account balances, and every balance write happens in
// the same database transaction as the ledger write it reflects.
type Transactions struct{ pool *pgxpool.Pool }

func NewTransactions(pool *pgxpool.Pool) *Transactions { return &Transactions{pool: pool} }

const transactionColumns = `
	id, user_id, account_id, type, amount, description, occurred_at,
	category, status, is_recurring, recurring_interval,
	last_processed, next_recurring_date, created_at`

// Create inserts a transaction and adjusts the owning account's balance in
// one atomic unit. For recurring transactions the first NextRecurringDate is
// computed from the occurrence date.
func (r *Transactions) Create(ctx context.Context, t *domain.Transaction) error {
	if t.Amount.IsNegative() {
		return fmt.Errorf("Transactions.Create: amount must be non-negative")
	}
	if t.IsRecurring {
		if t.RecurringInterval == nil {
			return fmt.Errorf("Transactions.Create: recurring transaction needs an interval")
		}
		next := recurrence.Next(t.OccurredAt, *t.RecurringInterval)
		t.NextRecurringDate = &next
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = domain.StatusCompleted
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("Transactions.Create: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertTransaction(ctx, tx, t); err != nil {
		return fmt.Errorf("Transactions.Create: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE accounts SET balance = balance + $1
		WHERE id = $2 AND user_id = $3
	`, t.SignedAmount(), t.AccountID, t.UserID)
	if err != nil {
		return fmt.Errorf("Transactions.Create: adjust balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("Transactions.Create: %w", ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("Transactions.Create: commit: %w", err)
	}
	return nil
}

// ListDueRecurring returns every recurring COMPLETED transaction that has
// never been processed or whose next occurrence is at or before now.
// Read-only; safe to run concurrently with ApplyRecurring, which re-checks
// the same predicate under a row lock.
func (r *Transactions) ListDueRecurring(ctx context.Context, now time.Time) ([]*domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE is_recurring
		  AND status = 'COMPLETED'
		  AND (last_processed IS NULL OR next_recurring_date <= $1)
		ORDER BY created_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("Transactions.ListDueRecurring: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows, "Transactions.ListDueRecurring")
}

// ApplyRecurring realizes one due recurring transaction. Inside a single
// database transaction it:
//
//  1. locks the source row (SELECT ... FOR UPDATE) scoped by id AND user id,
//     re-checking the due predicate; a concurrent applier blocks on the lock
//     and then finds the row no longer due, so at most one apply commits;
//  2. inserts a non-recurring realized copy dated now, with the description
//     suffixed " (Recurring)";
//  3. adjusts the account balance by the signed amount;
//  4. stamps last_processed = now and next_recurring_date from the
//     recurrence calculator.
//
// When the re-check fails it returns ErrNotDue and nothing is written.
func (r *Transactions) ApplyRecurring(ctx context.Context, transactionID, userID uuid.UUID, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("Transactions.ApplyRecurring: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	src, err := scanTransaction(tx.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1
		  AND user_id = $2
		  AND is_recurring
		  AND status = 'COMPLETED'
		  AND (last_processed IS NULL OR next_recurring_date <= $3)
		FOR UPDATE
	`, transactionID, userID, now))
	if errors.Is(err, ErrNotFound) {
		return ErrNotDue
	}
	if err != nil {
		return fmt.Errorf("Transactions.ApplyRecurring: lock source: %w", err)
	}

	realized := &domain.Transaction{
		ID:          uuid.New(),
		UserID:      src.UserID,
		AccountID:   src.AccountID,
		Type:        src.Type,
		Amount:      src.Amount,
		Description: src.Description + " (Recurring)",
		OccurredAt:  now,
		Category:    src.Category,
		Status:      domain.StatusCompleted,
		IsRecurring: false,
	}
	if err := insertTransaction(ctx, tx, realized); err != nil {
		return fmt.Errorf("Transactions.ApplyRecurring: insert realized: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE accounts SET balance = balance + $1
		WHERE id = $2
	`, realized.SignedAmount(), src.AccountID); err != nil {
		return fmt.Errorf("Transactions.ApplyRecurring: adjust balance: %w", err)
	}

	next := recurrence.Next(now, *src.RecurringInterval)
	if _, err := tx.Exec(ctx, `
		UPDATE transactions
		SET last_processed = $1, next_recurring_date = $2
		WHERE id = $3
	`, now, next, src.ID); err != nil {
		return fmt.Errorf("Transactions.ApplyRecurring: advance pointer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("Transactions.ApplyRecurring: commit: %w", err)
	}
	return nil
}

// SumExpensesForAccount totals EXPENSE amounts for one account within
// [from, to].
func (r *Transactions) SumExpensesForAccount(ctx context.Context, userID, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1
		  AND account_id = $2
		  AND type = 'EXPENSE'
		  AND occurred_at >= $3
		  AND occurred_at <= $4
	`, userID, accountID, from, to).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Transactions.SumExpensesForAccount: %w", err)
	}
	return total, nil
}

// ListForUserInRange returns a user's transactions dated within [from, to].
func (r *Transactions) ListForUserInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = $1 AND occurred_at >= $2 AND occurred_at <= $3
		ORDER BY occurred_at
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("Transactions.ListForUserInRange: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows, "Transactions.ListForUserInRange")
}

func (r *Transactions) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("Transactions.ListByUser: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows, "Transactions.ListByUser")
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	var interval *string
	if t.RecurringInterval != nil {
		s := string(*t.RecurringInterval)
		interval = &s
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (
			id, user_id, account_id, type, amount, description, occurred_at,
			category, status, is_recurring, recurring_interval,
			last_processed, next_recurring_date
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, t.ID, t.UserID, t.AccountID, string(t.Type), t.Amount, t.Description,
		t.OccurredAt, t.Category, string(t.Status), t.IsRecurring, interval,
		t.LastProcessed, t.NextRecurringDate)
	return err
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t        domain.Transaction
		typ      string
		status   string
		interval *string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &typ, &t.Amount,
		&t.Description, &t.OccurredAt, &t.Category, &status, &t.IsRecurring,
		&interval, &t.LastProcessed, &t.NextRecurringDate, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	t.Type = domain.TransactionType(typ)
	t.Status = domain.TransactionStatus(status)
	if interval != nil {
		iv, err := domain.ParseRecurringInterval(*interval)
		if err != nil {
			return nil, err
		}
		t.RecurringInterval = &iv
	}
	return &t, nil
}

func collectTransactions(rows pgx.Rows, op string) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
