package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dkrasnov/pennyworth/internal/domain"
)

// Accounts is the repository for the accounts table.
type Accounts struct{ pool *pgxpool.Pool }

func NewAccounts(pool *pgxpool.Pool) *Accounts { return &Accounts{pool: pool} }

// Create inserts an account. When isDefault is set, any existing default for
// the user is cleared in the same transaction, keeping the at-most-one-default
// invariant.
func (r *Accounts) Create(ctx context.Context, userID uuid.UUID, name string, balance decimal.Decimal, isDefault bool) (*domain.Account, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("Accounts.Create: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if isDefault {
		if _, err := tx.Exec(ctx, `
			UPDATE accounts SET is_default = FALSE
			WHERE user_id = $1 AND is_default
		`, userID); err != nil {
			return nil, fmt.Errorf("Accounts.Create: clear default: %w", err)
		}
	}

	a := &domain.Account{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Balance:   balance,
		IsDefault: isDefault,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO accounts (id, user_id, name, balance, is_default)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, a.ID, a.UserID, a.Name, a.Balance, a.IsDefault).Scan(&a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("Accounts.Create: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("Accounts.Create: commit: %w", err)
	}
	return a, nil
}

// SetDefault makes the given account the user's default, clearing any other.
func (r *Accounts) SetDefault(ctx context.Context, userID, accountID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("Accounts.SetDefault: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE accounts SET is_default = FALSE
		WHERE user_id = $1 AND is_default
	`, userID); err != nil {
		return fmt.Errorf("Accounts.SetDefault: clear: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE accounts SET is_default = TRUE
		WHERE id = $1 AND user_id = $2
	`, accountID, userID)
	if err != nil {
		return fmt.Errorf("Accounts.SetDefault: set: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

func (r *Accounts) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, balance, is_default, created_at
		FROM accounts
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, fmt.Errorf("Accounts.GetByID: %w", err)
	}
	return a, nil
}

// GetDefaultForUser returns the user's default account, or ErrNotFound when
// the user has none. Callers treat the latter as a skip, not an error.
func (r *Accounts) GetDefaultForUser(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, balance, is_default, created_at
		FROM accounts
		WHERE user_id = $1 AND is_default
	`, userID))
	if err != nil {
		return nil, fmt.Errorf("Accounts.GetDefaultForUser: %w", err)
	}
	return a, nil
}

func (r *Accounts) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, balance, is_default, created_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("Accounts.ListByUser: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("Accounts.ListByUser: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Balance, &a.IsDefault, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
