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
)

// Budgets is the repository for the budgets table.
type Budgets struct{ pool *pgxpool.Pool }

func NewBudgets(pool *pgxpool.Pool) *Budgets { return &Budgets{pool: pool} }

// BudgetCheck is one unit of work for the alert checker: a budget joined
// with its owner and the owner's default account. DefaultAccount is nil when
// the user has none, which the checker treats as a skip.
type BudgetCheck struct {
	Budget         domain.Budget
	UserEmail      string
	UserName       string
	DefaultAccount *domain.Account
}

// ListForAlertCheck returns every budget with its owner and, when present,
// the owner's default account.
func (r *Budgets) ListForAlertCheck(ctx context.Context) ([]*BudgetCheck, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.user_id, b.amount, b.last_alert_sent,
		       u.email, u.name,
		       a.id, a.user_id, a.name, a.balance, a.is_default, a.created_at
		FROM budgets b
		JOIN users u ON u.id = b.user_id
		LEFT JOIN accounts a ON a.user_id = b.user_id AND a.is_default
		ORDER BY b.id
	`)
	if err != nil {
		return nil, fmt.Errorf("Budgets.ListForAlertCheck: %w", err)
	}
	defer rows.Close()

	var checks []*BudgetCheck
	for rows.Next() {
		var (
			c          BudgetCheck
			accID      *uuid.UUID
			accUserID  *uuid.UUID
			accName    *string
			accBalance *decimal.Decimal
			accDefault *bool
			accCreated *time.Time
		)
		err := rows.Scan(&c.Budget.ID, &c.Budget.UserID, &c.Budget.Amount,
			&c.Budget.LastAlertSent, &c.UserEmail, &c.UserName,
			&accID, &accUserID, &accName, &accBalance, &accDefault, &accCreated)
		if err != nil {
			return nil, fmt.Errorf("Budgets.ListForAlertCheck: scan: %w", err)
		}
		if accID != nil {
			c.DefaultAccount = &domain.Account{
				ID:        *accID,
				UserID:    *accUserID,
				Name:      *accName,
				Balance:   *accBalance,
				IsDefault: *accDefault,
				CreatedAt: *accCreated,
			}
		}
		checks = append(checks, &c)
	}
	return checks, rows.Err()
}

// MarkAlertSent stamps last_alert_sent for the budget.
func (r *Budgets) MarkAlertSent(ctx context.Context, budgetID uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE budgets SET last_alert_sent = $1 WHERE id = $2
	`, at, budgetID)
	if err != nil {
		return fmt.Errorf("Budgets.MarkAlertSent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Budgets) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Budget, error) {
	var b domain.Budget
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, amount, last_alert_sent
		FROM budgets
		WHERE user_id = $1
	`, userID).Scan(&b.ID, &b.UserID, &b.Amount, &b.LastAlertSent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Budgets.GetByUser: %w", err)
	}
	return &b, nil
}

// Upsert creates or replaces the user's budget cap. The alert stamp is
// preserved on update so changing the cap cannot re-trigger an alert within
// the same month.
func (r *Budgets) Upsert(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Budget, error) {
	var b domain.Budget
	err := r.pool.QueryRow(ctx, `
		INSERT INTO budgets (id, user_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET amount = EXCLUDED.amount
		RETURNING id, user_id, amount, last_alert_sent
	`, uuid.New(), userID, amount).Scan(&b.ID, &b.UserID, &b.Amount, &b.LastAlertSent)
	if err != nil {
		return nil, fmt.Errorf("Budgets.Upsert: %w", err)
	}
	return &b, nil
}
