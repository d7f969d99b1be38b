package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dkrasnov/pennyworth/internal/domain"
	"github.com/dkrasnov/pennyworth/internal/store/postgres"
)

// TransactionStore is the slice of the transaction repository the jobs use.
type TransactionStore interface {
	// ListDueRecurring returns recurring COMPLETED transactions that are due.
	ListDueRecurring(ctx context.Context, now time.Time) ([]*domain.Transaction, error)

	// ApplyRecurring atomically realizes one due transaction; returns
	// postgres.ErrNotDue when the re-check fails.
	ApplyRecurring(ctx context.Context, transactionID, userID uuid.UUID, now time.Time) error

	// SumExpensesForAccount totals EXPENSE amounts within [from, to].
	SumExpensesForAccount(ctx context.Context, userID, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error)

	// ListForUserInRange returns a user's transactions within [from, to].
	ListForUserInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Transaction, error)
}

// BudgetStore is the slice of the budget repository the alert checker uses.
type BudgetStore interface {
	ListForAlertCheck(ctx context.Context) ([]*postgres.BudgetCheck, error)
	MarkAlertSent(ctx context.Context, budgetID uuid.UUID, at time.Time) error
}

// UserStore is the slice of the user repository the report generator uses.
type UserStore interface {
	ListWithAccounts(ctx context.Context) ([]*domain.User, error)
}

var (
	_ TransactionStore = (*postgres.Transactions)(nil)
	_ BudgetStore      = (*postgres.Budgets)(nil)
	_ UserStore        = (*postgres.Users)(nil)
)
