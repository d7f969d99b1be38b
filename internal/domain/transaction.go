package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType tags a transaction as money in or money out.
type TransactionType string

const (
	TypeIncome  TransactionType = "INCOME"
	TypeExpense TransactionType = "EXPENSE"
)

// ParseTransactionType validates a raw type tag.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(s) {
	case TypeIncome:
		return TypeIncome, nil
	case TypeExpense:
		return TypeExpense, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// RecurringInterval is the unit between occurrences of a recurring transaction.
type RecurringInterval string

const (
	IntervalDaily   RecurringInterval = "DAILY"
	IntervalWeekly  RecurringInterval = "WEEKLY"
	IntervalMonthly RecurringInterval = "MONTHLY"
	IntervalYearly  RecurringInterval = "YEARLY"
)

// ParseRecurringInterval validates a raw interval value. Validating at the
// boundary keeps the recurrence calculator total over the enum.
func ParseRecurringInterval(s string) (RecurringInterval, error) {
	switch RecurringInterval(s) {
	case IntervalDaily, IntervalWeekly, IntervalMonthly, IntervalYearly:
		return RecurringInterval(s), nil
	default:
		return "", fmt.Errorf("unknown recurring interval %q", s)
	}
}

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
)

// Transaction is a single ledger entry. A recurring transaction acts as a
// template; the recurring applier produces non-recurring realized instances
// from it and advances LastProcessed / NextRecurringDate.
type Transaction struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	AccountID   uuid.UUID
	Type        TransactionType
	Amount      decimal.Decimal // non-negative; sign comes from Type
	Description string
	OccurredAt  time.Time
	Category    string
	Status      TransactionStatus

	IsRecurring       bool
	RecurringInterval *RecurringInterval // set only when IsRecurring
	LastProcessed     *time.Time
	NextRecurringDate *time.Time

	CreatedAt time.Time
}

// SignedAmount returns the balance delta this transaction represents:
// positive for income, negative for expense.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TypeExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}
