package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a user-owned money account with a running balance.
// At most one account per user carries IsDefault; the store enforces this
// at write time (clear-then-set in one transaction).
type Account struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Balance   decimal.Decimal
	IsDefault bool
	CreatedAt time.Time
}

// User owns accounts, transactions and a budget.
type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	CreatedAt time.Time
}

// Budget is a per-user monthly spending cap. LastAlertSent is stamped by the
// alert checker exactly when a new alert fires, which is what bounds alerts
// to one per calendar month.
type Budget struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Amount        decimal.Decimal
	LastAlertSent *time.Time
}
