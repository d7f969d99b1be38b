package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dkrasnov/pennyworth/internal/domain"
	"github.com/dkrasnov/pennyworth/internal/jobs"
	"github.com/dkrasnov/pennyworth/internal/store/postgres"
)

// mockTransactionStore is a configurable TransactionStore for tests.
type mockTransactionStore struct {
	ListDueRecurringFunc      func(ctx context.Context, now time.Time) ([]*domain.Transaction, error)
	ApplyRecurringFunc        func(ctx context.Context, transactionID, userID uuid.UUID, now time.Time) error
	SumExpensesForAccountFunc func(ctx context.Context, userID, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
	ListForUserInRangeFunc    func(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Transaction, error)
}

func (m *mockTransactionStore) ListDueRecurring(ctx context.Context, now time.Time) ([]*domain.Transaction, error) {
	if m.ListDueRecurringFunc != nil {
		return m.ListDueRecurringFunc(ctx, now)
	}
	return nil, nil
}

func (m *mockTransactionStore) ApplyRecurring(ctx context.Context, transactionID, userID uuid.UUID, now time.Time) error {
	if m.ApplyRecurringFunc != nil {
		return m.ApplyRecurringFunc(ctx, transactionID, userID, now)
	}
	return nil
}

func (m *mockTransactionStore) SumExpensesForAccount(ctx context.Context, userID, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	if m.SumExpensesForAccountFunc != nil {
		return m.SumExpensesForAccountFunc(ctx, userID, accountID, from, to)
	}
	return decimal.Zero, nil
}

func (m *mockTransactionStore) ListForUserInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Transaction, error) {
	if m.ListForUserInRangeFunc != nil {
		return m.ListForUserInRangeFunc(ctx, userID, from, to)
	}
	return nil, nil
}

// mockBudgetStore records alert stamps.
type mockBudgetStore struct {
	checks []*postgres.BudgetCheck

	mu      sync.Mutex
	stamped []uuid.UUID
}

func (m *mockBudgetStore) ListForAlertCheck(ctx context.Context) ([]*postgres.BudgetCheck, error) {
	return m.checks, nil
}

func (m *mockBudgetStore) MarkAlertSent(ctx context.Context, budgetID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stamped = append(m.stamped, budgetID)
	// Mirror the stamp into the check rows so repeated runs see it.
	for _, c := range m.checks {
		if c.Budget.ID == budgetID {
			stamp := at
			c.Budget.LastAlertSent = &stamp
		}
	}
	return nil
}

// mockUserStore serves a fixed user list.
type mockUserStore struct {
	users []*domain.User
}

func (m *mockUserStore) ListWithAccounts(ctx context.Context) ([]*domain.User, error) {
	return m.users, nil
}

// sentEmail captures one delivery.
type sentEmail struct {
	To      string
	Subject string
	Body    string
}

// mockMailer records sends and can be made to fail.
type mockMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *mockMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEmail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

// mockInsights returns fixed insights or an error.
type mockInsights struct {
	insights []string
	err      error
}

func (m *mockInsights) Generate(ctx context.Context, stats domain.MonthlyStats, month string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.insights, nil
}

// mockPublisher records published jobs.
type mockPublisher struct {
	mu        sync.Mutex
	published []*jobs.RecurringTransactionJob
	err       error
}

func (m *mockPublisher) PublishRecurringTransaction(ctx context.Context, job *jobs.RecurringTransactionJob) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, job)
	return nil
}

func (m *mockPublisher) Close() error { return nil }
