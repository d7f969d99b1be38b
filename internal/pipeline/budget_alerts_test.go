package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dkrasnov/pennyworth/internal/domain"
	"github.com/dkrasnov/pennyworth/internal/store/postgres"
)

func newTestPipeline(tx TransactionStore, budgets BudgetStore, users UserStore, mail *mockMailer, gen *mockInsights, pub *mockPublisher) *Pipeline {
	if mail == nil {
		mail = &mockMailer{}
	}
	if gen == nil {
		gen = &mockInsights{insights: []string{"insight"}}
	}
	if pub == nil {
		pub = &mockPublisher{}
	}
	return New(tx, budgets, users, mail, gen, pub, zerolog.Nop())
}

func budgetCheck(amount int64, lastAlert *time.Time, withAccount bool) *postgres.BudgetCheck {
	userID := uuid.New()
	check := &postgres.BudgetCheck{
		Budget: domain.Budget{
			ID:            uuid.New(),
			UserID:        userID,
			Amount:        decimal.NewFromInt(amount),
			LastAlertSent: lastAlert,
		},
		UserEmail: "ada@example.com",
		UserName:  "Ada",
	}
	if withAccount {
		check.DefaultAccount = &domain.Account{
			ID:        uuid.New(),
			UserID:    userID,
			Name:      "Checking",
			IsDefault: true,
		}
	}
	return check
}

func fixedExpenses(amount int64) *mockTransactionStore {
	return &mockTransactionStore{
		SumExpensesForAccountFunc: func(ctx context.Context, userID, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
			return decimal.NewFromInt(amount), nil
		},
	}
}

func TestCheckBudgetAlerts_FiresAtThreshold(t *testing.T) {
	check := budgetCheck(1000, nil, true)
	budgets := &mockBudgetStore{checks: []*postgres.BudgetCheck{check}}
	mail := &mockMailer{}

	p := newTestPipeline(fixedExpenses(850), budgets, nil, mail, nil, nil)
	if err := p.CheckBudgetAlerts(context.Background()); err != nil {
		t.Fatalf("CheckBudgetAlerts: %v", err)
	}

	if len(mail.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(mail.sent))
	}
	if mail.sent[0].To != "ada@example.com" {
		t.Errorf("To = %q", mail.sent[0].To)
	}
	if !strings.Contains(mail.sent[0].Subject, "Checking") {
		t.Errorf("Subject = %q, want account name", mail.sent[0].Subject)
	}
	if !strings.Contains(mail.sent[0].Body, "85.0%") {
		t.Errorf("body missing percentage: %s", mail.sent[0].Body)
	}
	if len(budgets.stamped) != 1 || budgets.stamped[0] != check.Budget.ID {
		t.Errorf("stamped = %v, want [%s]", budgets.stamped, check.Budget.ID)
	}
}

func TestCheckBudgetAlerts_AtMostOncePerMonth(t *testing.T) {
	check := budgetCheck(1000, nil, true)
	budgets := &mockBudgetStore{checks: []*postgres.BudgetCheck{check}}
	mail := &mockMailer{}

	p := newTestPipeline(fixedExpenses(850), budgets, nil, mail, nil, nil)

	// Run the checker several times within the same month; spend stays hot.
	for i := 0; i < 4; i++ {
		if err := p.CheckBudgetAlerts(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if len(mail.sent) != 1 {
		t.Errorf("sent %d emails across repeated runs, want 1", len(mail.sent))
	}
}

func TestCheckBudgetAlerts_NewMonthFiresAgain(t *testing.T) {
	lastMonth := time.Now().AddDate(0, -1, 0)
	check := budgetCheck(1000, &lastMonth, true)
	budgets := &mockBudgetStore{checks: []*postgres.BudgetCheck{check}}
	mail := &mockMailer{}

	p := newTestPipeline(fixedExpenses(900), budgets, nil, mail, nil, nil)
	if err := p.CheckBudgetAlerts(context.Background()); err != nil {
		t.Fatalf("CheckBudgetAlerts: %v", err)
	}

	if len(mail.sent) != 1 {
		t.Errorf("sent %d emails, want 1 (prior alert was last month)", len(mail.sent))
	}
}

func TestCheckBudgetAlerts_BelowThreshold(t *testing.T) {
	check := budgetCheck(1000, nil, true)
	budgets := &mockBudgetStore{checks: []*postgres.BudgetCheck{check}}
	mail := &mockMailer{}

	p := newTestPipeline(fixedExpenses(799), budgets, nil, mail, nil, nil)
	if err := p.CheckBudgetAlerts(context.Background()); err != nil {
		t.Fatalf("CheckBudgetAlerts: %v", err)
	}

	if len(mail.sent) != 0 {
		t.Errorf("sent %d emails below threshold, want 0", len(mail.sent))
	}
}

func TestCheckBudgetAlerts_NoDefaultAccountSkips(t *testing.T) {
	check := budgetCheck(1000, nil, false)
	budgets := &mockBudgetStore{checks: []*postgres.BudgetCheck{check}}
	mail := &mockMailer{}

	p := newTestPipeline(fixedExpenses(999), budgets, nil, mail, nil, nil)
	if err := p.CheckBudgetAlerts(context.Background()); err != nil {
		t.Fatalf("CheckBudgetAlerts: %v", err)
	}

	if len(mail.sent) != 0 {
		t.Errorf("sent %d emails without a default account, want 0", len(mail.sent))
	}
}

func TestCheckBudgetAlerts_SendFailureDoesNotStamp(t *testing.T) {
	failing := budgetCheck(1000, nil, true)
	healthy := budgetCheck(1000, nil, true)
	healthy.UserEmail = "grace@example.com"
	budgets := &mockBudgetStore{checks: []*postgres.BudgetCheck{failing, healthy}}

	mail := &mockMailer{err: errors.New("smtp down")}
	p := newTestPipeline(fixedExpenses(900), budgets, nil, mail, nil, nil)

	if err := p.CheckBudgetAlerts(context.Background()); err != nil {
		t.Fatalf("CheckBudgetAlerts: %v", err)
	}

	// Nothing was stamped, so a later run can retry both sends.
	if len(budgets.stamped) != 0 {
		t.Errorf("stamped %v after failed sends, want none", budgets.stamped)
	}

	mail.err = nil
	if err := p.CheckBudgetAlerts(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(mail.sent) != 2 {
		t.Errorf("sent %d emails after recovery, want 2", len(mail.sent))
	}
}
