package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dkrasnov/pennyworth/internal/domain"
	"github.com/dkrasnov/pennyworth/internal/insights"
)

func TestGenerateMonthlyReports_EmptyMonthUsesFallback(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "ada@example.com", Name: "Ada"}
	users := &mockUserStore{users: []*domain.User{user}}
	store := &mockTransactionStore{} // no transactions in range
	mail := &mockMailer{}
	gen := &mockInsights{err: errors.New("model unavailable")}

	p := newTestPipeline(store, nil, users, mail, gen, nil)
	n, err := p.GenerateMonthlyReports(context.Background())
	if err != nil {
		t.Fatalf("GenerateMonthlyReports: %v", err)
	}
	if n != 1 {
		t.Errorf("processed = %d, want 1", n)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(mail.sent))
	}

	body := mail.sent[0].Body
	// Zero stats still render.
	if !strings.Contains(body, "$0.00") {
		t.Errorf("body missing zero totals: %s", body)
	}
	// Fallback insights appear verbatim when generation fails.
	for _, fb := range insights.FallbackInsights {
		if !strings.Contains(body, fb) {
			t.Errorf("body missing fallback insight %q", fb)
		}
	}
}

func TestGenerateMonthlyReports_PriorMonthWindow(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "ada@example.com", Name: "Ada"}
	users := &mockUserStore{users: []*domain.User{user}}

	var gotFrom, gotTo time.Time
	store := &mockTransactionStore{
		ListForUserInRangeFunc: func(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Transaction, error) {
			gotFrom, gotTo = from, to
			return []*domain.Transaction{
				{Type: domain.TypeIncome, Amount: decimal.NewFromInt(3000)},
				{Type: domain.TypeExpense, Amount: decimal.NewFromInt(1200), Category: "rent"},
			}, nil
		},
	}
	mail := &mockMailer{}
	gen := &mockInsights{insights: []string{"Solid savings rate."}}

	p := newTestPipeline(store, nil, users, mail, gen, nil)
	// Running on March 1st must report on February.
	p.now = func() time.Time { return time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC) }

	if _, err := p.GenerateMonthlyReports(context.Background()); err != nil {
		t.Fatalf("GenerateMonthlyReports: %v", err)
	}

	wantFrom := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2025, time.February, 28, 23, 59, 59, 0, time.UTC)
	if !gotFrom.Equal(wantFrom) || !gotTo.Equal(wantTo) {
		t.Errorf("window = [%v, %v], want [%v, %v]", gotFrom, gotTo, wantFrom, wantTo)
	}

	if len(mail.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(mail.sent))
	}
	if !strings.Contains(mail.sent[0].Subject, "February") {
		t.Errorf("Subject = %q, want February", mail.sent[0].Subject)
	}
	if !strings.Contains(mail.sent[0].Body, "Solid savings rate.") {
		t.Error("generated insight missing from body")
	}
}

func TestGenerateMonthlyReports_PerUserFailureIsolated(t *testing.T) {
	broken := &domain.User{ID: uuid.New(), Email: "broken@example.com", Name: "Broken"}
	healthy := &domain.User{ID: uuid.New(), Email: "ok@example.com", Name: "OK"}
	users := &mockUserStore{users: []*domain.User{broken, healthy}}

	store := &mockTransactionStore{
		ListForUserInRangeFunc: func(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Transaction, error) {
			if userID == broken.ID {
				return nil, errors.New("query timeout")
			}
			return nil, nil
		},
	}
	mail := &mockMailer{}

	p := newTestPipeline(store, nil, users, mail, nil, nil)
	n, err := p.GenerateMonthlyReports(context.Background())
	if err != nil {
		t.Fatalf("GenerateMonthlyReports: %v", err)
	}
	if n != 1 {
		t.Errorf("processed = %d, want 1 (broken user skipped)", n)
	}
	if len(mail.sent) != 1 || mail.sent[0].To != "ok@example.com" {
		t.Errorf("sent = %+v, want one email to ok@example.com", mail.sent)
	}
}
