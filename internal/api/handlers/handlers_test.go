package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dkrasnov/pennyworth/internal/domain"
	"github.com/dkrasnov/pennyworth/internal/receipts"
)

type mockTransactionRepo struct {
	createFn func(ctx context.Context, t *domain.Transaction) error
}

func (m *mockTransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	if m.createFn != nil {
		return m.createFn(ctx, t)
	}
	t.ID = uuid.New()
	return nil
}

func (m *mockTransactionRepo) ListByUser(context.Context, uuid.UUID, int) ([]*domain.Transaction, error) {
	return nil, nil
}

func (m *mockTransactionRepo) ListForUserInRange(context.Context, uuid.UUID, time.Time, time.Time) ([]*domain.Transaction, error) {
	return nil, nil
}

func TestCreateTransaction_Validation(t *testing.T) {
	h := NewTransactionsHandler(&mockTransactionRepo{}, zerolog.Nop())
	userID := uuid.NewString()
	accountID := uuid.NewString()

	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "valid expense",
			body: `{"user_id":"` + userID + `","account_id":"` + accountID + `","type":"EXPENSE","amount":"12.50"}`,
			want: http.StatusCreated,
		},
		{
			name: "recurring without interval",
			body: `{"user_id":"` + userID + `","account_id":"` + accountID + `","type":"EXPENSE","amount":"12.50","is_recurring":true}`,
			want: http.StatusBadRequest,
		},
		{
			name: "negative amount",
			body: `{"user_id":"` + userID + `","account_id":"` + accountID + `","type":"EXPENSE","amount":"-5"}`,
			want: http.StatusBadRequest,
		},
		{
			name: "bad type",
			body: `{"user_id":"` + userID + `","account_id":"` + accountID + `","type":"TRANSFER","amount":"5"}`,
			want: http.StatusBadRequest,
		},
		{
			name: "missing user",
			body: `{"account_id":"` + accountID + `","type":"EXPENSE","amount":"5"}`,
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.CreateTransaction(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCreateTransaction_RecurringSetsInterval(t *testing.T) {
	var captured *domain.Transaction
	repo := &mockTransactionRepo{createFn: func(_ context.Context, tx *domain.Transaction) error {
		captured = tx
		return nil
	}}
	h := NewTransactionsHandler(repo, zerolog.Nop())

	body := `{"user_id":"` + uuid.NewString() + `","account_id":"` + uuid.NewString() + `","type":"EXPENSE","amount":"9.99","is_recurring":true,"recurring_interval":"MONTHLY"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateTransaction(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if captured == nil || captured.RecurringInterval == nil {
		t.Fatal("expected recurring interval to reach the store")
	}
	if *captured.RecurringInterval != domain.IntervalMonthly {
		t.Errorf("interval = %s, want MONTHLY", *captured.RecurringInterval)
	}
	if !captured.Amount.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("amount = %s, want 9.99", captured.Amount)
	}
}

type mockTrigger struct {
	published int
	err       error
}

func (m *mockTrigger) TriggerRecurring(context.Context) (int, error) {
	return m.published, m.err
}

func TestTriggerRecurring(t *testing.T) {
	h := NewRecurringHandler(&mockTrigger{published: 3}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/recurring/trigger", nil)
	rec := httptest.NewRecorder()

	h.TriggerRecurring(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"published":3`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

type mockScanner struct {
	result *receipts.ScanResult
	err    error
}

func (m *mockScanner) Scan(context.Context, []byte, string) (*receipts.ScanResult, error) {
	return m.result, m.err
}

func TestScanReceipt(t *testing.T) {
	scanner := &mockScanner{result: &receipts.ScanResult{
		Amount:       42.17,
		Date:         time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Description:  "Groceries",
		MerchantName: "Corner Market",
		Category:     "groceries",
		IsReceipt:    true,
	}}
	h := NewReceiptsHandler(scanner, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/receipts/scan", strings.NewReader("fake-image-bytes"))
	req.Header.Set("Content-Type", "image/jpeg")
	rec := httptest.NewRecorder()

	h.ScanReceipt(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{`"amount":"42.17"`, `"date":"2025-03-14"`, `"merchant_name":"Corner Market"`} {
		if !strings.Contains(body, want) {
			t.Errorf("response missing %s: %s", want, body)
		}
	}
}

func TestScanReceipt_EmptyBody(t *testing.T) {
	h := NewReceiptsHandler(&mockScanner{}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/receipts/scan", strings.NewReader(""))
	rec := httptest.NewRecorder()

	h.ScanReceipt(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
