package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dkrasnov/pennyworth/internal/api/middleware"
	"github.com/dkrasnov/pennyworth/internal/domain"
	"github.com/dkrasnov/pennyworth/internal/gcsarchive"
	"github.com/dkrasnov/pennyworth/internal/jobs"
	"github.com/dkrasnov/pennyworth/internal/receipts"
	"github.com/dkrasnov/pennyworth/internal/store/postgres"
)

// AccountRepository is the slice of the accounts store the API needs.
type AccountRepository interface {
	Create(ctx context.Context, userID uuid.UUID, name string, balance decimal.Decimal, isDefault bool) (*domain.Account, error)
	SetDefault(ctx context.Context, userID, accountID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error)
}

// TransactionRepository is the slice of the transactions store the API needs.
type TransactionRepository interface {
	Create(ctx context.Context, t *domain.Transaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Transaction, error)
	ListForUserInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Transaction, error)
}

// BudgetRepository is the slice of the budgets store the API needs.
type BudgetRepository interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Budget, error)
	Upsert(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Budget, error)
}

var (
	_ AccountRepository     = (*postgres.Accounts)(nil)
	_ TransactionRepository = (*postgres.Transactions)(nil)
	_ BudgetRepository      = (*postgres.Budgets)(nil)
)

type accountResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Balance   string `json:"balance"`
	IsDefault bool   `json:"is_default"`
}

type transactionResponse struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	AccountID         string     `json:"account_id"`
	Type              string     `json:"type"`
	Amount            string     `json:"amount"`
	Description       string     `json:"description,omitempty"`
	Category          string     `json:"category,omitempty"`
	OccurredAt        time.Time  `json:"occurred_at"`
	Status            string     `json:"status"`
	IsRecurring       bool       `json:"is_recurring"`
	RecurringInterval string     `json:"recurring_interval,omitempty"`
	NextRecurringDate *time.Time `json:"next_recurring_date,omitempty"`
}

type budgetResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Amount        string     `json:"amount"`
	LastAlertSent *time.Time `json:"last_alert_sent,omitempty"`
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:        a.ID.String(),
		UserID:    a.UserID.String(),
		Name:      a.Name,
		Balance:   a.Balance.StringFixed(2),
		IsDefault: a.IsDefault,
	}
}

func toTransactionResponse(t *domain.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:                t.ID.String(),
		UserID:            t.UserID.String(),
		AccountID:         t.AccountID.String(),
		Type:              string(t.Type),
		Amount:            t.Amount.StringFixed(2),
		Description:       t.Description,
		Category:          t.Category,
		OccurredAt:        t.OccurredAt,
		Status:            string(t.Status),
		IsRecurring:       t.IsRecurring,
		NextRecurringDate: t.NextRecurringDate,
	}
	if t.RecurringInterval != nil {
		resp.RecurringInterval = string(*t.RecurringInterval)
	}
	return resp
}

func toBudgetResponse(b *domain.Budget) budgetResponse {
	return budgetResponse{
		ID:            b.ID.String(),
		UserID:        b.UserID.String(),
		Amount:        b.Amount.StringFixed(2),
		LastAlertSent: b.LastAlertSent,
	}
}

// userIDFromQuery parses the mandatory user_id query parameter.
func userIDFromQuery(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.URL.Query().Get("user_id"))
}

// AccountsHandler handles account endpoints.
type AccountsHandler struct {
	repo AccountRepository
	log  zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(repo AccountRepository, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{repo: repo, log: log}
}

// ListAccounts handles GET /api/accounts?user_id=...
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Valid user_id is required")
		return
	}

	accounts, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list accounts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	resp := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a))
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": resp,
		"count":    len(resp),
	})
}

// CreateAccount handles POST /api/accounts
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"user_id"`
		Name      string `json:"name"`
		Balance   string `json:"balance"`
		IsDefault bool   `json:"is_default"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Valid user_id is required")
		return
	}
	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	balance := decimal.Zero
	if req.Balance != "" {
		balance, err = decimal.NewFromString(req.Balance)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid balance")
			return
		}
	}

	account, err := h.repo.Create(r.Context(), userID, req.Name, balance, req.IsDefault)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, toAccountResponse(account))
}

// SetDefaultAccount handles POST /api/accounts/{id}/default
func (h *AccountsHandler) SetDefaultAccount(w http.ResponseWriter, r *http.Request, accountID string) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Valid account ID is required")
		return
	}

	userID, err := userIDFromQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Valid user_id is required")
		return
	}

	if err := h.repo.SetDefault(r.Context(), userID, id); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Account not found")
			return
		}
		h.log.Error().Err(err).Msg("Failed to set default account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to set default account")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	repo TransactionRepository
	log  zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo TransactionRepository, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{repo: repo, log: log}
}

// ListTransactions handles GET /api/transactions?user_id=...&start_date=...&end_date=...
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Valid user_id is required")
		return
	}

	query := r.URL.Query()
	startDateStr := query.Get("start_date")
	endDateStr := query.Get("end_date")

	var transactions []*domain.Transaction
	if startDateStr != "" || endDateStr != "" {
		startDate := time.Now().AddDate(-1, 0, 0)
		endDate := time.Now()

		if startDateStr != "" {
			startDate, err = time.Parse("2006-01-02", startDateStr)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
				return
			}
		}
		if endDateStr != "" {
			endDate, err = time.Parse("2006-01-02", endDateStr)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
				return
			}
			// Make end_date inclusive of the whole day.
			endDate = endDate.AddDate(0, 0, 1).Add(-time.Second)
		}

		transactions, err = h.repo.ListForUserInRange(r.Context(), userID, startDate, endDate)
	} else {
		limit := 100
		if limitStr := query.Get("limit"); limitStr != "" {
			if n, parseErr := strconv.Atoi(limitStr); parseErr == nil && n > 0 {
				limit = n
			}
		}
		transactions, err = h.repo.ListByUser(r.Context(), userID, limit)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	resp := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		resp = append(resp, toTransactionResponse(t))
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID            string `json:"user_id"`
		AccountID         string `json:"account_id"`
		Type              string `json:"type"`
		Amount            string `json:"amount"`
		Description       string `json:"description"`
		Category          string `json:"category"`
		OccurredAt        string `json:"occurred_at"`
		IsRecurring       bool   `json:"is_recurring"`
		RecurringInterval string `json:"recurring_interval"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Valid user_id is required")
		return
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Valid account_id is required")
		return
	}
	txType, err := domain.ParseTransactionType(req.Type)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Type must be INCOME or EXPENSE")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		middleware.WriteError(w, http.StatusBadRequest, "Amount must be a non-negative number")
		return
	}

	occurredAt := time.Now()
	if req.OccurredAt != "" {
		occurredAt, err = time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			occurredAt, err = time.Parse("2006-01-02", req.OccurredAt)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, "Invalid occurred_at format")
				return
			}
		}
	}

	tx := &domain.Transaction{
		UserID:      userID,
		AccountID:   accountID,
		Type:        txType,
		Amount:      amount,
		Description: req.Description,
		Category:    req.Category,
		OccurredAt:  occurredAt,
		Status:      domain.StatusCompleted,
		IsRecurring: req.IsRecurring,
	}
	if req.IsRecurring {
		interval, err := domain.ParseRecurringInterval(req.RecurringInterval)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "recurring_interval must be DAILY, WEEKLY, MONTHLY, or YEARLY")
			return
		}
		tx.RecurringInterval = &interval
	}

	if err := h.repo.Create(r.Context(), tx); err != nil {
		h.log.Error().Err(err).Msg("Failed to create transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

// BudgetsHandler handles budget endpoints.
type BudgetsHandler struct {
	repo BudgetRepository
	log  zerolog.Logger
}

// NewBudgetsHandler creates a new budgets handler.
func NewBudgetsHandler(repo BudgetRepository, log zerolog.Logger) *BudgetsHandler {
	return &BudgetsHandler{repo: repo, log: log}
}

// GetBudget handles GET /api/budget?user_id=...
func (h *BudgetsHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Valid user_id is required")
		return
	}

	budget, err := h.repo.GetByUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "No budget configured")
			return
		}
		h.log.Error().Err(err).Msg("Failed to get budget")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get budget")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toBudgetResponse(budget))
}

// UpsertBudget handles PUT /api/budget
func (h *BudgetsHandler) UpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Amount string `json:"amount"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Valid user_id is required")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		middleware.WriteError(w, http.StatusBadRequest, "Amount must be a non-negative number")
		return
	}

	budget, err := h.repo.Upsert(r.Context(), userID, amount)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to save budget")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save budget")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toBudgetResponse(budget))
}

// ReceiptsHandler handles receipt scanning.
type ReceiptsHandler struct {
	scanner  receipts.Scanner
	archiver gcsarchive.Archiver
	log      zerolog.Logger
}

// NewReceiptsHandler creates a new receipts handler. archiver may be nil, in
// which case scanned images are not archived.
func NewReceiptsHandler(scanner receipts.Scanner, archiver gcsarchive.Archiver, log zerolog.Logger) *ReceiptsHandler {
	return &ReceiptsHandler{scanner: scanner, archiver: archiver, log: log}
}

// ScanReceipt handles POST /api/receipts/scan. The request body is the raw
// image; Content-Type tells the model what it is looking at.
func (h *ReceiptsHandler) ScanReceipt(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	body := http.MaxBytesReader(w, r.Body, receipts.MaxImageBytes)
	image, err := io.ReadAll(body)
	if err != nil {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Image exceeds the 5MB limit")
		return
	}
	if len(image) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Image body is required")
		return
	}

	result, err := h.scanner.Scan(r.Context(), image, contentType)
	if err != nil {
		h.log.Error().Err(err).Msg("Receipt scan failed")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to scan receipt")
		return
	}

	// Archival is best-effort; a storage failure never fails the scan.
	var archiveURI string
	if h.archiver != nil {
		archiveURI, err = h.archiver.Archive(r.Context(), image, contentType)
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to archive receipt image")
		}
	}

	resp := map[string]interface{}{
		"is_receipt": result.IsReceipt,
	}
	if result.IsReceipt {
		resp["amount"] = decimal.NewFromFloat(result.Amount).StringFixed(2)
		resp["date"] = result.Date.Format("2006-01-02")
		resp["description"] = result.Description
		resp["merchant_name"] = result.MerchantName
		resp["category"] = result.Category
	}
	if archiveURI != "" {
		resp["archive_uri"] = archiveURI
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// RecurringTrigger fans out realization jobs for due recurring transactions.
type RecurringTrigger interface {
	TriggerRecurring(ctx context.Context) (int, error)
}

// RecurringHandler exposes a manual trigger for the recurring pipeline.
type RecurringHandler struct {
	trigger RecurringTrigger
	log     zerolog.Logger
}

// NewRecurringHandler creates a new recurring handler.
func NewRecurringHandler(trigger RecurringTrigger, log zerolog.Logger) *RecurringHandler {
	return &RecurringHandler{trigger: trigger, log: log}
}

// TriggerRecurring handles POST /api/recurring/trigger. The scheduled worker
// normally does this nightly; the endpoint exists for ops and backfills.
func (h *RecurringHandler) TriggerRecurring(w http.ResponseWriter, r *http.Request) {
	published, err := h.trigger.TriggerRecurring(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to trigger recurring transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to trigger recurring transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"published": published,
	})
}

// JobsHandler exposes recurring job state.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if userIDStr := query.Get("user_id"); userIDStr != "" {
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Valid user_id is required")
			return
		}
		filter.UserID = userID
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
