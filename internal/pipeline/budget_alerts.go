package pipeline

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dkrasnov/pennyworth/internal/mailer"
)

// alertThreshold is the percentage of budget use at which an alert fires.
var alertThreshold = decimal.NewFromInt(80)

// CheckBudgetAlerts scans every budget and emails the owner when
// current-month spend on their default account reaches 80% of the cap.
// At most one alert fires per budget per calendar month: the stamp written
// after a successful send is the guard, so re-runs within the month are
// no-ops. Per-budget failures are logged and do not stop the batch.
func (p *Pipeline) CheckBudgetAlerts(ctx context.Context) error {
	checks, err := p.budgets.ListForAlertCheck(ctx)
	if err != nil {
		return fmt.Errorf("CheckBudgetAlerts: %w", err)
	}

	now := p.now()
	monthStart, monthEnd := monthWindow(now)

	for _, check := range checks {
		if check.DefaultAccount == nil {
			// A user without a default account cannot be alerted against.
			continue
		}
		if !check.Budget.Amount.IsPositive() {
			p.log.Debug().
				Str("budget_id", check.Budget.ID.String()).
				Msg("Skipping budget with non-positive cap")
			continue
		}

		totalExpenses, err := p.transactions.SumExpensesForAccount(
			ctx, check.Budget.UserID, check.DefaultAccount.ID, monthStart, monthEnd)
		if err != nil {
			p.log.Error().Err(err).
				Str("budget_id", check.Budget.ID.String()).
				Msg("Failed to aggregate expenses for budget")
			continue
		}

		percentageUsed := totalExpenses.Div(check.Budget.Amount).Mul(decimal.NewFromInt(100))
		if percentageUsed.LessThan(alertThreshold) {
			continue
		}
		if check.Budget.LastAlertSent != nil && sameMonth(*check.Budget.LastAlertSent, now) {
			continue
		}

		body, err := mailer.RenderBudgetAlert(mailer.BudgetAlertData{
			UserName:       check.UserName,
			AccountName:    check.DefaultAccount.Name,
			PercentageUsed: percentageUsed,
			BudgetAmount:   check.Budget.Amount,
			TotalExpenses:  totalExpenses,
		})
		if err != nil {
			p.log.Error().Err(err).
				Str("budget_id", check.Budget.ID.String()).
				Msg("Failed to render budget alert")
			continue
		}

		subject := fmt.Sprintf("Budget Alert for %s", check.DefaultAccount.Name)
		if err := p.mail.Send(ctx, check.UserEmail, subject, body); err != nil {
			// Not stamped: the next run within the month retries the send.
			p.log.Error().Err(err).
				Str("budget_id", check.Budget.ID.String()).
				Str("to", check.UserEmail).
				Msg("Failed to send budget alert")
			continue
		}

		if err := p.budgets.MarkAlertSent(ctx, check.Budget.ID, now); err != nil {
			p.log.Error().Err(err).
				Str("budget_id", check.Budget.ID.String()).
				Msg("Failed to stamp budget alert")
			continue
		}

		p.log.Info().
			Str("budget_id", check.Budget.ID.String()).
			Str("percentage_used", percentageUsed.StringFixed(1)).
			Msg("Budget alert sent")
	}

	return nil
}
