package pipeline

import (
	"context"
	"fmt"

	"github.com/dkrasnov/pennyworth/internal/insights"
	"github.com/dkrasnov/pennyworth/internal/mailer"
)

// GenerateMonthlyReports emails every user with at least one account a
// summary of the prior calendar month. The insight call is best-effort:
// any failure substitutes the fixed fallback list and delivery proceeds.
// Per-user failures are logged and do not stop the batch. Returns the number
// of reports delivered.
func (p *Pipeline) GenerateMonthlyReports(ctx context.Context) (int, error) {
	users, err := p.users.ListWithAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("GenerateMonthlyReports: %w", err)
	}

	monthStart, monthEnd := priorMonthWindow(p.now())
	monthName := monthStart.Month().String()

	processed := 0
	for _, user := range users {
		transactions, err := p.transactions.ListForUserInRange(ctx, user.ID, monthStart, monthEnd)
		if err != nil {
			p.log.Error().Err(err).
				Str("user_id", user.ID.String()).
				Msg("Failed to load transactions for report")
			continue
		}

		stats := ComputeMonthlyStats(transactions)

		insightList, err := p.insights.Generate(ctx, stats, monthName)
		if err != nil {
			p.log.Warn().Err(err).
				Str("user_id", user.ID.String()).
				Msg("Insight generation failed, using fallback insights")
			insightList = insights.FallbackInsights
		}

		body, err := mailer.RenderMonthlyReport(mailer.MonthlyReportData{
			UserName: user.Name,
			Month:    monthName,
			Stats:    stats,
			Insights: insightList,
		})
		if err != nil {
			p.log.Error().Err(err).
				Str("user_id", user.ID.String()).
				Msg("Failed to render monthly report")
			continue
		}

		subject := fmt.Sprintf("Your Monthly Financial Report for %s", monthName)
		if err := p.mail.Send(ctx, user.Email, subject, body); err != nil {
			p.log.Error().Err(err).
				Str("user_id", user.ID.String()).
				Str("to", user.Email).
				Msg("Failed to send monthly report")
			continue
		}

		processed++
	}

	p.log.Info().Int("processed", processed).Int("users", len(users)).
		Str("month", monthName).
		Msg("Monthly reports generated")
	return processed, nil
}
