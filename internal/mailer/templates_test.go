package mailer

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dkrasnov/pennyworth/internal/domain"
)

func TestRenderBudgetAlert(t *testing.T) {
	body, err := RenderBudgetAlert(BudgetAlertData{
		UserName:       "Ada",
		AccountName:    "Checking",
		PercentageUsed: decimal.NewFromFloat(85),
		BudgetAmount:   decimal.NewFromInt(1000),
		TotalExpenses:  decimal.NewFromInt(850),
	})
	if err != nil {
		t.Fatalf("RenderBudgetAlert: %v", err)
	}

	for _, want := range []string{
		"Hello Ada",
		"85.0%",
		"Checking",
		"$1000.00",
		"$850.00",
		"$150.00", // remaining
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestRenderMonthlyReport(t *testing.T) {
	stats := domain.NewMonthlyStats()
	stats.TotalIncome = decimal.NewFromInt(2500)
	stats.TotalExpenses = decimal.NewFromInt(1800)
	stats.TransactionCount = 12
	stats.ByCategory["rent"] = decimal.NewFromInt(900)

	body, err := RenderMonthlyReport(MonthlyReportData{
		UserName: "Ada",
		Month:    "February",
		Stats:    stats,
		Insights: []string{"Rent dominates your spending.", "You saved $700."},
	})
	if err != nil {
		t.Fatalf("RenderMonthlyReport: %v", err)
	}

	for _, want := range []string{
		"Report for February",
		"$2500.00",
		"$1800.00",
		"$700.00", // net
		"rent",
		"$900.00",
		"Rent dominates your spending.",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestRenderMonthlyReport_EmptyCategories(t *testing.T) {
	body, err := RenderMonthlyReport(MonthlyReportData{
		UserName: "Ada",
		Month:    "March",
		Stats:    domain.NewMonthlyStats(),
		Insights: []string{"No activity last month."},
	})
	if err != nil {
		t.Fatalf("RenderMonthlyReport: %v", err)
	}
	if strings.Contains(body, "Expenses by Category") {
		t.Error("category section should be omitted when empty")
	}
}
