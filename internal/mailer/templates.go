package mailer

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dkrasnov/pennyworth/internal/domain"
)

// BudgetAlertData feeds the budget-alert email body.
type BudgetAlertData struct {
	UserName       string
	AccountName    string
	PercentageUsed decimal.Decimal
	BudgetAmount   decimal.Decimal
	TotalExpenses  decimal.Decimal
}

// MonthlyReportData feeds the monthly-report email body.
type MonthlyReportData struct {
	UserName string
	Month    string
	Stats    domain.MonthlyStats
	Insights []string
}

var budgetAlertTmpl = template.Must(template.New("budget-alert").Funcs(template.FuncMap{
	"remaining": func(budget, spent decimal.Decimal) string {
		return budget.Sub(spent).StringFixed(2)
	},
}).Parse(`<html>
<body style="font-family: sans-serif; color: #1f2937;">
  <h2>Budget Alert</h2>
  <p>Hello {{.UserName}},</p>
  <p>You have used <strong>{{.PercentageUsed.StringFixed 1}}%</strong> of your monthly budget
     on account <strong>{{.AccountName}}</strong>.</p>
  <table cellpadding="6">
    <tr><td>Budget</td><td>${{.BudgetAmount.StringFixed 2}}</td></tr>
    <tr><td>Spent so far</td><td>${{.TotalExpenses.StringFixed 2}}</td></tr>
    <tr><td>Remaining</td><td>${{remaining .BudgetAmount .TotalExpenses}}</td></tr>
  </table>
  <p>Consider reviewing your spending for the rest of the month.</p>
</body>
</html>`))

var monthlyReportTmpl = template.Must(template.New("monthly-report").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}).Parse(`<html>
<body style="font-family: sans-serif; color: #1f2937;">
  <h2>Your Monthly Financial Report for {{.Month}}</h2>
  <p>Hello {{.UserName}},</p>
  <table cellpadding="6">
    <tr><td>Total Income</td><td>${{money .Stats.TotalIncome}}</td></tr>
    <tr><td>Total Expenses</td><td>${{money .Stats.TotalExpenses}}</td></tr>
    <tr><td>Net</td><td>${{money .Stats.Net}}</td></tr>
    <tr><td>Transactions</td><td>{{.Stats.TransactionCount}}</td></tr>
  </table>
  {{if .Stats.ByCategory}}
  <h3>Expenses by Category</h3>
  <table cellpadding="6">
    {{range $category, $amount := .Stats.ByCategory}}
    <tr><td>{{$category}}</td><td>${{money $amount}}</td></tr>
    {{end}}
  </table>
  {{end}}
  <h3>Insights</h3>
  <ul>
    {{range .Insights}}<li>{{.}}</li>
    {{end}}
  </ul>
</body>
</html>`))

// RenderBudgetAlert renders the budget-alert email body.
func RenderBudgetAlert(data BudgetAlertData) (string, error) {
	var b strings.Builder
	if err := budgetAlertTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("mailer: render budget alert: %w", err)
	}
	return b.String(), nil
}

// RenderMonthlyReport renders the monthly-report email body.
func RenderMonthlyReport(data MonthlyReportData) (string, error) {
	var b strings.Builder
	if err := monthlyReportTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("mailer: render monthly report: %w", err)
	}
	return b.String(), nil
}
