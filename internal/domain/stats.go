package domain

import "github.com/shopspring/decimal"

// MonthlyStats aggregates one user's transactions for a calendar month.
type MonthlyStats struct {
	TotalIncome      decimal.Decimal
	TotalExpenses    decimal.Decimal
	ByCategory       map[string]decimal.Decimal // expense totals per category
	TransactionCount int
}

// NewMonthlyStats returns zeroed stats with an allocated category map.
func NewMonthlyStats() MonthlyStats {
	return MonthlyStats{
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
		ByCategory:    make(map[string]decimal.Decimal),
	}
}

// Net returns income minus expenses.
func (s MonthlyStats) Net() decimal.Decimal {
	return s.TotalIncome.Sub(s.TotalExpenses)
}
