package pipeline

import (
	"github.com/dkrasnov/pennyworth/internal/domain"
)

// ComputeMonthlyStats folds a month of transactions into report aggregates.
// Income sums into TotalIncome; expenses sum into TotalExpenses and their
// category totals. Pure: no transactions means zero totals and an empty
// category map.
func ComputeMonthlyStats(transactions []*domain.Transaction) domain.MonthlyStats {
	stats := domain.NewMonthlyStats()
	stats.TransactionCount = len(transactions)

	for _, t := range transactions {
		switch t.Type {
		case domain.TypeExpense:
			stats.TotalExpenses = stats.TotalExpenses.Add(t.Amount)
			stats.ByCategory[t.Category] = stats.ByCategory[t.Category].Add(t.Amount)
		case domain.TypeIncome:
			stats.TotalIncome = stats.TotalIncome.Add(t.Amount)
		}
	}

	return stats
}
