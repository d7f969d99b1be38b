// Package pipeline implements the scheduled background jobs: budget alert
// checking, recurring-transaction realization, and monthly report
// generation. Every job is idempotent given current database state, so
// at-least-once scheduling cannot double any external effect.
package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/dkrasnov/pennyworth/internal/insights"
	"github.com/dkrasnov/pennyworth/internal/jobs"
	"github.com/dkrasnov/pennyworth/internal/mailer"
)

// Pipeline bundles the job implementations with their collaborators. The job
// publisher is injected here once at startup rather than referenced as
// ambient global state.
type Pipeline struct {
	transactions TransactionStore
	budgets      BudgetStore
	users        UserStore
	mail         mailer.Mailer
	insights     insights.Generator
	publisher    jobs.Publisher
	log          zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

func New(
	transactions TransactionStore,
	budgets BudgetStore,
	users UserStore,
	mail mailer.Mailer,
	gen insights.Generator,
	publisher jobs.Publisher,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		transactions: transactions,
		budgets:      budgets,
		users:        users,
		mail:         mail,
		insights:     gen,
		publisher:    publisher,
		log:          log,
		now:          time.Now,
	}
}

// monthWindow returns the calendar-month bounds containing t:
// [first day 00:00:00, last day 23:59:59].
func monthWindow(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}

// priorMonthWindow returns the bounds of the month before the one containing
// t. It steps through the first of the current month so a run on the 31st
// cannot skip a short month.
func priorMonthWindow(t time.Time) (time.Time, time.Time) {
	firstOfCurrent := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return monthWindow(firstOfCurrent.Add(-time.Second))
}

// sameMonth reports whether a and b fall in the same calendar month and year.
func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
