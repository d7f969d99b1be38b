// Package recurrence computes the next due date for recurring transactions.
package recurrence

import (
	"time"

	"github.com/dkrasnov/pennyworth/internal/domain"
)

// Next returns the occurrence following ref for the given interval:
// +1 day, +7 days, +1 calendar month or +1 calendar year.
//
// Month and year steps preserve the day-of-month where the target month
// allows it and otherwise clamp to the month's last day, so Jan 31 + 1 month
// is Feb 28 (29 in a leap year) and Feb 29 + 1 year is Feb 28. This is a
// deliberate policy: time.AddDate would normalize Jan 31 + 1 month into
// early March instead.
func Next(ref time.Time, interval domain.RecurringInterval) time.Time {
	switch interval {
	case domain.IntervalDaily:
		return ref.AddDate(0, 0, 1)
	case domain.IntervalWeekly:
		return ref.AddDate(0, 0, 7)
	case domain.IntervalMonthly:
		return addMonthsClamped(ref, 1)
	case domain.IntervalYearly:
		return addYearsClamped(ref, 1)
	}
	// Intervals are validated at decode time; an unknown value cannot reach
	// here through domain.ParseRecurringInterval.
	return ref.AddDate(0, 0, 1)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func addYearsClamped(t time.Time, years int) time.Time {
	y, m, d := t.Date()
	if last := daysIn(y+years, m); d > last {
		d = last
	}
	return time.Date(y+years, m, d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
