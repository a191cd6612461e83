package valueobject

import "time"

// MonthStart normalizes t to the first day of its month at 00:00 UTC.
// Reference months are always stored in this form.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days of the month containing t
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonthsClamped adds n calendar months to t keeping the day of month,
// clamped to the last day of shorter months (Jan 31 + 1 = Feb 28/29).
func AddMonthsClamped(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := min(t.Day(), DaysInMonth(first))
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween returns the signed number of calendar months from a to b,
// ignoring the day of month
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// DueDateInMonth returns dueDay of month, clamped to the month length
func DueDateInMonth(month time.Time, dueDay int) time.Time {
	m := MonthStart(month)
	day := max(1, min(dueDay, DaysInMonth(m)))
	return time.Date(m.Year(), m.Month(), day, 0, 0, 0, 0, time.UTC)
}

// MonthRange lists month starts from..to inclusive; empty when to precedes from
func MonthRange(from, to time.Time) []time.Time {
	start, end := MonthStart(from), MonthStart(to)
	n := MonthsBetween(start, end)
	if n < 0 {
		return nil
	}
	months := make([]time.Time, 0, n+1)
	for i := 0; i <= n; i++ {
		months = append(months, start.AddDate(0, i, 0))
	}
	return months
}
