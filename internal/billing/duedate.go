// Package billing holds the due-date arithmetic shared by the payment
// materializer and the reminder scheduler. Both must agree on which monthly
// cycle "now" belongs to, so the logic lives in one place.
package billing

import "time"

// NextDueDate computes the upcoming rent due date for a tenant whose rent
// falls on dueDay each month. If today's day-of-month is before dueDay the
// due date is this month, otherwise next month. The day is clamped to the
// month's length so a due day of 31 degrades to Feb 28/29 rather than
// rolling over.
func NextDueDate(now time.Time, dueDay int) time.Time {
	if dueDay < 1 {
		dueDay = 1
	}

	year, month := now.Year(), now.Month()
	if now.Day() >= dueDay {
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}

	day := ClampDay(year, month, dueDay)
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location())
}

// CycleDueDate returns the due date of the billing cycle a payment made on
// paymentDate settles. Rent paid before the due day covers the month's
// upcoming cycle, and rent paid on or after it is a late payment for that
// same cycle, so the cycle is always the payment's own calendar month.
func CycleDueDate(paymentDate time.Time, dueDay int) time.Time {
	if dueDay < 1 {
		dueDay = 1
	}

	year, month := paymentDate.Year(), paymentDate.Month()
	day := ClampDay(year, month, dueDay)
	return time.Date(year, month, day, 0, 0, 0, 0, paymentDate.Location())
}

// Period returns the billing month and year a payment made on paymentDate
// settles.
func Period(paymentDate time.Time, dueDay int) (month int, year int) {
	due := CycleDueDate(paymentDate, dueDay)
	return int(due.Month()), due.Year()
}

// ClampDay caps day to the last day of the given month.
func ClampDay(year int, month time.Month, day int) int {
	last := daysIn(year, month)
	if day > last {
		return last
	}
	if day < 1 {
		return 1
	}
	return day
}

func daysIn(year int, month time.Month) int {
	// Day zero of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
