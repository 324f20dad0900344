// Package calendar implements the day-granularity date math behind bill reminders.
//
// All computations happen in a single configured location. Dates are
// represented as time.Time values at midnight in that location.
package calendar

import (
	"fmt"
	"time"

	"github.com/Proton-105/billsafe/internal/domain"
)

// DateLayout is the wire and storage layout for calendar dates.
const DateLayout = "2006-01-02"

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return time.Time(c) }

// StartOfDay strips the time of day from t as observed in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DateIn reinterprets the calendar date of t (as stored, ignoring its zone) in loc.
func DateIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDate reads a calendar date written as 2006-01-02 or as an RFC 3339
// timestamp. Timestamps are reduced to their date as observed in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(DateLayout, value, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: expected YYYY-MM-DD", value)
	}
	return StartOfDay(t, loc), nil
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// OccurrenceIn returns the due date for dueDay in the given month, clamping
// days past the end of the month to its last day. Month overflow is normalized.
func OccurrenceIn(year int, month time.Month, dueDay int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := DaysIn(first.Year(), first.Month())

	day := dueDay
	if day < 1 {
		day = 1
	}
	if day > last {
		day = last
	}

	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, loc)
}

// NextReminderDate computes the reminder date for a bill due on dueDay with
// leadDays of notice: this month's occurrence minus the lead time, moved to
// the following month's occurrence while it falls before today.
func NextReminderDate(today time.Time, dueDay, leadDays int, loc *time.Location) time.Time {
	today = StartOfDay(today, loc)
	if leadDays < 0 {
		leadDays = 0
	}

	year, month := today.Year(), today.Month()
	candidate := OccurrenceIn(year, month, dueDay, loc).AddDate(0, 0, -leadDays)
	for offset := 1; candidate.Before(today); offset++ {
		candidate = OccurrenceIn(year, month+time.Month(offset), dueDay, loc).AddDate(0, 0, -leadDays)
	}

	return candidate
}

// DueDateFor returns the occurrence a reminder on reminderDate points at.
func DueDateFor(reminderDate time.Time, dueDay, leadDays int, loc *time.Location) time.Time {
	target := DateIn(reminderDate, loc).AddDate(0, 0, leadDays)
	occurrence := OccurrenceIn(target.Year(), target.Month(), dueDay, loc)
	if occurrence.Before(target) {
		return OccurrenceIn(target.Year(), target.Month()+1, dueDay, loc)
	}
	return occurrence
}

// NextCycleReminderDate returns the reminder date for the occurrence one
// billing period after the one reminded about on prev. The second result is
// false for one-time bills, which have no next cycle.
func NextCycleReminderDate(prev time.Time, dueDay, leadDays int, frequency domain.Frequency, loc *time.Location) (time.Time, bool) {
	step := frequency.Months()
	if step == 0 {
		return time.Time{}, false
	}

	due := DueDateFor(prev, dueDay, leadDays, loc)
	next := OccurrenceIn(due.Year(), due.Month()+time.Month(step), dueDay, loc)

	return next.AddDate(0, 0, -leadDays), true
}
