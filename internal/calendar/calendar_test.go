package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Proton-105/billsafe/internal/domain"
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, ist)
}

func TestNextReminderDate(t *testing.T) {
	testCases := []struct {
		name     string
		today    time.Time
		dueDay   int
		leadDays int
		want     time.Time
	}{
		{
			name:     "reminder still ahead this month",
			today:    date(2026, time.October, 5),
			dueDay:   10,
			leadDays: 3,
			want:     date(2026, time.October, 7),
		},
		{
			name:     "reminder today is kept",
			today:    date(2026, time.October, 7),
			dueDay:   10,
			leadDays: 3,
			want:     date(2026, time.October, 7),
		},
		{
			name:     "reminder already passed rolls to next month",
			today:    date(2026, time.October, 15),
			dueDay:   10,
			leadDays: 3,
			want:     date(2026, time.November, 7),
		},
		{
			name:     "lead time crossing into previous month",
			today:    date(2026, time.October, 1),
			dueDay:   2,
			leadDays: 5,
			want:     date(2026, time.October, 28),
		},
		{
			name:     "due day clamped in february",
			today:    date(2026, time.February, 1),
			dueDay:   31,
			leadDays: 3,
			want:     date(2026, time.February, 25),
		},
		{
			name:     "roll forward into short month clamps",
			today:    date(2026, time.January, 30),
			dueDay:   31,
			leadDays: 3,
			want:     date(2026, time.February, 25),
		},
		{
			name:     "leap year february",
			today:    date(2028, time.February, 2),
			dueDay:   30,
			leadDays: 0,
			want:     date(2028, time.February, 29),
		},
		{
			name:     "december rolls into next year",
			today:    date(2026, time.December, 20),
			dueDay:   15,
			leadDays: 3,
			want:     date(2027, time.January, 12),
		},
		{
			name:     "time of day is ignored",
			today:    time.Date(2026, time.October, 7, 23, 30, 0, 0, ist),
			dueDay:   10,
			leadDays: 3,
			want:     date(2026, time.October, 7),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextReminderDate(tc.today, tc.dueDay, tc.leadDays, ist)
			assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
			assert.False(t, got.Before(StartOfDay(tc.today, ist)))
		})
	}
}

func TestNextReminderDateUsesLocationForToday(t *testing.T) {
	// 20:00 UTC on the 6th is already the 7th in IST.
	instant := time.Date(2026, time.October, 6, 20, 0, 0, 0, time.UTC)

	got := NextReminderDate(instant, 10, 3, ist)

	assert.True(t, date(2026, time.October, 7).Equal(got), "got %s", got)
}

func TestOccurrenceInClamps(t *testing.T) {
	assert.Equal(t, 30, OccurrenceIn(2026, time.April, 31, ist).Day())
	assert.Equal(t, 28, OccurrenceIn(2026, time.February, 29, ist).Day())
	assert.Equal(t, 1, OccurrenceIn(2026, time.April, 0, ist).Day())

	overflow := OccurrenceIn(2026, time.Month(14), 31, ist)
	assert.Equal(t, 2027, overflow.Year())
	assert.Equal(t, time.February, overflow.Month())
	assert.Equal(t, 28, overflow.Day())
}

func TestNextCycleReminderDate(t *testing.T) {
	testCases := []struct {
		name      string
		prev      time.Time
		dueDay    int
		leadDays  int
		frequency domain.Frequency
		want      time.Time
		wantOK    bool
	}{
		{
			name:      "monthly",
			prev:      date(2026, time.October, 7),
			dueDay:    10,
			leadDays:  3,
			frequency: domain.FrequencyMonthly,
			want:      date(2026, time.November, 7),
			wantOK:    true,
		},
		{
			name:      "quarterly crosses year",
			prev:      date(2026, time.October, 7),
			dueDay:    10,
			leadDays:  3,
			frequency: domain.FrequencyQuarterly,
			want:      date(2027, time.January, 7),
			wantOK:    true,
		},
		{
			name:      "yearly",
			prev:      date(2026, time.October, 7),
			dueDay:    10,
			leadDays:  3,
			frequency: domain.FrequencyYearly,
			want:      date(2027, time.October, 7),
			wantOK:    true,
		},
		{
			name:      "month end clamped cycle",
			prev:      date(2026, time.February, 25),
			dueDay:    31,
			leadDays:  3,
			frequency: domain.FrequencyMonthly,
			want:      date(2026, time.March, 28),
			wantOK:    true,
		},
		{
			name:      "lead time spanning month boundary",
			prev:      date(2026, time.September, 27),
			dueDay:    2,
			leadDays:  5,
			frequency: domain.FrequencyMonthly,
			want:      date(2026, time.October, 28),
			wantOK:    true,
		},
		{
			name:      "one-time has no next cycle",
			prev:      date(2026, time.October, 7),
			dueDay:    10,
			leadDays:  3,
			frequency: domain.FrequencyOneTime,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NextCycleReminderDate(tc.prev, tc.dueDay, tc.leadDays, tc.frequency, ist)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
			}
		})
	}
}

func TestFixedClock(t *testing.T) {
	instant := time.Date(2026, time.October, 15, 9, 0, 0, 0, ist)
	var clock Clock = FixedClock(instant)

	assert.True(t, instant.Equal(clock.Now()))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-11-15", ist)
	assert.NoError(t, err)
	assert.Equal(t, date(2025, time.November, 15), got)

	// 20:00 UTC is already the next day in IST
	got, err = ParseDate("2025-11-15T20:00:00Z", ist)
	assert.NoError(t, err)
	assert.Equal(t, date(2025, time.November, 16), got)

	_, err = ParseDate("15/11/2025", ist)
	assert.Error(t, err)
}
