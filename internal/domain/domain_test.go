package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseEnumerationsFallBack(t *testing.T) {
	assert.Equal(t, CategoryCreditCard, ParseCategory(" Credit_Card "))
	assert.Equal(t, CategoryOther, ParseCategory("otp"))
	assert.Equal(t, CategoryOther, ParseCategory(""))

	assert.Equal(t, FrequencyYearly, ParseFrequency("YEARLY"))
	assert.Equal(t, FrequencyOneTime, ParseFrequency("one-time"))
	assert.Equal(t, FrequencyMonthly, ParseFrequency("weekly"))

	assert.Equal(t, SourceSMS, ParseSource("sms"))
	assert.Equal(t, SourceManual, ParseSource("push"))

	assert.Equal(t, SubscriptionCancelled, ParseSubscriptionStatus("Cancelled"))
	assert.Equal(t, SubscriptionActive, ParseSubscriptionStatus("paused"))
}

func TestFrequencyMonths(t *testing.T) {
	assert.Equal(t, 1, FrequencyMonthly.Months())
	assert.Equal(t, 3, FrequencyQuarterly.Months())
	assert.Equal(t, 12, FrequencyYearly.Months())
	assert.Equal(t, 0, FrequencyOneTime.Months())
}

func TestBillNormalizeAndValidate(t *testing.T) {
	testCases := []struct {
		name    string
		bill    Bill
		wantErr bool
	}{
		{
			name: "valid bill",
			bill: Bill{Name: "Rent", Amount: decimal.NewFromInt(1200), DueDay: 5},
		},
		{
			name: "same-day reminder",
			bill: Bill{Name: "Rent", Amount: decimal.NewFromInt(1200), DueDay: 5, ReminderDaysBefore: 0},
		},
		{
			name:    "negative lead time",
			bill:    Bill{Name: "Rent", Amount: decimal.NewFromInt(1200), DueDay: 5, ReminderDaysBefore: -1},
			wantErr: true,
		},
		{
			name:    "missing name",
			bill:    Bill{Name: "  ", Amount: decimal.NewFromInt(1), DueDay: 5},
			wantErr: true,
		},
		{
			name:    "negative amount",
			bill:    Bill{Name: "Rent", Amount: decimal.NewFromInt(-1), DueDay: 5},
			wantErr: true,
		},
		{
			name:    "due day out of range",
			bill:    Bill{Name: "Rent", Amount: decimal.Zero, DueDay: 32},
			wantErr: true,
		},
		{
			name:    "lead time too long",
			bill:    Bill{Name: "Rent", Amount: decimal.Zero, DueDay: 10, ReminderDaysBefore: 40},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bill := tc.bill
			bill.Normalize()

			err := bill.Validate()
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidBill), "got %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, CategoryOther, bill.Category)
			assert.Equal(t, FrequencyMonthly, bill.Frequency)
			assert.Equal(t, SourceManual, bill.Source)
			assert.Equal(t, tc.bill.ReminderDaysBefore, bill.ReminderDaysBefore)
		})
	}
}

func TestReminderIsDue(t *testing.T) {
	day := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	assert.True(t, Reminder{ReminderDate: day}.IsDue(day))
	assert.True(t, Reminder{ReminderDate: day.AddDate(0, -1, 25)}.IsDue(day))
	assert.False(t, Reminder{ReminderDate: day.AddDate(0, 0, 1)}.IsDue(day))
	assert.False(t, Reminder{ReminderDate: day, Sent: true}.IsDue(day))
}

func TestUserCanReceivePush(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.CanReceivePush())
	assert.False(t, (&User{PushToken: "tok", NotificationsEnabled: false}).CanReceivePush())
	assert.False(t, (&User{PushToken: " ", NotificationsEnabled: true}).CanReceivePush())
	assert.True(t, (&User{PushToken: "tok", NotificationsEnabled: true}).CanReceivePush())
}

func TestSubscriptionIsUnused(t *testing.T) {
	cutoff := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	old := cutoff.AddDate(0, 0, -3)
	recent := cutoff.AddDate(0, 0, 3)

	assert.True(t, (&Subscription{Status: SubscriptionActive}).IsUnused(cutoff))
	assert.True(t, (&Subscription{Status: SubscriptionActive, LastUsedAt: &old}).IsUnused(cutoff))
	assert.False(t, (&Subscription{Status: SubscriptionActive, LastUsedAt: &recent}).IsUnused(cutoff))
	assert.False(t, (&Subscription{Status: SubscriptionActive, IsUsed: true}).IsUnused(cutoff))
	assert.False(t, (&Subscription{Status: SubscriptionCancelled}).IsUnused(cutoff))
}
