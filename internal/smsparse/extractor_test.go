package smsparse

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/billsafe/internal/domain"
)

func TestExtract(t *testing.T) {
	testCases := []struct {
		name     string
		message  string
		category domain.Category
		amount   string
		dueDay   int
		billName string
	}{
		{
			name:     "amount without keywords",
			message:  "Rs 499 due this week",
			category: domain.CategoryOther,
			amount:   "499",
			dueDay:   1,
			billName: "Bill",
		},
		{
			name:     "bill with account safety notice",
			message:  "Your electricity bill of Rs 1,250 is due on 5th March. Do not share your account details with anyone.",
			category: domain.CategoryElectricity,
			amount:   "1250",
			dueDay:   5,
			billName: "Electricity Bill",
		},
		{
			name:     "zero minimum due with verification notice",
			message:  "HDFC credit card statement: Minimum due Rs 0 by 12th Jan. Verification code sent for autopay.",
			category: domain.CategoryCreditCard,
			amount:   "0",
			dueDay:   12,
			billName: "Credit Card Payment",
		},
		{
			name:     "otp keyword with amount",
			message:  "Rs 499 due this week, OTP 1234",
			category: domain.CategoryOther,
			amount:   "499",
			dueDay:   1,
			billName: "Bill",
		},
		{
			name:     "netflix renewal",
			message:  "Your Netflix subscription of Rs 649 will renew on 15th of June",
			category: domain.CategorySubscription,
			amount:   "649",
			dueDay:   15,
			billName: "Netflix Subscription",
		},
		{
			name:     "water wins over generic bill keyword",
			message:  "Your water bill of INR 320 is due on 12 Aug",
			category: domain.CategoryWater,
			amount:   "320",
			dueDay:   12,
			billName: "Water Bill",
		},
		{
			name:     "electricity with units in text",
			message:  "Electricity bill for 230 units: Rs 1540 due 10 Oct",
			category: domain.CategoryElectricity,
			amount:   "1540",
			dueDay:   10,
			billName: "Electricity Bill",
		},
		{
			name:     "phone with thousands separator",
			message:  "Airtel postpaid bill of Rs. 1,299.50 is due on 5th Jan",
			category: domain.CategoryPhone,
			amount:   "1299.5",
			dueDay:   5,
			billName: "Phone Recharge",
		},
		{
			name:     "credit card takes first amount",
			message:  "Credit Card ending 1234: minimum due Rs 500, total outstanding Rs 12,000 due by 20th March",
			category: domain.CategoryCreditCard,
			amount:   "500",
			dueDay:   20,
			billName: "Credit Card Payment",
		},
		{
			name:     "internet",
			message:  "ACT Fibernet broadband bill Rs 799 generated",
			category: domain.CategoryInternet,
			amount:   "799",
			dueDay:   1,
			billName: "Internet Bill",
		},
		{
			name:     "rupee glyph and app name",
			message:  "Disney+ Hotstar membership renewed for ₹299 🎉",
			category: domain.CategorySubscription,
			amount:   "299",
			dueDay:   1,
			billName: "Hotstar Subscription",
		},
		{
			name:     "jiocinema is not a phone plan",
			message:  "JioCinema premium plan renews on 3rd Feb",
			category: domain.CategorySubscription,
			amount:   "0",
			dueDay:   3,
			billName: "JioCinema Subscription",
		},
		{
			name:     "unknown app subscription",
			message:  "Your subscription expires soon",
			category: domain.CategorySubscription,
			amount:   "0",
			dueDay:   1,
			billName: "Subscription",
		},
		{
			name:     "out of range day falls back",
			message:  "Power dues Rs 100 by 45 Jan",
			category: domain.CategoryElectricity,
			amount:   "100",
			dueDay:   1,
			billName: "Electricity Bill",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bill, ok := Extract(tc.message)
			require.True(t, ok)
			require.NotNil(t, bill)

			assert.Equal(t, tc.category, bill.Category)
			assert.True(t, decimal.RequireFromString(tc.amount).Equal(bill.Amount), "amount %s", bill.Amount)
			assert.Equal(t, tc.dueDay, bill.DueDay)
			assert.Equal(t, tc.billName, bill.Name)

			assert.Equal(t, domain.FrequencyMonthly, bill.Frequency)
			assert.Equal(t, domain.SourceSMS, bill.Source)
			assert.True(t, bill.IsActive)
			assert.Equal(t, domain.DefaultReminderDaysBefore, bill.ReminderDaysBefore)
			assert.Empty(t, bill.UserID)
		})
	}
}

func TestExtractRejects(t *testing.T) {
	messages := []string{
		"Hey, are we still meeting today?",
		"",
		"Your OTP is 482913. Do not share it with anyone.",
		"Use one-time password 5521 to log in",
		"Working 40 hours 5 days a week",
		"\x00\xff garbage 🙂",
	}

	for _, message := range messages {
		bill, ok := Extract(message)
		assert.False(t, ok, "message %q", message)
		assert.Nil(t, bill)
	}
}

func TestClassify(t *testing.T) {
	category, otp := Classify("Use OTP 1234 to verify")
	assert.True(t, otp)
	assert.Equal(t, domain.CategoryOther, category)

	category, otp = Classify("Your OTP for payment of Rs 500 is 482913")
	assert.True(t, otp)
	assert.Equal(t, domain.CategoryOther, category)

	category, otp = Classify("Jal board water supply bill. Do not share your consumer number.")
	assert.False(t, otp)
	assert.Equal(t, domain.CategoryWater, category)

	category, otp = Classify("lunch?")
	assert.False(t, otp)
	assert.Equal(t, domain.CategoryOther, category)
}

func TestExtractConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bill, ok := Extract("Your Netflix subscription of Rs 649 will renew on 15th of June")
			assert.True(t, ok)
			assert.Equal(t, "Netflix Subscription", bill.Name)
		}()
	}
	wg.Wait()
}
