// Package domain holds the BillSafe entities shared across storage, services and jobs.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category classifies what a bill is for.
type Category string

const (
	CategoryElectricity  Category = "electricity"
	CategoryWater        Category = "water"
	CategoryPhone        Category = "phone"
	CategoryCreditCard   Category = "credit_card"
	CategoryInternet     Category = "internet"
	CategorySubscription Category = "subscription"
	CategoryOther        Category = "other"
)

var categories = []Category{
	CategoryElectricity,
	CategoryWater,
	CategoryPhone,
	CategoryCreditCard,
	CategoryInternet,
	CategorySubscription,
	CategoryOther,
}

// ParseCategory normalizes free text into a Category, falling back to CategoryOther.
func ParseCategory(value string) Category {
	normalized := Category(strings.ToLower(strings.TrimSpace(value)))
	for _, c := range categories {
		if c == normalized {
			return c
		}
	}
	return CategoryOther
}

// Frequency describes how often a bill or subscription recurs.
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
	FrequencyOneTime   Frequency = "one-time"
)

// ParseFrequency normalizes free text into a Frequency, falling back to FrequencyMonthly.
func ParseFrequency(value string) Frequency {
	switch Frequency(strings.ToLower(strings.TrimSpace(value))) {
	case FrequencyQuarterly:
		return FrequencyQuarterly
	case FrequencyYearly:
		return FrequencyYearly
	case FrequencyOneTime:
		return FrequencyOneTime
	default:
		return FrequencyMonthly
	}
}

// Months returns the number of months between two occurrences, or 0 for one-time payments.
func (f Frequency) Months() int {
	switch f {
	case FrequencyQuarterly:
		return 3
	case FrequencyYearly:
		return 12
	case FrequencyOneTime:
		return 0
	default:
		return 1
	}
}

// Source records how a bill entered the system.
type Source string

const (
	SourceManual Source = "manual"
	SourceSMS    Source = "sms"
	SourceEmail  Source = "email"
)

// ParseSource normalizes free text into a Source, falling back to SourceManual.
func ParseSource(value string) Source {
	switch Source(strings.ToLower(strings.TrimSpace(value))) {
	case SourceSMS:
		return SourceSMS
	case SourceEmail:
		return SourceEmail
	default:
		return SourceManual
	}
}

// DefaultReminderDaysBefore is the lead time applied when a new bill names none.
const DefaultReminderDaysBefore = 3

// MaxReminderDaysBefore bounds the lead time so a reminder never precedes the previous cycle.
const MaxReminderDaysBefore = 27

// ErrInvalidBill marks validation failures of a Bill.
var ErrInvalidBill = errors.New("invalid bill")

// Bill is a recurring or one-time payment obligation owned by a user.
type Bill struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"userId"`
	Name               string          `json:"billName"`
	Amount             decimal.Decimal `json:"amount"`
	DueDay             int             `json:"dueDate"`
	Category           Category        `json:"category"`
	Frequency          Frequency       `json:"frequency"`
	Description        string          `json:"description,omitempty"`
	IsActive           bool            `json:"isActive"`
	ReminderDaysBefore int             `json:"reminderDaysBefore"`
	LastPaidAt         *time.Time      `json:"lastPaidDate,omitempty"`
	Source             Source          `json:"source"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Normalize applies enumeration fallbacks. A zero lead time is kept and
// means a reminder on the due day itself.
func (b *Bill) Normalize() {
	b.Name = strings.TrimSpace(b.Name)
	b.Category = ParseCategory(string(b.Category))
	b.Frequency = ParseFrequency(string(b.Frequency))
	b.Source = ParseSource(string(b.Source))
}

// Validate checks the bill invariants.
func (b *Bill) Validate() error {
	switch {
	case b.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidBill)
	case b.Amount.IsNegative():
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidBill)
	case b.DueDay < 1 || b.DueDay > 31:
		return fmt.Errorf("%w: due day %d is outside 1-31", ErrInvalidBill, b.DueDay)
	case b.ReminderDaysBefore < 0 || b.ReminderDaysBefore > MaxReminderDaysBefore:
		return fmt.Errorf("%w: reminder lead time %d is outside 0-%d", ErrInvalidBill, b.ReminderDaysBefore, MaxReminderDaysBefore)
	}
	return nil
}
