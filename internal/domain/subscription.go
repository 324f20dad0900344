package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// ParseSubscriptionStatus normalizes free text into a status, falling back to active.
func ParseSubscriptionStatus(value string) SubscriptionStatus {
	switch SubscriptionStatus(strings.ToLower(strings.TrimSpace(value))) {
	case SubscriptionCancelled:
		return SubscriptionCancelled
	case SubscriptionExpired:
		return SubscriptionExpired
	default:
		return SubscriptionActive
	}
}

// Subscription is a paid app or service the user tracks for renewal and usage.
type Subscription struct {
	ID            string             `json:"id"`
	UserID        string             `json:"userId"`
	AppName       string             `json:"appName"`
	Amount        decimal.Decimal    `json:"amount"`
	BillingCycle  Frequency          `json:"billingCycle"`
	StartDate     time.Time          `json:"startDate"`
	RenewalDate   time.Time          `json:"renewalDate"`
	Status        SubscriptionStatus `json:"status"`
	IsUsed        bool               `json:"isUsed"`
	LastUsedAt    *time.Time         `json:"lastUsedDate,omitempty"`
	PaymentMethod string             `json:"paymentMethod,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// IsUnused reports whether an active subscription has not been used since cutoff.
func (s *Subscription) IsUnused(cutoff time.Time) bool {
	if s.Status != SubscriptionActive || s.IsUsed {
		return false
	}
	return s.LastUsedAt == nil || s.LastUsedAt.Before(cutoff)
}
