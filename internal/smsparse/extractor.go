// Package smsparse turns free-text SMS bodies into candidate bills.
//
// Extraction is heuristic: an ordered keyword table picks a category, a
// currency pattern picks the amount and a "<day> <month>" pattern picks the
// due day. The package keeps no state and is safe for concurrent use.
package smsparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/billsafe/internal/domain"
)

// kind is a detected message class: every bill category plus otp.
type kind string

const kindOTP kind = "otp"

type rule struct {
	kind     kind
	keywords []string
}

// rules are evaluated in order and the first list with a substring hit wins.
// Specific classes come first; electricity carries the generic "bill" and
// "payment" keywords and is checked last. An otp hit files the message under
// other, so it is kept only when it carries an amount.
var rules = []rule{
	{kind: kindOTP, keywords: []string{"otp", "one time password", "one-time password"}},
	{kind: kind(domain.CategoryWater), keywords: []string{"water bill", "water", "jal board", "sewerage"}},
	{kind: kind(domain.CategoryInternet), keywords: []string{"broadband", "internet", "wifi", "wi-fi", "fibernet"}},
	{kind: kind(domain.CategoryCreditCard), keywords: []string{"credit card", "card ending", "outstanding", "minimum due", "minimum amount due", "payment due"}},
	{kind: kind(domain.CategorySubscription), keywords: []string{"subscription", "renew", "membership", "netflix", "prime video", "hotstar", "jiocinema", "spotify", "youtube premium"}},
	{kind: kind(domain.CategoryPhone), keywords: []string{"airtel", "jio", "vodafone", "bsnl", "mobile", "recharge", "prepaid", "postpaid", "plan"}},
	{kind: kind(domain.CategoryElectricity), keywords: []string{"bill", "kwh", "unit", "payment", "electricity", "power"}},
}

var labels = map[domain.Category]string{
	domain.CategoryElectricity: "Electricity Bill",
	domain.CategoryWater:       "Water Bill",
	domain.CategoryPhone:       "Phone Recharge",
	domain.CategoryCreditCard:  "Credit Card Payment",
	domain.CategoryInternet:    "Internet Bill",
}

type app struct {
	label    string
	keywords []string
}

var apps = []app{
	{label: "Netflix", keywords: []string{"netflix"}},
	{label: "Amazon Prime Video", keywords: []string{"prime video", "amazon prime", "amazon"}},
	{label: "Hotstar", keywords: []string{"hotstar"}},
	{label: "JioCinema", keywords: []string{"jiocinema", "jio cinema"}},
	{label: "Spotify", keywords: []string{"spotify"}},
	{label: "YouTube", keywords: []string{"youtube"}},
}

var (
	amountPattern = regexp.MustCompile(`(?i)(?:\b(?:rs\.?|inr)|₹)\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
	dayPattern    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s*(?:of\s*)?(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b`)
)

const defaultDueDay = 1

// Extract inspects one message body and returns a candidate bill when the
// message carries a positive amount or a bill category. The candidate has no
// user, id or timestamps; callers fill those in before persisting it.
func Extract(message string) (*domain.Bill, bool) {
	lower := strings.ToLower(message)

	category, _ := categorize(lower)

	amount := extractAmount(message)
	if !amount.IsPositive() && category == domain.CategoryOther {
		return nil, false
	}

	return &domain.Bill{
		Name:               billName(lower, category),
		Amount:             amount,
		DueDay:             extractDueDay(message),
		Category:           category,
		Frequency:          domain.FrequencyMonthly,
		IsActive:           true,
		ReminderDaysBefore: domain.DefaultReminderDaysBefore,
		Source:             domain.SourceSMS,
	}, true
}

// Classify returns the bill category a message would be filed under and
// whether it reads as a one-time-password notice.
func Classify(message string) (domain.Category, bool) {
	return categorize(strings.ToLower(message))
}

func categorize(lower string) (domain.Category, bool) {
	detected, matched := classify(lower)
	switch {
	case detected == kindOTP:
		return domain.CategoryOther, true
	case !matched:
		return domain.CategoryOther, false
	default:
		return domain.Category(detected), false
	}
}

func classify(lower string) (kind, bool) {
	for _, r := range rules {
		for _, keyword := range r.keywords {
			if strings.Contains(lower, keyword) {
				return r.kind, true
			}
		}
	}
	return kind(domain.CategoryOther), false
}

func extractAmount(message string) decimal.Decimal {
	match := amountPattern.FindStringSubmatch(message)
	if match == nil {
		return decimal.Zero
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(match[1], ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return amount
}

func extractDueDay(message string) int {
	match := dayPattern.FindStringSubmatch(message)
	if match == nil {
		return defaultDueDay
	}

	day, err := strconv.Atoi(match[1])
	if err != nil || day < 1 || day > 31 {
		return defaultDueDay
	}
	return day
}

func billName(lower string, category domain.Category) string {
	if category == domain.CategorySubscription {
		for _, a := range apps {
			for _, keyword := range a.keywords {
				if strings.Contains(lower, keyword) {
					return a.label + " Subscription"
				}
			}
		}
		return "Subscription"
	}

	if label, ok := labels[category]; ok {
		return label
	}
	return "Bill"
}
