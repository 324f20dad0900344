// Package bill implements bill management on top of the repositories.
package bill

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Proton-105/billsafe/internal/calendar"
	"github.com/Proton-105/billsafe/internal/domain"
	apperrors "github.com/Proton-105/billsafe/internal/errors"
	"github.com/Proton-105/billsafe/internal/repository"
	"github.com/Proton-105/billsafe/internal/smsparse"
	"github.com/Proton-105/billsafe/pkg/metrics"
)

// ErrNotABill is returned by IngestSMS for messages that carry no bill.
var ErrNotABill = errors.New("message does not describe a bill")

// UserLookup resolves the owner of a bill.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

type Config struct {
	Location        *time.Location
	DefaultLeadDays int
	Clock           calendar.Clock
}

// NewBill is the create payload. A nil ReminderDaysBefore takes the configured
// default lead time; zero asks for a reminder on the due day.
type NewBill struct {
	domain.Bill
	ReminderDaysBefore *int `json:"reminderDaysBefore"`
}

// Patch lists the fields an update may change. Nil fields are left as they are.
type Patch struct {
	Name               *string          `json:"billName"`
	Amount             *decimal.Decimal `json:"amount"`
	DueDay             *int             `json:"dueDate"`
	Category           *string          `json:"category"`
	Frequency          *string          `json:"frequency"`
	Description        *string          `json:"description"`
	IsActive           *bool            `json:"isActive"`
	ReminderDaysBefore *int             `json:"reminderDaysBefore"`
}

// Stats summarizes a user's active bills.
type Stats struct {
	TotalBills     int                     `json:"totalBills"`
	MonthlyExpense decimal.Decimal         `json:"monthlyExpense"`
	Categories     map[domain.Category]int `json:"categories"`
}

type Service struct {
	bills repository.BillRepository
	users UserLookup
	cfg   Config
	log   *slog.Logger
}

func NewService(bills repository.BillRepository, users UserLookup, cfg Config, log *slog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultLeadDays <= 0 {
		cfg.DefaultLeadDays = domain.DefaultReminderDaysBefore
	}
	if cfg.Clock == nil {
		cfg.Clock = calendar.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{bills: bills, users: users, cfg: cfg, log: log}
}

// Create stores a new active bill for userID together with its first reminder.
func (s *Service) Create(ctx context.Context, userID string, in NewBill) (*domain.Bill, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, s.wrap("create.find_user", "user", err)
	}

	now := s.cfg.Clock.Now()
	bill := in.Bill
	bill.ID = uuid.NewString()
	bill.UserID = userID
	bill.IsActive = true
	bill.LastPaidAt = nil
	bill.CreatedAt = now
	bill.UpdatedAt = now
	bill.ReminderDaysBefore = s.cfg.DefaultLeadDays
	if in.ReminderDaysBefore != nil {
		bill.ReminderDaysBefore = *in.ReminderDaysBefore
	}
	bill.Normalize()

	if err := bill.Validate(); err != nil {
		return nil, apperrors.WrapValidation(err)
	}

	reminder := &domain.Reminder{
		ID:           uuid.NewString(),
		UserID:       userID,
		BillID:       bill.ID,
		ReminderDate: calendar.NextReminderDate(now, bill.DueDay, bill.ReminderDaysBefore, s.cfg.Location),
		CreatedAt:    now,
	}

	if err := s.bills.CreateWithReminder(ctx, &bill, reminder); err != nil {
		return nil, s.wrap("create", "bill", err)
	}

	s.log.InfoContext(ctx, "bill created",
		slog.String("bill_id", bill.ID),
		slog.String("user_id", userID),
		slog.String("source", string(bill.Source)),
		slog.String("reminder_date", reminder.ReminderDate.Format(calendar.DateLayout)),
	)
	return &bill, nil
}

// IngestSMS turns an SMS body into a bill for userID.
func (s *Service) IngestSMS(ctx context.Context, userID, message string) (*domain.Bill, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperrors.NewValidationError("message is required")
	}

	candidate, ok := smsparse.Extract(message)
	if !ok {
		category, otp := smsparse.Classify(message)
		if otp {
			metrics.RecordSMSExtraction("otp", false)
		} else {
			metrics.RecordSMSExtraction(string(category), false)
		}
		return nil, apperrors.WrapValidation(ErrNotABill)
	}

	candidate.Source = domain.SourceSMS
	bill, err := s.Create(ctx, userID, NewBill{Bill: *candidate, ReminderDaysBefore: &candidate.ReminderDaysBefore})
	if err != nil {
		return nil, err
	}

	metrics.RecordSMSExtraction(string(bill.Category), true)
	return bill, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Bill, error) {
	bill, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, s.wrap("get", "bill", err)
	}
	return bill, nil
}

// List returns every bill of userID, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Bill, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, s.wrap("list.find_user", "user", err)
	}

	bills, err := s.bills.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.wrap("list", "bill", err)
	}
	return bills, nil
}

// ListActive returns the active bills of userID ordered by due day.
func (s *Service) ListActive(ctx context.Context, userID string) ([]domain.Bill, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, s.wrap("list_active.find_user", "user", err)
	}

	bills, err := s.bills.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, s.wrap("list_active", "bill", err)
	}
	return bills, nil
}

// Update applies patch. When the due day or lead time changes, or the bill
// is reactivated, the pending reminder is moved to the new schedule.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*domain.Bill, error) {
	bill, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, s.wrap("update.get", "bill", err)
	}

	before := *bill
	applyPatch(bill, patch)
	bill.Normalize()
	bill.UpdatedAt = s.cfg.Clock.Now()

	if err := bill.Validate(); err != nil {
		return nil, apperrors.WrapValidation(err)
	}

	var next *time.Time
	if bill.IsActive && (bill.DueDay != before.DueDay ||
		bill.ReminderDaysBefore != before.ReminderDaysBefore ||
		!before.IsActive) {
		date := calendar.NextReminderDate(bill.UpdatedAt, bill.DueDay, bill.ReminderDaysBefore, s.cfg.Location)
		next = &date
	}

	if err := s.bills.Update(ctx, bill, next); err != nil {
		return nil, s.wrap("update", "bill", err)
	}

	if next != nil {
		s.log.InfoContext(ctx, "bill reminder rescheduled",
			slog.String("bill_id", bill.ID),
			slog.String("reminder_date", next.Format(calendar.DateLayout)),
		)
	}
	return bill, nil
}

// Delete removes the bill with its reminders.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.bills.Delete(ctx, id); err != nil {
		return s.wrap("delete", "bill", err)
	}

	s.log.InfoContext(ctx, "bill deleted", slog.String("bill_id", id))
	return nil
}

func (s *Service) MarkPaid(ctx context.Context, id string) (*domain.Bill, error) {
	bill, err := s.bills.MarkPaid(ctx, id, s.cfg.Clock.Now())
	if err != nil {
		return nil, s.wrap("mark_paid", "bill", err)
	}
	return bill, nil
}

// Stats counts active bills per category and sums the monthly ones.
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	bills, err := s.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalBills:     len(bills),
		MonthlyExpense: decimal.Zero,
		Categories:     make(map[domain.Category]int),
	}
	for _, b := range bills {
		stats.Categories[b.Category]++
		if b.Frequency == domain.FrequencyMonthly {
			stats.MonthlyExpense = stats.MonthlyExpense.Add(b.Amount)
		}
	}

	return stats, nil
}

func applyPatch(bill *domain.Bill, p Patch) {
	if p.Name != nil {
		bill.Name = *p.Name
	}
	if p.Amount != nil {
		bill.Amount = *p.Amount
	}
	if p.DueDay != nil {
		bill.DueDay = *p.DueDay
	}
	if p.Category != nil {
		bill.Category = domain.Category(*p.Category)
	}
	if p.Frequency != nil {
		bill.Frequency = domain.Frequency(*p.Frequency)
	}
	if p.Description != nil {
		bill.Description = *p.Description
	}
	if p.IsActive != nil {
		bill.IsActive = *p.IsActive
	}
	if p.ReminderDaysBefore != nil {
		bill.ReminderDaysBefore = *p.ReminderDaysBefore
	}
}

func (s *Service) wrap(operation, entity string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(entity, err)
	}

	s.log.Error("bill service operation failed", slog.String("operation", operation), slog.Any("error", err))
	return apperrors.NewDatabaseError(err)
}
