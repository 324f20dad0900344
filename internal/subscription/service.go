// Package subscription tracks paid app subscriptions and flags unused ones.
package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Proton-105/billsafe/internal/calendar"
	"github.com/Proton-105/billsafe/internal/domain"
	apperrors "github.com/Proton-105/billsafe/internal/errors"
	"github.com/Proton-105/billsafe/internal/repository"
)

// UnusedAfter is how long an unused subscription may go without use before
// it is reported.
const UnusedAfter = 30 * 24 * time.Hour

var validate = validator.New(validator.WithRequiredStructEnabled())

type UserLookup interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// Input describes a new subscription. Dates are YYYY-MM-DD.
type Input struct {
	AppName       string          `json:"appName" validate:"required,max=200"`
	Amount        decimal.Decimal `json:"amount"`
	BillingCycle  string          `json:"billingCycle"`
	StartDate     string          `json:"startDate"`
	RenewalDate   string          `json:"renewalDate" validate:"required"`
	PaymentMethod string          `json:"paymentMethod" validate:"max=100"`
}

// Patch lists the fields an update may change.
type Patch struct {
	AppName       *string          `json:"appName"`
	Amount        *decimal.Decimal `json:"amount"`
	BillingCycle  *string          `json:"billingCycle"`
	RenewalDate   *string          `json:"renewalDate"`
	Status        *string          `json:"status"`
	IsUsed        *bool            `json:"isUsed"`
	LastUsedDate  *string          `json:"lastUsedDate"`
	PaymentMethod *string          `json:"paymentMethod"`
}

type Service struct {
	subs  repository.SubscriptionRepository
	users UserLookup
	loc   *time.Location
	clock calendar.Clock
	log   *slog.Logger
}

func NewService(subs repository.SubscriptionRepository, users UserLookup, loc *time.Location, clock calendar.Clock, log *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{subs: subs, users: users, loc: loc, clock: clock, log: log}
}

func (s *Service) Create(ctx context.Context, userID string, in Input) (*domain.Subscription, error) {
	if err := validate.Struct(in); err != nil {
		return nil, apperrors.WrapValidation(err)
	}
	if in.Amount.IsNegative() {
		return nil, apperrors.NewValidationError("amount must not be negative")
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, s.wrap("create.find_user", "user", err)
	}

	now := s.clock.Now()
	start := calendar.StartOfDay(now, s.loc)
	if in.StartDate != "" {
		parsed, err := calendar.ParseDate(in.StartDate, s.loc)
		if err != nil {
			return nil, apperrors.WrapValidation(err)
		}
		start = parsed
	}
	renewal, err := calendar.ParseDate(in.RenewalDate, s.loc)
	if err != nil {
		return nil, apperrors.WrapValidation(err)
	}
	if renewal.Before(start) {
		return nil, apperrors.NewValidationError("renewal date must not precede the start date")
	}

	sub := &domain.Subscription{
		ID:            uuid.NewString(),
		UserID:        userID,
		AppName:       in.AppName,
		Amount:        in.Amount,
		BillingCycle:  domain.ParseFrequency(in.BillingCycle),
		StartDate:     start,
		RenewalDate:   renewal,
		Status:        domain.SubscriptionActive,
		IsUsed:        true,
		PaymentMethod: in.PaymentMethod,
		CreatedAt:     now,
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, s.wrap("create", "subscription", err)
	}
	return sub, nil
}

// ListActive returns active subscriptions ordered by renewal date.
func (s *Service) ListActive(ctx context.Context, userID string) ([]domain.Subscription, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, s.wrap("list_active.find_user", "user", err)
	}

	subs, err := s.subs.ListActive(ctx, userID)
	if err != nil {
		return nil, s.wrap("list_active", "subscription", err)
	}
	return subs, nil
}

// ListUnused returns active subscriptions marked unused and not used in the
// last 30 days.
func (s *Service) ListUnused(ctx context.Context, userID string) ([]domain.Subscription, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, s.wrap("list_unused.find_user", "user", err)
	}

	subs, err := s.subs.ListUnused(ctx, userID, s.clock.Now().Add(-UnusedAfter))
	if err != nil {
		return nil, s.wrap("list_unused", "subscription", err)
	}
	return subs, nil
}

func (s *Service) Update(ctx context.Context, id string, patch Patch) (*domain.Subscription, error) {
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, s.wrap("update.get", "subscription", err)
	}

	if err := s.apply(sub, patch); err != nil {
		return nil, apperrors.WrapValidation(err)
	}

	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, s.wrap("update", "subscription", err)
	}
	return sub, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (*domain.Subscription, error) {
	sub, err := s.subs.Cancel(ctx, id)
	if err != nil {
		return nil, s.wrap("cancel", "subscription", err)
	}

	s.log.InfoContext(ctx, "subscription cancelled", slog.String("subscription_id", id))
	return sub, nil
}

func (s *Service) apply(sub *domain.Subscription, p Patch) error {
	if p.AppName != nil {
		if *p.AppName == "" {
			return errors.New("app name must not be empty")
		}
		sub.AppName = *p.AppName
	}
	if p.Amount != nil {
		if p.Amount.IsNegative() {
			return errors.New("amount must not be negative")
		}
		sub.Amount = *p.Amount
	}
	if p.BillingCycle != nil {
		sub.BillingCycle = domain.ParseFrequency(*p.BillingCycle)
	}
	if p.RenewalDate != nil {
		renewal, err := calendar.ParseDate(*p.RenewalDate, s.loc)
		if err != nil {
			return err
		}
		sub.RenewalDate = renewal
	}
	if p.Status != nil {
		sub.Status = domain.ParseSubscriptionStatus(*p.Status)
	}
	if p.IsUsed != nil {
		sub.IsUsed = *p.IsUsed
	}
	if p.LastUsedDate != nil {
		lastUsed, err := calendar.ParseDate(*p.LastUsedDate, s.loc)
		if err != nil {
			return err
		}
		sub.LastUsedAt = &lastUsed
	}
	if p.PaymentMethod != nil {
		sub.PaymentMethod = *p.PaymentMethod
	}
	return nil
}

func (s *Service) wrap(operation, entity string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(entity, err)
	}

	s.log.Error("subscription service operation failed", slog.String("operation", operation), slog.Any("error", err))
	return apperrors.NewDatabaseError(err)
}
