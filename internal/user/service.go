// Package user manages user profiles keyed by the auth provider's uid.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Proton-105/billsafe/internal/calendar"
	"github.com/Proton-105/billsafe/internal/domain"
	apperrors "github.com/Proton-105/billsafe/internal/errors"
	"github.com/Proton-105/billsafe/internal/repository"
)

const defaultCurrency = "INR"

var validate = validator.New()

// UpsertInput is the profile sent by the client after sign-in. Nil name or
// phone and an empty push token keep the stored values.
type UpsertInput struct {
	Email     string  `json:"email" validate:"required,email"`
	Name      *string `json:"name" validate:"omitempty,max=200"`
	Phone     *string `json:"phoneNumber" validate:"omitempty,max=32"`
	PushToken string  `json:"fcmToken"`
}

// Service provides business operations over users.
type Service struct {
	repo  repository.UserRepository
	clock calendar.Clock
	log   *slog.Logger
}

// NewService constructs a Service. repo should be the cached repository so
// writes drop stale cache entries.
func NewService(repo repository.UserRepository, clock calendar.Clock, log *slog.Logger) *Service {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, clock: clock, log: log}
}

// Upsert creates the user or updates it. A user known under the same email
// but another uid is moved to uid first, which happens when the auth
// provider issues a new uid for an existing account.
func (s *Service) Upsert(ctx context.Context, uid string, in UpsertInput) (*domain.User, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, apperrors.NewValidationError("uid is required")
	}
	in.Email = strings.TrimSpace(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, apperrors.WrapValidation(err)
	}

	user, err := s.findForUpsert(ctx, uid, in.Email)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if user == nil {
		user = &domain.User{
			ID:                   uid,
			Email:                in.Email,
			Name:                 deref(in.Name),
			Phone:                deref(in.Phone),
			PushToken:            in.PushToken,
			NotificationsEnabled: true,
			Currency:             defaultCurrency,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := s.repo.Create(ctx, user); err != nil {
			return nil, s.wrap("upsert.create", uid, err)
		}
		s.logUpsert(ctx, "created", user)
		return user, nil
	}

	user.Email = in.Email
	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Phone != nil {
		user.Phone = *in.Phone
	}
	if in.PushToken != "" {
		user.PushToken = in.PushToken
	}
	user.UpdatedAt = now

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, s.wrap("upsert.update", uid, err)
	}
	s.logUpsert(ctx, "updated", user)
	return user, nil
}

// findForUpsert returns the user to update, relinked to uid when it was
// found by email, or nil when a new user must be created.
func (s *Service) findForUpsert(ctx context.Context, uid, email string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, uid)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, s.wrap("upsert.find", uid, err)
	}

	user, err = s.repo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("upsert.find_by_email", uid, err)
	}

	if err := s.repo.Relink(ctx, user.ID, uid); err != nil {
		return nil, s.wrap("upsert.relink", uid, fmt.Errorf("relink %s: %w", user.ID, err))
	}
	s.log.InfoContext(ctx, "user relinked to new uid", slog.String("old_user_id", user.ID), slog.String("user_id", uid))

	user.ID = uid
	return user, nil
}

func (s *Service) Get(ctx context.Context, uid string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, uid)
	if err != nil {
		return nil, s.wrap("get", uid, err)
	}
	return user, nil
}

// SetNotifications turns reminder delivery on or off for the user.
func (s *Service) SetNotifications(ctx context.Context, uid string, enabled bool) (*domain.User, error) {
	user, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	user.NotificationsEnabled = enabled
	user.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, s.wrap("set_notifications", uid, err)
	}
	return user, nil
}

func (s *Service) logUpsert(ctx context.Context, action string, user *domain.User) {
	s.log.InfoContext(ctx, "user "+action,
		slog.String("user_id", user.ID),
		slog.Bool("has_push_token", user.HasPushToken()),
	)
}

func (s *Service) wrap(operation, uid string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError("user", err)
	}

	s.log.Error("user service operation failed",
		slog.String("operation", operation),
		slog.String("user_id", uid),
		slog.Any("error", err),
	)
	return apperrors.NewDatabaseError(err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
