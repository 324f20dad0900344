package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/billsafe/internal/calendar"
	"github.com/Proton-105/billsafe/internal/domain"
)

// SubscriptionRepository defines persistence operations for tracked subscriptions.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *domain.Subscription) error
	GetByID(ctx context.Context, id string) (*domain.Subscription, error)
	ListActive(ctx context.Context, userID string) ([]domain.Subscription, error)
	// ListUnused returns active, unused subscriptions not used since cutoff.
	ListUnused(ctx context.Context, userID string, cutoff time.Time) ([]domain.Subscription, error)
	Update(ctx context.Context, sub *domain.Subscription) error
	Cancel(ctx context.Context, id string) (*domain.Subscription, error)
}

type subscriptionRepository struct {
	db  *sql.DB
	log *slog.Logger
	loc *time.Location
}

func NewSubscriptionRepository(db *sql.DB, log *slog.Logger, loc *time.Location) SubscriptionRepository {
	if loc == nil {
		loc = time.UTC
	}

	return &subscriptionRepository{
		db:  db,
		log: log,
		loc: loc,
	}
}

const subscriptionColumns = `id, user_id, app_name, amount, billing_cycle, start_date, renewal_date, status,
	is_used, last_used_at, payment_method, created_at`

func (r *subscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	const query = `
		INSERT INTO subscriptions (id, user_id, app_name, amount, billing_cycle, start_date, renewal_date,
			status, is_used, last_used_at, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7::date, $8, $9, $10, $11, $12)
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		sub.ID,
		sub.UserID,
		sub.AppName,
		sub.Amount,
		sub.BillingCycle,
		sub.StartDate.Format(calendar.DateLayout),
		sub.RenewalDate.Format(calendar.DateLayout),
		sub.Status,
		sub.IsUsed,
		sub.LastUsedAt,
		sub.PaymentMethod,
		sub.CreatedAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to create subscription", slog.String("user_id", sub.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("insert subscription: %w", err)
	}

	return nil
}

func (r *subscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	sub, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("select subscription by id: %w", err)
	}

	return sub, nil
}

func (r *subscriptionRepository) ListActive(ctx context.Context, userID string) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY renewal_date`

	subs, err := r.list(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select active subscriptions: %w", err)
	}

	return subs, nil
}

func (r *subscriptionRepository) ListUnused(ctx context.Context, userID string, cutoff time.Time) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active' AND is_used = FALSE
		  AND (last_used_at IS NULL OR last_used_at < $2)
		ORDER BY renewal_date`

	subs, err := r.list(ctx, query, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("select unused subscriptions: %w", err)
	}

	return subs, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	const query = `
		UPDATE subscriptions
		SET app_name = $2, amount = $3, billing_cycle = $4, renewal_date = $5::date, status = $6,
		    is_used = $7, last_used_at = $8, payment_method = $9
		WHERE id = $1
	`

	res, err := r.db.ExecContext(
		ctx,
		query,
		sub.ID,
		sub.AppName,
		sub.Amount,
		sub.BillingCycle,
		sub.RenewalDate.Format(calendar.DateLayout),
		sub.Status,
		sub.IsUsed,
		sub.LastUsedAt,
		sub.PaymentMethod,
	)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to update subscription", slog.String("subscription_id", sub.ID), slog.Any("error", err))
		}
		return fmt.Errorf("update subscription: %w", err)
	}

	return expectOne(res)
}

func (r *subscriptionRepository) Cancel(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `UPDATE subscriptions SET status = 'cancelled' WHERE id = $1 RETURNING ` + subscriptionColumns

	sub, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}

	return sub, nil
}

func (r *subscriptionRepository) list(ctx context.Context, query string, args ...any) ([]domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}

	return subs, rows.Err()
}

func (r *subscriptionRepository) scan(row rowScanner) (*domain.Subscription, error) {
	var (
		sub        domain.Subscription
		lastUsedAt sql.NullTime
	)
	if err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.AppName,
		&sub.Amount,
		&sub.BillingCycle,
		&sub.StartDate,
		&sub.RenewalDate,
		&sub.Status,
		&sub.IsUsed,
		&lastUsedAt,
		&sub.PaymentMethod,
		&sub.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	sub.StartDate = calendar.DateIn(sub.StartDate, r.loc)
	sub.RenewalDate = calendar.DateIn(sub.RenewalDate, r.loc)
	if lastUsedAt.Valid {
		sub.LastUsedAt = &lastUsedAt.Time
	}

	return &sub, nil
}
