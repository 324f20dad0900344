package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/billsafe/internal/domain"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	// Relink moves a user and everything it owns to a new auth uid.
	Relink(ctx context.Context, oldID, newID string) error
}

type userRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewUserRepository creates a new SQL-backed user repository.
func NewUserRepository(db *sql.DB, log *slog.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log,
	}
}

const userColumns = `id, email, name, phone, push_token, notifications_enabled, currency, created_at, updated_at`

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		if r.log != nil {
			r.log.Error("failed to fetch user by id", slog.String("user_id", id), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select user by id: %w", err)
	}

	return user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		if r.log != nil {
			r.log.Error("failed to fetch user by email", slog.Any("error", err))
		}
		return nil, fmt.Errorf("select user by email: %w", err)
	}

	return user, nil
}

// Create persists a new user record in the database.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
		INSERT INTO users (id, email, name, phone, push_token, notifications_enabled, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.Name,
		user.Phone,
		user.PushToken,
		user.NotificationsEnabled,
		user.Currency,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to create user", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
		UPDATE users
		SET email = $2, name = $3, phone = $4, push_token = $5,
		    notifications_enabled = $6, currency = $7, updated_at = $8
		WHERE id = $1
	`

	res, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.Name,
		user.Phone,
		user.PushToken,
		user.NotificationsEnabled,
		user.Currency,
		user.UpdatedAt,
	)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to update user", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		return fmt.Errorf("update user: %w", err)
	}

	return expectOne(res)
}

// Relink relies on ON UPDATE CASCADE to carry bills, reminders and subscriptions along.
func (r *userRepository) Relink(ctx context.Context, oldID, newID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET id = $2, updated_at = NOW() WHERE id = $1`, oldID, newID)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to relink user",
				slog.String("old_user_id", oldID),
				slog.String("user_id", newID),
				slog.Any("error", err),
			)
		}
		return fmt.Errorf("relink user: %w", err)
	}

	return expectOne(res)
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.PushToken,
		&user.NotificationsEnabled,
		&user.Currency,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &user, nil
}
