package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Proton-105/billsafe/internal/domain"
)

// BillRepository defines persistence operations for bills.
type BillRepository interface {
	// CreateWithReminder stores the bill and its first reminder atomically.
	CreateWithReminder(ctx context.Context, bill *domain.Bill, reminder *domain.Reminder) error
	GetByID(ctx context.Context, id string) (*domain.Bill, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Bill, error)
	ListActiveByUser(ctx context.Context, userID string) ([]domain.Bill, error)
	// Update saves bill and, when nextReminder is set, moves the pending
	// reminder there (creating one if the bill has none pending).
	Update(ctx context.Context, bill *domain.Bill, nextReminder *time.Time) error
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (*domain.Bill, error)
	// Delete removes the bill and its reminders.
	Delete(ctx context.Context, id string) error
}

type billRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewBillRepository creates a new SQL-backed bill repository.
func NewBillRepository(db *sql.DB, log *slog.Logger) BillRepository {
	return &billRepository{
		db:  db,
		log: log,
	}
}

const billColumns = `id, user_id, name, amount, due_day, category, frequency, description, is_active,
	reminder_days_before, last_paid_at, source, created_at, updated_at`

func (r *billRepository) CreateWithReminder(ctx context.Context, bill *domain.Bill, reminder *domain.Reminder) error {
	const query = `
		INSERT INTO bills (id, user_id, name, amount, due_day, category, frequency, description, is_active,
			reminder_days_before, last_paid_at, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	err := inTx(ctx, r.db, r.log, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			query,
			bill.ID,
			bill.UserID,
			bill.Name,
			bill.Amount,
			bill.DueDay,
			bill.Category,
			bill.Frequency,
			bill.Description,
			bill.IsActive,
			bill.ReminderDaysBefore,
			bill.LastPaidAt,
			bill.Source,
			bill.CreatedAt,
			bill.UpdatedAt,
		); err != nil {
			return err
		}

		if reminder == nil {
			return nil
		}

		_, err := insertReminder(ctx, tx, reminder)
		return err
	})
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to create bill", slog.String("user_id", bill.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("insert bill: %w", err)
	}

	return nil
}

func (r *billRepository) GetByID(ctx context.Context, id string) (*domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1`

	bill, err := scanBill(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		if r.log != nil {
			r.log.Error("failed to fetch bill", slog.String("bill_id", id), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select bill by id: %w", err)
	}

	return bill, nil
}

func (r *billRepository) ListByUser(ctx context.Context, userID string) ([]domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE user_id = $1 ORDER BY due_day, name`

	bills, err := r.list(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select bills by user: %w", err)
	}

	return bills, nil
}

func (r *billRepository) ListActiveByUser(ctx context.Context, userID string) ([]domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE user_id = $1 AND is_active = TRUE ORDER BY due_day, name`

	bills, err := r.list(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select active bills by user: %w", err)
	}

	return bills, nil
}

func (r *billRepository) Update(ctx context.Context, bill *domain.Bill, nextReminder *time.Time) error {
	const query = `
		UPDATE bills
		SET name = $2, amount = $3, due_day = $4, category = $5, frequency = $6, description = $7,
		    is_active = $8, reminder_days_before = $9, updated_at = $10
		WHERE id = $1
	`

	err := inTx(ctx, r.db, r.log, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			query,
			bill.ID,
			bill.Name,
			bill.Amount,
			bill.DueDay,
			bill.Category,
			bill.Frequency,
			bill.Description,
			bill.IsActive,
			bill.ReminderDaysBefore,
			bill.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if err := expectOne(res); err != nil {
			return err
		}

		if nextReminder == nil {
			return nil
		}

		moved, err := rescheduleUnsent(ctx, tx, bill.ID, *nextReminder)
		if err != nil || moved > 0 {
			return err
		}

		_, err = insertReminder(ctx, tx, &domain.Reminder{
			ID:           uuid.NewString(),
			UserID:       bill.UserID,
			BillID:       bill.ID,
			ReminderDate: *nextReminder,
			CreatedAt:    bill.UpdatedAt,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}

		if r.log != nil {
			r.log.Error("failed to update bill", slog.String("bill_id", bill.ID), slog.Any("error", err))
		}
		return fmt.Errorf("update bill: %w", err)
	}

	return nil
}

func (r *billRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) (*domain.Bill, error) {
	query := `UPDATE bills SET last_paid_at = $2, updated_at = $2 WHERE id = $1 RETURNING ` + billColumns

	bill, err := scanBill(r.db.QueryRowContext(ctx, query, id, paidAt))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		if r.log != nil {
			r.log.Error("failed to mark bill paid", slog.String("bill_id", id), slog.Any("error", err))
		}
		return nil, fmt.Errorf("mark bill paid: %w", err)
	}

	return bill, nil
}

func (r *billRepository) Delete(ctx context.Context, id string) error {
	err := inTx(ctx, r.db, r.log, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE bill_id = $1`, id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM bills WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return expectOne(res)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}

		if r.log != nil {
			r.log.Error("failed to delete bill", slog.String("bill_id", id), slog.Any("error", err))
		}
		return fmt.Errorf("delete bill: %w", err)
	}

	return nil
}

func (r *billRepository) list(ctx context.Context, query string, args ...any) ([]domain.Bill, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []domain.Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, *bill)
	}

	return bills, rows.Err()
}

func scanBill(row rowScanner) (*domain.Bill, error) {
	var (
		bill       domain.Bill
		lastPaidAt sql.NullTime
	)
	if err := row.Scan(
		&bill.ID,
		&bill.UserID,
		&bill.Name,
		&bill.Amount,
		&bill.DueDay,
		&bill.Category,
		&bill.Frequency,
		&bill.Description,
		&bill.IsActive,
		&bill.ReminderDaysBefore,
		&lastPaidAt,
		&bill.Source,
		&bill.CreatedAt,
		&bill.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if lastPaidAt.Valid {
		bill.LastPaidAt = &lastPaidAt.Time
	}

	return &bill, nil
}
