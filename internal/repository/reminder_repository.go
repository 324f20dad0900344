package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/billsafe/internal/calendar"
	"github.com/Proton-105/billsafe/internal/domain"
)

// ReminderRepository persists bill reminders. Reminder dates are calendar
// dates in the service location.
type ReminderRepository interface {
	// Create inserts r unless the bill already has an unsent reminder, and
	// reports whether a row was written.
	Create(ctx context.Context, r *domain.Reminder) (bool, error)
	ListDue(ctx context.Context, day time.Time) ([]domain.Reminder, error)
	CountDue(ctx context.Context, day time.Time) (int, error)
	// MarkSent flips sent to true only if it is still false and reports
	// whether this call made the transition.
	MarkSent(ctx context.Context, id string, sentAt time.Time) (bool, error)
	RescheduleUnsent(ctx context.Context, billID string, day time.Time) (int64, error)
	ListByBill(ctx context.Context, billID string) ([]domain.Reminder, error)
}

type reminderRepository struct {
	db  *sql.DB
	log *slog.Logger
	loc *time.Location
}

func NewReminderRepository(db *sql.DB, log *slog.Logger, loc *time.Location) ReminderRepository {
	if loc == nil {
		loc = time.UTC
	}

	return &reminderRepository{
		db:  db,
		log: log,
		loc: loc,
	}
}

const reminderColumns = `id, user_id, bill_id, reminder_date, sent, sent_at, created_at`

func (r *reminderRepository) Create(ctx context.Context, reminder *domain.Reminder) (bool, error) {
	created, err := insertReminder(ctx, r.db, reminder)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to create reminder", slog.String("bill_id", reminder.BillID), slog.Any("error", err))
		}
		return false, fmt.Errorf("insert reminder: %w", err)
	}

	return created, nil
}

func (r *reminderRepository) ListDue(ctx context.Context, day time.Time) ([]domain.Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE sent = FALSE AND reminder_date <= $1::date
		ORDER BY reminder_date, created_at
	`

	reminders, err := r.list(ctx, query, day.Format(calendar.DateLayout))
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to list due reminders", slog.Any("error", err))
		}
		return nil, fmt.Errorf("select due reminders: %w", err)
	}

	return reminders, nil
}

func (r *reminderRepository) CountDue(ctx context.Context, day time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM reminders WHERE sent = FALSE AND reminder_date <= $1::date`

	var count int
	if err := r.db.QueryRowContext(ctx, query, day.Format(calendar.DateLayout)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count due reminders: %w", err)
	}

	return count, nil
}

func (r *reminderRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) (bool, error) {
	const query = `UPDATE reminders SET sent = TRUE, sent_at = $2 WHERE id = $1 AND sent = FALSE`

	res, err := r.db.ExecContext(ctx, query, id, sentAt)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to mark reminder sent", slog.String("reminder_id", id), slog.Any("error", err))
		}
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}

	return affected == 1, nil
}

func (r *reminderRepository) RescheduleUnsent(ctx context.Context, billID string, day time.Time) (int64, error) {
	affected, err := rescheduleUnsent(ctx, r.db, billID, day)
	if err != nil {
		return 0, fmt.Errorf("reschedule reminder: %w", err)
	}

	return affected, nil
}

func (r *reminderRepository) ListByBill(ctx context.Context, billID string) ([]domain.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE bill_id = $1 ORDER BY reminder_date`

	reminders, err := r.list(ctx, query, billID)
	if err != nil {
		return nil, fmt.Errorf("select reminders by bill: %w", err)
	}

	return reminders, nil
}

func (r *reminderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []domain.Reminder
	for rows.Next() {
		var (
			reminder domain.Reminder
			sentAt   sql.NullTime
		)
		if err := rows.Scan(
			&reminder.ID,
			&reminder.UserID,
			&reminder.BillID,
			&reminder.ReminderDate,
			&reminder.Sent,
			&sentAt,
			&reminder.CreatedAt,
		); err != nil {
			return nil, err
		}

		reminder.ReminderDate = calendar.DateIn(reminder.ReminderDate, r.loc)
		if sentAt.Valid {
			reminder.SentAt = &sentAt.Time
		}
		reminders = append(reminders, reminder)
	}

	return reminders, rows.Err()
}

func insertReminder(ctx context.Context, q querier, reminder *domain.Reminder) (bool, error) {
	const query = `
		INSERT INTO reminders (id, user_id, bill_id, reminder_date, sent, created_at)
		VALUES ($1, $2, $3, $4::date, FALSE, $5)
		ON CONFLICT (bill_id) WHERE sent = FALSE DO NOTHING
	`

	res, err := q.ExecContext(
		ctx,
		query,
		reminder.ID,
		reminder.UserID,
		reminder.BillID,
		reminder.ReminderDate.Format(calendar.DateLayout),
		reminder.CreatedAt,
	)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

func rescheduleUnsent(ctx context.Context, q querier, billID string, day time.Time) (int64, error) {
	const query = `UPDATE reminders SET reminder_date = $2::date WHERE bill_id = $1 AND sent = FALSE`

	res, err := q.ExecContext(ctx, query, billID, day.Format(calendar.DateLayout))
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
