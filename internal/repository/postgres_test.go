package repository

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/billsafe/internal/calendar"
	"github.com/Proton-105/billsafe/internal/database"
	"github.com/Proton-105/billsafe/internal/domain"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openTestDB connects to BILLSAFE_TEST_DATABASE_URL and applies the schema.
// Tests that need it are skipped when the variable is not set.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("BILLSAFE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BILLSAFE_TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, testLogger()).ApplyEmbedded(context.Background()))
	return db
}

func seedUser(t *testing.T, repo UserRepository) *domain.User {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	user := &domain.User{
		ID:                   "uid-" + uuid.NewString(),
		Email:                uuid.NewString() + "@example.com",
		Name:                 "Asha",
		PushToken:            "token-1",
		NotificationsEnabled: true,
		Currency:             "INR",
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestReminderLifecyclePostgres(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	users := NewUserRepository(db, testLogger())
	bills := NewBillRepository(db, testLogger())
	reminders := NewReminderRepository(db, testLogger(), ist)

	user := seedUser(t, users)
	now := time.Now().UTC().Truncate(time.Second)
	today := calendar.StartOfDay(now, ist)

	bill := &domain.Bill{
		ID:                 uuid.NewString(),
		UserID:             user.ID,
		Name:               "Electricity Bill",
		Amount:             decimal.RequireFromString("1540.50"),
		DueDay:             10,
		Category:           domain.CategoryElectricity,
		Frequency:          domain.FrequencyMonthly,
		IsActive:           true,
		ReminderDaysBefore: 3,
		Source:             domain.SourceSMS,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	first := &domain.Reminder{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		BillID:       bill.ID,
		ReminderDate: today,
		CreatedAt:    now,
	}
	require.NoError(t, bills.CreateWithReminder(ctx, bill, first))

	stored, err := bills.GetByID(ctx, bill.ID)
	require.NoError(t, err)
	assert.True(t, bill.Amount.Equal(stored.Amount))
	assert.Equal(t, domain.SourceSMS, stored.Source)

	due, err := reminders.ListDue(ctx, today)
	require.NoError(t, err)
	var found bool
	for _, r := range due {
		if r.ID == first.ID {
			found = true
			assert.True(t, r.ReminderDate.Equal(today))
		}
	}
	assert.True(t, found)

	created, err := reminders.Create(ctx, &domain.Reminder{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		BillID:       bill.ID,
		ReminderDate: today.AddDate(0, 1, 0),
		CreatedAt:    now,
	})
	require.NoError(t, err)
	assert.False(t, created, "second unsent reminder must be rejected")

	marked, err := reminders.MarkSent(ctx, first.ID, now)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = reminders.MarkSent(ctx, first.ID, now)
	require.NoError(t, err)
	assert.False(t, marked)

	created, err = reminders.Create(ctx, &domain.Reminder{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		BillID:       bill.ID,
		ReminderDate: today.AddDate(0, 1, 0),
		CreatedAt:    now,
	})
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, bills.Delete(ctx, bill.ID))
	_, err = bills.GetByID(ctx, bill.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	left, err := reminders.ListByBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	assert.ErrorIs(t, bills.Delete(ctx, bill.ID), ErrNotFound)
}

func TestUserRelinkPostgres(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	users := NewUserRepository(db, testLogger())
	user := seedUser(t, users)

	newID := "uid-" + uuid.NewString()
	require.NoError(t, users.Relink(ctx, user.ID, newID))

	_, err := users.FindByID(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	moved, err := users.FindByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, newID, moved.ID)
	assert.Equal(t, "token-1", moved.PushToken)
}
