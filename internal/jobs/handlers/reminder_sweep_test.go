package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/billsafe/internal/jobs"
	"github.com/Proton-105/billsafe/internal/reminder"
)

type mockSweeper struct {
	mock.Mock
}

func (m *mockSweeper) Run(ctx context.Context) (reminder.Summary, error) {
	args := m.Called(ctx)
	return args.Get(0).(reminder.Summary), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReminderSweepHandler(t *testing.T) {
	task, err := jobs.NewReminderSweepTask(jobs.TriggerSchedule, time.Minute)
	require.NoError(t, err)

	t.Run("runs the sweep", func(t *testing.T) {
		sweeper := new(mockSweeper)
		sweeper.On("Run", mock.Anything).Return(reminder.Summary{Due: 2, Sent: 2}, nil).Once()

		h := NewReminderSweepHandler(sweeper, testLogger())
		require.NoError(t, h.ProcessTask(context.Background(), task))
		sweeper.AssertExpectations(t)
	})

	t.Run("returns sweep failures for retry", func(t *testing.T) {
		sweeper := new(mockSweeper)
		sweeper.On("Run", mock.Anything).Return(reminder.Summary{}, errors.New("db down")).Once()

		h := NewReminderSweepHandler(sweeper, testLogger())
		err := h.ProcessTask(context.Background(), task)
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("skips retry on bad payload", func(t *testing.T) {
		sweeper := new(mockSweeper)

		h := NewReminderSweepHandler(sweeper, testLogger())
		err := h.ProcessTask(context.Background(), asynq.NewTask(jobs.TaskTypeReminderSweep, []byte("{")))
		require.Error(t, err)
		assert.ErrorIs(t, err, asynq.SkipRetry)
		sweeper.AssertNotCalled(t, "Run", mock.Anything)
	})
}
