package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/billsafe/internal/jobs"
	"github.com/Proton-105/billsafe/internal/reminder"
	"github.com/Proton-105/billsafe/pkg/logger"
)

// Sweeper runs one reminder sweep.
type Sweeper interface {
	Run(ctx context.Context) (reminder.Summary, error)
}

type ReminderSweepHandler struct {
	sweeper Sweeper
	log     *slog.Logger
}

func NewReminderSweepHandler(sweeper Sweeper, log *slog.Logger) *ReminderSweepHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ReminderSweepHandler{sweeper: sweeper, log: log}
}

// ProcessTask runs the sweep. A failed sweep is returned to asynq for retry;
// an undecodable payload is not retried.
func (h *ReminderSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.ReminderSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "reminder sweep: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode reminder sweep payload: %v: %w", err, asynq.SkipRetry)
	}

	if taskID, ok := asynq.GetTaskID(ctx); ok {
		ctx = logger.WithCorrelationID(ctx, taskID)
	}

	summary, err := h.sweeper.Run(ctx)
	if err != nil {
		return fmt.Errorf("reminder sweep: %w", err)
	}

	h.log.InfoContext(ctx, "reminder sweep task done",
		slog.String("trigger", payload.Trigger),
		slog.Int("sent", summary.Sent),
		slog.Int("failed", summary.Failed),
	)
	return nil
}
