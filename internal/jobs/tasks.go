package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TaskTypeReminderSweep = "reminder:sweep"

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// DefaultQueues weights the queues processed by the worker.
func DefaultQueues() map[string]int {
	return map[string]int{
		QueueCritical: 6,
		QueueDefault:  3,
		QueueLow:      1,
	}
}

type ReminderSweepPayload struct {
	Trigger string `json:"trigger"`
}

// NewReminderSweepTask builds a sweep task. The task is unique per trigger
// for the duration of timeout, so a double-fired cron tick or a repeated
// manual request while a sweep is queued or running is dropped by asynq.
func NewReminderSweepTask(trigger string, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(ReminderSweepPayload{Trigger: trigger})
	if err != nil {
		return nil, fmt.Errorf("encode reminder sweep payload: %w", err)
	}

	return asynq.NewTask(
		TaskTypeReminderSweep,
		payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(3),
		asynq.Timeout(timeout),
		asynq.Unique(timeout),
	), nil
}
