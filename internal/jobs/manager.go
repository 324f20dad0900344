package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// ErrSweepQueued is returned when a reminder sweep is already queued or running.
var ErrSweepQueued = errors.New("reminder sweep already queued")

// Manager enqueues tasks from request handlers.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	// EnqueueReminderSweep queues an out-of-schedule sweep.
	EnqueueReminderSweep(ctx context.Context, trigger string, timeout time.Duration) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		m.log.WarnContext(ctx, "jobs: enqueue failed", slog.String("task_type", task.Type()), slog.Any("error", err))
		return nil, err
	}

	m.log.InfoContext(ctx, "jobs: task enqueued",
		slog.String("task_type", task.Type()),
		slog.String("task_id", info.ID),
		slog.String("queue", info.Queue),
	)
	return info, nil
}

func (m *manager) EnqueueReminderSweep(ctx context.Context, trigger string, timeout time.Duration) (*asynq.TaskInfo, error) {
	task, err := NewReminderSweepTask(trigger, timeout)
	if err != nil {
		return nil, err
	}

	info, err := m.Enqueue(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil, fmt.Errorf("%w: %v", ErrSweepQueued, err)
	}
	return info, err
}

func (m *manager) Close() error {
	return m.client.Close()
}
