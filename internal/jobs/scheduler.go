package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

// SchedulerConfig says when the daily sweep fires. CronSpec is evaluated in Location.
type SchedulerConfig struct {
	CronSpec     string
	Location     *time.Location
	SweepTimeout time.Duration
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	cfg            SchedulerConfig
	log            *slog.Logger
}

func NewScheduler(redisOpt asynq.RedisConnOpt, cfg SchedulerConfig, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}

	opts := &asynq.SchedulerOpts{
		Location: cfg.Location,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Warn("scheduler: enqueue failed", slog.Any("error", err))
				return
			}
			log.Info("scheduler: task enqueued", slog.String("task_id", info.ID), slog.String("task_type", info.Type))
		},
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, opts),
		cfg:            cfg,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewReminderSweepTask(TriggerSchedule, s.cfg.SweepTimeout)
	if err != nil {
		return err
	}

	entryID, err := s.asynqScheduler.Register(s.cfg.CronSpec, task)
	if err != nil {
		return fmt.Errorf("register reminder sweep %q: %w", s.cfg.CronSpec, err)
	}

	location := "UTC"
	if s.cfg.Location != nil {
		location = s.cfg.Location.String()
	}

	s.log.InfoContext(context.Background(), "scheduler: registered reminder sweep",
		slog.String("entry_id", entryID),
		slog.String("cron", s.cfg.CronSpec),
		slog.String("location", location),
	)

	return nil
}

func (s *scheduler) Run() {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	if err := s.asynqScheduler.Start(); err != nil {
		s.log.ErrorContext(context.Background(), "scheduler: start failed", slog.Any("error", err))
	}
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")

	s.asynqScheduler.Shutdown()
}
