package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/getsentry/sentry-go"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/Proton-105/billsafe/internal/api"
	"github.com/Proton-105/billsafe/internal/bill"
	"github.com/Proton-105/billsafe/internal/calendar"
	"github.com/Proton-105/billsafe/internal/database"
	apperrors "github.com/Proton-105/billsafe/internal/errors"
	"github.com/Proton-105/billsafe/internal/health"
	"github.com/Proton-105/billsafe/internal/i18n"
	"github.com/Proton-105/billsafe/internal/idempotency"
	"github.com/Proton-105/billsafe/internal/jobs"
	"github.com/Proton-105/billsafe/internal/jobs/handlers"
	"github.com/Proton-105/billsafe/internal/lifecycle"
	"github.com/Proton-105/billsafe/internal/notify"
	"github.com/Proton-105/billsafe/internal/ratelimit"
	"github.com/Proton-105/billsafe/internal/reminder"
	"github.com/Proton-105/billsafe/internal/repository"
	"github.com/Proton-105/billsafe/internal/subscription"
	"github.com/Proton-105/billsafe/internal/user"
	"github.com/Proton-105/billsafe/internal/usercache"
	"github.com/Proton-105/billsafe/pkg/config"
	"github.com/Proton-105/billsafe/pkg/graceful"
	"github.com/Proton-105/billsafe/pkg/logger"
	"github.com/Proton-105/billsafe/pkg/metrics"
	appredis "github.com/Proton-105/billsafe/pkg/redis"
)

const pendingInterval = time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("billsafe exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Sentry.Enabled() {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      sentryEnvironment(cfg),
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	appLog := logger.New(cfg.Logger, cfg.Sentry.Enabled())
	defer func() { _ = appLog.Close() }()
	log := appLog.Logger
	slog.SetDefault(log)

	config.Watch(v, func(next *config.Config) {
		if err := appLog.SetLevel(next.Logger.Level); err != nil {
			log.Warn("config reload: log level unchanged", slog.Any("error", err))
			return
		}
		log.Info("config reloaded", slog.String("log_level", next.Logger.Level))
	}, func(err error) {
		log.Warn("config reload rejected", slog.Any("error", err))
	})

	log.Info("starting billsafe",
		slog.String("env", cfg.AppEnv),
		slog.String("addr", cfg.Server.Addr()),
		slog.Bool("push_enabled", cfg.Push.Enabled),
		slog.String("push_driver", cfg.Push.Driver),
	)

	loc, err := cfg.Reminder.Location()
	if err != nil {
		return err
	}
	clock := calendar.SystemClock{}

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error("error closing database", slog.Any("error", cerr))
		}
	}()

	if err := database.NewMigrator(db, log).ApplyEmbedded(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	log.Info("database migrations applied")

	redisClient, err := appredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	cacheClient := appredis.NewMetricsClient(redisClient)
	defer func() { _ = cacheClient.Close() }()

	bills := repository.NewBillRepository(db, log)
	reminders := repository.NewReminderRepository(db, log, loc)
	subs := repository.NewSubscriptionRepository(db, log, loc)
	users := usercache.NewCachedUserRepository(
		repository.NewUserRepository(db, log),
		usercache.NewCache(cacheClient, usercache.DefaultTTL),
		log,
	)

	notifier, err := newNotifier(ctx, cfg.Push, log)
	if err != nil {
		return err
	}
	resilient := notify.NewResilientNotifier(notifier, nil, apperrors.DefaultRetryPolicy)

	idemStore := idempotency.NewRedisStore(redisClient.Client, log)

	messages, err := i18n.Load(i18n.DefaultLang)
	if err != nil {
		return err
	}

	sweep := reminder.NewSweep(reminder.Config{
		Location:        loc,
		DeliveryTimeout: cfg.Reminder.DeliveryTimeout,
		Concurrency:     cfg.Reminder.Concurrency,
		CurrencySymbol:  cfg.Reminder.CurrencySymbol,
		ClaimTTL:        cfg.Reminder.ClaimTTL,
		Messages:        messages.Translator(cfg.Reminder.Language),
	}, reminder.Deps{
		Reminders: reminders,
		Bills:     bills,
		Users:     users,
		Notifier:  resilient,
		Claimer:   idemStore,
		Clock:     clock,
	}, log.With(slog.String("component", "reminder_sweep")))

	redisOpt := cfg.Redis.AsynqOpt()

	worker := jobs.NewWorker(redisOpt, jobs.DefaultQueues(), cfg.Jobs.Concurrency, log)
	worker.RegisterHandler(jobs.TaskTypeReminderSweep, handlers.NewReminderSweepHandler(sweep, log))
	if err := worker.Start(); err != nil {
		return fmt.Errorf("start jobs worker: %w", err)
	}

	var scheduler jobs.Scheduler
	if cfg.Push.Enabled {
		scheduler = jobs.NewScheduler(redisOpt, jobs.SchedulerConfig{
			CronSpec:     cfg.Reminder.CronSpec,
			Location:     loc,
			SweepTimeout: cfg.Reminder.SweepTimeout,
		}, log)
		if err := scheduler.RegisterTasks(); err != nil {
			worker.Shutdown()
			return fmt.Errorf("register scheduled tasks: %w", err)
		}
		scheduler.Run()
	} else {
		log.Warn("push notifications disabled, daily reminder sweep not scheduled")
	}
	taskManager := jobs.NewManager(redisOpt, log)

	memoryLimiter := ratelimit.NewMemoryLimiter(log)
	limiter := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(redisClient.Client, log), memoryLimiter, log)
	rules := ratelimit.NewRules(cfg.RateLimit, "/health", "/livez", "/readyz", "/metrics")

	checker := health.NewChecker(log, 3*time.Second)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(cacheClient))
	if cfg.Push.Enabled {
		checker.AddCheck("push", resilient)
	}
	probes := lifecycle.NewProbes(checker, log)

	errs := apperrors.NewHandler(log, cfg.Sentry.Enabled())

	router := api.NewRouter(api.Deps{
		Users: user.NewService(users, clock, log),
		Bills: bill.NewService(bills, users, bill.Config{
			Location:        loc,
			DefaultLeadDays: cfg.Reminder.DefaultLeadDays,
			Clock:           clock,
		}, log),
		Subscriptions:  subscription.NewService(subs, users, loc, clock, log),
		Jobs:           taskManager,
		Health:         checker,
		Probes:         probes,
		Errors:         errs,
		Limiter:        limiter,
		RateRules:      rules,
		Idempotency:    idempotency.NewManager(idemStore, cfg.Idempotency.LockTTL, log),
		IdempotencyTTL: cfg.Idempotency.TTL,
		AdminToken:     cfg.Server.AdminToken,
		SweepTimeout:   cfg.Reminder.SweepTimeout,
	}, log)

	server := graceful.NewServer(log, &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}, cfg.Server.ShutdownTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		probes.Drain()
		return nil
	})
	g.Go(func() error { return server.ListenAndServe(gctx) })
	g.Go(func() error {
		metrics.NewPendingCollector(reminders, log, pendingInterval, func() time.Time {
			return calendar.StartOfDay(clock.Now(), loc)
		}).Run(gctx)
		return nil
	})
	g.Go(func() error {
		ratelimit.NewCleaner(redisClient.Client, memoryLimiter, log, cfg.RateLimit.CleanupInterval, cfg.RateLimit.Window).Run(gctx)
		return nil
	})
	g.Go(func() error {
		idempotency.NewCleaner(redisClient.Client, log, cfg.Idempotency.CleanupInterval, cfg.Idempotency.TTL).Run(gctx)
		return nil
	})

	serveErr := g.Wait()

	shutdown := lifecycle.NewShutdown(log)
	if scheduler != nil {
		shutdown.Register("scheduler", func(context.Context) error {
			scheduler.Shutdown()
			return nil
		})
	}
	shutdown.Register("jobs_worker", func(context.Context) error {
		worker.Shutdown()
		return nil
	})
	shutdown.Register("jobs_manager", func(context.Context) error {
		return taskManager.Close()
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("billsafe stopped")
	return serveErr
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

func newNotifier(ctx context.Context, cfg config.PushConfig, log *slog.Logger) (notify.Notifier, error) {
	if cfg.Driver == "fcm" {
		n, err := notify.NewFCMNotifier(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return n, nil
	}

	return notify.NewLogNotifier(log), nil
}

func sentryEnvironment(cfg *config.Config) string {
	if cfg.Sentry.Environment != "" {
		return cfg.Sentry.Environment
	}
	return cfg.AppEnv
}
