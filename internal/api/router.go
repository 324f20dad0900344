// Package api exposes the services over a JSON REST API.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/billsafe/internal/bill"
	"github.com/Proton-105/billsafe/internal/domain"
	apperrors "github.com/Proton-105/billsafe/internal/errors"
	"github.com/Proton-105/billsafe/internal/health"
	"github.com/Proton-105/billsafe/internal/idempotency"
	"github.com/Proton-105/billsafe/internal/lifecycle"
	"github.com/Proton-105/billsafe/internal/middleware"
	"github.com/Proton-105/billsafe/internal/ratelimit"
	"github.com/Proton-105/billsafe/internal/subscription"
	"github.com/Proton-105/billsafe/internal/user"
	"github.com/Proton-105/billsafe/pkg/logger"
)

type UserService interface {
	Upsert(ctx context.Context, uid string, in user.UpsertInput) (*domain.User, error)
	Get(ctx context.Context, uid string) (*domain.User, error)
	SetNotifications(ctx context.Context, uid string, enabled bool) (*domain.User, error)
}

type BillService interface {
	Create(ctx context.Context, userID string, in bill.NewBill) (*domain.Bill, error)
	IngestSMS(ctx context.Context, userID, message string) (*domain.Bill, error)
	Get(ctx context.Context, id string) (*domain.Bill, error)
	List(ctx context.Context, userID string) ([]domain.Bill, error)
	ListActive(ctx context.Context, userID string) ([]domain.Bill, error)
	Update(ctx context.Context, id string, patch bill.Patch) (*domain.Bill, error)
	Delete(ctx context.Context, id string) error
	MarkPaid(ctx context.Context, id string) (*domain.Bill, error)
	Stats(ctx context.Context, userID string) (*bill.Stats, error)
}

type SubscriptionService interface {
	Create(ctx context.Context, userID string, in subscription.Input) (*domain.Subscription, error)
	ListActive(ctx context.Context, userID string) ([]domain.Subscription, error)
	ListUnused(ctx context.Context, userID string) ([]domain.Subscription, error)
	Update(ctx context.Context, id string, patch subscription.Patch) (*domain.Subscription, error)
	Cancel(ctx context.Context, id string) (*domain.Subscription, error)
}

// TaskEnqueuer is satisfied by jobs.Manager.
type TaskEnqueuer interface {
	EnqueueReminderSweep(ctx context.Context, trigger string, timeout time.Duration) (*asynq.TaskInfo, error)
}

type HealthReporter interface {
	Check(ctx context.Context) health.Report
}

// Deps are the collaborators of the API. Limiter, Idempotency, Jobs and
// Health may be nil; the features they back are then left out.
type Deps struct {
	Users         UserService
	Bills         BillService
	Subscriptions SubscriptionService
	Jobs          TaskEnqueuer
	Health        HealthReporter
	Probes        lifecycle.HealthChecker
	Errors        *apperrors.Handler

	Limiter        ratelimit.Limiter
	RateRules      *ratelimit.Rules
	Idempotency    idempotency.Manager
	IdempotencyTTL time.Duration

	AdminToken   string
	SweepTimeout time.Duration
}

type API struct {
	deps Deps
	errs *apperrors.Handler
	log  *slog.Logger
}

// NewRouter builds the HTTP handler with its middleware chain.
func NewRouter(deps Deps, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	errs := deps.Errors
	if errs == nil {
		errs = apperrors.NewHandler(log, false)
	}
	a := &API{deps: deps, errs: errs, log: log}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logger.Middleware)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Metrics)
	r.Use(middleware.RateLimit(deps.Limiter, deps.RateRules, log))

	r.Get("/health", a.health)
	r.Get("/livez", a.livez)
	r.Get("/readyz", a.readyz)
	r.Handle("/metrics", promhttp.Handler())

	idempotent := middleware.Idempotency(deps.Idempotency, deps.IdempotencyTTL, log)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users/{uid}", func(r chi.Router) {
			r.Post("/", a.upsertUser)
			r.Get("/", a.getUser)
			r.Get("/stats", a.userStats)
			r.Put("/notifications", a.setNotifications)
		})

		// {id} is the user's uid on collection routes and the bill id on
		// item routes.
		r.Route("/bills", func(r chi.Router) {
			r.With(idempotent).Post("/{id}/create", a.createBill)
			r.With(idempotent).Post("/{id}/sms", a.ingestSMS)
			r.Get("/{id}/all", a.listBills)
			r.Get("/{id}/active", a.listActiveBills)
			r.Get("/{id}", a.getBill)
			r.Put("/{id}", a.updateBill)
			r.Delete("/{id}", a.deleteBill)
			r.Put("/{id}/mark-paid", a.markBillPaid)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.With(idempotent).Post("/{id}/create", a.createSubscription)
			r.Get("/{id}/active", a.listActiveSubscriptions)
			r.Get("/{id}/unused", a.listUnusedSubscriptions)
			r.Put("/{id}", a.updateSubscription)
			r.Put("/{id}/cancel", a.cancelSubscription)
		})

		if deps.AdminToken != "" && deps.Jobs != nil {
			r.With(requireToken(deps.AdminToken)).Post("/admin/reminders/sweep", a.enqueueSweep)
		}
	})

	return r
}
