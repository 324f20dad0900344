// Package reminder runs the daily sweep that delivers due bill reminders.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Proton-105/billsafe/internal/calendar"
	"github.com/Proton-105/billsafe/internal/domain"
	"github.com/Proton-105/billsafe/internal/i18n"
	"github.com/Proton-105/billsafe/internal/notify"
	"github.com/Proton-105/billsafe/internal/repository"
	"github.com/Proton-105/billsafe/pkg/logger"
	"github.com/Proton-105/billsafe/pkg/metrics"
)

// ReminderStore is the reminder persistence used by the sweep.
type ReminderStore interface {
	ListDue(ctx context.Context, day time.Time) ([]domain.Reminder, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) (bool, error)
	Create(ctx context.Context, r *domain.Reminder) (bool, error)
}

type BillStore interface {
	GetByID(ctx context.Context, id string) (*domain.Bill, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// Claimer takes short-lived exclusive claims on reminders so overlapping
// sweeps do not deliver the same reminder twice.
type Claimer interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Outcome is the result of processing one due reminder.
type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeFailed      Outcome = "failed"
	OutcomeOrphaned    Outcome = "orphaned"
	OutcomeInFlight    Outcome = "in_flight"
	OutcomeAlreadySent Outcome = "already_sent"
)

// Summary counts what one sweep did with the reminders it found due.
type Summary struct {
	Due         int `json:"due"`
	Sent        int `json:"sent"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	Orphaned    int `json:"orphaned"`
	InFlight    int `json:"inFlight"`
	AlreadySent int `json:"alreadySent"`
}

func (s *Summary) add(o Outcome) {
	switch o {
	case OutcomeSent:
		s.Sent++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	case OutcomeOrphaned:
		s.Orphaned++
	case OutcomeInFlight:
		s.InFlight++
	case OutcomeAlreadySent:
		s.AlreadySent++
	}
}

type Config struct {
	Location        *time.Location
	DeliveryTimeout time.Duration
	Concurrency     int
	CurrencySymbol  string
	ClaimTTL        time.Duration
	// Messages renders notification texts. The English catalog is used when nil.
	Messages i18n.Translator
}

// Deps are the collaborators of a Sweep. Claimer and Clock are optional.
type Deps struct {
	Reminders ReminderStore
	Bills     BillStore
	Users     UserStore
	Notifier  notify.Notifier
	Claimer   Claimer
	Clock     calendar.Clock
}

type Sweep struct {
	cfg       Config
	reminders ReminderStore
	bills     BillStore
	users     UserStore
	notifier  notify.Notifier
	claimer   Claimer
	clock     calendar.Clock
	log       *slog.Logger
}

func NewSweep(cfg Config, deps Deps, log *slog.Logger) *Sweep {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 10 * time.Minute
	}
	if cfg.Messages == nil {
		cfg.Messages = i18n.MustDefault().Translator(i18n.DefaultLang)
	}
	if deps.Clock == nil {
		deps.Clock = calendar.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Sweep{
		cfg:       cfg,
		reminders: deps.Reminders,
		bills:     deps.Bills,
		users:     deps.Users,
		notifier:  deps.Notifier,
		claimer:   deps.Claimer,
		clock:     deps.Clock,
		log:       log,
	}
}

// Run delivers every unsent reminder due today or earlier. Only a failure to
// list due reminders fails the run; per-reminder problems are counted in the
// Summary and the reminder stays unsent for the next run.
func (s *Sweep) Run(ctx context.Context) (Summary, error) {
	start := s.clock.Now()
	today := calendar.StartOfDay(start, s.cfg.Location)

	log := s.log.With(slog.String("today", today.Format(calendar.DateLayout)))
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		log = log.With(slog.String("correlation_id", correlationID))
	}

	due, err := s.reminders.ListDue(ctx, today)
	if err != nil {
		metrics.RecordSweep("error", time.Since(start))
		log.Error("reminder sweep aborted", slog.Any("error", err))
		return Summary{}, fmt.Errorf("list due reminders: %w", err)
	}

	summary := Summary{Due: len(due)}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)

	for _, r := range due {
		r := r
		g.Go(func() error {
			outcome := s.deliver(ctx, log, r, today)

			mu.Lock()
			summary.add(outcome)
			mu.Unlock()

			return nil
		})
	}
	_ = g.Wait()

	recordSummary(summary)
	metrics.RecordSweep("ok", time.Since(start))

	log.Info("reminder sweep finished",
		slog.Int("due", summary.Due),
		slog.Int("sent", summary.Sent),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Int("orphaned", summary.Orphaned),
		slog.Int("in_flight", summary.InFlight),
		slog.Int("already_sent", summary.AlreadySent),
		slog.Duration("elapsed", time.Since(start)),
	)

	return summary, nil
}

func (s *Sweep) deliver(ctx context.Context, log *slog.Logger, r domain.Reminder, today time.Time) Outcome {
	log = log.With(slog.String("reminder_id", r.ID), slog.String("bill_id", r.BillID))

	bill, err := s.bills.GetByID(ctx, r.BillID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("reminder refers to a missing bill")
			return OutcomeOrphaned
		}
		log.Error("failed to load bill", slog.Any("error", err))
		return OutcomeFailed
	}
	if !bill.IsActive {
		log.Debug("bill is inactive, reminder skipped")
		return OutcomeSkipped
	}

	user, err := s.users.FindByID(ctx, r.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("reminder refers to a missing user", slog.String("user_id", r.UserID))
			return OutcomeOrphaned
		}
		log.Error("failed to load user", slog.Any("error", err))
		return OutcomeFailed
	}
	if !user.CanReceivePush() {
		log.Debug("user cannot receive push, reminder skipped", slog.String("user_id", r.UserID))
		return OutcomeSkipped
	}

	if s.claimer != nil {
		claimed, err := s.claimer.Lock(ctx, claimKey(r.ID), s.cfg.ClaimTTL)
		if err != nil {
			log.Error("failed to claim reminder", slog.Any("error", err))
			return OutcomeFailed
		}
		if !claimed {
			log.Info("reminder is being delivered by another sweep")
			return OutcomeInFlight
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	err = s.notifier.Send(sendCtx, s.notification(bill, user))
	cancel()
	if err != nil {
		log.Warn("reminder delivery failed", slog.Any("error", err))
		s.release(ctx, log, r.ID)
		return OutcomeFailed
	}

	// the claim is kept until it expires so a sweep that listed this
	// reminder before it was marked cannot send it again
	marked, err := s.reminders.MarkSent(ctx, r.ID, s.clock.Now())
	if err != nil {
		log.Error("reminder delivered but not marked sent", slog.Any("error", err))
		return OutcomeFailed
	}
	if !marked {
		log.Info("reminder was already marked sent")
		return OutcomeAlreadySent
	}

	s.scheduleNext(ctx, log, r, bill, today)
	return OutcomeSent
}

func (s *Sweep) notification(bill *domain.Bill, user *domain.User) notify.Notification {
	amount := bill.Amount.String()

	return notify.Notification{
		Token: user.PushToken,
		Title: s.cfg.Messages.Format("reminder.title", map[string]string{"name": bill.Name}),
		Body: s.cfg.Messages.Format("reminder.body", map[string]string{
			"symbol": s.cfg.CurrencySymbol,
			"amount": amount,
			"day":    strconv.Itoa(bill.DueDay),
		}),
		Data: map[string]string{
			"billId": bill.ID,
			"amount": amount,
		},
	}
}

// scheduleNext queues the reminder for the following billing period of a
// recurring bill. Reminders that were overdue for more than a period roll
// forward to the first cycle after today.
func (s *Sweep) scheduleNext(ctx context.Context, log *slog.Logger, r domain.Reminder, bill *domain.Bill, today time.Time) {
	next, ok := calendar.NextCycleReminderDate(r.ReminderDate, bill.DueDay, bill.ReminderDaysBefore, bill.Frequency, s.cfg.Location)
	if !ok {
		return
	}
	if !next.After(today) {
		next = calendar.NextReminderDate(today.AddDate(0, 0, 1), bill.DueDay, bill.ReminderDaysBefore, s.cfg.Location)
	}

	created, err := s.reminders.Create(ctx, &domain.Reminder{
		ID:           uuid.NewString(),
		UserID:       r.UserID,
		BillID:       r.BillID,
		ReminderDate: next,
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		log.Error("failed to schedule next reminder", slog.Any("error", err))
		return
	}
	if created {
		log.Debug("next reminder scheduled", slog.String("reminder_date", next.Format(calendar.DateLayout)))
	}
}

func (s *Sweep) release(ctx context.Context, log *slog.Logger, reminderID string) {
	if s.claimer == nil {
		return
	}
	if err := s.claimer.ReleaseLock(ctx, claimKey(reminderID)); err != nil {
		log.Warn("failed to release reminder claim", slog.Any("error", err))
	}
}

func claimKey(reminderID string) string {
	return "reminder:" + reminderID
}

func recordSummary(s Summary) {
	metrics.RecordReminders(string(OutcomeSent), s.Sent)
	metrics.RecordReminders(string(OutcomeSkipped), s.Skipped)
	metrics.RecordReminders(string(OutcomeFailed), s.Failed)
	metrics.RecordReminders(string(OutcomeOrphaned), s.Orphaned)
	metrics.RecordReminders(string(OutcomeInFlight), s.InFlight)
	metrics.RecordReminders(string(OutcomeAlreadySent), s.AlreadySent)
}
