// Package notify delivers push notifications to user devices.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/Proton-105/billsafe/internal/errors"
)

// ErrInvalidToken reports that the gateway rejected the device token for good.
var ErrInvalidToken = errors.New("push token is invalid or unregistered")

// Notification is one push message addressed to a single device.
type Notification struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Notifier sends a single notification. Delivery is best-effort.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// ResilientNotifier retries transient gateway failures and stops calling the
// gateway while it keeps failing. Rejected tokens are neither retried nor
// counted against the gateway.
type ResilientNotifier struct {
	next    Notifier
	breaker *apperrors.CircuitBreaker
	policy  apperrors.RetryPolicy
}

func NewResilientNotifier(next Notifier, breaker *apperrors.CircuitBreaker, policy apperrors.RetryPolicy) *ResilientNotifier {
	if breaker == nil {
		breaker = apperrors.NewCircuitBreaker(apperrors.DefaultBreakerConfig)
	}

	return &ResilientNotifier{
		next:    next,
		breaker: breaker,
		policy:  policy,
	}
}

func (r *ResilientNotifier) Send(ctx context.Context, n Notification) error {
	return apperrors.WithRetryPolicy(ctx, r.policy, func() error {
		return r.breaker.CallCounting(func() error {
			return r.next.Send(ctx, n)
		}, countsAgainstGateway)
	})
}

// HealthCheck fails while the breaker is open.
func (r *ResilientNotifier) HealthCheck(_ context.Context) error {
	if state := r.breaker.State(); state == apperrors.StateOpen {
		return fmt.Errorf("push gateway unavailable: circuit %s", state)
	}
	return nil
}

func countsAgainstGateway(err error) bool {
	return !errors.Is(err, ErrInvalidToken) &&
		!errors.Is(err, context.Canceled)
}

// LogNotifier only logs what it would send. It backs the "log" push driver.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, note Notification) error {
	if note.Token == "" {
		return apperrors.NewPermanentExternalAPIError("push", ErrInvalidToken)
	}

	n.log.InfoContext(ctx, "push notification (dry run)",
		slog.String("title", note.Title),
		slog.String("body", note.Body),
		slog.Any("data", note.Data),
	)
	return nil
}
