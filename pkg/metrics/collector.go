package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_sweep_runs_total",
			Help: "Total number of reminder sweeps labeled by result",
		},
		[]string{"result"},
	)
	sweepDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reminder_sweep_duration_seconds",
			Help:    "Duration of reminder sweeps in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)
	remindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_processed_total",
			Help: "Total number of due reminders processed labeled by outcome",
		},
		[]string{"outcome"},
	)
	smsExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_extractions_total",
			Help: "Total number of SMS bodies run through the extractor labeled by category and result",
		},
		[]string{"category", "result"},
	)
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests labeled by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	rateLimitChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_checks_total",
			Help: "Total number of rate limit checks labeled by backend and result",
		},
		[]string{"backend", "result"},
	)
	rateLimitBackendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_backend_errors_total",
			Help: "Total number of failed rate limit checks labeled by backend",
		},
		[]string{"backend"},
	)
	pendingReminders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminders_pending",
			Help: "Current number of unsent reminders due today or earlier",
		},
	)
)

// RecordSweep records one finished sweep run.
func RecordSweep(result string, duration time.Duration) {
	if result == "" {
		result = "unknown"
	}

	sweepRunsTotal.WithLabelValues(result).Inc()
	sweepDurationSeconds.Observe(duration.Seconds())
}

// RecordReminders adds count reminders to the outcome counter.
func RecordReminders(outcome string, count int) {
	if count <= 0 {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}

	remindersTotal.WithLabelValues(outcome).Add(float64(count))
}

// RecordSMSExtraction counts one extractor run.
func RecordSMSExtraction(category string, accepted bool) {
	if category == "" {
		category = "unknown"
	}

	result := "rejected"
	if accepted {
		result = "accepted"
	}

	smsExtractionsTotal.WithLabelValues(category, result).Inc()
}

// RecordHTTPRequest counts a served request by its route pattern.
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}

	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// RecordRateLimit counts one limiter decision.
func RecordRateLimit(backend string, allowed bool) {
	result := "rejected"
	if allowed {
		result = "allowed"
	}

	rateLimitChecksTotal.WithLabelValues(backend, result).Inc()
}

func RecordRateLimitBackendError(backend string) {
	rateLimitBackendErrorsTotal.WithLabelValues(backend).Inc()
}

// SetPendingReminders updates the backlog gauge.
func SetPendingReminders(count int) {
	pendingReminders.Set(float64(count))
}

// PendingCounter reports how many unsent reminders are due at or before day.
type PendingCounter interface {
	CountDue(ctx context.Context, day time.Time) (int, error)
}

// PendingCollector periodically publishes the due-reminder backlog.
type PendingCollector struct {
	counter  PendingCounter
	log      *slog.Logger
	interval time.Duration
	today    func() time.Time
}

// NewPendingCollector builds a collector; today returns the current calendar day.
func NewPendingCollector(counter PendingCounter, log *slog.Logger, interval time.Duration, today func() time.Time) *PendingCollector {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}

	return &PendingCollector{
		counter:  counter,
		log:      log,
		interval: interval,
		today:    today,
	}
}

// Run polls the backlog every interval until ctx is cancelled.
func (c *PendingCollector) Run(ctx context.Context) {
	if c == nil || c.counter == nil || c.today == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.collect(ctx); err != nil {
			c.log.Warn("failed to collect pending reminders", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *PendingCollector) collect(ctx context.Context) error {
	count, err := c.counter.CountDue(ctx, c.today())
	if err != nil {
		return err
	}

	SetPendingReminders(count)
	return nil
}
