package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appredis "github.com/Proton-105/billsafe/pkg/redis"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckerReport(t *testing.T) {
	c := NewChecker(testLogger(), time.Second)
	c.AddCheck("database", CheckFunc(func(context.Context) error { return nil }))
	c.AddCheck("push", CheckFunc(func(context.Context) error { return errors.New("circuit open") }))
	c.AddCheck("", CheckFunc(func(context.Context) error { return nil }))

	report := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, map[string]string{"database": StatusOK, "push": "circuit open"}, report.Components)
	assert.Equal(t, []string{"database", "push"}, c.Names())

	err := c.Healthy(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push")
}

func TestCheckerAppliesTimeout(t *testing.T) {
	c := NewChecker(testLogger(), 20*time.Millisecond)
	c.AddCheck("slow", CheckFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	report := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), report.Components["slow"])
}

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := appredis.NewMetricsClient(&appredis.Client{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()})})
	t.Cleanup(func() { _ = client.Close() })

	checker := NewRedisChecker(client)
	assert.NoError(t, checker.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, checker.HealthCheck(context.Background()))

	assert.Error(t, NewRedisChecker(nil).HealthCheck(context.Background()))
	assert.Error(t, NewDBChecker(nil).HealthCheck(context.Background()))
}
