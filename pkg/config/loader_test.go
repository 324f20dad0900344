package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  user: billsafe
  name: billsafe
reminder:
  timezone: Asia/Kolkata
  concurrency: 8
push:
  enabled: true
  driver: log
`)
	t.Setenv("SERVER_PORT", "9090")

	cfg, v, err := LoadFile(path, "test")
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, ":9090", cfg.Server.Addr())
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Contains(t, cfg.Database.DSN(), "dbname=billsafe")
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	assert.Equal(t, 8, cfg.Reminder.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Reminder.DeliveryTimeout)
	assert.Equal(t, "0 9 * * *", cfg.Reminder.CronSpec)
	assert.Equal(t, "₹", cfg.Reminder.CurrencySymbol)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.True(t, cfg.Push.Enabled)
	assert.False(t, cfg.Sentry.Enabled())

	loc, err := cfg.Reminder.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoadFileDatabaseURL(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://billsafe@localhost/billsafe?sslmode=disable
`)

	cfg, _, err := LoadFile(path, "test")
	require.NoError(t, err)
	assert.Equal(t, "postgres://billsafe@localhost/billsafe?sslmode=disable", cfg.Database.DSN())
}

func TestLoadFileValidation(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{
			name: "missing database",
			body: "server:\n  port: \"8080\"\n",
		},
		{
			name: "fcm without credentials",
			body: "database:\n  host: h\n  user: u\n  name: n\npush:\n  driver: fcm\n",
		},
		{
			name: "lead days out of range",
			body: "database:\n  host: h\n  user: u\n  name: n\nreminder:\n  default_lead_days: 40\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := LoadFile(writeConfig(t, tc.body), "test")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validate config")
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestReminderLocationInvalid(t *testing.T) {
	_, err := ReminderConfig{Timezone: "Mars/Olympus"}.Location()
	require.Error(t, err)
}
