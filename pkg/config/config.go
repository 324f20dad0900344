package config

import (
	"fmt"
	"time"

	appredis "github.com/Proton-105/billsafe/pkg/redis"
)

// Config holds runtime configuration for the BillSafe service.
type Config struct {
	AppEnv      string            `mapstructure:"app_env" validate:"required,oneof=development staging production test"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       appredis.Config   `mapstructure:"redis"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Reminder    ReminderConfig    `mapstructure:"reminder"`
	Push        PushConfig        `mapstructure:"push"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// AdminToken guards the admin routes; they are not mounted when empty.
	AdminToken string `mapstructure:"admin_token"`
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return ":" + c.Port
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host" validate:"required_without=URL"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user" validate:"required_without=URL"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name" validate:"required_without=URL"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string, preferring an explicit URL.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

type SentryConfig struct {
	DSN              string  `mapstructure:"dsn"`
	Environment      string  `mapstructure:"environment"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate" validate:"gte=0,lte=1"`
}

// Enabled reports whether errors should be forwarded to Sentry.
func (c SentryConfig) Enabled() bool {
	return c.DSN != ""
}

type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Requests        int           `mapstructure:"requests" validate:"gt=0"`
	Window          time.Duration `mapstructure:"window" validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type IdempotencyConfig struct {
	TTL             time.Duration `mapstructure:"ttl" validate:"gt=0"`
	LockTTL         time.Duration `mapstructure:"lock_ttl" validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type JobsConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"gt=0"`
}

type ReminderConfig struct {
	CronSpec        string        `mapstructure:"cron_spec" validate:"required"`
	Timezone        string        `mapstructure:"timezone" validate:"required"`
	DefaultLeadDays int           `mapstructure:"default_lead_days" validate:"gte=0,lte=27"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout" validate:"gt=0"`
	Concurrency     int           `mapstructure:"concurrency" validate:"gt=0"`
	CurrencySymbol  string        `mapstructure:"currency_symbol"`
	ClaimTTL        time.Duration `mapstructure:"claim_ttl" validate:"gt=0"`
	SweepTimeout    time.Duration `mapstructure:"sweep_timeout" validate:"gt=0"`
	Language        string        `mapstructure:"language"`
}

// Location resolves the configured IANA timezone.
func (c ReminderConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}

	return loc, nil
}

type PushConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Driver          string `mapstructure:"driver" validate:"oneof=fcm log"`
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file" validate:"required_if=Driver fcm"`
	ChannelID       string `mapstructure:"channel_id"`
}
