// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads .env files, then ./configs/<APP_ENV>.yaml, and overlays environment variables.
func Load() (*Config, *viper.Viper, error) {
	for _, file := range []string{".env.local", ".env"} {
		// missing env files are fine outside local development
		_ = godotenv.Load(file)
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	return LoadFile(fmt.Sprintf("./configs/%s.yaml", env), env)
}

// LoadFile reads configuration from path, applies defaults and environment
// overrides (database.host -> DATABASE_HOST), validates it, and returns it
// together with the viper instance for Watch.
func LoadFile(path, env string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	if env != "" {
		cfg.AppEnv = env
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, v, nil
}

// Watch re-reads the config file on change and passes every valid result to onChange.
func Watch(v *viper.Viper, onChange func(*Config), onError func(error)) {
	if v == nil || onChange == nil {
		return
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := decode(v)
		if err == nil {
			err = validate.Struct(cfg)
		}
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload config: %w", err))
			}
			return
		}

		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.admin_token", "")

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.pool_timeout", "4s")
	v.SetDefault("redis.idle_timeout", "5m")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.min_retry_backoff", "8ms")
	v.SetDefault("redis.max_retry_backoff", "512ms")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 28)
	v.SetDefault("logger.compress", true)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.traces_sample_rate", 0.0)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "15m")
	v.SetDefault("rate_limit.cleanup_interval", "5m")

	v.SetDefault("idempotency.ttl", "24h")
	v.SetDefault("idempotency.lock_ttl", "30s")
	v.SetDefault("idempotency.cleanup_interval", "1h")

	v.SetDefault("jobs.concurrency", 10)

	v.SetDefault("reminder.cron_spec", "0 9 * * *")
	v.SetDefault("reminder.timezone", "Asia/Kolkata")
	v.SetDefault("reminder.default_lead_days", 3)
	v.SetDefault("reminder.delivery_timeout", "10s")
	v.SetDefault("reminder.concurrency", 4)
	v.SetDefault("reminder.currency_symbol", "₹")
	v.SetDefault("reminder.claim_ttl", "10m")
	v.SetDefault("reminder.sweep_timeout", "10m")
	v.SetDefault("reminder.language", "en")

	v.SetDefault("push.enabled", false)
	v.SetDefault("push.driver", "log")
	v.SetDefault("push.project_id", "")
	v.SetDefault("push.credentials_file", "")
	v.SetDefault("push.channel_id", "bill_reminders")
}
