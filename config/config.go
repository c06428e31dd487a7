// Package config loads the evaluation engine configuration from an optional
// YAML file and HALAQA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// EnvPrefix prefixes every environment override, e.g. HALAQA_DATABASE_URL.
const EnvPrefix = "HALAQA"

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Log        LogConfig        `mapstructure:"log"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string      `mapstructure:"name"`
	Environment Environment `mapstructure:"environment"`

	// Timezone in which weeks, months and years are bucketed.
	Timezone string `mapstructure:"timezone"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Location resolves Timezone. Validate guarantees it loads.
func (a AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL wins over the individual fields when set.
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`

	MigrateOnStart bool `mapstructure:"migrate_on_start"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	// Enabled turns on the snapshot cache and the distributed lock.
	// Without Redis the worker uses an in-process lock and no cache.
	Enabled bool `mapstructure:"enabled"`

	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`

	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// EvaluationConfig tunes the recompute pipeline.
type EvaluationConfig struct {
	RosterConcurrency int           `mapstructure:"roster_concurrency"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	TickInterval time.Duration `mapstructure:"tick_interval"`

	// RefreshSchedule drives the week-rollover refresh: "@weekstart+5m",
	// "@every 1h" or a 5-field cron expression.
	RefreshSchedule string        `mapstructure:"refresh_schedule"`
	RefreshTimeout  time.Duration `mapstructure:"refresh_timeout"`

	// SweepSchedule, when set, recomputes the current week again on its own
	// schedule to pick up records whose recompute was missed.
	SweepSchedule string `mapstructure:"sweep_schedule"`

	// HalaqaID limits scheduled jobs to one halaqa.
	HalaqaID string `mapstructure:"halaqa_id"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "halaqa-evaluation-engine")
	v.SetDefault("app.environment", string(EnvDevelopment))
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("app.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "halaqa")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("database.migrate_on_start", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "halaqa:")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.lock_ttl", 30*time.Second)

	v.SetDefault("evaluation.roster_concurrency", 8)
	v.SetDefault("evaluation.retry_attempts", 3)
	v.SetDefault("evaluation.retry_delay", 50*time.Millisecond)
	v.SetDefault("evaluation.cache_ttl", 24*time.Hour)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.tick_interval", time.Second)
	v.SetDefault("scheduler.refresh_schedule", "@weekstart+5m")
	v.SetDefault("scheduler.refresh_timeout", 30*time.Minute)
	v.SetDefault("scheduler.sweep_schedule", "")
	v.SetDefault("scheduler.halaqa_id", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}

// Load reads path (skipped when empty), applies HALAQA_* overrides and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("app.timezone: %w", err))
	}

	if c.App.Environment == EnvProduction && c.Database.URL == "" && c.Database.Password == "" {
		errs = append(errs, errors.New("database: url or password is required in production"))
	}
	if c.Database.MaxConns <= 0 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, errors.New("database: need 0 <= min_conns <= max_conns and max_conns > 0"))
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		errs = append(errs, errors.New("redis.host: must be specified when redis is enabled"))
	}

	if c.Evaluation.RosterConcurrency <= 0 {
		errs = append(errs, errors.New("evaluation.roster_concurrency: must be positive"))
	}
	if c.Evaluation.RetryAttempts <= 0 {
		errs = append(errs, errors.New("evaluation.retry_attempts: must be positive"))
	}
	if c.Evaluation.CacheTTL <= 0 {
		errs = append(errs, errors.New("evaluation.cache_ttl: must be positive"))
	}

	if c.Scheduler.Enabled && c.Scheduler.RefreshSchedule == "" {
		errs = append(errs, errors.New("scheduler.refresh_schedule: must be specified"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}
