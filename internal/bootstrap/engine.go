// Package bootstrap wires configuration, storage and handlers into a ready
// Engine shared by the worker and the recompute CLI.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/halaqa-hub/evaluation-engine/config"
	"github.com/halaqa-hub/evaluation-engine/internal/application/command"
	"github.com/halaqa-hub/evaluation-engine/internal/application/query"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/student"
	"github.com/halaqa-hub/evaluation-engine/internal/infrastructure/lock"
	"github.com/halaqa-hub/evaluation-engine/internal/infrastructure/persistence/postgres"
	"github.com/halaqa-hub/evaluation-engine/internal/infrastructure/persistence/redis"
	"github.com/halaqa-hub/evaluation-engine/pkg/circuitbreaker"
	"github.com/halaqa-hub/evaluation-engine/pkg/logger"
	"github.com/halaqa-hub/evaluation-engine/pkg/timeutil"
)

// Engine holds the wired application handlers.
type Engine struct {
	Config   *config.Config
	Logger   *slog.Logger
	Clock    shared.Clock
	Location *time.Location

	DB    *postgres.Connection
	Cache *redis.Cache

	RecomputeStudent *command.RecomputeStudentStatsHandler
	RecomputeRoster  *command.RecomputeRosterHandler
	StudentSnapshot  *query.GetStudentSnapshotHandler
	Summary          *query.GetEvaluationSummaryHandler

	closers []func() error
}

// NewLogger builds the process logger from cfg and installs it as default.
func NewLogger(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	log, closer := logger.New(logger.Options{
		Level:      cfg.Level,
		Format:     cfg.Format,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
	slog.SetDefault(log)
	return log, closer
}

// PostgresConfig maps the database section to the adapter configuration.
func PostgresConfig(cfg config.DatabaseConfig) postgres.Config {
	pg := postgres.DefaultConfig()
	pg.URL = cfg.URL
	pg.Host = cfg.Host
	pg.Port = cfg.Port
	pg.Database = cfg.Name
	pg.User = cfg.User
	pg.Password = cfg.Password
	pg.SSLMode = cfg.SSLMode
	pg.MaxConns = cfg.MaxConns
	pg.MinConns = cfg.MinConns
	pg.MaxConnLifetime = cfg.MaxConnLifetime
	pg.MaxConnIdleTime = cfg.MaxConnIdleTime
	pg.ConnectTimeout = cfg.ConnectTimeout
	return pg
}

// RedisConfig maps the redis section to the adapter configuration.
func RedisConfig(cfg config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Host
	rc.Port = cfg.Port
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	rc.KeyPrefix = cfg.KeyPrefix
	rc.PoolSize = cfg.PoolSize
	rc.MinIdleConns = cfg.MinIdleConns
	rc.DialTimeout = cfg.DialTimeout
	rc.ReadTimeout = cfg.ReadTimeout
	rc.WriteTimeout = cfg.WriteTimeout
	return rc
}

// Open connects to Postgres, runs migrations when configured, connects to
// Redis when enabled and wires the handlers. A Redis that cannot be reached
// degrades to the in-process lock without a cache.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Engine, error) {
	log = logger.OrDefault(log)
	loc := cfg.App.Location()
	timeutil.SetLocation(loc)

	e := &Engine{
		Config:   cfg,
		Logger:   log,
		Clock:    shared.SystemClock(loc),
		Location: loc,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	conn, err := postgres.NewConnection(ctx, PostgresConfig(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	e.DB = conn
	e.closers = append(e.closers, func() error { conn.Close(); return nil })

	if cfg.Database.MigrateOnStart {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", slog.Any("applied", applied))
	}

	records := postgres.NewRecordRepository(conn, loc)
	evaluations := postgres.NewEvaluationRepository(conn, loc)
	students := postgres.NewStudentRepository(conn, loc)

	// ─────────────────────────────────────────────────────────────────────────
	// REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		snapshotCache student.SnapshotCache
		locker        command.Locker = lock.NewKeyedLocker()
	)
	if cfg.Redis.Enabled {
		cache, err := redis.NewCache(ctx, RedisConfig(cfg.Redis))
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", slog.Any("error", err))
		} else {
			e.Cache = cache
			e.closers = append(e.closers, cache.Close)
			breaker := circuitbreaker.CacheBreaker(redis.IsCacheFailure, func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
			})
			snapshotCache = redis.NewSnapshotCache(cache, breaker)
			locker = redis.NewLocker(cache, cfg.Redis.LockTTL, 0)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	weekly := command.NewWeeklyAggregator(records, evaluations, students, command.WeeklyAggregatorConfig{
		Cache:    snapshotCache,
		CacheTTL: cfg.Evaluation.CacheTTL,
		Logger:   log,
	})
	rollups := command.NewRollupAggregator(evaluations, log)

	e.RecomputeStudent = command.NewRecomputeStudentStatsHandler(weekly, rollups, locker, command.RecomputeStudentStatsConfig{
		RetryAttempts: cfg.Evaluation.RetryAttempts,
		RetryDelay:    cfg.Evaluation.RetryDelay,
		Location:      loc,
		Clock:         e.Clock,
		Logger:        log,
	})
	e.RecomputeRoster = command.NewRecomputeRosterHandler(students, e.RecomputeStudent, cfg.Evaluation.RosterConcurrency, log)
	e.StudentSnapshot = query.NewGetStudentSnapshotHandler(students, snapshotCache, cfg.Evaluation.CacheTTL, e.Clock, log)
	e.Summary = query.NewGetEvaluationSummaryHandler(evaluations, loc)

	return e, nil
}

// Close releases Redis and Postgres in reverse order of acquisition.
func (e *Engine) Close() error {
	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	e.closers = nil
	return first
}
