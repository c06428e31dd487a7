// Package main is the entry point of the evaluation worker.
//
// The worker keeps evaluations fresh in the background:
//   - applies database migrations
//   - refreshes every student's current-week snapshot at the week boundary
//   - optionally sweeps the roster on its own schedule
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/halaqa-hub/evaluation-engine/config"
	"github.com/halaqa-hub/evaluation-engine/internal/bootstrap"
	"github.com/halaqa-hub/evaluation-engine/internal/infrastructure/scheduler"
	"github.com/halaqa-hub/evaluation-engine/internal/infrastructure/scheduler/jobs"
)

func main() {
	configPath := flag.String("config", os.Getenv("HALAQA_CONFIG"), "path to a YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, logCloser := bootstrap.NewLogger(cfg.Log)
	defer logCloser.Close()

	log.Info("starting evaluation worker",
		slog.String("env", string(cfg.App.Environment)),
		slog.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORAGE & HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	engine, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing connections")
		if err := engine.Close(); err != nil {
			log.Error("failed to close connections", slog.Any("error", err))
		}
	}()

	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:       log,
		Clock:        engine.Clock,
		TickInterval: cfg.Scheduler.TickInterval,
	})

	refreshSchedule, err := scheduler.ParseSchedule(cfg.Scheduler.RefreshSchedule, engine.Location)
	if err != nil {
		return fmt.Errorf("scheduler.refresh_schedule: %w", err)
	}
	refresh := jobs.NewRefreshCurrentWeekJob(engine.RecomputeRoster, engine.Clock, log, jobs.RefreshCurrentWeekConfig{
		HalaqaID: cfg.Scheduler.HalaqaID,
		Timeout:  cfg.Scheduler.RefreshTimeout,
	})
	if err := sched.Register(refresh, refreshSchedule); err != nil {
		return err
	}

	if cfg.Scheduler.SweepSchedule != "" {
		sweepSchedule, err := scheduler.ParseSchedule(cfg.Scheduler.SweepSchedule, engine.Location)
		if err != nil {
			return fmt.Errorf("scheduler.sweep_schedule: %w", err)
		}
		sweep := jobs.NewRefreshCurrentWeekJob(engine.RecomputeRoster, engine.Clock, log, jobs.RefreshCurrentWeekConfig{
			Name:     "roster_sweep",
			HalaqaID: cfg.Scheduler.HalaqaID,
			Timeout:  cfg.Scheduler.RefreshTimeout,
		})
		if err := sched.Register(sweep, sweepSchedule); err != nil {
			return err
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("evaluation worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("received shutdown signal, stopping scheduler", slog.String("timeout", cfg.App.ShutdownTimeout.String()))

	done := make(chan error, 1)
	go func() { done <- sched.Stop() }()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to stop scheduler: %w", err)
		}
	case <-timeoutCtx.Done():
		return fmt.Errorf("shutdown timed out after %s", cfg.App.ShutdownTimeout)
	}

	log.Info("shutdown completed successfully")
	return nil
}
