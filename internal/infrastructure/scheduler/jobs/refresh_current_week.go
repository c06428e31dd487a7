// Package jobs contains the scheduled jobs of the evaluation engine.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/halaqa-hub/evaluation-engine/internal/application/command"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH CURRENT WEEK JOB
// ══════════════════════════════════════════════════════════════════════════════

// RosterRecomputer is satisfied by command.RecomputeRosterHandler.
type RosterRecomputer interface {
	Handle(ctx context.Context, cmd command.RecomputeRosterCommand) (*command.RosterStats, error)
}

// RefreshCurrentWeekJob recomputes every selected student for the week that
// contains "now". Run right after the week boundary it replaces last week's
// snapshot numbers with the new, usually empty, week.
type RefreshCurrentWeekJob struct {
	roster RosterRecomputer
	clock  shared.Clock
	logger *slog.Logger
	config RefreshCurrentWeekConfig

	lastStats atomic.Pointer[command.RosterStats]
}

// RefreshCurrentWeekConfig contains configuration for the job.
type RefreshCurrentWeekConfig struct {
	// Name lets the same job be registered under several schedules.
	Name string

	// HalaqaID limits the refresh to one halaqa. Empty means every active student.
	HalaqaID string

	// Timeout is the maximum duration of one run.
	Timeout time.Duration

	// MaxFailureRate above which the run is reported as failed.
	MaxFailureRate float64
}

// DefaultRefreshCurrentWeekConfig returns sensible defaults.
func DefaultRefreshCurrentWeekConfig() RefreshCurrentWeekConfig {
	return RefreshCurrentWeekConfig{
		Name:           "refresh_current_week",
		Timeout:        30 * time.Minute,
		MaxFailureRate: 0.5,
	}
}

// NewRefreshCurrentWeekJob creates the job.
func NewRefreshCurrentWeekJob(roster RosterRecomputer, clock shared.Clock, log *slog.Logger, config RefreshCurrentWeekConfig) *RefreshCurrentWeekJob {
	defaults := DefaultRefreshCurrentWeekConfig()
	if config.Name == "" {
		config.Name = defaults.Name
	}
	if config.MaxFailureRate <= 0 {
		config.MaxFailureRate = defaults.MaxFailureRate
	}
	if clock == nil {
		clock = shared.SystemClock(nil)
	}

	return &RefreshCurrentWeekJob{
		roster: roster,
		clock:  clock,
		logger: logger.OrDefault(log).With(slog.String("job", config.Name)),
		config: config,
	}
}

// Name returns the job name.
func (j *RefreshCurrentWeekJob) Name() string {
	return j.config.Name
}

// Description returns a human-readable description.
func (j *RefreshCurrentWeekJob) Description() string {
	return "Recomputes the current week for every active student and refreshes their snapshots"
}

// Run executes the job.
func (j *RefreshCurrentWeekJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	now := j.clock.Now()
	log := j.logger.With(logger.RunID(uuid.NewString()), logger.Date("now", now))
	if j.config.HalaqaID != "" {
		log = log.With(logger.HalaqaID(j.config.HalaqaID))
	}
	log.Info("refreshing current week")

	stats, err := j.roster.Handle(ctx, command.RecomputeRosterCommand{
		HalaqaID:      j.config.HalaqaID,
		ReferenceDate: now,
		Now:           now,
	})
	if stats != nil {
		j.lastStats.Store(stats)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", j.config.Name, err)
	}

	log.Info("current week refreshed",
		slog.Int("total", stats.Total),
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("failed", stats.Failed),
		slog.Int("snapshot_updates", stats.SnapshotUpdates),
		logger.Latency(stats.Duration),
	)

	if stats.Total > 0 {
		rate := float64(stats.Failed) / float64(stats.Total)
		if rate > j.config.MaxFailureRate {
			return fmt.Errorf("%s: recompute failed for %d/%d students: %w",
				j.config.Name, stats.Failed, stats.Total, stats.FailureErrors())
		}
	}
	return nil
}

// LastRunStats returns the statistics of the last run, or nil.
func (j *RefreshCurrentWeekJob) LastRunStats() *command.RosterStats {
	return j.lastStats.Load()
}
