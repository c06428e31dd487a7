package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/evaluation"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/pkg/logger"
	"github.com/halaqa-hub/evaluation-engine/pkg/retry"
	"github.com/halaqa-hub/evaluation-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE STUDENT STATS COMMAND
// Runs weekly -> monthly -> yearly for one student after a record changed.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeStudentStatsCommand identifies the student and the date of the
// record that changed.
type RecomputeStudentStatsCommand struct {
	StudentID string

	// ReferenceDate selects the week, month and year to recompute.
	ReferenceDate time.Time

	// Now decides whether the snapshot is refreshed. Zero means the handler's clock.
	Now time.Time
}

// Validate validates the command and returns the normalised student id.
func (c RecomputeStudentStatsCommand) Validate() (string, error) {
	id, err := shared.ParseStudentID(c.StudentID)
	if err != nil {
		return "", err
	}
	if c.ReferenceDate.IsZero() {
		return "", shared.ErrZeroReferenceDate
	}
	return id, nil
}

// Stage names one step of the pipeline.
type Stage string

const (
	StageWeekly  Stage = "weekly"
	StageMonthly Stage = "monthly"
	StageYearly  Stage = "yearly"
)

// StageError reports the stage that failed. Stages before it stay committed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("recompute_student_stats: stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// RecomputeStudentStatsResult holds what each completed stage produced.
// Monthly and Yearly are nil when the stage found no weekly rows.
type RecomputeStudentStatsResult struct {
	StudentID       string
	WeekStart       time.Time
	Weekly          *evaluation.WeeklyEvaluation
	Monthly         *evaluation.MonthlyEvaluation
	Yearly          *evaluation.YearlyEvaluation
	SnapshotUpdated bool
	Completed       []Stage
	Duration        time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// Locker serialises recomputes of the same key.
// Lock blocks until the key is free or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func() error, err error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeStudentStatsHandler handles RecomputeStudentStatsCommand.
type RecomputeStudentStatsHandler struct {
	weekly  *WeeklyAggregator
	rollups *RollupAggregator
	locker  Locker
	clock   shared.Clock
	loc     *time.Location
	retrier *retry.Retrier
	logger  *slog.Logger
}

// RecomputeStudentStatsConfig contains configuration for the handler.
type RecomputeStudentStatsConfig struct {
	// RetryAttempts is the number of attempts per stage, first one included.
	RetryAttempts int

	// RetryDelay is the delay before the first retry of a stage.
	RetryDelay time.Duration

	// Location is where week, month and year boundaries are drawn.
	Location *time.Location

	Clock  shared.Clock
	Logger *slog.Logger
}

// DefaultRecomputeStudentStatsConfig returns default configuration.
func DefaultRecomputeStudentStatsConfig() RecomputeStudentStatsConfig {
	return RecomputeStudentStatsConfig{
		RetryAttempts: 3,
		RetryDelay:    50 * time.Millisecond,
	}
}

// NewRecomputeStudentStatsHandler creates a RecomputeStudentStatsHandler.
func NewRecomputeStudentStatsHandler(
	weekly *WeeklyAggregator,
	rollups *RollupAggregator,
	locker Locker,
	config RecomputeStudentStatsConfig,
) *RecomputeStudentStatsHandler {
	defaults := DefaultRecomputeStudentStatsConfig()
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = defaults.RetryAttempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if config.Location == nil {
		config.Location = timeutil.Location()
	}
	if config.Clock == nil {
		config.Clock = shared.SystemClock(config.Location)
	}
	log := logger.OrDefault(config.Logger).With(logger.Component("recompute_student_stats"))

	return &RecomputeStudentStatsHandler{
		weekly:  weekly,
		rollups: rollups,
		locker:  locker,
		clock:   config.Clock,
		loc:     config.Location,
		logger:  log,
		retrier: retry.New(
			retry.WithMaxAttempts(config.RetryAttempts),
			retry.WithInitialDelay(config.RetryDelay),
			retry.WithMaxDelay(2*time.Second),
			retry.WithJitter(0.05),
			retry.WithRetryIf(shared.IsRetryable),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				log.Warn("retrying stage", slog.Int("attempt", attempt), logger.Latency(delay), slog.Any("error", err))
			}),
		),
	}
}

// pipelineStage is one idempotent step. Stages run strictly in order.
type pipelineStage struct {
	name Stage
	run  func(ctx context.Context, res *RecomputeStudentStatsResult, ref, now time.Time) error
}

func (h *RecomputeStudentStatsHandler) stages() []pipelineStage {
	return []pipelineStage{
		{StageWeekly, h.runWeekly},
		{StageMonthly, h.runMonthly},
		{StageYearly, h.runYearly},
	}
}

// Handle recomputes the student's weekly, monthly and yearly evaluations.
// On failure it returns the partial result together with a *StageError.
func (h *RecomputeStudentStatsHandler) Handle(ctx context.Context, cmd RecomputeStudentStatsCommand) (*RecomputeStudentStatsResult, error) {
	studentID, err := cmd.Validate()
	if err != nil {
		return nil, fmt.Errorf("recompute_student_stats: validation failed: %w", err)
	}

	started := time.Now()
	now := cmd.Now
	if now.IsZero() {
		now = h.clock.Now()
	}
	now = now.In(h.loc)
	ref := cmd.ReferenceDate.In(h.loc)

	log := h.logger.With(logger.StudentID(studentID), logger.Date("reference_date", ref))

	if h.locker != nil {
		unlock, err := h.locker.Lock(ctx, lockKey(studentID))
		if err != nil {
			return nil, fmt.Errorf("recompute_student_stats: %w", err)
		}
		defer func() {
			if err := unlock(); err != nil {
				log.Warn("failed to release student lock", slog.Any("error", err))
			}
		}()
	}

	res := &RecomputeStudentStatsResult{
		StudentID: studentID,
		WeekStart: evaluation.WeekStart(ref),
	}

	for _, st := range h.stages() {
		err := h.retrier.Do(ctx, func(ctx context.Context) error {
			return st.run(ctx, res, ref, now)
		})
		if err != nil {
			res.Duration = time.Since(started)
			log.Error("stage failed", logger.Stage(string(st.name)), slog.Any("error", err))
			return res, &StageError{Stage: st.name, Err: err}
		}
		res.Completed = append(res.Completed, st.name)
		log.Debug("stage completed", logger.Stage(string(st.name)))
	}

	res.Duration = time.Since(started)
	log.Info("student stats recomputed",
		logger.Date("week_start", res.WeekStart),
		slog.Int("weekly_points", res.Weekly.TotalPoints),
		slog.Float64("weekly_rating", res.Weekly.Rating),
		slog.Bool("snapshot_updated", res.SnapshotUpdated),
		logger.Latency(res.Duration),
	)

	return res, nil
}

func (h *RecomputeStudentStatsHandler) runWeekly(ctx context.Context, res *RecomputeStudentStatsResult, ref, now time.Time) error {
	out, err := h.weekly.Recompute(ctx, res.StudentID, ref, now)
	if err != nil {
		return err
	}
	res.Weekly = out.Evaluation
	res.SnapshotUpdated = out.SnapshotUpdated
	return nil
}

func (h *RecomputeStudentStatsHandler) runMonthly(ctx context.Context, res *RecomputeStudentStatsResult, ref, _ time.Time) error {
	monthly, err := h.rollups.RecomputeMonthly(ctx, res.StudentID, ref)
	if err != nil {
		return err
	}
	res.Monthly = monthly
	return nil
}

func (h *RecomputeStudentStatsHandler) runYearly(ctx context.Context, res *RecomputeStudentStatsResult, ref, _ time.Time) error {
	yearly, err := h.rollups.RecomputeYearly(ctx, res.StudentID, ref)
	if err != nil {
		return err
	}
	res.Yearly = yearly
	return nil
}

func lockKey(studentID string) string {
	return "student:" + studentID
}
