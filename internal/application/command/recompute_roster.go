package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/student"
	"github.com/halaqa-hub/evaluation-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE ROSTER COMMAND
// Fans RecomputeStudentStats out over many students with bounded concurrency.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeRosterCommand selects students either explicitly or by halaqa.
// With neither set every active student is recomputed.
type RecomputeRosterCommand struct {
	StudentIDs    []string
	HalaqaID      string
	ReferenceDate time.Time
	Now           time.Time
}

// RosterFailure is one student that could not be recomputed.
type RosterFailure struct {
	StudentID string
	Err       error
}

// RosterStats summarises a roster run.
type RosterStats struct {
	StartedAt       time.Time
	Duration        time.Duration
	Total           int
	Succeeded       int
	Failed          int
	SnapshotUpdates int
	Failures        []RosterFailure
}

// StudentRecomputer is satisfied by RecomputeStudentStatsHandler.
type StudentRecomputer interface {
	Handle(ctx context.Context, cmd RecomputeStudentStatsCommand) (*RecomputeStudentStatsResult, error)
}

// RecomputeRosterHandler handles RecomputeRosterCommand.
type RecomputeRosterHandler struct {
	students    student.Repository
	recomputer  StudentRecomputer
	concurrency int
	logger      *slog.Logger
}

// NewRecomputeRosterHandler creates a RecomputeRosterHandler.
// concurrency <= 0 defaults to 8.
func NewRecomputeRosterHandler(students student.Repository, recomputer StudentRecomputer, concurrency int, log *slog.Logger) *RecomputeRosterHandler {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &RecomputeRosterHandler{
		students:    students,
		recomputer:  recomputer,
		concurrency: concurrency,
		logger:      logger.OrDefault(log).With(logger.Component("recompute_roster")),
	}
}

// Handle recomputes every selected student. Per-student failures are collected
// in the stats and do not stop the others; the returned error is only set when
// the roster could not be listed or ctx was cancelled.
func (h *RecomputeRosterHandler) Handle(ctx context.Context, cmd RecomputeRosterCommand) (*RosterStats, error) {
	if cmd.ReferenceDate.IsZero() {
		return nil, fmt.Errorf("recompute_roster: %w", shared.ErrZeroReferenceDate)
	}

	ids, err := h.resolve(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("recompute_roster: %w", err)
	}

	stats := &RosterStats{StartedAt: time.Now(), Total: len(ids)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(h.concurrency)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			res, err := h.recomputer.Handle(ctx, RecomputeStudentStatsCommand{
				StudentID:     id,
				ReferenceDate: cmd.ReferenceDate,
				Now:           cmd.Now,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
				stats.Failures = append(stats.Failures, RosterFailure{StudentID: id, Err: err})
				h.logger.Warn("student recompute failed", logger.StudentID(id), slog.Any("error", err))
				return nil
			}
			stats.Succeeded++
			if res.SnapshotUpdated {
				stats.SnapshotUpdates++
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.Duration = time.Since(stats.StartedAt)
	h.logger.Info("roster recomputed",
		slog.Int("total", stats.Total),
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("failed", stats.Failed),
		logger.Latency(stats.Duration),
	)

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("recompute_roster: %w", err)
	}
	return stats, nil
}

func (h *RecomputeRosterHandler) resolve(ctx context.Context, cmd RecomputeRosterCommand) ([]string, error) {
	if len(cmd.StudentIDs) > 0 {
		return dedupe(cmd.StudentIDs), nil
	}

	opts := student.ListOptions{}
	if cmd.HalaqaID != "" {
		hid, err := shared.ParseHalaqaID(cmd.HalaqaID)
		if err != nil {
			return nil, err
		}
		opts.HalaqaID = hid
	}
	ids, err := h.students.ListIDs(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return ids, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// FailureErrors joins the failures into one error, or nil when there were none.
func (s *RosterStats) FailureErrors() error {
	errs := make([]error, 0, len(s.Failures))
	for _, f := range s.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.StudentID, f.Err))
	}
	return errors.Join(errs...)
}
