// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/internal/domain/student"
	"github.com/halaqa-hub/evaluation-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT SNAPSHOT QUERY
// Reads the cached "current week" numbers of a student.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentSnapshotQuery identifies the student.
type GetStudentSnapshotQuery struct {
	StudentID string

	// Now decides whether the snapshot is still current. Zero means the handler's clock.
	Now time.Time
}

// SnapshotSource tells where the snapshot was read from.
type SnapshotSource string

const (
	SourceCache   SnapshotSource = "cache"
	SourceStorage SnapshotSource = "storage"
)

// StudentSnapshotDTO is the snapshot together with its freshness.
type StudentSnapshotDTO struct {
	StudentID string
	WeekStart time.Time
	Points    int
	Rating    float64
	Stars     int

	// IsCurrent is false when the snapshot belongs to an earlier week or was
	// never written; the numbers then do not describe the current week.
	IsCurrent bool
	Source    SnapshotSource
}

// GetStudentSnapshotHandler handles GetStudentSnapshotQuery.
type GetStudentSnapshotHandler struct {
	students student.Repository
	cache    student.SnapshotCache
	cacheTTL time.Duration
	clock    shared.Clock
	logger   *slog.Logger
}

// NewGetStudentSnapshotHandler creates a handler. cache may be nil.
func NewGetStudentSnapshotHandler(
	students student.Repository,
	cache student.SnapshotCache,
	cacheTTL time.Duration,
	clock shared.Clock,
	log *slog.Logger,
) *GetStudentSnapshotHandler {
	if clock == nil {
		clock = shared.SystemClock(nil)
	}
	return &GetStudentSnapshotHandler{
		students: students,
		cache:    cache,
		cacheTTL: cacheTTL,
		clock:    clock,
		logger:   logger.OrDefault(log),
	}
}

// Handle reads the snapshot through the cache, falling back to storage.
func (h *GetStudentSnapshotHandler) Handle(ctx context.Context, q GetStudentSnapshotQuery) (*StudentSnapshotDTO, error) {
	id, err := shared.ParseStudentID(q.StudentID)
	if err != nil {
		return nil, err
	}
	now := q.Now
	if now.IsZero() {
		now = h.clock.Now()
	}

	if h.cache != nil {
		snap, err := h.cache.Get(ctx, id)
		if err == nil {
			return toSnapshotDTO(id, snap, now, SourceCache), nil
		}
		h.logger.Debug("snapshot cache miss", logger.StudentID(id), slog.Any("error", err))
	}

	st, err := h.students.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get_student_snapshot: %w", err)
	}

	// A recompute may have cached a newer snapshot since the miss; never replace it.
	if h.cache != nil && !st.Snapshot.IsZero() {
		if _, err := h.cache.SetIfAbsent(ctx, id, st.Snapshot, h.cacheTTL); err != nil {
			h.logger.Warn("failed to cache snapshot", logger.StudentID(id), slog.Any("error", err))
		}
	}

	return toSnapshotDTO(id, st.Snapshot, now, SourceStorage), nil
}

func toSnapshotDTO(id string, snap student.Snapshot, now time.Time, src SnapshotSource) *StudentSnapshotDTO {
	return &StudentSnapshotDTO{
		StudentID: id,
		WeekStart: snap.WeekStart,
		Points:    snap.Points,
		Rating:    snap.Rating,
		Stars:     int(snap.Stars),
		IsCurrent: snap.IsCurrent(now),
		Source:    src,
	}
}
