package student

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository gives access to students and their cached snapshot columns.
type Repository interface {
	// Create inserts a new student.
	Create(ctx context.Context, s *Student) error

	// GetByID returns ErrStudentNotFound when the student does not exist.
	GetByID(ctx context.Context, id string) (*Student, error)

	// UpdateSnapshot overwrites the four cached columns.
	// Updating a student that does not exist is a no-op, not an error:
	// evaluations are computed without checking student existence.
	UpdateSnapshot(ctx context.Context, id string, snap Snapshot) error

	// ListIDs returns student ids matching opts, ordered by id.
	ListIDs(ctx context.Context, opts ListOptions) ([]string, error)
}

// ListOptions filters roster listings.
type ListOptions struct {
	// HalaqaID restricts the listing to one roster when set.
	HalaqaID string

	// IncludeInactive also lists students who are no longer enrolled.
	IncludeInactive bool
}

// Matches reports whether s passes the filter.
func (o ListOptions) Matches(s *Student) bool {
	if o.HalaqaID != "" && s.HalaqaID != o.HalaqaID {
		return false
	}
	if !o.IncludeInactive && s.Status != StatusActive {
		return false
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotCache keeps a read-through copy of student snapshots.
type SnapshotCache interface {
	// Get returns ErrCacheMiss from the adapter when nothing is cached.
	Get(ctx context.Context, studentID string) (Snapshot, error)

	Set(ctx context.Context, studentID string, snap Snapshot, ttl time.Duration) error

	// SetIfAbsent caches snap only when no entry exists and reports whether it did.
	// Read-through fills use it so they never overwrite a newer recompute.
	SetIfAbsent(ctx context.Context, studentID string, snap Snapshot, ttl time.Duration) (bool, error)

	Invalidate(ctx context.Context, studentID string) error
}
