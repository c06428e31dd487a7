package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR CLASSIFICATION
// Driver errors become DomainErrors whose Kind tells the retry layer what to do.
// ══════════════════════════════════════════════════════════════════════════════

// wrap classifies err for the given repository operation. nil stays nil.
func wrap(domain, op string, err error) error {
	if err == nil {
		return nil
	}
	return shared.WrapError(domain, op, classify(err), "postgres "+strings.ToLower(op)+" failed", err)
}

// notFoundOr maps pgx.ErrNoRows to notFound and classifies anything else.
func notFoundOr(domain, op string, err, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return wrap(domain, op, err)
}

// classify maps a driver error to a shared error kind.
func classify(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return shared.ErrNotFound
	case errors.Is(err, context.Canceled):
		return shared.ErrStorage
	case errors.Is(err, context.DeadlineExceeded), pgconn.Timeout(err):
		return shared.ErrTimeout
	case errors.Is(err, ErrConnectionClosed):
		return shared.ErrServiceUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01":
			// serialization_failure, deadlock_detected
			return shared.ErrConcurrentModification
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "53"), pgErr.Code == "57P01":
			// connection exception, insufficient resources, admin shutdown
			return shared.ErrServiceUnavailable
		case pgErr.Code == "57014":
			// query_canceled (statement_timeout)
			return shared.ErrTimeout
		case strings.HasPrefix(pgErr.Code, "23"), strings.HasPrefix(pgErr.Code, "22"):
			// integrity constraint violation, data exception
			return shared.ErrInvalidEntity
		}
		return shared.ErrStorage
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.SafeToRetry(err) {
		return shared.ErrServiceUnavailable
	}

	return shared.ErrStorage
}

// IsUniqueViolation checks if the error is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
