package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"no rows", pgx.ErrNoRows, shared.ErrNotFound},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), shared.ErrTimeout},
		{"cancelled", context.Canceled, shared.ErrStorage},
		{"pool closed", ErrConnectionClosed, shared.ErrServiceUnavailable},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, shared.ErrConcurrentModification},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, shared.ErrConcurrentModification},
		{"connection failure", &pgconn.PgError{Code: "08006"}, shared.ErrServiceUnavailable},
		{"too many connections", &pgconn.PgError{Code: "53300"}, shared.ErrServiceUnavailable},
		{"statement timeout", &pgconn.PgError{Code: "57014"}, shared.ErrTimeout},
		{"check violation", &pgconn.PgError{Code: "23514"}, shared.ErrInvalidEntity},
		{"syntax error", &pgconn.PgError{Code: "42601"}, shared.ErrStorage},
		{"unknown", errors.New("boom"), shared.ErrStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, classify(tt.err))
		})
	}
}

func TestWrap_RetryClassification(t *testing.T) {
	assert.NoError(t, wrap("evaluation", "UpsertWeekly", nil))

	err := wrap("evaluation", "UpsertWeekly", &pgconn.PgError{Code: "40001"})
	assert.True(t, shared.IsRetryable(err))
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)

	err = wrap("evaluation", "UpsertWeekly", &pgconn.PgError{Code: "23505"})
	assert.False(t, shared.IsRetryable(err))
	assert.True(t, IsUniqueViolation(err))
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	assert.Equal(t, "host=localhost port=5432 dbname=halaqa user=postgres password=secret sslmode=disable connect_timeout=10", cfg.DSN())

	cfg.URL = "postgres://u:p@db:5432/halaqa"
	assert.Equal(t, cfg.URL, cfg.DSN())
}

func TestMigrations_Ordered(t *testing.T) {
	migs := Migrations()
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
	}
}
