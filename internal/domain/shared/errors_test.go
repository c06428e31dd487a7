package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKindAndCause(t *testing.T) {
	cause := errors.New("i/o timeout")
	err := WrapError("evaluation", "UpsertWeekly", ErrTimeout, "failed to upsert weekly evaluation", cause)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, "evaluation.UpsertWeekly: failed to upsert weekly evaluation: i/o timeout", err.Error())
}

func TestDomainError_WrappedByFmt(t *testing.T) {
	err := fmt.Errorf("weekly stage: %w", ErrStudentNotFound)

	assert.True(t, IsNotFound(err))
	assert.False(t, IsRetryable(err))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(ErrInvalidStudentID))
	assert.True(t, IsValidation(ErrInvalidRating))
	assert.False(t, IsValidation(ErrEvaluationNotFound))
}
