package shared

import (
	"strings"

	"github.com/google/uuid"
)

// ParseStudentID normalises a student identifier.
// Returns ErrInvalidStudentID when s is not a UUID.
func ParseStudentID(s string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidStudentID
	}
	return id.String(), nil
}

// ParseHalaqaID normalises a halaqa identifier.
func ParseHalaqaID(s string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidHalaqaID
	}
	return id.String(), nil
}

// NewID generates a random identifier for new rows.
func NewID() string {
	return uuid.NewString()
}
