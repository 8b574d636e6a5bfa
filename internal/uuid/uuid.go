// Package uuid generates the identifiers used for instances and portal
// requests.
package uuid

import (
	"github.com/google/uuid"
)

// NewString returns a new time-ordered (V7) UUID string. It panics if the
// random source fails, like uuid.NewString.
func NewString() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
