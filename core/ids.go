package core

import "github.com/google/uuid"

// NewID returns a fresh random identifier suitable for execution, step,
// and thread identifiers.
func NewID() string {
	return uuid.NewString()
}
