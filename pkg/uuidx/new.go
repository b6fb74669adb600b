// Package uuidx generates time-ordered identifiers for runs, turns, and threads.
package uuidx

import "github.com/google/uuid"

// New returns a version 7 UUID. It panics if the system entropy source fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString returns a version 7 UUID rendered as a string.
func NewString() string {
	return New().String()
}
