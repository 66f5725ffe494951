// Package state keeps per-user conversation sessions in memory. A session
// records which dialog flow the user is in, the index of the current step,
// and the raw field values collected so far. Sessions expire after a period
// of inactivity.
package state

import "time"

// Session is a snapshot of one user's conversation progress. Field values
// are stored exactly as the user typed them.
type Session struct {
	Flow   string
	Step   int
	Fields map[string]string
}

// Manager orchestrates user sessions.
type Manager interface {
	// Get returns a snapshot of the user's session, if one is active.
	Get(userID int64) (Session, bool)
	// Begin starts a fresh session for the flow, replacing any previous one.
	Begin(userID int64, flow string)
	// SetField stores a collected value in the active session.
	SetField(userID int64, key, value string)
	// Advance moves the active session to the given step.
	Advance(userID int64, step int)
	// Clear removes the user's session.
	Clear(userID int64)
	// InProgress reports whether the user has an active session.
	InProgress(userID int64) bool
	// Close stops background maintenance.
	Close()
}

// DefaultTTL applies when the manager is constructed with a non-positive TTL.
const DefaultTTL = 30 * time.Minute
