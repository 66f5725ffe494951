// Package service implements the application logic between the Telegram
// dialog layer and the Clockify API plus identity storage.
package service

import "errors"

var (
	// ErrIdentityNotFound is returned when no identity row matches a lookup.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrProjectNotFound is returned when a project name cannot be resolved
	// to a workspace project id.
	ErrProjectNotFound = errors.New("project not found")
	// ErrNoOpenEntry is returned when Clockify reports no entry currently in
	// progress for the user.
	ErrNoOpenEntry = errors.New("no time entry in progress")
)
