package service

import (
	"context"
	"fmt"
	"time"

	"clockbot/clockify"
	"clockbot/core/logger"
	"clockbot/store"

	"log/slog"
)

// WorkspaceUsers lists the members of the Clockify workspace.
type WorkspaceUsers interface {
	ListWorkspaceUsers(ctx context.Context) ([]clockify.User, error)
}

// IdentityStore is the persistence contract the identity service needs.
type IdentityStore interface {
	FindByHandle(ctx context.Context, handle string) (store.Identity, bool, error)
	FindByEmail(ctx context.Context, email string) (store.Identity, bool, error)
	Exists(ctx context.Context, clockifyUserID string) (bool, error)
	Insert(ctx context.Context, id store.Identity) error
	UpdateCredentialAndHandleByEmail(ctx context.Context, email, credential, handle string) error
	UpdateCredentialByHandle(ctx context.Context, handle, credential string) error
}

// IdentityService reconciles workspace members into the identity store and
// drives the registration state changes.
type IdentityService struct {
	users WorkspaceUsers
	ids   IdentityStore
}

// NewIdentityService wires the service with its collaborators.
func NewIdentityService(users WorkspaceUsers, ids IdentityStore) *IdentityService {
	return &IdentityService{users: users, ids: ids}
}

// Sync fetches the full workspace member list and inserts a placeholder row
// for every member not yet known. Re-running against an unchanged workspace
// inserts nothing. Returns the number of rows inserted.
func (s *IdentityService) Sync(ctx context.Context) (int, error) {
	start := time.Now()

	users, err := s.users.ListWorkspaceUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list workspace users: %w", err)
	}

	inserted := 0
	for _, u := range users {
		known, err := s.ids.Exists(ctx, u.ID)
		if err != nil {
			return inserted, err
		}
		if known {
			continue
		}
		row := store.Identity{
			ClockifyUserID: u.ID,
			Email:          u.Email,
		}
		if err := s.ids.Insert(ctx, row); err != nil {
			return inserted, err
		}
		inserted++
	}

	logger.LogEvent(ctx, logger.SVCIdentity, slog.LevelInfo, "identity.sync",
		slog.String("status", "ok"),
		slog.Int("users_total", len(users)),
		slog.Int("inserted", inserted),
		slog.Duration("duration", logger.RoundMS(logger.Took(start))),
	)
	return inserted, nil
}

// Lookup returns the identity bound to a Telegram handle.
func (s *IdentityService) Lookup(ctx context.Context, handle string) (store.Identity, bool, error) {
	return s.ids.FindByHandle(ctx, handle)
}

// BindEmail matches an email against the store and, on a hit, binds the
// Telegram handle to that row while leaving the credential empty. Reports
// whether the email matched.
func (s *IdentityService) BindEmail(ctx context.Context, email, handle string) (bool, error) {
	_, found, err := s.ids.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if !found {
		logger.LogEvent(ctx, logger.SVCIdentity, slog.LevelInfo, "identity.bind_email",
			slog.String("status", "fail"),
			slog.String("email", logger.Sanitize(email)),
		)
		return false, nil
	}
	if err := s.ids.UpdateCredentialAndHandleByEmail(ctx, email, "", handle); err != nil {
		return false, err
	}
	logger.LogEvent(ctx, logger.SVCIdentity, slog.LevelInfo, "identity.bind_email",
		slog.String("status", "ok"),
		slog.String("email", logger.Sanitize(email)),
		slog.String("username", logger.Sanitize(handle)),
	)
	return true, nil
}

// SetCredential stores the API key for the identity bound to handle.
func (s *IdentityService) SetCredential(ctx context.Context, handle, credential string) error {
	if err := s.ids.UpdateCredentialByHandle(ctx, handle, credential); err != nil {
		return err
	}
	logger.LogEvent(ctx, logger.SVCIdentity, slog.LevelInfo, "identity.set_credential",
		slog.String("status", "ok"),
		slog.String("username", logger.Sanitize(handle)),
	)
	return nil
}
