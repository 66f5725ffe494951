// Package store persists the mapping between Telegram senders and Clockify
// workspace members.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Identity links a Clockify workspace member to a Telegram username. A row
// is "pending" until the api_key is filled in by the registration flow.
type Identity struct {
	ClockifyUserID string `db:"clockify_user_id"`
	APIKey         string `db:"api_key"`
	TGUsername     string `db:"tg_username"`
	Email          string `db:"email"`
}

// Registered reports whether the identity has completed registration.
func (i Identity) Registered() bool {
	return i.APIKey != ""
}

// Identities is an sqlx repository over the clockify_users table. Rows are
// inserted by identity sync and updated by registration; never deleted.
type Identities struct {
	db *sqlx.DB
}

// NewIdentities wraps the given database handle.
func NewIdentities(db *sqlx.DB) *Identities {
	return &Identities{db: db}
}

// FindByHandle looks up an identity by Telegram username. An empty handle
// never matches: pending rows from identity sync carry an empty tg_username,
// and those must stay unreachable until a handle is bound by email.
func (s *Identities) FindByHandle(ctx context.Context, handle string) (Identity, bool, error) {
	if handle == "" {
		return Identity{}, false, nil
	}
	return s.findBy(ctx, "tg_username", handle)
}

// FindByEmail looks up an identity by email, exact match.
func (s *Identities) FindByEmail(ctx context.Context, email string) (Identity, bool, error) {
	return s.findBy(ctx, "email", email)
}

func (s *Identities) findBy(ctx context.Context, column, value string) (Identity, bool, error) {
	var id Identity
	query := fmt.Sprintf(
		"SELECT clockify_user_id, api_key, tg_username, email FROM clockify_users WHERE %s = $1", column)
	err := s.db.GetContext(ctx, &id, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, fmt.Errorf("find identity by %s: %w", column, err)
	}
	return id, true, nil
}

// Exists reports whether a row with the given Clockify user id is present.
func (s *Identities) Exists(ctx context.Context, clockifyUserID string) (bool, error) {
	var found bool
	err := s.db.GetContext(ctx, &found,
		"SELECT EXISTS (SELECT 1 FROM clockify_users WHERE clockify_user_id = $1)", clockifyUserID)
	if err != nil {
		return false, fmt.Errorf("identity exists: %w", err)
	}
	return found, nil
}

// Insert adds a new identity row.
func (s *Identities) Insert(ctx context.Context, id Identity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clockify_users (clockify_user_id, api_key, tg_username, email)
		 VALUES ($1, $2, $3, $4)`,
		id.ClockifyUserID, id.APIKey, id.TGUsername, id.Email)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// UpdateCredentialAndHandleByEmail binds a Telegram username (and credential,
// possibly still empty) to the row matching email.
func (s *Identities) UpdateCredentialAndHandleByEmail(ctx context.Context, email, credential, handle string) error {
	if handle == "" {
		return fmt.Errorf("bind identity: empty tg_username")
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE clockify_users SET api_key = $1, tg_username = $2 WHERE email = $3",
		credential, handle, email)
	if err != nil {
		return fmt.Errorf("update identity by email: %w", err)
	}
	return requireAffected(res, "email", email)
}

// UpdateCredentialByHandle stores the credential for the row bound to handle.
// Refuses an empty handle: the update would otherwise hit every pending row.
func (s *Identities) UpdateCredentialByHandle(ctx context.Context, handle, credential string) error {
	if handle == "" {
		return fmt.Errorf("update identity: empty tg_username")
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE clockify_users SET api_key = $1 WHERE tg_username = $2",
		credential, handle)
	if err != nil {
		return fmt.Errorf("update identity by handle: %w", err)
	}
	return requireAffected(res, "tg_username", handle)
}

func requireAffected(res sql.Result, column, value string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no identity with %s = %q", column, value)
	}
	return nil
}
