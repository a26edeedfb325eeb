package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// JailedUser is the registry row for an active jail. At most one row
// exists per (guild, user); the unique index enforces it.
type JailedUser struct {
	GuildID       string
	UserID        string
	Reason        string
	PreviousRoles []string
	JailedAt      time.Time
	ReleaseAt     *time.Time
}

// TimedJail is a registry row with a non-null release time, as stored.
// ReleaseAtRaw is left unparsed so the sweeper can classify corrupt
// timestamps itself.
type TimedJail struct {
	GuildID       string
	UserID        string
	PreviousRoles []string
	ReleaseAtRaw  string
}

func (s *Store) AddJailedUser(ctx context.Context, user JailedUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	roles, err := json.Marshal(user.PreviousRoles)
	if err != nil {
		return err
	}
	var releaseAt any
	if user.ReleaseAt != nil {
		releaseAt = user.ReleaseAt.UTC().Format(time.RFC3339)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jailed_users (guild_id, user_id, reason, previous_roles, jailed_at, release_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.GuildID, user.UserID, user.Reason, string(roles), user.JailedAt.UTC().Format(time.RFC3339), releaseAt)
	return err
}

// GetJailedUser returns nil without error when the user is not jailed.
func (s *Store) GetJailedUser(ctx context.Context, guildID, userID string) (*JailedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT reason, previous_roles, jailed_at, release_at
		FROM jailed_users WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)

	user := JailedUser{GuildID: guildID, UserID: userID}
	var roles, jailedAt string
	var releaseAt sql.NullString
	err := row.Scan(&user.Reason, &roles, &jailedAt, &releaseAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(roles), &user.PreviousRoles); err != nil {
		user.PreviousRoles = nil
	}
	if parsed, err := time.Parse(time.RFC3339, jailedAt); err == nil {
		user.JailedAt = parsed
	}
	if releaseAt.Valid {
		if parsed, err := time.Parse(time.RFC3339, releaseAt.String); err == nil {
			user.ReleaseAt = &parsed
		}
	}
	return &user, nil
}

func (s *Store) RemoveJailedUser(ctx context.Context, guildID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM jailed_users WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	return err
}

// ListTimedJails returns every row with a release time set, raw.
func (s *Store) ListTimedJails(ctx context.Context) ([]TimedJail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, user_id, previous_roles, release_at
		FROM jailed_users WHERE release_at IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jails []TimedJail
	for rows.Next() {
		var jail TimedJail
		var roles string
		if err := rows.Scan(&jail.GuildID, &jail.UserID, &roles, &jail.ReleaseAtRaw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(roles), &jail.PreviousRoles); err != nil {
			jail.PreviousRoles = nil
		}
		jails = append(jails, jail)
	}
	return jails, rows.Err()
}

func (s *Store) CountJailed(ctx context.Context, guildID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jailed_users WHERE guild_id = ?`, guildID).Scan(&count)
	return count, err
}
