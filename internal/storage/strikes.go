package storage

import (
	"context"
	"database/sql"
	"time"
)

type Strike struct {
	ID          int64
	GuildID     string
	UserID      string
	ModeratorID string
	Reason      string
	Duration    string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

func (s *Store) AddStrike(ctx context.Context, strike Strike) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt any
	if strike.ExpiresAt != nil {
		expiresAt = strike.ExpiresAt.UTC().Format(time.RFC3339)
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO strikes (guild_id, user_id, moderator_id, reason, duration, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, strike.GuildID, strike.UserID, strike.ModeratorID, strike.Reason, strike.Duration, expiresAt, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListStrikes returns the user's strikes that have not expired as of now,
// newest first. Strikes without an expiry never expire.
func (s *Store) ListStrikes(ctx context.Context, guildID, userID string, now time.Time) ([]Strike, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, moderator_id, reason, duration, expires_at, created_at
		FROM strikes
		WHERE guild_id = ? AND user_id = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at DESC
	`, guildID, userID, now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrikes(rows)
}

func (s *Store) ClearStrikes(ctx context.Context, guildID, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM strikes WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListExpiredStrikes returns strikes whose expiry has elapsed, for the
// strike sweep to remove.
func (s *Store) ListExpiredStrikes(ctx context.Context, now time.Time) ([]Strike, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, moderator_id, reason, duration, expires_at, created_at
		FROM strikes
		WHERE expires_at IS NOT NULL AND expires_at <= ?
	`, now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrikes(rows)
}

func (s *Store) RemoveStrike(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM strikes WHERE id = ?`, id)
	return err
}

func (s *Store) CountActiveStrikes(ctx context.Context, guildID, userID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM strikes
		WHERE guild_id = ? AND user_id = ? AND (expires_at IS NULL OR expires_at > ?)
	`, guildID, userID, now.UTC().Format(time.RFC3339)).Scan(&count)
	return count, err
}

func (s *Store) CountGuildActiveStrikes(ctx context.Context, guildID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM strikes
		WHERE guild_id = ? AND (expires_at IS NULL OR expires_at > ?)
	`, guildID, now.UTC().Format(time.RFC3339)).Scan(&count)
	return count, err
}

func scanStrikes(rows *sql.Rows) ([]Strike, error) {
	var strikes []Strike
	for rows.Next() {
		var strike Strike
		var expiresAt sql.NullString
		var createdAt string
		if err := rows.Scan(&strike.ID, &strike.GuildID, &strike.UserID, &strike.ModeratorID, &strike.Reason, &strike.Duration, &expiresAt, &createdAt); err != nil {
			return nil, err
		}
		if expiresAt.Valid {
			if parsed, err := time.Parse(time.RFC3339, expiresAt.String); err == nil {
				strike.ExpiresAt = &parsed
			}
		}
		if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
			strike.CreatedAt = parsed
		}
		strikes = append(strikes, strike)
	}
	return strikes, rows.Err()
}
