package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	AppealOpen     = "open"
	AppealApproved = "approved"
	AppealDenied   = "denied"
	AppealClosed   = "closed"
)

type Appeal struct {
	ID              int64
	GuildID         string
	TicketChannelID string
	UserID          string
	Reason          string
	Status          string
	CreatedAt       time.Time
	ClosedAt        *time.Time
	Transcript      string
}

func (s *Store) CreateAppeal(ctx context.Context, guildID, ticketChannelID, userID, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO appeals (guild_id, ticket_channel_id, user_id, reason, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, guildID, ticketChannelID, userID, reason, AppealOpen, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// OpenAppealByChannel returns nil without error when the channel has no
// open appeal. A ticket that was already resolved does not match, which
// is what makes double approve/deny fail gracefully.
func (s *Store) OpenAppealByChannel(ctx context.Context, ticketChannelID string) (*Appeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, guild_id, user_id, reason, created_at
		FROM appeals WHERE ticket_channel_id = ? AND status = ?
	`, ticketChannelID, AppealOpen)

	appeal := Appeal{TicketChannelID: ticketChannelID, Status: AppealOpen}
	var createdAt string
	err := row.Scan(&appeal.ID, &appeal.GuildID, &appeal.UserID, &appeal.Reason, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
		appeal.CreatedAt = parsed
	}
	return &appeal, nil
}

// LatestAppealCreatedAt returns the creation time of the user's most
// recent appeal in the guild, or nil when they never appealed.
func (s *Store) LatestAppealCreatedAt(ctx context.Context, guildID, userID string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM appeals
		WHERE guild_id = ? AND user_id = ?
		ORDER BY created_at DESC LIMIT 1
	`, guildID, userID)

	var createdAt string
	err := row.Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, nil
	}
	return &parsed, nil
}

// CloseAppeal transitions the channel's open appeal to a terminal status
// and stores the transcript. It reports whether a row transitioned; a
// second close on the same channel finds no open row and returns false.
func (s *Store) CloseAppeal(ctx context.Context, ticketChannelID, status, transcript string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE appeals SET status = ?, transcript = ?, closed_at = ?
		WHERE ticket_channel_id = ? AND status = ?
	`, status, transcript, time.Now().UTC().Format(time.RFC3339), ticketChannelID, AppealOpen)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// OpenTicketChannels lists every channel id with an open appeal, used to
// warm the in-memory ticket cache at startup.
func (s *Store) OpenTicketChannels(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT ticket_channel_id FROM appeals WHERE status = ?`, AppealOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if id != "" {
			channels = append(channels, id)
		}
	}
	return channels, rows.Err()
}

func (s *Store) CountOpenAppeals(ctx context.Context, guildID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM appeals WHERE guild_id = ? AND status = ?`, guildID, AppealOpen).Scan(&count)
	return count, err
}
