package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is the durable row store for the jail system. A single mutex
// serializes every operation: handlers and the sweepers share one gate,
// one storage operation at a time. No operation spans more than a few
// rows identified by primary key, so no cross-statement transactions
// are needed.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// GuildConfig holds per-guild entity ids. Empty string means not
// configured; callers must re-resolve ids against the live guild and
// treat a missing entity as unconfigured.
type GuildConfig struct {
	GuildID        string
	JailRole       string
	JailCategory   string
	AppealsChannel string
	AdminChannel   string
	AdminRole      string
	LogChannel     string
	StrikeRole     string
	StrikeChannel  string
}

type ModEvent struct {
	ID        int64
	GuildID   string
	UserID    string
	Event     string
	Details   string
	CreatedAt time.Time
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

// GetGuildConfig returns the stored config, or a zero config carrying
// only the guild id when none exists yet.
func (s *Store) GetGuildConfig(ctx context.Context, guildID string) (GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT jail_role, jail_category, appeals_channel, admin_channel, admin_role,
		log_channel, strike_role, strike_channel
		FROM guild_config WHERE guild_id = ?`, guildID)

	cfg := GuildConfig{GuildID: guildID}
	err := row.Scan(
		&cfg.JailRole,
		&cfg.JailCategory,
		&cfg.AppealsChannel,
		&cfg.AdminChannel,
		&cfg.AdminRole,
		&cfg.LogChannel,
		&cfg.StrikeRole,
		&cfg.StrikeChannel,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cfg, nil
		}
		return GuildConfig{}, err
	}
	return cfg, nil
}

// SaveGuildConfig upserts the full config row. Callers preserve unset
// fields by reading first and writing the merged struct back.
func (s *Store) SaveGuildConfig(ctx context.Context, cfg GuildConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_config (
			guild_id, jail_role, jail_category, appeals_channel, admin_channel,
			admin_role, log_channel, strike_role, strike_channel
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			jail_role = excluded.jail_role,
			jail_category = excluded.jail_category,
			appeals_channel = excluded.appeals_channel,
			admin_channel = excluded.admin_channel,
			admin_role = excluded.admin_role,
			log_channel = excluded.log_channel,
			strike_role = excluded.strike_role,
			strike_channel = excluded.strike_channel
	`,
		cfg.GuildID,
		cfg.JailRole,
		cfg.JailCategory,
		cfg.AppealsChannel,
		cfg.AdminChannel,
		cfg.AdminRole,
		cfg.LogChannel,
		cfg.StrikeRole,
		cfg.StrikeChannel,
	)
	return err
}

func (s *Store) AddModEvent(ctx context.Context, event ModEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mod_events (guild_id, user_id, event, details, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, event.GuildID, event.UserID, event.Event, event.Details, event.CreatedAt.Unix())
	return err
}

func (s *Store) ListModEvents(ctx context.Context, guildID string, since time.Time) ([]ModEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, event, details, created_at
		FROM mod_events
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ModEvent
	for rows.Next() {
		var event ModEvent
		var created int64
		if err := rows.Scan(&event.ID, &event.GuildID, &event.UserID, &event.Event, &event.Details, &created); err != nil {
			return nil, err
		}
		event.CreatedAt = time.Unix(created, 0)
		events = append(events, event)
	}
	return events, rows.Err()
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
