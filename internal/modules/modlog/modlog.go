package modlog

import (
	"context"
	"time"

	"warden/internal/storage"

	"go.uber.org/zap"
)

const (
	EventJail          = "jail"
	EventUnjail        = "unjail"
	EventAutoRelease   = "auto_release"
	EventAppealCreated = "appeal_created"
	EventAppealClosed  = "appeal_closed"
	EventStrike        = "strike"
	EventStrikeCleared = "strike_cleared"
	EventLockdown      = "lockdown"
	EventSetup         = "setup"
)

// Logger records moderation events durably, mirrors them to zap, and
// hands them to an optional notifier (the bot posts them to the guild's
// configured log channel).
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, storage.ModEvent)
}

func New(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.ModEvent)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, event, guildID, userID, details string) {
	entry := storage.ModEvent{
		GuildID:   guildID,
		UserID:    userID,
		Event:     event,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if l.store != nil {
		_ = l.store.AddModEvent(ctx, entry)
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("mod event", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.String("event", event), zap.String("details", details))
}
