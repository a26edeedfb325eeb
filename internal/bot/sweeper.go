package bot

import (
	"context"
	"fmt"
	"time"

	"warden/internal/modules/modlog"
	"warden/internal/storage"

	"go.uber.org/zap"
)

type releaseState int

const (
	releasePending releaseState = iota
	releaseDue
	releaseCorrupt
)

// classifyRelease decides what the sweeper does with one timed jail
// row. A timestamp that does not parse marks the row corrupt; the
// sweeper drops it rather than keep a member jailed forever.
func classifyRelease(raw string, now time.Time) releaseState {
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return releaseCorrupt
	}
	if !at.After(now) {
		return releaseDue
	}
	return releasePending
}

func (b *Bot) startSweepers(ctx context.Context) {
	go b.runJailSweeper(ctx)
	go b.runStrikeSweeper(ctx)
}

func (b *Bot) runJailSweeper(ctx context.Context) {
	interval := time.Duration(b.cfg.Jail.SweepSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	b.logger.Info("jail sweeper running", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.sweepJails(ctx)
		}
	}
}

func (b *Bot) sweepJails(ctx context.Context) {
	jails, err := b.store.ListTimedJails(ctx)
	if err != nil {
		b.logger.Warn("jail sweep query failed", zap.Error(err))
		return
	}
	now := time.Now().UTC()
	for _, jail := range jails {
		switch classifyRelease(jail.ReleaseAtRaw, now) {
		case releaseCorrupt:
			b.logger.Warn("dropping jail row with corrupt release time",
				zap.String("guild", jail.GuildID),
				zap.String("user", jail.UserID),
				zap.String("release_at", jail.ReleaseAtRaw))
			if err := b.store.RemoveJailedUser(ctx, jail.GuildID, jail.UserID); err != nil {
				b.logger.Warn("corrupt jail row removal failed", zap.Error(err))
			}
		case releaseDue:
			b.autoRelease(ctx, jail)
		}
	}
}

// autoRelease restores the member best-effort and always clears the
// row, so an expired jail can never be retried forever.
func (b *Bot) autoRelease(ctx context.Context, jail storage.TimedJail) {
	if err := b.releaseJailed(ctx, jail.GuildID, jail.UserID, jail.PreviousRoles); err != nil {
		b.logger.Warn("auto release incomplete",
			zap.String("guild", jail.GuildID),
			zap.String("user", jail.UserID),
			zap.Error(err))
	} else {
		guildName := jail.GuildID
		if guild := b.guild(jail.GuildID); guild != nil {
			guildName = guild.Name
		}
		b.dmUser(jail.UserID, fmt.Sprintf("Your jail sentence in %s has expired and your roles have been restored.", guildName))
	}

	if err := b.store.RemoveJailedUser(ctx, jail.GuildID, jail.UserID); err != nil {
		b.logger.Warn("jail row removal failed",
			zap.String("guild", jail.GuildID),
			zap.String("user", jail.UserID),
			zap.Error(err))
		return
	}
	b.modlog.Log(ctx, modlog.EventAutoRelease, jail.GuildID, jail.UserID, "sentence expired")
}

func (b *Bot) runStrikeSweeper(ctx context.Context) {
	interval := time.Duration(b.cfg.Strikes.SweepSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	b.logger.Info("strike sweeper running", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.sweepStrikes(ctx)
		}
	}
}

func (b *Bot) sweepStrikes(ctx context.Context) {
	expired, err := b.store.ListExpiredStrikes(ctx, time.Now().UTC())
	if err != nil {
		b.logger.Warn("strike sweep query failed", zap.Error(err))
		return
	}
	for _, strike := range expired {
		if err := b.store.RemoveStrike(ctx, strike.ID); err != nil {
			b.logger.Warn("expired strike removal failed", zap.Int64("id", strike.ID), zap.Error(err))
			continue
		}
		remaining, err := b.store.CountActiveStrikes(ctx, strike.GuildID, strike.UserID, time.Now().UTC())
		if err != nil || remaining > 0 {
			continue
		}
		cfg := b.guildConfig(ctx, strike.GuildID)
		if cfg.StrikeRole == "" {
			continue
		}
		if err := b.session.GuildMemberRoleRemove(strike.GuildID, strike.UserID, cfg.StrikeRole); err != nil {
			b.logger.Warn("strike role removal failed",
				zap.String("guild", strike.GuildID),
				zap.String("user", strike.UserID),
				zap.Error(err))
		}
	}
	if len(expired) > 0 {
		b.logger.Info("expired strikes swept", zap.Int("count", len(expired)))
	}
}
