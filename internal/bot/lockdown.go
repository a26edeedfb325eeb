package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"warden/internal/modules/modlog"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// desiredOverwrite computes the jail role overwrite a channel should
// carry. The appeals channel stays readable so jailed members can open
// tickets; everything else is denied by channel kind.
func desiredOverwrite(kind discordgo.ChannelType, isAppeals bool) (allow, deny int64) {
	if isAppeals {
		return discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory,
			discordgo.PermissionSendMessages | discordgo.PermissionAddReactions
	}
	switch kind {
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
		return 0, discordgo.PermissionViewChannel | discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak
	case discordgo.ChannelTypeGuildCategory:
		return 0, discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionVoiceConnect
	default:
		return 0, discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory
	}
}

// needsLockdownFix reports whether a channel's jail overwrite differs
// from the desired one, so repair passes can skip conforming channels.
func needsLockdownFix(channel *discordgo.Channel, jailRoleID, appealsChannelID string) bool {
	if channel == nil {
		return false
	}
	wantAllow, wantDeny := desiredOverwrite(channel.Type, channel.ID == appealsChannelID)
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.ID == jailRoleID && overwrite.Type == discordgo.PermissionOverwriteTypeRole {
			return overwrite.Allow != wantAllow || overwrite.Deny != wantDeny
		}
	}
	return true
}

// retryAfter extracts the wait hint from a rate limit error.
func retryAfter(err error) (time.Duration, bool) {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) || rest.Response == nil || rest.Response.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}
	var tmr discordgo.TooManyRequests
	if jsonErr := json.Unmarshal(rest.ResponseBody, &tmr); jsonErr == nil && tmr.RetryAfter > 0 {
		return tmr.RetryAfter, true
	}
	return 5 * time.Second, true
}

// applyJailOverwrite sets the jail overwrite on one channel, retrying
// once after a rate limit.
func (b *Bot) applyJailOverwrite(channel *discordgo.Channel, jailRoleID, appealsChannelID string) error {
	allow, deny := desiredOverwrite(channel.Type, channel.ID == appealsChannelID)
	err := b.session.ChannelPermissionSet(channel.ID, jailRoleID, discordgo.PermissionOverwriteTypeRole, allow, deny)
	if err == nil {
		return nil
	}
	if wait, ok := retryAfter(err); ok {
		time.Sleep(wait)
		return b.session.ChannelPermissionSet(channel.ID, jailRoleID, discordgo.PermissionOverwriteTypeRole, allow, deny)
	}
	return err
}

func (b *Bot) beginLockdown(guildID string) bool {
	b.busyMu.Lock()
	defer b.busyMu.Unlock()
	if _, busy := b.busyGuilds[guildID]; busy {
		return false
	}
	b.busyGuilds[guildID] = struct{}{}
	return true
}

func (b *Bot) endLockdown(guildID string) {
	b.busyMu.Lock()
	delete(b.busyGuilds, guildID)
	b.busyMu.Unlock()
}

func (b *Bot) handleLockdownJail(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	b.runLockdownPass(ctx, session, interaction, false)
}

func (b *Bot) handleFixJailPerms(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	b.runLockdownPass(ctx, session, interaction, true)
}

// runLockdownPass walks every guild channel and applies the jail
// overwrite. In repair mode channels that already conform are skipped.
func (b *Bot) runLockdownPass(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, repairOnly bool) {
	guildID := interaction.GuildID
	cfg := b.guildConfig(ctx, guildID)
	if !b.isJailAdmin(guildID, interaction.Member, cfg) {
		b.respond(session, interaction, "You do not have permission to run a lockdown.", true)
		return
	}
	if cfg.JailRole == "" {
		b.respond(session, interaction, "Jail is not set up yet. Run /setupjail first.", true)
		return
	}
	if !b.beginLockdown(guildID) {
		b.respond(session, interaction, "A lockdown pass is already running for this server.", true)
		return
	}
	defer b.endLockdown(guildID)

	guild := b.guild(guildID)
	if guild == nil {
		b.respond(session, interaction, "Could not resolve this server.", true)
		return
	}
	channels := guild.Channels
	if len(channels) == 0 {
		fetched, err := session.GuildChannels(guildID)
		if err != nil {
			b.respond(session, interaction, b.errorReply("listing the server channels", err), true)
			return
		}
		channels = fetched
	}

	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		return
	}
	title := "Jail lockdown"
	step := b.cfg.Jail.LockdownProgressStep
	if repairOnly {
		title = "Jail permission repair"
		step = b.cfg.Jail.FixProgressStep
	}
	if step <= 0 {
		step = 5
	}

	progress, err := session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{
			b.commandEmbed(title, fmt.Sprintf("Processing %d channels...", len(channels)), b.cfg.EmbedColors.Warning, nil),
		},
	})
	if err != nil {
		return
	}

	applied, skipped, failed := 0, 0, 0
	for index, channel := range channels {
		if repairOnly && !needsLockdownFix(channel, cfg.JailRole, cfg.AppealsChannel) {
			skipped++
		} else if err := b.applyJailOverwrite(channel, cfg.JailRole, cfg.AppealsChannel); err != nil {
			failed++
			b.logger.Warn("lockdown overwrite failed",
				zap.String("guild", guildID),
				zap.String("channel", channel.ID),
				zap.Error(err))
		} else {
			applied++
		}

		done := index + 1
		if done%step == 0 && done < len(channels) {
			_, _ = session.FollowupMessageEdit(interaction.Interaction, progress.ID, &discordgo.WebhookEdit{
				Embeds: &[]*discordgo.MessageEmbed{
					b.commandEmbed(title, fmt.Sprintf("Processed %d of %d channels...", done, len(channels)), b.cfg.EmbedColors.Warning, nil),
				},
			})
		}
	}

	summary := fmt.Sprintf("Done. %d updated, %d failed.", applied, failed)
	if repairOnly {
		summary = fmt.Sprintf("Done. %d repaired, %d already correct, %d failed.", applied, skipped, failed)
	}
	color := b.cfg.EmbedColors.Success
	if failed > 0 {
		color = b.cfg.EmbedColors.Warning
	}
	_, _ = session.FollowupMessageEdit(interaction.Interaction, progress.ID, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{b.commandEmbed(title, summary, color, nil)},
	})

	b.modlog.Log(ctx, modlog.EventLockdown, guildID, "", summary)
}

// onChannelCreate extends an existing lockdown to channels created
// after it ran.
func (b *Bot) onChannelCreate(session *discordgo.Session, event *discordgo.ChannelCreate) {
	if event.GuildID == "" {
		return
	}
	ctx := context.Background()
	cfg := b.guildConfig(ctx, event.GuildID)
	if cfg.JailRole == "" {
		return
	}
	go func(channel *discordgo.Channel, cfg storage.GuildConfig) {
		// Give channel creation flows a moment to finish their own
		// permission writes before stamping ours on top.
		time.Sleep(2 * time.Second)
		if err := b.applyJailOverwrite(channel, cfg.JailRole, cfg.AppealsChannel); err != nil {
			b.logger.Warn("overwrite on channel create failed",
				zap.String("channel", channel.ID), zap.Error(err))
		}
	}(event.Channel, cfg)
}

// onChannelUpdate reapplies the overwrite when a channel moves to a
// different category, which can resync its permissions to the parent.
func (b *Bot) onChannelUpdate(session *discordgo.Session, event *discordgo.ChannelUpdate) {
	if event.GuildID == "" {
		return
	}
	if event.BeforeUpdate != nil && event.BeforeUpdate.ParentID == event.ParentID {
		return
	}
	ctx := context.Background()
	cfg := b.guildConfig(ctx, event.GuildID)
	if cfg.JailRole == "" {
		return
	}
	if !needsLockdownFix(event.Channel, cfg.JailRole, cfg.AppealsChannel) {
		return
	}
	if err := b.applyJailOverwrite(event.Channel, cfg.JailRole, cfg.AppealsChannel); err != nil {
		b.logger.Warn("overwrite on channel update failed",
			zap.String("channel", event.ID), zap.Error(err))
	}
}
