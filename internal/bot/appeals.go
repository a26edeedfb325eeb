package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"warden/internal/modules/modlog"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	customIDCreateAppeal  = "create_appeal"
	customIDTicketApprove = "ticket_approve"
	customIDTicketDeny    = "ticket_deny"
	customIDTicketClose   = "ticket_close"
)

func (b *Bot) handleCreateAppeal(ctx context.Context, inv *invocation) {
	guildID := inv.guildID()
	userID := inv.userID()
	cfg := b.guildConfig(ctx, guildID)
	if cfg.JailRole == "" || cfg.JailCategory == "" {
		_ = inv.respond("Appeals are not set up on this server.", true)
		return
	}

	jailed, err := b.store.GetJailedUser(ctx, guildID, userID)
	if err != nil {
		_ = inv.respond(b.errorReply("checking your appeal", err), true)
		return
	}
	if jailed == nil {
		_ = inv.respond("You are not jailed, so there is nothing to appeal.", true)
		return
	}

	cooldown := time.Duration(b.cfg.Jail.AppealCooldownHours) * time.Hour
	latest, err := b.store.LatestAppealCreatedAt(ctx, guildID, userID)
	if err != nil {
		_ = inv.respond(b.errorReply("checking your appeal", err), true)
		return
	}
	if remaining := appealCooldownRemaining(latest, time.Now(), cooldown); remaining > 0 {
		_ = inv.respond(fmt.Sprintf("You already appealed recently. Try again in %s.", remaining.Round(time.Minute)), true)
		return
	}

	guild := b.guild(guildID)
	if guild == nil {
		_ = inv.respond("Could not resolve this server.", true)
		return
	}

	name := ticketChannelName(inv.member())
	overwrites := b.ticketOverwrites(guild, userID, cfg)
	channel, err := b.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             cfg.JailCategory,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		_ = inv.respond(b.errorReply("creating the ticket channel", err), true)
		return
	}

	if _, err := b.store.CreateAppeal(ctx, guildID, channel.ID, userID, jailed.Reason); err != nil {
		_, _ = b.session.ChannelDelete(channel.ID)
		_ = inv.respond(b.errorReply("recording the appeal", err), true)
		return
	}
	b.trackTicket(channel.ID)

	mention := fmt.Sprintf("<@%s>", userID)
	if cfg.AdminRole != "" {
		mention = fmt.Sprintf("<@&%s> %s", cfg.AdminRole, mention)
	}
	embed := b.commandEmbed("Jail appeal", "State your case below. A staff member will review this ticket.", b.cfg.EmbedColors.Action, []*discordgo.MessageEmbedField{
		{Name: "User", Value: fmt.Sprintf("<@%s>", userID), Inline: true},
		{Name: "Jail reason", Value: orDash(jailed.Reason), Inline: false},
	})
	_, err = b.session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Content: mention,
		Embeds:  []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "Approve", Style: discordgo.SuccessButton, CustomID: customIDTicketApprove},
					discordgo.Button{Label: "Deny", Style: discordgo.DangerButton, CustomID: customIDTicketDeny},
					discordgo.Button{Label: "Close", Style: discordgo.SecondaryButton, CustomID: customIDTicketClose},
				},
			},
		},
	})
	if err != nil {
		b.logger.Warn("ticket opener post failed", zap.String("channel", channel.ID), zap.Error(err))
	}

	b.modlog.Log(ctx, modlog.EventAppealCreated, guildID, userID, "ticket "+channel.ID)
	_ = inv.respond(fmt.Sprintf("Your appeal ticket is open: <#%s>", channel.ID), true)
}

// appealCooldownRemaining reports how long until the user may appeal
// again, counted from their most recent appeal regardless of how it
// ended. Zero means no wait.
func appealCooldownRemaining(latest *time.Time, now time.Time, cooldown time.Duration) time.Duration {
	if latest == nil {
		return 0
	}
	elapsed := now.Sub(*latest)
	if elapsed >= cooldown {
		return 0
	}
	return cooldown - elapsed
}

// ticketOverwrites builds the private channel permission set: hidden
// from everyone, visible to the requester, the bot, the configured
// admin role, and any role carrying Administrator.
func (b *Bot) ticketOverwrites(guild *discordgo.Guild, userID string, cfg storage.GuildConfig) []*discordgo.PermissionOverwrite {
	memberAllow := int64(discordgo.PermissionViewChannel |
		discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory |
		discordgo.PermissionAttachFiles |
		discordgo.PermissionEmbedLinks)

	overwrites := []*discordgo.PermissionOverwrite{
		{
			ID:   guild.ID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    userID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: memberAllow,
		},
	}
	if b.session.State.User != nil {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    b.session.State.User.ID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: memberAllow | discordgo.PermissionManageChannels,
		})
	}
	seen := map[string]bool{}
	if cfg.AdminRole != "" {
		seen[cfg.AdminRole] = true
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    cfg.AdminRole,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: memberAllow,
		})
	}
	for _, role := range guild.Roles {
		if role.ID == guild.ID || seen[role.ID] || role.Managed {
			continue
		}
		if role.Permissions&discordgo.PermissionAdministrator != 0 {
			overwrites = append(overwrites, &discordgo.PermissionOverwrite{
				ID:    role.ID,
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: memberAllow,
			})
		}
	}
	return overwrites
}

func ticketChannelName(member *discordgo.Member) string {
	name := "appeal"
	if member != nil && member.User != nil {
		name = "appeal-" + member.User.Username
	}
	return sanitizeChannelName(name)
}

func sanitizeChannelName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			sb.WriteByte('-')
		}
	}
	out := strings.Trim(sb.String(), "-")
	if out == "" {
		return "appeal"
	}
	if len(out) > 90 {
		out = out[:90]
	}
	return out
}

func (b *Bot) handleTicketApprove(ctx context.Context, inv *invocation) {
	cfg := b.guildConfig(ctx, inv.guildID())
	if !b.isJailAdmin(inv.guildID(), inv.member(), cfg) {
		_ = inv.respond("Only jail admins can approve appeals.", true)
		return
	}
	if !b.isTrackedTicket(inv.channelID()) {
		_ = inv.respond("This channel has no open appeal.", true)
		return
	}
	if err := inv.deferReply(); err != nil {
		return
	}

	appeal, err := b.store.OpenAppealByChannel(ctx, inv.channelID())
	if err != nil || appeal == nil {
		_ = inv.followup("This channel has no open appeal.")
		return
	}

	record, err := b.store.GetJailedUser(ctx, appeal.GuildID, appeal.UserID)
	if err != nil {
		_ = inv.followup(b.errorReply("looking up the jail record", err))
		return
	}
	if record != nil {
		// Release is best-effort: the member may have left, but the
		// appeal still resolves and the record still clears.
		if err := b.releaseJailed(ctx, appeal.GuildID, appeal.UserID, record.PreviousRoles); err != nil {
			b.logger.Warn("approve release incomplete", zap.String("user", appeal.UserID), zap.Error(err))
		}
		if err := b.store.RemoveJailedUser(ctx, appeal.GuildID, appeal.UserID); err != nil {
			_ = inv.followup(b.errorReply("removing the jail record", err))
			return
		}
	}

	b.resolveTicket(ctx, inv, appeal, storage.AppealApproved,
		"Your jail appeal was approved and you have been released.",
		fmt.Sprintf("Appeal by <@%s> approved. This channel will be deleted shortly.", appeal.UserID))
}

func (b *Bot) handleTicketDeny(ctx context.Context, inv *invocation) {
	cfg := b.guildConfig(ctx, inv.guildID())
	if !b.isJailAdmin(inv.guildID(), inv.member(), cfg) {
		_ = inv.respond("Only jail admins can deny appeals.", true)
		return
	}
	if !b.isTrackedTicket(inv.channelID()) {
		_ = inv.respond("This channel has no open appeal.", true)
		return
	}
	if err := inv.deferReply(); err != nil {
		return
	}

	appeal, err := b.store.OpenAppealByChannel(ctx, inv.channelID())
	if err != nil || appeal == nil {
		_ = inv.followup("This channel has no open appeal.")
		return
	}

	b.resolveTicket(ctx, inv, appeal, storage.AppealDenied,
		"Your jail appeal was denied. You remain jailed.",
		fmt.Sprintf("Appeal by <@%s> denied. This channel will be deleted shortly.", appeal.UserID))
}

func (b *Bot) handleTicketClose(ctx context.Context, inv *invocation) {
	cfg := b.guildConfig(ctx, inv.guildID())
	if !b.isJailAdmin(inv.guildID(), inv.member(), cfg) {
		_ = inv.respond("Only jail admins can close tickets.", true)
		return
	}
	if !b.isTrackedTicket(inv.channelID()) {
		_ = inv.respond("This channel has no open appeal.", true)
		return
	}

	appeal, err := b.store.OpenAppealByChannel(ctx, inv.channelID())
	if err != nil || appeal == nil {
		_ = inv.respond("This channel has no open appeal.", true)
		return
	}
	if err := inv.deferReply(); err != nil {
		return
	}

	b.resolveTicket(ctx, inv, appeal, storage.AppealClosed,
		"",
		"Ticket closed without a decision. This channel will be deleted shortly.")
}

// resolveTicket archives the conversation, marks the appeal, notifies
// the appellant and schedules the channel for deletion.
func (b *Bot) resolveTicket(ctx context.Context, inv *invocation, appeal *storage.Appeal, status, dm, announce string) {
	transcript := b.channelTranscript(appeal.TicketChannelID, appeal.ID)

	transitioned, err := b.store.CloseAppeal(ctx, appeal.TicketChannelID, status, transcript)
	if err != nil {
		_ = inv.followup(b.errorReply("closing the appeal", err))
		return
	}
	if !transitioned {
		_ = inv.followup("This appeal was already resolved.")
		return
	}
	b.forgetTicket(appeal.TicketChannelID)

	if dm != "" {
		b.dmUser(appeal.UserID, dm)
	}
	b.modlog.Log(ctx, modlog.EventAppealClosed, appeal.GuildID, appeal.UserID, "status "+status)

	_ = inv.followup(announce)
	b.scheduleTicketDelete(appeal.TicketChannelID)
}

func (b *Bot) scheduleTicketDelete(channelID string) {
	delay := time.Duration(b.cfg.Jail.TicketCloseDelaySeconds) * time.Second
	go func() {
		time.Sleep(delay)
		if _, err := b.session.ChannelDelete(channelID); err != nil {
			b.logger.Warn("ticket delete failed", zap.String("channel", channelID), zap.Error(err))
		}
	}()
}

// channelTranscript pages the full message history and renders it
// oldest first. The rendered text passes through a scratch file in the
// transcript directory, which is removed once read back.
func (b *Bot) channelTranscript(channelID string, appealID int64) string {
	var history []*discordgo.Message
	before := ""
	for {
		batch, err := b.session.ChannelMessages(channelID, 100, before, "", "")
		if err != nil {
			b.logger.Warn("transcript fetch failed", zap.String("channel", channelID), zap.Error(err))
			break
		}
		if len(batch) == 0 {
			break
		}
		history = append(history, batch...)
		before = batch[len(batch)-1].ID
		if len(batch) < 100 || len(history) >= 5000 {
			break
		}
	}

	// The API returns newest first.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	text := formatTranscript(history)

	path := filepath.Join(b.cfg.TranscriptDir, fmt.Sprintf("transcript-%d.txt", appealID))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		b.logger.Warn("transcript scratch write failed", zap.String("path", path), zap.Error(err))
		return text
	}
	data, err := os.ReadFile(path)
	if err != nil {
		b.logger.Warn("transcript scratch read failed", zap.String("path", path), zap.Error(err))
		return text
	}
	_ = os.Remove(path)
	return string(data)
}

// formatTranscript renders messages, oldest first, one line each.
func formatTranscript(messages []*discordgo.Message) string {
	var sb strings.Builder
	for _, message := range messages {
		author := "unknown"
		authorID := "?"
		if message.Author != nil {
			author = message.Author.Username
			authorID = message.Author.ID
		}
		content := message.Content
		if content == "" {
			switch {
			case len(message.Embeds) > 0:
				content = "[embed]"
			case len(message.Attachments) > 0:
				content = "[attachment]"
			}
		}
		fmt.Fprintf(&sb, "[%s] %s (%s): %s\n",
			message.Timestamp.UTC().Format("2006-01-02 15:04:05"), author, authorID, content)
	}
	return sb.String()
}
