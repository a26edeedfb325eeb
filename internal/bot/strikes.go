package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"warden/internal/durations"
	"warden/internal/modules/modlog"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) handleInfract(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	guildID := interaction.GuildID
	cfg := b.guildConfig(ctx, guildID)
	if !b.isJailAdmin(guildID, interaction.Member, cfg) {
		b.respond(session, interaction, "You do not have permission to issue strikes.", true)
		return
	}

	data := interaction.ApplicationCommandData()
	options := optionMap(data)
	userOption, ok := options["user"]
	if !ok {
		b.respond(session, interaction, "A user is required.", true)
		return
	}
	target := userOption.UserValue(session)
	if target == nil {
		b.respond(session, interaction, "Could not resolve that user.", true)
		return
	}
	moderatorID := ""
	if interaction.Member != nil && interaction.Member.User != nil {
		moderatorID = interaction.Member.User.ID
	}
	if target.ID == moderatorID {
		b.respond(session, interaction, "You cannot strike yourself.", true)
		return
	}

	label := optionString(options, "duration")
	reason := optionString(options, "reason")
	now := time.Now().UTC()
	expiresAt := durations.StrikeExpiry(label, now)

	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		return
	}
	inv := &invocation{session: session, interaction: interaction, deferred: true}

	strike := storage.Strike{
		GuildID:     guildID,
		UserID:      target.ID,
		ModeratorID: moderatorID,
		Reason:      reason,
		Duration:    label,
		ExpiresAt:   expiresAt,
	}
	if _, err := b.store.AddStrike(ctx, strike); err != nil {
		_ = inv.followup(b.errorReply("recording the strike", err))
		return
	}

	if cfg.StrikeRole != "" {
		if err := session.GuildMemberRoleAdd(guildID, target.ID, cfg.StrikeRole); err != nil {
			b.logger.Warn("strike role add failed",
				zap.String("guild", guildID),
				zap.String("user", target.ID),
				zap.Error(err))
		}
	}

	active, err := b.store.CountActiveStrikes(ctx, guildID, target.ID, now)
	if err != nil {
		b.logger.Warn("strike count failed", zap.Error(err))
	}

	terminated := label == durations.LabelTerminated || (b.cfg.Strikes.MaxActive > 0 && active >= b.cfg.Strikes.MaxActive)
	if terminated {
		b.terminateStaff(ctx, guildID, target.ID)
	}

	guildName := guildID
	if guild := b.guild(guildID); guild != nil {
		guildName = guild.Name
	}
	dm := fmt.Sprintf("You have received a staff strike in %s (%s). Reason: %s", guildName, label, orDash(reason))
	if terminated {
		dm += " This strike terminates your staff position."
	}
	b.dmUser(target.ID, dm)

	fields := []*discordgo.MessageEmbedField{
		{Name: "Staff member", Value: fmt.Sprintf("<@%s>", target.ID), Inline: true},
		{Name: "Duration", Value: label, Inline: true},
		{Name: "Active strikes", Value: fmt.Sprintf("%d", active), Inline: true},
		{Name: "Reason", Value: orDash(reason), Inline: false},
		{Name: "Issued by", Value: fmt.Sprintf("<@%s>", moderatorID), Inline: true},
	}
	if expiresAt != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Expires", Value: fmt.Sprintf("<t:%d:f>", expiresAt.Unix()), Inline: true,
		})
	}
	color := b.cfg.EmbedColors.Warning
	if terminated {
		color = b.cfg.EmbedColors.Error
	}
	embed := b.commandEmbed("Staff strike issued", "", color, fields)

	if cfg.StrikeChannel != "" {
		if _, err := session.ChannelMessageSendEmbed(cfg.StrikeChannel, embed); err != nil {
			b.logger.Warn("strike announcement failed", zap.String("channel", cfg.StrikeChannel), zap.Error(err))
		}
	}

	b.modlog.Log(ctx, modlog.EventStrike, guildID, target.ID, fmt.Sprintf("%s; %s", label, orDash(reason)))

	summary := fmt.Sprintf("Strike recorded for <@%s> (%s).", target.ID, label)
	if terminated {
		summary += " Termination roles were removed."
	}
	_ = inv.followup(summary)
}

// terminateStaff strips the configured termination role names from the
// member. Roles are matched by name since ids differ per guild.
func (b *Bot) terminateStaff(ctx context.Context, guildID, userID string) {
	guild := b.guild(guildID)
	member := b.memberForUser(guildID, userID)
	if guild == nil || member == nil {
		return
	}
	names := make(map[string]bool, len(b.cfg.Strikes.TerminationRoles))
	for _, name := range b.cfg.Strikes.TerminationRoles {
		names[strings.ToLower(name)] = true
	}
	for _, roleID := range member.Roles {
		role := roleByID(guild, roleID)
		if role == nil || !names[strings.ToLower(role.Name)] {
			continue
		}
		if err := b.session.GuildMemberRoleRemove(guildID, userID, roleID); err != nil {
			b.logger.Warn("termination role removal failed",
				zap.String("guild", guildID),
				zap.String("user", userID),
				zap.String("role", roleID),
				zap.Error(err))
		}
	}
}

func (b *Bot) handleInfractChannel(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	member := interaction.Member
	if member == nil || member.Permissions&discordgo.PermissionAdministrator == 0 {
		b.respond(session, interaction, "You need the Administrator permission to configure strikes.", true)
		return
	}
	data := interaction.ApplicationCommandData()
	options := optionMap(data)
	channelOption, ok := options["channel"]
	if !ok {
		b.respond(session, interaction, "A channel is required.", true)
		return
	}
	channel := channelOption.ChannelValue(session)
	if channel == nil {
		b.respond(session, interaction, "Could not resolve that channel.", true)
		return
	}

	cfg := b.guildConfig(ctx, interaction.GuildID)
	cfg.StrikeChannel = channel.ID
	if roleOption, ok := options["strikerole"]; ok {
		if role := roleOption.RoleValue(session, interaction.GuildID); role != nil {
			cfg.StrikeRole = role.ID
		}
	}
	if err := b.store.SaveGuildConfig(ctx, cfg); err != nil {
		b.respond(session, interaction, b.errorReply("saving the configuration", err), true)
		return
	}
	reply := fmt.Sprintf("Strike announcements will go to <#%s>.", channel.ID)
	if cfg.StrikeRole != "" {
		reply += fmt.Sprintf(" Strike role: <@&%s>.", cfg.StrikeRole)
	}
	b.respond(session, interaction, reply, false)
}

func (b *Bot) handleStrikes(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	guildID := interaction.GuildID
	cfg := b.guildConfig(ctx, guildID)
	if !b.isJailAdmin(guildID, interaction.Member, cfg) {
		b.respond(session, interaction, "You do not have permission to view strikes.", true)
		return
	}

	data := interaction.ApplicationCommandData()
	options := optionMap(data)
	userOption, ok := options["user"]
	if !ok {
		b.respond(session, interaction, "A user is required.", true)
		return
	}
	target := userOption.UserValue(session)
	if target == nil {
		b.respond(session, interaction, "Could not resolve that user.", true)
		return
	}

	strikes, err := b.store.ListStrikes(ctx, guildID, target.ID, time.Now().UTC())
	if err != nil {
		b.respond(session, interaction, b.errorReply("looking up strikes", err), true)
		return
	}
	if len(strikes) == 0 {
		b.respond(session, interaction, fmt.Sprintf("<@%s> has no active strikes.", target.ID), true)
		return
	}

	var sb strings.Builder
	for i, strike := range strikes {
		expiry := "never expires"
		if strike.ExpiresAt != nil {
			expiry = fmt.Sprintf("expires <t:%d:R>", strike.ExpiresAt.Unix())
		}
		fmt.Fprintf(&sb, "%d. **%s** (%s) by <@%s>: %s\n", i+1, strike.Duration, expiry, strike.ModeratorID, orDash(strike.Reason))
	}
	b.respondEmbed(session, interaction, b.commandEmbed(
		fmt.Sprintf("Active strikes for %s", target.Username),
		sb.String(), b.cfg.EmbedColors.Warning, nil), true)
}

func (b *Bot) handleClearStrikes(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	guildID := interaction.GuildID
	cfg := b.guildConfig(ctx, guildID)
	if !b.isJailAdmin(guildID, interaction.Member, cfg) {
		b.respond(session, interaction, "You do not have permission to clear strikes.", true)
		return
	}

	data := interaction.ApplicationCommandData()
	options := optionMap(data)
	userOption, ok := options["user"]
	if !ok {
		b.respond(session, interaction, "A user is required.", true)
		return
	}
	target := userOption.UserValue(session)
	if target == nil {
		b.respond(session, interaction, "Could not resolve that user.", true)
		return
	}

	cleared, err := b.store.ClearStrikes(ctx, guildID, target.ID)
	if err != nil {
		b.respond(session, interaction, b.errorReply("clearing strikes", err), true)
		return
	}
	if cfg.StrikeRole != "" {
		if err := session.GuildMemberRoleRemove(guildID, target.ID, cfg.StrikeRole); err != nil {
			b.logger.Warn("strike role removal failed",
				zap.String("guild", guildID),
				zap.String("user", target.ID),
				zap.Error(err))
		}
	}

	b.modlog.Log(ctx, modlog.EventStrikeCleared, guildID, target.ID, fmt.Sprintf("%d strikes cleared", cleared))
	b.respond(session, interaction, fmt.Sprintf("Cleared %d strikes for <@%s>.", cleared, target.ID), false)
}
