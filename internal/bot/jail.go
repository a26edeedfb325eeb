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

const (
	jailRoleName     = "Jailed"
	jailCategoryName = "Jail"
	appealsName      = "appeals"
	adminChannelName = "jail-admins"
)

// capturePrevious returns the member's role ids minus the @everyone
// role and the jail role itself. This is the set restored on release.
func capturePrevious(member *discordgo.Member, guildID, jailRoleID string) []string {
	if member == nil {
		return nil
	}
	out := make([]string, 0, len(member.Roles))
	for _, roleID := range member.Roles {
		if roleID == guildID || roleID == jailRoleID {
			continue
		}
		out = append(out, roleID)
	}
	return out
}

// restorableRoles filters stored role ids down to roles that still
// exist, are not integration managed, and sit below the bot's top
// role. Anything else is silently dropped.
func restorableRoles(guild *discordgo.Guild, ids []string, botTop int) []string {
	if guild == nil {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		role := roleByID(guild, id)
		if role == nil || role.Managed {
			continue
		}
		if botTop >= 0 && role.Position >= botTop {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (b *Bot) handleSetupJail(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	member := interaction.Member
	if member == nil || member.Permissions&discordgo.PermissionAdministrator == 0 {
		b.respond(session, interaction, "You need the Administrator permission to run setup.", true)
		return
	}
	guildID := interaction.GuildID

	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		return
	}
	inv := &invocation{session: session, interaction: interaction, deferred: true}

	guild := b.guild(guildID)
	if guild == nil {
		_ = inv.followup("Could not resolve this server.")
		return
	}

	cfg := b.guildConfig(ctx, guildID)

	jailRole := roleByID(guild, cfg.JailRole)
	if jailRole == nil {
		jailRole = roleByName(guild, jailRoleName)
	}
	if jailRole == nil {
		created, err := session.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: jailRoleName})
		if err != nil {
			_ = inv.followup(b.errorReply("creating the jail role", err))
			return
		}
		jailRole = created
	}

	category := b.channelByID(guild, cfg.JailCategory)
	if category == nil || category.Type != discordgo.ChannelTypeGuildCategory {
		category = channelByName(guild, jailCategoryName, discordgo.ChannelTypeGuildCategory)
	}
	if category == nil {
		created, err := session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name: jailCategoryName,
			Type: discordgo.ChannelTypeGuildCategory,
			PermissionOverwrites: []*discordgo.PermissionOverwrite{
				{
					ID:   guildID,
					Type: discordgo.PermissionOverwriteTypeRole,
					Deny: discordgo.PermissionViewChannel,
				},
				{
					ID:    jailRole.ID,
					Type:  discordgo.PermissionOverwriteTypeRole,
					Allow: discordgo.PermissionViewChannel,
				},
			},
		})
		if err != nil {
			_ = inv.followup(b.errorReply("creating the jail category", err))
			return
		}
		category = created
	}

	appeals := b.channelByID(guild, cfg.AppealsChannel)
	if appeals == nil {
		created, err := session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name:     appealsName,
			Type:     discordgo.ChannelTypeGuildText,
			ParentID: category.ID,
			PermissionOverwrites: []*discordgo.PermissionOverwrite{
				{
					ID:   guildID,
					Type: discordgo.PermissionOverwriteTypeRole,
					Deny: discordgo.PermissionViewChannel,
				},
				{
					ID:    jailRole.ID,
					Type:  discordgo.PermissionOverwriteTypeRole,
					Allow: discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory,
					Deny:  discordgo.PermissionSendMessages | discordgo.PermissionAddReactions,
				},
			},
		})
		if err != nil {
			_ = inv.followup(b.errorReply("creating the appeals channel", err))
			return
		}
		appeals = created
	}

	adminChannel := b.channelByID(guild, cfg.AdminChannel)
	if adminChannel == nil {
		overwrites := []*discordgo.PermissionOverwrite{
			{
				ID:   guildID,
				Type: discordgo.PermissionOverwriteTypeRole,
				Deny: discordgo.PermissionViewChannel,
			},
		}
		if cfg.AdminRole != "" {
			overwrites = append(overwrites, &discordgo.PermissionOverwrite{
				ID:    cfg.AdminRole,
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
			})
		}
		created, err := session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name:                 adminChannelName,
			Type:                 discordgo.ChannelTypeGuildText,
			ParentID:             category.ID,
			PermissionOverwrites: overwrites,
		})
		if err != nil {
			_ = inv.followup(b.errorReply("creating the admin channel", err))
			return
		}
		adminChannel = created
	}

	cfg.JailRole = jailRole.ID
	cfg.JailCategory = category.ID
	cfg.AppealsChannel = appeals.ID
	cfg.AdminChannel = adminChannel.ID
	if err := b.store.SaveGuildConfig(ctx, cfg); err != nil {
		_ = inv.followup(b.errorReply("saving the setup configuration", err))
		return
	}

	b.postAppealPrompt(appeals.ID)
	b.modlog.Log(ctx, modlog.EventSetup, guildID, "", "jail infrastructure created")

	_ = inv.followupEmbed(b.commandEmbed("Jail setup complete", "", b.cfg.EmbedColors.Success, []*discordgo.MessageEmbedField{
		{Name: "Jail role", Value: fmt.Sprintf("<@&%s>", jailRole.ID), Inline: true},
		{Name: "Appeals", Value: fmt.Sprintf("<#%s>", appeals.ID), Inline: true},
		{Name: "Admin channel", Value: fmt.Sprintf("<#%s>", adminChannel.ID), Inline: true},
	}))
}

// postAppealPrompt replaces the appeal button message in the appeals
// channel, removing stale prompts from earlier setups first.
func (b *Bot) postAppealPrompt(channelID string) {
	if messages, err := b.session.ChannelMessages(channelID, 50, "", "", ""); err == nil {
		botID := ""
		if b.session.State.User != nil {
			botID = b.session.State.User.ID
		}
		for _, message := range messages {
			if message.Author != nil && message.Author.ID == botID && len(message.Embeds) > 0 {
				_ = b.session.ChannelMessageDelete(channelID, message.ID)
			}
		}
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Jail appeals",
		Description: "If you believe your jailing was a mistake, press the button below to open a private appeal ticket with the staff team.",
		Color:       b.cfg.EmbedColors.Action,
	}
	_, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Create Appeal",
						Style:    discordgo.PrimaryButton,
						CustomID: customIDCreateAppeal,
					},
				},
			},
		},
	})
	if err != nil {
		b.logger.Warn("appeal prompt post failed", zap.String("channel", channelID), zap.Error(err))
	}
}

func (b *Bot) handleSetJailAdmins(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	member := interaction.Member
	if member == nil || member.Permissions&discordgo.PermissionAdministrator == 0 {
		b.respond(session, interaction, "You need the Administrator permission to change jail admins.", true)
		return
	}
	data := interaction.ApplicationCommandData()
	options := optionMap(data)
	roleOption, ok := options["role"]
	if !ok {
		b.respond(session, interaction, "A role is required.", true)
		return
	}
	role := roleOption.RoleValue(session, interaction.GuildID)
	if role == nil {
		b.respond(session, interaction, "Could not resolve that role.", true)
		return
	}

	cfg := b.guildConfig(ctx, interaction.GuildID)
	cfg.AdminRole = role.ID
	if err := b.store.SaveGuildConfig(ctx, cfg); err != nil {
		b.respond(session, interaction, b.errorReply("saving the configuration", err), true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Jail admin role set to <@&%s>.", role.ID), false)
}

func (b *Bot) handleJailLog(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	member := interaction.Member
	if member == nil || member.Permissions&discordgo.PermissionAdministrator == 0 {
		b.respond(session, interaction, "You need the Administrator permission to set the log channel.", true)
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
	cfg.LogChannel = channel.ID
	if err := b.store.SaveGuildConfig(ctx, cfg); err != nil {
		b.respond(session, interaction, b.errorReply("saving the configuration", err), true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Moderation log channel set to <#%s>.", channel.ID), false)
}

func (b *Bot) handleJail(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	guildID := interaction.GuildID
	cfg := b.guildConfig(ctx, guildID)
	if !b.isJailAdmin(guildID, interaction.Member, cfg) {
		b.respond(session, interaction, "You do not have permission to jail members.", true)
		return
	}
	if cfg.JailRole == "" {
		b.respond(session, interaction, "Jail is not set up yet. Run /setupjail first.", true)
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
	if b.session.State.User != nil && target.ID == b.session.State.User.ID {
		b.respond(session, interaction, "I cannot jail myself.", true)
		return
	}

	reason := optionString(options, "reason")
	rawDuration := optionString(options, "duration")

	// A duration the parser rejects is treated as part of the reason,
	// and the jail becomes indefinite.
	duration, kind := durations.Parse(rawDuration)
	if rawDuration != "" && kind == durations.Invalid {
		if reason == "" {
			reason = rawDuration
		} else {
			reason = rawDuration + " " + reason
		}
	}

	existing, err := b.store.GetJailedUser(ctx, guildID, target.ID)
	if err != nil {
		b.respond(session, interaction, b.errorReply("looking up the jail record", err), true)
		return
	}
	if existing != nil {
		b.respond(session, interaction, fmt.Sprintf("<@%s> is already jailed.", target.ID), true)
		return
	}

	guild := b.guild(guildID)
	member := b.memberForUser(guildID, target.ID)
	if guild == nil || member == nil {
		b.respond(session, interaction, "That user is not in this server.", true)
		return
	}
	if !b.botCanManageRoles(guild) {
		b.respond(session, interaction, "I am missing the Manage Roles permission.", true)
		return
	}
	jailRole := roleByID(guild, cfg.JailRole)
	botTop := b.botTopRolePosition(guild)
	if jailRole == nil || (botTop >= 0 && jailRole.Position >= botTop) {
		b.respond(session, interaction, "The jail role is missing or above my top role.", true)
		return
	}

	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		return
	}
	inv := &invocation{session: session, interaction: interaction, deferred: true}

	previous := capturePrevious(member, guildID, cfg.JailRole)

	now := time.Now().UTC()
	var releaseAt *time.Time
	if kind == durations.Timed {
		clamped := durations.Clamp(duration, time.Duration(b.cfg.Jail.MaxDurationDays)*24*time.Hour)
		at := now.Add(clamped)
		releaseAt = &at
	}

	for _, roleID := range restorableRoles(guild, previous, botTop) {
		if err := session.GuildMemberRoleRemove(guildID, target.ID, roleID); err != nil {
			b.logger.Warn("role strip failed",
				zap.String("guild", guildID),
				zap.String("user", target.ID),
				zap.String("role", roleID),
				zap.Error(err))
		}
	}
	if err := session.GuildMemberRoleAdd(guildID, target.ID, cfg.JailRole); err != nil {
		b.rollbackJail(ctx, session, guild, guildID, target.ID, previous, botTop)
		_ = inv.followup("Adding the jail role failed; previous roles were restored.")
		return
	}

	record := storage.JailedUser{
		GuildID:       guildID,
		UserID:        target.ID,
		Reason:        reason,
		PreviousRoles: previous,
		JailedAt:      now,
		ReleaseAt:     releaseAt,
	}
	if err := b.store.AddJailedUser(ctx, record); err != nil {
		b.rollbackJail(ctx, session, guild, guildID, target.ID, previous, botTop)
		_ = inv.followup("Recording the jail failed; the member was not jailed.")
		return
	}

	// Confirm the registry row before announcing. A jail that did not
	// persist would never be swept or appealable.
	confirmed, err := b.store.GetJailedUser(ctx, guildID, target.ID)
	if err != nil || confirmed == nil {
		b.rollbackJail(ctx, session, guild, guildID, target.ID, previous, botTop)
		_ = inv.followup("The jail record could not be verified; the member was not jailed.")
		return
	}

	durationText := "indefinite, until an appeal or manual release"
	if releaseAt != nil {
		durationText = fmt.Sprintf("until <t:%d:f>", releaseAt.Unix())
	}
	dm := fmt.Sprintf("You have been jailed in %s (%s).", guild.Name, durationText)
	if reason != "" {
		dm += " Reason: " + reason
	}
	if cfg.AppealsChannel != "" {
		dm += fmt.Sprintf(" You can appeal in <#%s>.", cfg.AppealsChannel)
	}
	b.dmUser(target.ID, dm)

	b.modlog.Log(ctx, modlog.EventJail, guildID, target.ID, summarizeJail(reason, releaseAt))

	_ = inv.followupEmbed(b.commandEmbed("Member jailed", "", b.cfg.EmbedColors.Action, []*discordgo.MessageEmbedField{
		{Name: "User", Value: fmt.Sprintf("<@%s>", target.ID), Inline: true},
		{Name: "Duration", Value: durationText, Inline: true},
		{Name: "Reason", Value: orDash(reason), Inline: false},
		{Name: "Roles stripped", Value: fmt.Sprintf("%d", len(previous)), Inline: true},
	}))
}

// rollbackJail undoes a partial jail: jail role off, previous roles
// back, registry row gone. The row delete is a no-op when the insert
// never happened, so every failure branch can call this and leave the
// member free with no record saying otherwise.
func (b *Bot) rollbackJail(ctx context.Context, session *discordgo.Session, guild *discordgo.Guild, guildID, userID string, previous []string, botTop int) {
	if err := b.store.RemoveJailedUser(ctx, guildID, userID); err != nil {
		b.logger.Error("jail rollback row removal failed",
			zap.String("guild", guildID),
			zap.String("user", userID),
			zap.Error(err))
	}
	cfg := b.guildConfig(ctx, guildID)
	if cfg.JailRole != "" {
		_ = session.GuildMemberRoleRemove(guildID, userID, cfg.JailRole)
	}
	for _, roleID := range restorableRoles(guild, previous, botTop) {
		_ = session.GuildMemberRoleAdd(guildID, userID, roleID)
	}
}

func summarizeJail(reason string, releaseAt *time.Time) string {
	parts := []string{}
	if releaseAt != nil {
		parts = append(parts, "release at "+releaseAt.Format(time.RFC3339))
	} else {
		parts = append(parts, "indefinite")
	}
	if reason != "" {
		parts = append(parts, "reason: "+reason)
	}
	return strings.Join(parts, "; ")
}

// releaseJailed takes the jail role off a member and puts their stored
// roles back. Individual role failures are logged and skipped; only a
// missing member is an error.
func (b *Bot) releaseJailed(ctx context.Context, guildID, userID string, previousRoles []string) error {
	guild := b.guild(guildID)
	if guild == nil {
		return fmt.Errorf("guild %s unavailable", guildID)
	}
	member := b.memberForUser(guildID, userID)
	if member == nil {
		return fmt.Errorf("member %s not found in guild %s", userID, guildID)
	}

	cfg := b.guildConfig(ctx, guildID)
	if cfg.JailRole != "" {
		if err := b.session.GuildMemberRoleRemove(guildID, userID, cfg.JailRole); err != nil {
			b.logger.Warn("jail role removal failed",
				zap.String("guild", guildID),
				zap.String("user", userID),
				zap.Error(err))
		}
	}

	botTop := b.botTopRolePosition(guild)
	for _, roleID := range restorableRoles(guild, previousRoles, botTop) {
		if err := b.session.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
			b.logger.Warn("role restore failed",
				zap.String("guild", guildID),
				zap.String("user", userID),
				zap.String("role", roleID),
				zap.Error(err))
		}
	}
	return nil
}

func (b *Bot) handleUnjail(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	guildID := interaction.GuildID
	cfg := b.guildConfig(ctx, guildID)
	if !b.isJailAdmin(guildID, interaction.Member, cfg) {
		b.respond(session, interaction, "You do not have permission to release members.", true)
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

	record, err := b.store.GetJailedUser(ctx, guildID, target.ID)
	if err != nil {
		b.respond(session, interaction, b.errorReply("looking up the jail record", err), true)
		return
	}
	if record == nil {
		b.respond(session, interaction, fmt.Sprintf("<@%s> is not jailed.", target.ID), true)
		return
	}

	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		return
	}
	inv := &invocation{session: session, interaction: interaction, deferred: true}

	if err := b.releaseJailed(ctx, guildID, target.ID, record.PreviousRoles); err != nil {
		b.logger.Warn("release incomplete", zap.String("user", target.ID), zap.Error(err))
	}
	if err := b.store.RemoveJailedUser(ctx, guildID, target.ID); err != nil {
		_ = inv.followup(b.errorReply("removing the jail record", err))
		return
	}

	guildName := guildID
	if guild := b.guild(guildID); guild != nil {
		guildName = guild.Name
	}
	b.dmUser(target.ID, fmt.Sprintf("You have been released from jail in %s.", guildName))
	b.modlog.Log(ctx, modlog.EventUnjail, guildID, target.ID, "manual release")

	_ = inv.followupEmbed(b.commandEmbed("Member released", "", b.cfg.EmbedColors.Success, []*discordgo.MessageEmbedField{
		{Name: "User", Value: fmt.Sprintf("<@%s>", target.ID), Inline: true},
		{Name: "Roles restored", Value: fmt.Sprintf("%d", len(record.PreviousRoles)), Inline: true},
	}))
}

func (b *Bot) handleJailStatus(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	guildID := interaction.GuildID
	cfg := b.guildConfig(ctx, guildID)
	if !b.isJailAdmin(guildID, interaction.Member, cfg) {
		b.respond(session, interaction, "You do not have permission to inspect jail records.", true)
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

	record, err := b.store.GetJailedUser(ctx, guildID, target.ID)
	if err != nil {
		b.respond(session, interaction, b.errorReply("looking up the jail record", err), true)
		return
	}
	if record == nil {
		b.respond(session, interaction, fmt.Sprintf("<@%s> is not jailed.", target.ID), true)
		return
	}

	release := "indefinite"
	if record.ReleaseAt != nil {
		release = fmt.Sprintf("<t:%d:f>", record.ReleaseAt.Unix())
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Jail status", "", b.cfg.EmbedColors.Action, []*discordgo.MessageEmbedField{
		{Name: "User", Value: fmt.Sprintf("<@%s>", target.ID), Inline: true},
		{Name: "Jailed at", Value: fmt.Sprintf("<t:%d:f>", record.JailedAt.Unix()), Inline: true},
		{Name: "Release", Value: release, Inline: true},
		{Name: "Reason", Value: orDash(record.Reason), Inline: false},
		{Name: "Stored roles", Value: fmt.Sprintf("%d", len(record.PreviousRoles)), Inline: true},
	}), true)
}

func roleByName(guild *discordgo.Guild, name string) *discordgo.Role {
	if guild == nil {
		return nil
	}
	for _, role := range guild.Roles {
		if role.Name == name {
			return role
		}
	}
	return nil
}

func channelByName(guild *discordgo.Guild, name string, kind discordgo.ChannelType) *discordgo.Channel {
	if guild == nil {
		return nil
	}
	for _, channel := range guild.Channels {
		if channel.Name == name && channel.Type == kind {
			return channel
		}
	}
	return nil
}

func (b *Bot) channelByID(guild *discordgo.Guild, channelID string) *discordgo.Channel {
	if channelID == "" {
		return nil
	}
	if guild != nil {
		for _, channel := range guild.Channels {
			if channel.ID == channelID {
				return channel
			}
		}
	}
	channel, _ := b.session.Channel(channelID)
	return channel
}
