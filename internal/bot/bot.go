package bot

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"warden/internal/config"
	"warden/internal/modules/modlog"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *storage.Store
	modlog  *modlog.Logger
	session *discordgo.Session

	// openTickets caches the channel ids of open appeal tickets. It is
	// warmed from the store at startup and pruned when a ticket closes;
	// every decision still re-verifies against the store.
	ticketMu    sync.Mutex
	openTickets map[string]struct{}

	// busyGuilds tracks guilds with a lockdown batch in flight.
	busyMu     sync.Mutex
	busyGuilds map[string]struct{}
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, modLogger *modlog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	// Cached messages back the deleted/edited content in the server log.
	session.State.MaxMessageCount = 500

	b := &Bot{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		modlog:      modLogger,
		session:     session,
		openTickets: make(map[string]struct{}),
		busyGuilds:  make(map[string]struct{}),
	}

	if b.modlog != nil {
		b.modlog.SetNotifier(b.notifyModEvent)
	}

	return b, nil
}

func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onChannelCreate)
	b.session.AddHandler(b.onChannelUpdate)
	b.session.AddHandler(b.onMessageDelete)
	b.session.AddHandler(b.onMessageUpdate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberRemove)
	b.session.AddHandler(b.onGuildBanAdd)
	b.session.AddHandler(b.onGuildBanRemove)

	if err := os.MkdirAll(b.cfg.TranscriptDir, 0o755); err != nil {
		return fmt.Errorf("transcript dir: %w", err)
	}

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.loadOpenTickets(ctx)
	b.startSweepers(ctx)

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) loadOpenTickets(ctx context.Context) {
	channels, err := b.store.OpenTicketChannels(ctx)
	if err != nil {
		b.logger.Warn("open ticket warmup failed", zap.Error(err))
		return
	}
	b.ticketMu.Lock()
	for _, id := range channels {
		b.openTickets[id] = struct{}{}
	}
	b.ticketMu.Unlock()
	b.logger.Info("open tickets loaded", zap.Int("count", len(channels)))
}

func (b *Bot) trackTicket(channelID string) {
	b.ticketMu.Lock()
	b.openTickets[channelID] = struct{}{}
	b.ticketMu.Unlock()
}

// isTrackedTicket answers the quick membership check for ticket
// actions. Every open ticket passes through trackTicket or the startup
// warmup, so a miss means the channel never held an open appeal; hits
// are still re-verified against the store.
func (b *Bot) isTrackedTicket(channelID string) bool {
	b.ticketMu.Lock()
	defer b.ticketMu.Unlock()
	_, ok := b.openTickets[channelID]
	return ok
}

func (b *Bot) forgetTicket(channelID string) {
	b.ticketMu.Lock()
	delete(b.openTickets, channelID)
	b.ticketMu.Unlock()
}

// guildConfig reads the stored config, falling back to an empty config
// when the read fails so handlers can report "not configured".
func (b *Bot) guildConfig(ctx context.Context, guildID string) storage.GuildConfig {
	cfg, err := b.store.GetGuildConfig(ctx, guildID)
	if err != nil {
		b.logger.Warn("guild config fallback", zap.Error(err))
		return storage.GuildConfig{GuildID: guildID}
	}
	return cfg
}

func (b *Bot) guild(guildID string) *discordgo.Guild {
	guild, err := b.session.State.Guild(guildID)
	if err == nil && guild != nil {
		return guild
	}
	guild, _ = b.session.Guild(guildID)
	return guild
}

func (b *Bot) memberForUser(guildID, userID string) *discordgo.Member {
	member, err := b.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return member
	}
	member, _ = b.session.GuildMember(guildID, userID)
	return member
}

func roleByID(guild *discordgo.Guild, roleID string) *discordgo.Role {
	if guild == nil || roleID == "" {
		return nil
	}
	for _, role := range guild.Roles {
		if role.ID == roleID {
			return role
		}
	}
	return nil
}

// botTopRolePosition returns the highest role position held by the bot
// member, or -1 when it cannot be determined.
func (b *Bot) botTopRolePosition(guild *discordgo.Guild) int {
	if guild == nil || b.session.State.User == nil {
		return -1
	}
	me := b.memberForUser(guild.ID, b.session.State.User.ID)
	if me == nil {
		return -1
	}
	top := -1
	for _, roleID := range me.Roles {
		if role := roleByID(guild, roleID); role != nil && role.Position > top {
			top = role.Position
		}
	}
	return top
}

func (b *Bot) botCanManageRoles(guild *discordgo.Guild) bool {
	if guild == nil || b.session.State.User == nil {
		return false
	}
	me := b.memberForUser(guild.ID, b.session.State.User.ID)
	if me == nil {
		return false
	}
	return memberHasPermission(guild, me, discordgo.PermissionManageRoles)
}

// isJailAdmin reports whether the member holds the jail-admin
// capability: administrator permission, or the configured admin role.
func (b *Bot) isJailAdmin(guildID string, member *discordgo.Member, cfg storage.GuildConfig) bool {
	if isJailAdminMember(nil, member, cfg.AdminRole) {
		return true
	}
	guild := b.guild(guildID)
	return memberHasPermission(guild, member, discordgo.PermissionAdministrator)
}

func isJailAdminMember(guild *discordgo.Guild, member *discordgo.Member, adminRoleID string) bool {
	if member == nil {
		return false
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if adminRoleID != "" {
		for _, roleID := range member.Roles {
			if roleID == adminRoleID {
				return true
			}
		}
	}
	return memberHasPermission(guild, member, discordgo.PermissionAdministrator)
}

func memberHasPermission(guild *discordgo.Guild, member *discordgo.Member, permission int64) bool {
	if guild == nil || member == nil {
		return false
	}
	perms := int64(0)
	for _, role := range guild.Roles {
		if role.ID == guild.ID {
			perms |= role.Permissions
			break
		}
	}
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return perms&permission != 0
}

// dmUser delivers a direct message best-effort; failures are swallowed
// since the user may have DMs closed.
func (b *Bot) dmUser(userID, content string) {
	if userID == "" || content == "" {
		return
	}
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return
	}
	_, _ = b.session.ChannelMessageSend(channel.ID, content)
}

func (b *Bot) notifyModEvent(ctx context.Context, event storage.ModEvent) {
	cfg := b.guildConfig(ctx, event.GuildID)
	if cfg.LogChannel == "" {
		return
	}
	userValue := "system"
	if event.UserID != "" {
		userValue = "<@" + event.UserID + ">"
	}
	embed := &discordgo.MessageEmbed{
		Title:     "Moderation event",
		Color:     b.cfg.EmbedColors.Action,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Event", Value: event.Event, Inline: true},
			{Name: "User", Value: userValue, Inline: true},
			{Name: "Details", Value: orDash(event.Details), Inline: false},
		},
	}
	_, _ = b.session.ChannelMessageSendEmbed(cfg.LogChannel, embed)
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

// errorReply logs an internal failure in full and returns the short
// message shown to the caller. Error detail never reaches chat.
func (b *Bot) errorReply(action string, err error) string {
	b.logger.Error(action+" failed", zap.Error(err))
	return "Something went wrong while " + action + ". Please try again later."
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
