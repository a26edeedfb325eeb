package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Server-event listeners. Deleted and edited messages, joins, leaves
// and bans are mirrored into the guild's configured log channel so the
// jail channel history stays reconstructable after the fact. Nothing
// here touches the database.

// snippetLimit bounds message content reproduced in log embeds.
const snippetLimit = 300

func (b *Bot) serverLog(guildID, title, description string) {
	ctx := context.Background()
	cfg := b.guildConfig(ctx, guildID)
	if cfg.LogChannel == "" {
		return
	}
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       b.cfg.EmbedColors.Action,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if _, err := b.session.ChannelMessageSendEmbed(cfg.LogChannel, embed); err != nil {
		b.logger.Warn("server log post failed",
			zap.String("guild", guildID),
			zap.String("channel", cfg.LogChannel),
			zap.Error(err))
	}
}

func (b *Bot) isSelf(userID string) bool {
	return b.session != nil &&
		b.session.State != nil &&
		b.session.State.User != nil &&
		b.session.State.User.ID == userID
}

func (b *Bot) onMessageDelete(session *discordgo.Session, event *discordgo.MessageDelete) {
	if event.GuildID == "" {
		return
	}
	cached := event.BeforeDelete
	if cached != nil && cached.Author != nil && (cached.Author.Bot || b.isSelf(cached.Author.ID)) {
		return
	}
	b.serverLog(event.GuildID, "Message deleted", messageDeleteDetail(cached, event.ChannelID))
}

func (b *Bot) onMessageUpdate(session *discordgo.Session, event *discordgo.MessageUpdate) {
	if event.GuildID == "" || event.Author == nil || event.Author.Bot || b.isSelf(event.Author.ID) {
		return
	}
	var before string
	if event.BeforeUpdate != nil {
		before = event.BeforeUpdate.Content
	}
	// Embed unfurls arrive as content-less updates. Skip them.
	if event.Content == "" || event.Content == before {
		return
	}
	b.serverLog(event.GuildID, "Message edited",
		messageEditDetail(event.ChannelID, event.Author.ID, before, event.Content))
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.User == nil {
		return
	}
	b.serverLog(event.GuildID, "Member joined", memberDetail(event.User))
}

func (b *Bot) onGuildMemberRemove(session *discordgo.Session, event *discordgo.GuildMemberRemove) {
	if event.User == nil {
		return
	}
	b.serverLog(event.GuildID, "Member left", memberDetail(event.User))
}

func (b *Bot) onGuildBanAdd(session *discordgo.Session, event *discordgo.GuildBanAdd) {
	if event.User == nil {
		return
	}
	b.serverLog(event.GuildID, "Member banned", memberDetail(event.User))
}

func (b *Bot) onGuildBanRemove(session *discordgo.Session, event *discordgo.GuildBanRemove) {
	if event.User == nil {
		return
	}
	b.serverLog(event.GuildID, "Member unbanned", memberDetail(event.User))
}

// messageDeleteDetail describes a deleted message from the state cache.
// Old messages fall out of the cache, in which case only the channel is
// known.
func messageDeleteDetail(cached *discordgo.Message, channelID string) string {
	if cached == nil || cached.Author == nil {
		return fmt.Sprintf("A message was deleted in <#%s>. Content was not cached.", channelID)
	}
	return fmt.Sprintf("Message by <@%s> deleted in <#%s>:\n%s",
		cached.Author.ID, channelID, snippet(cached.Content, snippetLimit))
}

func messageEditDetail(channelID, authorID, before, after string) string {
	if before == "" {
		return fmt.Sprintf("Message by <@%s> edited in <#%s>. Previous content was not cached.\nNow: %s",
			authorID, channelID, snippet(after, snippetLimit))
	}
	return fmt.Sprintf("Message by <@%s> edited in <#%s>.\nBefore: %s\nAfter: %s",
		authorID, channelID, snippet(before, snippetLimit), snippet(after, snippetLimit))
}

func memberDetail(user *discordgo.User) string {
	return fmt.Sprintf("<@%s> (%s, id %s)", user.ID, user.Username, user.ID)
}

// snippet truncates content on a rune boundary for embed fields.
func snippet(content string, limit int) string {
	if content == "" {
		return "(empty)"
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
