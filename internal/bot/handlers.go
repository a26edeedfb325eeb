package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.dispatchCommand(ctx, session, interaction)
	case discordgo.InteractionMessageComponent:
		b.dispatchComponent(ctx, session, interaction)
	}
}

func (b *Bot) dispatchCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ApplicationCommandData()
	b.logger.Debug("command", zap.String("name", data.Name), zap.String("guild", interaction.GuildID))

	switch data.Name {
	case "setupjail":
		b.handleSetupJail(ctx, session, interaction)
	case "setjailadmins":
		b.handleSetJailAdmins(ctx, session, interaction)
	case "jaillog":
		b.handleJailLog(ctx, session, interaction)
	case "jail":
		b.handleJail(ctx, session, interaction)
	case "unjail":
		b.handleUnjail(ctx, session, interaction)
	case "jailstatus":
		b.handleJailStatus(ctx, session, interaction)
	case "lockdownjail":
		b.handleLockdownJail(ctx, session, interaction)
	case "fixjailperms":
		b.handleFixJailPerms(ctx, session, interaction)
	case "accept":
		b.handleTicketApprove(ctx, newInvocation(session, interaction))
	case "deny":
		b.handleTicketDeny(ctx, newInvocation(session, interaction))
	case "infract":
		b.handleInfract(ctx, session, interaction)
	case "infractchannel":
		b.handleInfractChannel(ctx, session, interaction)
	case "strikes":
		b.handleStrikes(ctx, session, interaction)
	case "clearstrikes":
		b.handleClearStrikes(ctx, session, interaction)
	case "jailstats":
		b.handleJailStats(ctx, session, interaction)
	}
}

func (b *Bot) dispatchComponent(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.MessageComponentData()
	b.logger.Debug("component", zap.String("custom_id", data.CustomID), zap.String("guild", interaction.GuildID))

	switch data.CustomID {
	case customIDCreateAppeal:
		b.handleCreateAppeal(ctx, newInvocation(session, interaction))
	case customIDTicketApprove:
		b.handleTicketApprove(ctx, newInvocation(session, interaction))
	case customIDTicketDeny:
		b.handleTicketDeny(ctx, newInvocation(session, interaction))
	case customIDTicketClose:
		b.handleTicketClose(ctx, newInvocation(session, interaction))
	}
}
