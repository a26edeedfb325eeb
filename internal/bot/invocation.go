package bot

import (
	"github.com/bwmarrin/discordgo"
)

// invocation wraps a single interaction so ticket handlers can be
// reached two ways: a button click on the ticket message, or a slash
// command run inside the ticket channel. Both carry the same reply
// surface.
type invocation struct {
	session     *discordgo.Session
	interaction *discordgo.InteractionCreate
	deferred    bool
}

func newInvocation(session *discordgo.Session, interaction *discordgo.InteractionCreate) *invocation {
	return &invocation{session: session, interaction: interaction}
}

func (v *invocation) guildID() string {
	return v.interaction.GuildID
}

func (v *invocation) channelID() string {
	return v.interaction.ChannelID
}

func (v *invocation) member() *discordgo.Member {
	return v.interaction.Member
}

func (v *invocation) userID() string {
	if member := v.interaction.Member; member != nil && member.User != nil {
		return member.User.ID
	}
	if v.interaction.User != nil {
		return v.interaction.User.ID
	}
	return ""
}

func (v *invocation) respond(content string, ephemeral bool) error {
	if v.deferred {
		return v.followup(content)
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return v.session.InteractionRespond(v.interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

// deferReply acknowledges the interaction so slow work (transcripts,
// role restores) can complete past the three second response deadline.
func (v *invocation) deferReply() error {
	if v.deferred {
		return nil
	}
	err := v.session.InteractionRespond(v.interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err == nil {
		v.deferred = true
	}
	return err
}

func (v *invocation) followup(content string) error {
	if !v.deferred {
		return v.respond(content, false)
	}
	_, err := v.session.FollowupMessageCreate(v.interaction.Interaction, true, &discordgo.WebhookParams{
		Content: content,
	})
	return err
}

func (v *invocation) followupEmbed(embed *discordgo.MessageEmbed) error {
	if !v.deferred {
		if err := v.deferReply(); err != nil {
			return err
		}
	}
	_, err := v.session.FollowupMessageCreate(v.interaction.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	return err
}
