package bot

import (
	"fmt"

	"warden/internal/durations"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	strikeChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(durations.StrikeLabels))
	for _, label := range durations.StrikeLabels {
		strikeChoices = append(strikeChoices, &discordgo.ApplicationCommandOptionChoice{
			Name:  label,
			Value: label,
		})
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "setupjail",
			Description: "Create the jail role, category and channels for this server",
		},
		{
			Name:        "setjailadmins",
			Description: "Set the role allowed to run jail commands",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Jail admin role",
					Required:    true,
				},
			},
		},
		{
			Name:        "jaillog",
			Description: "Set the channel that receives moderation log embeds",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Log channel",
					Required:    true,
				},
			},
		},
		{
			Name:        "jail",
			Description: "Jail a member, stripping their roles",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to jail",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "duration",
					Description: "How long, e.g. 30m, 2h, 7d (omit for indefinite)",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Why the member is being jailed",
					Required:    false,
				},
			},
		},
		{
			Name:        "unjail",
			Description: "Release a jailed member and restore their roles",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to release",
					Required:    true,
				},
			},
		},
		{
			Name:        "jailstatus",
			Description: "Show the jail record for a member",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to look up",
					Required:    true,
				},
			},
		},
		{
			Name:        "lockdownjail",
			Description: "Apply jail role deny overwrites to every channel",
		},
		{
			Name:        "fixjailperms",
			Description: "Repair channels whose jail overwrites have drifted",
		},
		{
			Name:        "accept",
			Description: "Approve the appeal in this ticket channel",
		},
		{
			Name:        "deny",
			Description: "Deny the appeal in this ticket channel",
		},
		{
			Name:        "infract",
			Description: "Issue a staff strike",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Staff member to strike",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "duration",
					Description: "Strike duration",
					Required:    true,
					Choices:     strikeChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Why the strike is being issued",
					Required:    true,
				},
			},
		},
		{
			Name:        "infractchannel",
			Description: "Set the strike announcement channel and strike role",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Strike announcement channel",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "strikerole",
					Description: "Role applied to struck staff",
					Required:    false,
				},
			},
		},
		{
			Name:        "strikes",
			Description: "List a staff member's active strikes",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Staff member to look up",
					Required:    true,
				},
			},
		},
		{
			Name:        "clearstrikes",
			Description: "Clear all strikes for a staff member",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Staff member to clear",
					Required:    true,
				},
			},
		},
		{
			Name:        "jailstats",
			Description: "Show jail, appeal and process statistics",
		},
	}
}

func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	commands, err := b.session.ApplicationCommandBulkOverwrite(appID, "", commandDefinitions())
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	b.logger.Info("commands registered", zap.Int("count", len(commands)))
	return nil
}

// optionMap flattens command options for name lookup.
func optionMap(data discordgo.ApplicationCommandInteractionData) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, option := range data.Options {
		out[option.Name] = option
	}
	return out
}

func optionString(options map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if option, ok := options[name]; ok {
		return option.StringValue()
	}
	return ""
}
