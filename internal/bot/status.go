package bot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/process"
)

func (b *Bot) handleJailStats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	guildID := interaction.GuildID
	cfg := b.guildConfig(ctx, guildID)
	if !b.isJailAdmin(guildID, interaction.Member, cfg) {
		b.respond(session, interaction, "You do not have permission to view jail statistics.", true)
		return
	}

	jailed, err := b.store.CountJailed(ctx, guildID)
	if err != nil {
		b.respond(session, interaction, b.errorReply("loading jail statistics", err), true)
		return
	}
	openAppeals, err := b.store.CountOpenAppeals(ctx, guildID)
	if err != nil {
		b.respond(session, interaction, b.errorReply("loading jail statistics", err), true)
		return
	}
	strikes, err := b.store.CountGuildActiveStrikes(ctx, guildID, time.Now().UTC())
	if err != nil {
		b.respond(session, interaction, b.errorReply("loading jail statistics", err), true)
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Jailed members", Value: fmt.Sprintf("%d", jailed), Inline: true},
		{Name: "Open appeals", Value: fmt.Sprintf("%d", openAppeals), Inline: true},
		{Name: "Active strikes", Value: fmt.Sprintf("%d", strikes), Inline: true},
	}
	fields = append(fields, b.processFields()...)

	b.respondEmbed(session, interaction, b.commandEmbed("Jail statistics", "", b.cfg.EmbedColors.Action, fields), true)
}

// processFields reports memory, CPU and uptime for the bot process.
// Diagnostics are best-effort; a lookup failure just omits the field.
func (b *Bot) processFields() []*discordgo.MessageEmbedField {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil
	}
	var fields []*discordgo.MessageEmbedField
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Memory",
			Value:  fmt.Sprintf("%.1f MiB", float64(mem.RSS)/(1024*1024)),
			Inline: true,
		})
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "CPU",
			Value:  fmt.Sprintf("%.1f%%", cpu),
			Inline: true,
		})
	}
	if createMs, err := proc.CreateTime(); err == nil {
		uptime := time.Since(time.UnixMilli(createMs)).Round(time.Second)
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Uptime",
			Value:  uptime.String(),
			Inline: true,
		})
	}
	return fields
}
