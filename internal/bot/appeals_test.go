package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

func TestFormatTranscript(t *testing.T) {
	first := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	messages := []*discordgo.Message{
		{
			Author:    &discordgo.User{Username: "alice", ID: "100"},
			Content:   "I would like to appeal",
			Timestamp: first,
		},
		{
			Author:    &discordgo.User{Username: "mod", ID: "200"},
			Content:   "Reviewing now",
			Timestamp: first.Add(2 * time.Minute),
		},
		{
			Author:    &discordgo.User{Username: "mod", ID: "200"},
			Embeds:    []*discordgo.MessageEmbed{{Title: "verdict"}},
			Timestamp: first.Add(3 * time.Minute),
		},
	}

	got := formatTranscript(messages)
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), got)
	}
	if lines[0] != "[2025-03-10 09:30:00] alice (100): I would like to appeal" {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
	if lines[1] != "[2025-03-10 09:32:00] mod (200): Reviewing now" {
		t.Fatalf("unexpected second line: %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "[embed]") {
		t.Fatalf("embed-only message should render a placeholder: %q", lines[2])
	}
}

func TestFormatTranscriptEmpty(t *testing.T) {
	if got := formatTranscript(nil); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

func TestAppealCooldownRemaining(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	cooldown := 24 * time.Hour

	if got := appealCooldownRemaining(nil, now, cooldown); got != 0 {
		t.Fatalf("no prior appeal should mean no wait, got %v", got)
	}

	recent := now.Add(-6 * time.Hour)
	if got := appealCooldownRemaining(&recent, now, cooldown); got != 18*time.Hour {
		t.Fatalf("expected 18h remaining, got %v", got)
	}

	old := now.Add(-25 * time.Hour)
	if got := appealCooldownRemaining(&old, now, cooldown); got != 0 {
		t.Fatalf("expired cooldown should mean no wait, got %v", got)
	}

	exact := now.Add(-cooldown)
	if got := appealCooldownRemaining(&exact, now, cooldown); got != 0 {
		t.Fatalf("boundary should mean no wait, got %v", got)
	}
}

func TestSanitizeChannelName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"appeal-Alice", "appeal-alice"},
		{"appeal-Some User!", "appeal-some-user"},
		{"!!!", "appeal"},
		{"appeal-ALICE_02", "appeal-alice-02"},
	}
	for _, tt := range tests {
		if got := sanitizeChannelName(tt.in); got != tt.want {
			t.Fatalf("sanitizeChannelName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTicketChannelName(t *testing.T) {
	member := &discordgo.Member{User: &discordgo.User{Username: "Bad Actor"}}
	if got := ticketChannelName(member); got != "appeal-bad-actor" {
		t.Fatalf("ticketChannelName = %q", got)
	}
	if got := ticketChannelName(nil); got != "appeal" {
		t.Fatalf("ticketChannelName(nil) = %q", got)
	}
}
