package bot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestDesiredOverwriteByKind(t *testing.T) {
	tests := []struct {
		name      string
		kind      discordgo.ChannelType
		appeals   bool
		wantAllow int64
		wantDeny  int64
	}{
		{
			name:     "text",
			kind:     discordgo.ChannelTypeGuildText,
			wantDeny: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory,
		},
		{
			name:     "news",
			kind:     discordgo.ChannelTypeGuildNews,
			wantDeny: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory,
		},
		{
			name:     "forum",
			kind:     discordgo.ChannelTypeGuildForum,
			wantDeny: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory,
		},
		{
			name:     "voice",
			kind:     discordgo.ChannelTypeGuildVoice,
			wantDeny: discordgo.PermissionViewChannel | discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak,
		},
		{
			name:     "stage",
			kind:     discordgo.ChannelTypeGuildStageVoice,
			wantDeny: discordgo.PermissionViewChannel | discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak,
		},
		{
			name:     "category",
			kind:     discordgo.ChannelTypeGuildCategory,
			wantDeny: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionVoiceConnect,
		},
		{
			name:      "appeals stays readable",
			kind:      discordgo.ChannelTypeGuildText,
			appeals:   true,
			wantAllow: discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory,
			wantDeny:  discordgo.PermissionSendMessages | discordgo.PermissionAddReactions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allow, deny := desiredOverwrite(tt.kind, tt.appeals)
			if allow != tt.wantAllow || deny != tt.wantDeny {
				t.Fatalf("desiredOverwrite(%v, %v) = (%d, %d), want (%d, %d)",
					tt.kind, tt.appeals, allow, deny, tt.wantAllow, tt.wantDeny)
			}
		})
	}
}

func TestNeedsLockdownFix(t *testing.T) {
	wantAllow, wantDeny := desiredOverwrite(discordgo.ChannelTypeGuildText, false)

	conforming := &discordgo.Channel{
		ID:   "chan1",
		Type: discordgo.ChannelTypeGuildText,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: "jail", Type: discordgo.PermissionOverwriteTypeRole, Allow: wantAllow, Deny: wantDeny},
		},
	}
	if needsLockdownFix(conforming, "jail", "appeals") {
		t.Fatal("conforming channel should not need a fix")
	}

	drifted := &discordgo.Channel{
		ID:   "chan2",
		Type: discordgo.ChannelTypeGuildText,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: "jail", Type: discordgo.PermissionOverwriteTypeRole, Allow: 0, Deny: discordgo.PermissionViewChannel},
		},
	}
	if !needsLockdownFix(drifted, "jail", "appeals") {
		t.Fatal("drifted channel should need a fix")
	}

	missing := &discordgo.Channel{ID: "chan3", Type: discordgo.ChannelTypeGuildText}
	if !needsLockdownFix(missing, "jail", "appeals") {
		t.Fatal("channel without a jail overwrite should need a fix")
	}

	memberOverwrite := &discordgo.Channel{
		ID:   "chan4",
		Type: discordgo.ChannelTypeGuildText,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: "jail", Type: discordgo.PermissionOverwriteTypeMember, Allow: wantAllow, Deny: wantDeny},
		},
	}
	if !needsLockdownFix(memberOverwrite, "jail", "appeals") {
		t.Fatal("a member overwrite does not satisfy the role overwrite")
	}
}

func TestNeedsLockdownFixAppealsChannel(t *testing.T) {
	wantAllow, wantDeny := desiredOverwrite(discordgo.ChannelTypeGuildText, true)
	appeals := &discordgo.Channel{
		ID:   "appeals",
		Type: discordgo.ChannelTypeGuildText,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: "jail", Type: discordgo.PermissionOverwriteTypeRole, Allow: wantAllow, Deny: wantDeny},
		},
	}
	if needsLockdownFix(appeals, "jail", "appeals") {
		t.Fatal("appeals channel with read-only overwrite should not need a fix")
	}
}
