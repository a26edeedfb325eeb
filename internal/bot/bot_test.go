package bot

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func TestErrorReplyHidesDetail(t *testing.T) {
	b := &Bot{logger: zap.NewNop()}
	secret := "dial tcp 10.0.0.5:5432: connection refused"
	reply := b.errorReply("jailing the member", errString(secret))
	if strings.Contains(reply, secret) {
		t.Fatalf("reply leaked internal error detail: %q", reply)
	}
	if !strings.Contains(reply, "jailing the member") {
		t.Fatalf("reply does not name the action: %q", reply)
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestTicketTracking(t *testing.T) {
	b := &Bot{openTickets: map[string]struct{}{}}
	if b.isTrackedTicket("chan1") {
		t.Fatal("empty cache reported a tracked ticket")
	}
	b.trackTicket("chan1")
	if !b.isTrackedTicket("chan1") {
		t.Fatal("tracked ticket not found")
	}
	if b.isTrackedTicket("chan2") {
		t.Fatal("untracked channel reported as ticket")
	}
	b.forgetTicket("chan1")
	if b.isTrackedTicket("chan1") {
		t.Fatal("forgotten ticket still tracked")
	}
	// Forgetting twice must be a no-op.
	b.forgetTicket("chan1")
}

func TestIsJailAdminMember(t *testing.T) {
	plain := &discordgo.Member{Roles: []string{"role1"}}
	if isJailAdminMember(nil, plain, "admins") {
		t.Fatal("plain member passed the admin check")
	}
	if isJailAdminMember(nil, nil, "admins") {
		t.Fatal("nil member passed the admin check")
	}

	withRole := &discordgo.Member{Roles: []string{"role1", "admins"}}
	if !isJailAdminMember(nil, withRole, "admins") {
		t.Fatal("jail admin role holder rejected")
	}

	withPerm := &discordgo.Member{Permissions: discordgo.PermissionAdministrator}
	if !isJailAdminMember(nil, withPerm, "admins") {
		t.Fatal("administrator rejected")
	}

	// Role-derived administrator permission when the interaction does
	// not carry resolved permissions.
	guild := &discordgo.Guild{
		ID: "guild1",
		Roles: []*discordgo.Role{
			{ID: "guild1", Permissions: 0},
			{ID: "mods", Permissions: discordgo.PermissionAdministrator},
		},
	}
	viaRolePerm := &discordgo.Member{Roles: []string{"mods"}}
	if !isJailAdminMember(guild, viaRolePerm, "") {
		t.Fatal("role-derived administrator rejected")
	}
}
