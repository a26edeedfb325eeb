package bot

import (
	"reflect"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestCapturePrevious(t *testing.T) {
	member := &discordgo.Member{
		Roles: []string{"guild1", "role-a", "jail-role", "role-b"},
	}
	got := capturePrevious(member, "guild1", "jail-role")
	want := []string{"role-a", "role-b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("capturePrevious = %v, want %v", got, want)
	}
}

func TestCapturePreviousNilMember(t *testing.T) {
	if got := capturePrevious(nil, "g", "j"); got != nil {
		t.Fatalf("expected nil for nil member, got %v", got)
	}
}

func TestRestorableRoles(t *testing.T) {
	guild := &discordgo.Guild{
		ID: "guild1",
		Roles: []*discordgo.Role{
			{ID: "low", Position: 1},
			{ID: "high", Position: 9},
			{ID: "managed", Position: 2, Managed: true},
			{ID: "equal", Position: 5},
		},
	}
	botTop := 5

	got := restorableRoles(guild, []string{"low", "high", "managed", "equal", "deleted"}, botTop)
	want := []string{"low"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("restorableRoles = %v, want %v", got, want)
	}
}

func TestRestorableRolesUnknownBotPosition(t *testing.T) {
	guild := &discordgo.Guild{
		ID: "guild1",
		Roles: []*discordgo.Role{
			{ID: "low", Position: 1},
			{ID: "high", Position: 9},
		},
	}
	got := restorableRoles(guild, []string{"low", "high"}, -1)
	want := []string{"low", "high"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("restorableRoles = %v, want %v", got, want)
	}
}

func TestMemberHasPermission(t *testing.T) {
	guild := &discordgo.Guild{
		ID: "guild1",
		Roles: []*discordgo.Role{
			{ID: "guild1", Permissions: discordgo.PermissionSendMessages},
			{ID: "mod", Permissions: discordgo.PermissionManageRoles},
			{ID: "admin", Permissions: discordgo.PermissionAdministrator},
		},
	}

	mod := &discordgo.Member{Roles: []string{"mod"}}
	if !memberHasPermission(guild, mod, discordgo.PermissionManageRoles) {
		t.Fatal("expected mod to have manage roles")
	}
	if memberHasPermission(guild, mod, discordgo.PermissionBanMembers) {
		t.Fatal("mod should not have ban members")
	}

	admin := &discordgo.Member{Roles: []string{"admin"}}
	if !memberHasPermission(guild, admin, discordgo.PermissionBanMembers) {
		t.Fatal("administrator implies every permission")
	}
}
