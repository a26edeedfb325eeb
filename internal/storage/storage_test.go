package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestSaveGuildConfig(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cfg := GuildConfig{
		GuildID:        "g1",
		JailRole:       "r1",
		JailCategory:   "cat1",
		AppealsChannel: "ch1",
		AdminChannel:   "ch2",
	}
	if err := store.SaveGuildConfig(ctx, cfg); err != nil {
		t.Fatalf("save guild config: %v", err)
	}

	// Partial update via read-modify-write must keep prior fields.
	got, err := store.GetGuildConfig(ctx, "g1")
	if err != nil {
		t.Fatalf("get guild config: %v", err)
	}
	got.AdminRole = "admins"
	if err := store.SaveGuildConfig(ctx, got); err != nil {
		t.Fatalf("update guild config: %v", err)
	}

	got, err = store.GetGuildConfig(ctx, "g1")
	if err != nil {
		t.Fatalf("get guild config: %v", err)
	}
	if got.JailRole != "r1" || got.AppealsChannel != "ch1" {
		t.Fatalf("prior fields lost: %+v", got)
	}
	if got.AdminRole != "admins" {
		t.Fatalf("expected admin role admins, got %q", got.AdminRole)
	}
}

func TestGetGuildConfigMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetGuildConfig(context.Background(), "none")
	if err != nil {
		t.Fatalf("get guild config: %v", err)
	}
	if got.GuildID != "none" || got.JailRole != "" {
		t.Fatalf("expected zero config, got %+v", got)
	}
}

func TestJailedUserUniquePerGuild(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := JailedUser{
		GuildID:       "g1",
		UserID:        "u1",
		Reason:        "spam",
		PreviousRoles: []string{"a", "b"},
		JailedAt:      time.Now(),
	}
	if err := store.AddJailedUser(ctx, user); err != nil {
		t.Fatalf("add jailed user: %v", err)
	}
	if err := store.AddJailedUser(ctx, user); err == nil {
		t.Fatalf("expected second jail insert to fail")
	}

	got, err := store.GetJailedUser(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("get jailed user: %v", err)
	}
	if got == nil || got.Reason != "spam" || len(got.PreviousRoles) != 2 {
		t.Fatalf("unexpected row: %+v", got)
	}

	// Same user in a different guild is a separate jail.
	user.GuildID = "g2"
	if err := store.AddJailedUser(ctx, user); err != nil {
		t.Fatalf("add jailed user other guild: %v", err)
	}
}

func TestJailedUserLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	release := time.Now().Add(time.Hour).UTC()
	user := JailedUser{GuildID: "g1", UserID: "u1", JailedAt: time.Now(), ReleaseAt: &release}
	if err := store.AddJailedUser(ctx, user); err != nil {
		t.Fatalf("add: %v", err)
	}

	jails, err := store.ListTimedJails(ctx)
	if err != nil {
		t.Fatalf("list timed jails: %v", err)
	}
	if len(jails) != 1 || jails[0].UserID != "u1" {
		t.Fatalf("unexpected timed jails: %+v", jails)
	}
	if _, err := time.Parse(time.RFC3339, jails[0].ReleaseAtRaw); err != nil {
		t.Fatalf("release_at not parseable: %q", jails[0].ReleaseAtRaw)
	}

	if err := store.RemoveJailedUser(ctx, "g1", "u1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, err := store.GetJailedUser(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("get after remove: %v", err)
	}
	if got != nil {
		t.Fatalf("expected row gone, got %+v", got)
	}
}

// Rollback paths delete the registry row without checking whether the
// insert ever happened, so a missing row must not be an error.
func TestRemoveJailedUserMissingRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RemoveJailedUser(ctx, "g1", "never-jailed"); err != nil {
		t.Fatalf("remove of missing row: %v", err)
	}
}

func TestIndefiniteJailNotListed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddJailedUser(ctx, JailedUser{GuildID: "g1", UserID: "u1", JailedAt: time.Now()}); err != nil {
		t.Fatalf("add: %v", err)
	}
	jails, err := store.ListTimedJails(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jails) != 0 {
		t.Fatalf("indefinite jail must not appear in timed list: %+v", jails)
	}
}
