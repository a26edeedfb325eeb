package storage

import (
	"context"
	"testing"
	"time"
)

func TestAppealLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateAppeal(ctx, "g1", "ch1", "u1", "spam")
	if err != nil {
		t.Fatalf("create appeal: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected non-zero appeal id")
	}

	appeal, err := store.OpenAppealByChannel(ctx, "ch1")
	if err != nil {
		t.Fatalf("open appeal by channel: %v", err)
	}
	if appeal == nil || appeal.UserID != "u1" || appeal.Reason != "spam" {
		t.Fatalf("unexpected appeal: %+v", appeal)
	}

	closed, err := store.CloseAppeal(ctx, "ch1", AppealApproved, "transcript text")
	if err != nil {
		t.Fatalf("close appeal: %v", err)
	}
	if !closed {
		t.Fatalf("expected first close to transition")
	}

	// Terminal state is one-way: a second resolution finds no open row.
	closed, err = store.CloseAppeal(ctx, "ch1", AppealDenied, "other transcript")
	if err != nil {
		t.Fatalf("second close: %v", err)
	}
	if closed {
		t.Fatalf("expected second close to be a no-op")
	}
	appeal, err = store.OpenAppealByChannel(ctx, "ch1")
	if err != nil {
		t.Fatalf("open appeal after close: %v", err)
	}
	if appeal != nil {
		t.Fatalf("expected no open appeal, got %+v", appeal)
	}
}

func TestLatestAppealCreatedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.LatestAppealCreatedAt(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("latest appeal: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for user without appeals")
	}

	if _, err := store.CreateAppeal(ctx, "g1", "ch1", "u1", "r"); err != nil {
		t.Fatalf("create appeal: %v", err)
	}
	got, err = store.LatestAppealCreatedAt(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("latest appeal: %v", err)
	}
	if got == nil {
		t.Fatalf("expected created_at for user with appeal")
	}
	if time.Since(*got) > time.Minute {
		t.Fatalf("created_at too old: %v", got)
	}
}

func TestOpenTicketChannels(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateAppeal(ctx, "g1", "ch1", "u1", "r"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateAppeal(ctx, "g1", "ch2", "u2", "r"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CloseAppeal(ctx, "ch2", AppealClosed, ""); err != nil {
		t.Fatalf("close: %v", err)
	}

	channels, err := store.OpenTicketChannels(ctx)
	if err != nil {
		t.Fatalf("open ticket channels: %v", err)
	}
	if len(channels) != 1 || channels[0] != "ch1" {
		t.Fatalf("unexpected channels: %v", channels)
	}
}

func TestStrikeExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	if _, err := store.AddStrike(ctx, Strike{GuildID: "g1", UserID: "u1", ModeratorID: "m1", Duration: "1 Week", ExpiresAt: &past}); err != nil {
		t.Fatalf("add expired strike: %v", err)
	}
	if _, err := store.AddStrike(ctx, Strike{GuildID: "g1", UserID: "u1", ModeratorID: "m1", Duration: "1 Month", ExpiresAt: &future}); err != nil {
		t.Fatalf("add active strike: %v", err)
	}
	if _, err := store.AddStrike(ctx, Strike{GuildID: "g1", UserID: "u1", ModeratorID: "m1", Duration: "Permanent"}); err != nil {
		t.Fatalf("add permanent strike: %v", err)
	}

	active, err := store.ListStrikes(ctx, "g1", "u1", now)
	if err != nil {
		t.Fatalf("list strikes: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active strikes, got %d", len(active))
	}

	expired, err := store.ListExpiredStrikes(ctx, now)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].Duration != "1 Week" {
		t.Fatalf("unexpected expired strikes: %+v", expired)
	}

	if err := store.RemoveStrike(ctx, expired[0].ID); err != nil {
		t.Fatalf("remove strike: %v", err)
	}
	count, err := store.CountActiveStrikes(ctx, "g1", "u1", now)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 active strikes after removal, got %d", count)
	}

	removed, err := store.ClearStrikes(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 rows cleared, got %d", removed)
	}
}
