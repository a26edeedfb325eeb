package durations

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		d    time.Duration
		kind Kind
	}{
		{"2h", 2 * time.Hour, Timed},
		{"30", 30 * time.Minute, Timed},
		{"15m", 15 * time.Minute, Timed},
		{"3d", 72 * time.Hour, Timed},
		{"Permanent", 0, Indefinite},
		{"Terminated", 0, Indefinite},
		{"permanent", 0, Indefinite},
		{"soon", 0, Invalid},
		{"", 0, Invalid},
		{"-5m", 0, Invalid},
		{"0", 0, Invalid},
	}
	for _, tc := range cases {
		d, kind := Parse(tc.in)
		if d != tc.d || kind != tc.kind {
			t.Fatalf("Parse(%q) = (%v, %v), want (%v, %v)", tc.in, d, kind, tc.d, tc.kind)
		}
	}
}

func TestClamp(t *testing.T) {
	max := 28 * 24 * time.Hour
	if got := Clamp(40*24*time.Hour, max); got != max {
		t.Fatalf("expected clamp to %v, got %v", max, got)
	}
	if got := Clamp(time.Hour, max); got != time.Hour {
		t.Fatalf("expected hour unchanged, got %v", got)
	}
}

func TestStrikeExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if got := StrikeExpiry("Permanent", now); got != nil {
		t.Fatalf("expected nil expiry for Permanent, got %v", got)
	}
	if got := StrikeExpiry("Terminated", now); got != nil {
		t.Fatalf("expected nil expiry for Terminated, got %v", got)
	}
	got := StrikeExpiry("1 Week", now)
	if got == nil || !got.Equal(now.Add(7*24*time.Hour)) {
		t.Fatalf("unexpected expiry for 1 Week: %v", got)
	}
	got = StrikeExpiry("garbage", now)
	if got == nil || !got.Equal(now.Add(30*24*time.Hour)) {
		t.Fatalf("unknown label should default to one month, got %v", got)
	}
}
