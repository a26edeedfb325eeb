package bot

import (
	"testing"
	"time"
)

func TestClassifyRelease(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
		want releaseState
	}{
		{"future", now.Add(time.Hour).Format(time.RFC3339), releasePending},
		{"past", now.Add(-time.Hour).Format(time.RFC3339), releaseDue},
		{"exactly now", now.Format(time.RFC3339), releaseDue},
		{"empty", "", releaseCorrupt},
		{"garbage", "not-a-timestamp", releaseCorrupt},
		{"wrong layout", "2025-06-01 12:00:00", releaseCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyRelease(tt.raw, now); got != tt.want {
				t.Fatalf("classifyRelease(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
