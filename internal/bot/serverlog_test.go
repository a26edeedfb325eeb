package bot

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestSnippet(t *testing.T) {
	if got := snippet("", 10); got != "(empty)" {
		t.Fatalf("empty content: got %q", got)
	}
	if got := snippet("hello", 10); got != "hello" {
		t.Fatalf("short content changed: got %q", got)
	}
	long := strings.Repeat("ab", 200)
	got := snippet(long, snippetLimit)
	if len([]rune(got)) != snippetLimit+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("long content not truncated: got %d runes", len([]rune(got)))
	}
	// Truncation must not split a rune.
	multi := strings.Repeat("é", 8)
	if got := snippet(multi, 4); got != "éééé..." {
		t.Fatalf("rune-boundary truncation: got %q", got)
	}
}

func TestMessageDeleteDetail(t *testing.T) {
	got := messageDeleteDetail(nil, "chan1")
	if !strings.Contains(got, "<#chan1>") || !strings.Contains(got, "not cached") {
		t.Fatalf("uncached delete detail: got %q", got)
	}

	cached := &discordgo.Message{
		Author:  &discordgo.User{ID: "user1"},
		Content: "offending text",
	}
	got = messageDeleteDetail(cached, "chan1")
	if !strings.Contains(got, "<@user1>") || !strings.Contains(got, "offending text") {
		t.Fatalf("cached delete detail: got %q", got)
	}
}

func TestMessageEditDetail(t *testing.T) {
	got := messageEditDetail("chan1", "user1", "", "new text")
	if !strings.Contains(got, "not cached") || !strings.Contains(got, "new text") {
		t.Fatalf("edit without cached before: got %q", got)
	}

	got = messageEditDetail("chan1", "user1", "old text", "new text")
	if !strings.Contains(got, "old text") || !strings.Contains(got, "new text") {
		t.Fatalf("edit with cached before: got %q", got)
	}
}

func TestMemberDetail(t *testing.T) {
	got := memberDetail(&discordgo.User{ID: "user1", Username: "alice"})
	if !strings.Contains(got, "<@user1>") || !strings.Contains(got, "alice") {
		t.Fatalf("member detail: got %q", got)
	}
}
