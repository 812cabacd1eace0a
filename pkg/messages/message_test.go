package messages

import "testing"

func TestDedupKeepsMostRecent(t *testing.T) {
	list := []Message{
		User("Hello there"),
		Assistant("Hi!"),
		User("hello   THERE"),
		Assistant("Hi!"),
	}
	out := Dedup(list)
	if len(out) != 2 {
		t.Fatalf("expected 2 messages after dedup, got %d", len(out))
	}
	if out[0].Role != RoleUser || NormalizeContent(out[0].Content) != "hello there" {
		t.Fatalf("unexpected first survivor: %+v", out[0])
	}
	if out[1].Role != RoleAssistant {
		t.Fatalf("unexpected second survivor: %+v", out[1])
	}
}

func TestDedupDistinctRolesSurvive(t *testing.T) {
	list := []Message{
		User("ok"),
		Assistant("ok"),
	}
	out := Dedup(list)
	if len(out) != 2 {
		t.Fatalf("same content under different roles must survive, got %d", len(out))
	}
}

func TestCapHistoryKeepsSystemEntries(t *testing.T) {
	list := []Message{
		System("base prompt"),
		User("1"), Assistant("2"), User("3"), Assistant("4"),
		User("5"), Assistant("6"), User("7"), Assistant("8"),
	}
	out, dropped := CapHistory(list, 6)
	if dropped != 2 {
		t.Fatalf("expected 2 dropped, got %d", dropped)
	}
	if out[0].Role != RoleSystem {
		t.Fatalf("system entry must survive capping")
	}
	if len(out) != 7 {
		t.Fatalf("expected 7 messages (1 system + 6), got %d", len(out))
	}
	if out[1].Content != "3" {
		t.Fatalf("expected oldest survivors trimmed, got %q", out[1].Content)
	}
}
