package chat

import "testing"

func TestTitleFromContentKeepsShortContent(t *testing.T) {
	content := "I want to build a tutoring app"
	if got := TitleFromContent(content); got != content {
		t.Fatalf("expected %q, got %q", content, got)
	}
}

func TestTitleFromContentTruncatesLongContent(t *testing.T) {
	content := "Here is my startup idea: an app that matches students to micro-internships based on verified skill badges"
	want := "Here is my startup idea: an ap..."
	if got := TitleFromContent(content); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTitleFromContentCountsRunes(t *testing.T) {
	content := "创业想法创业想法创业想法创业想法创业想法创业想法创业想法创业想法"
	got := []rune(TitleFromContent(content))
	if len(got) != TitleLimit+3 {
		t.Fatalf("expected %d runes, got %d", TitleLimit+3, len(got))
	}
}

func TestDefaultTitle(t *testing.T) {
	if got := DefaultTitle(1); got != "New Chat 1" {
		t.Fatalf("unexpected default title %q", got)
	}
}

func TestWithoutSystemDropsSystemMessages(t *testing.T) {
	messages := []Message{
		{ID: "1", Role: RoleSystem, Content: "setup"},
		{ID: "2", Role: RoleUser, Content: "hi"},
		{ID: "3", Role: RoleAssistant, Content: "hello"},
	}

	got := WithoutSystem(messages)
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "3" {
		t.Fatalf("unexpected filtered messages: %+v", got)
	}
}

func TestCloneDoesNotAliasMessages(t *testing.T) {
	original := Session{ID: "s", Messages: []Message{{ID: "1"}}}
	cloned := original.Clone()
	cloned.Messages[0].ID = "changed"

	if original.Messages[0].ID != "1" {
		t.Fatal("clone mutated the original session")
	}
}
