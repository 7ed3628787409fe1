package importer

import (
	"strings"
	"testing"
)

func TestBuildExport_PairsMessages(t *testing.T) {
	msgs := []Message{
		{Role: "assistant", Text: "stray greeting"},
		{Role: "user", Text: "What is a channel?"},
		{Role: "user", Text: "In Go specifically."},
		{Role: "assistant", Text: "A typed conduit."},
		{Role: "assistant", Text: "Use make(chan T)."},
		{Role: "user", Text: "And select?"},
		{Role: "assistant", Text: "Waits on several channels."},
		{Role: "user", Text: "unanswered"},
	}

	exp := BuildExport(msgs)
	if exp.Platform != PlatformClaudeCode {
		t.Errorf("unexpected platform %q", exp.Platform)
	}
	if len(exp.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d: %+v", len(exp.Sessions), exp.Sessions)
	}
	if exp.Sessions[0].Question != "What is a channel?\n\nIn Go specifically." {
		t.Errorf("unexpected merged question %q", exp.Sessions[0].Question)
	}
	if exp.Sessions[0].Answer != "A typed conduit.\n\nUse make(chan T)." {
		t.Errorf("unexpected merged answer %q", exp.Sessions[0].Answer)
	}
	if exp.Title != "What is a channel?" {
		t.Errorf("unexpected title %q", exp.Title)
	}
}

func TestBuildExport_Empty(t *testing.T) {
	exp := BuildExport(nil)
	if len(exp.Sessions) != 0 || exp.Title != "" {
		t.Errorf("expected empty export, got %+v", exp)
	}
}

func TestTitleFrom_Truncates(t *testing.T) {
	got := titleFrom(strings.Repeat("word ", 40) + "\nsecond line")
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis, got %q", got)
	}
	if n := len([]rune(got)); n > maxTitleRunes+3 {
		t.Errorf("title too long: %d", n)
	}
}
