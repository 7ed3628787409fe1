package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/claudex/internal/store"
)

const chat = "Human: What is Go?\nAssistant: A language.\nHuman: Who made it?\nAssistant: Google."

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Cleanup(func() {
		parseLabel = false
		cleanupYes = false
		indexRemote = false
	})

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseCommand_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.txt")
	if err := os.WriteFile(path, []byte(chat), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", "parse", path)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	var res parseResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if res.Stage != "markers" || len(res.Sessions) != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Sessions[1].Question != "Who made it?" || res.Sessions[1].Order != 2 {
		t.Errorf("unexpected second session %+v", res.Sessions[1])
	}
}

func TestParseCommand_Stdin(t *testing.T) {
	out, err := run(t, chat, "parse", "-")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !strings.Contains(out, `"question": "What is Go?"`) {
		t.Errorf("expected first question in output, got %s", out)
	}
}

func TestParseCommand_Invalid(t *testing.T) {
	_, err := run(t, "   ", "parse")
	if err == nil || !strings.Contains(err.Error(), "No Q&A sessions found") {
		t.Errorf("expected user-facing validation error, got %v", err)
	}
}

func TestParseCommand_LabelWithoutKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := run(t, chat, "parse", "--label")
	if err == nil || !strings.Contains(err.Error(), "missing API credential") {
		t.Errorf("expected missing credential error, got %v", err)
	}
}

func TestCleanupCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "claudex.db")
	t.Setenv("DATABASE_URL", dbPath)

	ctx := context.Background()
	repo, err := store.NewSQLite(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	repo.CreateDocument(ctx, "old", chat)
	repo.CreateDocument(ctx, "older", chat)
	latest, _ := repo.CreateDocument(ctx, "latest", chat)
	repo.Close()

	out, err := run(t, "no\n", "cleanup")
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if !strings.Contains(out, "Cancelled") {
		t.Errorf("expected cancellation, got %s", out)
	}

	out, err = run(t, "", "cleanup", "--yes")
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if !strings.Contains(out, "Deleted 2 documents") {
		t.Errorf("unexpected output %s", out)
	}

	repo, err = store.NewSQLite(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	docs, _ := repo.ListRecentDocuments(ctx, 10)
	if len(docs) != 1 || docs[0].ID != latest.ID {
		t.Errorf("expected only latest document kept, got %+v", docs)
	}
}

func TestCleanupCommand_Empty(t *testing.T) {
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "empty.db"))
	out, err := run(t, "", "cleanup")
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if !strings.Contains(out, "No documents found") {
		t.Errorf("unexpected output %s", out)
	}
}

func TestImportCommand_DryRun(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte(chat), 0o644)
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "claudex.db"))
	t.Cleanup(func() { importDryRun = false })

	out, err := run(t, "", "import", dir, "--dry-run", "--state", filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if !strings.Contains(out, `"imported": 1`) {
		t.Errorf("unexpected summary %s", out)
	}
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	for _, name := range []string{"serve", "parse", "cleanup", "import", "index"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd == rootCmd || cmd.Name() != name {
			t.Errorf("expected %s subcommand on root, got %v (err %v)", name, cmd, err)
		}
	}
}

func TestIndexCommand_WithoutKeyMarksError(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "claudex.db")
	t.Setenv("DATABASE_URL", dbPath)
	t.Setenv("ANTHROPIC_API_KEY", "")

	ctx := context.Background()
	repo, err := store.NewSQLite(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	doc, _ := repo.CreateDocument(ctx, "go", chat)
	repo.Close()

	out, err := run(t, "", "index", doc.ID.String())
	if err == nil || !strings.Contains(err.Error(), "missing API credential") {
		t.Fatalf("expected missing credential error, got %v", err)
	}
	if !strings.Contains(out, "Found 2 sessions") {
		t.Errorf("expected progress output, got %s", out)
	}

	repo, err = store.NewSQLite(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	got, _ := repo.GetDocument(ctx, doc.ID)
	if got.Status != store.StatusError {
		t.Errorf("expected error status, got %s", got.Status)
	}
}

func TestIndexCommand_InvalidArgs(t *testing.T) {
	if _, err := run(t, "", "index", "not-a-uuid"); err == nil || !strings.Contains(err.Error(), "invalid document id") {
		t.Errorf("expected invalid id error, got %v", err)
	}

	t.Setenv("NATS_URL", "")
	_, err := run(t, "", "index", "--remote", "6f1c2b8e-3d4a-4c5b-9e7f-1a2b3c4d5e6f")
	if err == nil || !strings.Contains(err.Error(), "NATS_URL") {
		t.Errorf("expected NATS_URL error, got %v", err)
	}
}
