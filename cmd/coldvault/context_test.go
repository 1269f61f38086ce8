package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, journalPath string) string {
	t.Helper()
	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
output_dir = %q
staging_dir = %q
log_dir = %q
journal_path = %q
`, filepath.Join(base, "output"), filepath.Join(base, "staging"),
		filepath.Join(base, "logs"), journalPath)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func newTestCommandContext(configPath string) *commandContext {
	level, format := "", ""
	return newCommandContext(&configPath, &level, &format)
}

func TestEnsureJournalDisabledOnEmptyPath(t *testing.T) {
	ctx := newTestCommandContext(writeTestConfig(t, ""))
	defer ctx.close()

	if store := ctx.ensureJournal(); store != nil {
		t.Fatal("empty journal_path should disable the journal entirely")
	}
}

func TestEnsureJournalOpensConfiguredPath(t *testing.T) {
	journalPath := filepath.Join(t.TempDir(), "journal.db")
	ctx := newTestCommandContext(writeTestConfig(t, journalPath))
	defer ctx.close()

	if store := ctx.ensureJournal(); store == nil {
		t.Fatal("configured journal path should open a store")
	}
	if _, err := os.Stat(journalPath); err != nil {
		t.Fatalf("journal database not created: %v", err)
	}
}
