package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracknote.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	// Load from a directory with no config file present.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(cfg.Roots) != 1 || cfg.Roots[0] != "." {
		t.Errorf("Roots = %v, want [.]", cfg.Roots)
	}
	if cfg.Extension != ".md" {
		t.Errorf("Extension = %q, want .md", cfg.Extension)
	}
	if cfg.Database != ".tracknote/tracknote.db" {
		t.Errorf("Database = %q", cfg.Database)
	}
	if cfg.Debounce != time.Second {
		t.Errorf("Debounce = %v, want 1s", cfg.Debounce)
	}
	if cfg.ConflictPolicy != "prompt" {
		t.Errorf("ConflictPolicy = %q, want prompt", cfg.ConflictPolicy)
	}
	if cfg.CompletedLimit != 10 {
		t.Errorf("CompletedLimit = %d, want 10", cfg.CompletedLimit)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
roots:
  - /notes
  - /archive
extension: .markdown
database: /data/notes.db
debounce: 250ms
conflict_policy: file_wins
completed_limit: 25
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(cfg.Roots) != 2 || cfg.Roots[1] != "/archive" {
		t.Errorf("Roots = %v", cfg.Roots)
	}
	if cfg.Extension != ".markdown" {
		t.Errorf("Extension = %q", cfg.Extension)
	}
	if cfg.Database != "/data/notes.db" {
		t.Errorf("Database = %q", cfg.Database)
	}
	if cfg.Debounce != 250*time.Millisecond {
		t.Errorf("Debounce = %v, want 250ms", cfg.Debounce)
	}
	if cfg.ConflictPolicy != "file_wins" {
		t.Errorf("ConflictPolicy = %q", cfg.ConflictPolicy)
	}
	if cfg.CompletedLimit != 25 {
		t.Errorf("CompletedLimit = %d", cfg.CompletedLimit)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() with a missing explicit file should fail")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TRACKNOTE_CONFLICT_POLICY", "db_wins")
	t.Setenv("TRACKNOTE_EXTENSION", ".txt")

	path := writeConfig(t, "debounce: 2s\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.ConflictPolicy != "db_wins" {
		t.Errorf("ConflictPolicy = %q, want env override db_wins", cfg.ConflictPolicy)
	}
	if cfg.Extension != ".txt" {
		t.Errorf("Extension = %q, want env override .txt", cfg.Extension)
	}
	if cfg.Debounce != 2*time.Second {
		t.Errorf("Debounce = %v, want file value 2s", cfg.Debounce)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad policy", "conflict_policy: sometimes\n", "conflict_policy"},
		{"bad extension", "extension: md\n", "extension"},
		{"bad debounce", "debounce: -1s\n", "debounce"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
