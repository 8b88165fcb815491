package db

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer database.Close()

	if database.Path() != path {
		t.Errorf("Path() = %q, want %q", database.Path(), path)
	}
	if database.RawDB() == nil {
		t.Error("RawDB() returned nil")
	}
}

func TestInitSchemaIdempotent(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer database.Close()

	if err := database.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	if err := database.InitSchema(); err != nil {
		t.Fatalf("second InitSchema() failed: %v", err)
	}

	// All three tables must exist.
	for _, table := range []string{"projects", "tasks", "sync_ledger"} {
		var name string
		err := database.RawDB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}
}
