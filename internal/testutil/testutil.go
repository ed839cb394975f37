// Package testutil provides shared test helpers for export folders, converted
// folders, and catalog databases.
package testutil

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/keepmd/internal/index"
	"github.com/starford/keepmd/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestDB creates a temporary catalog database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary converted-notes directory with a storage provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteRecord writes an export record as JSON under dir and returns its path.
func WriteRecord(t *testing.T, dir, name string, record map[string]any) string {
	t.Helper()
	data, err := json.Marshal(record)
	if err != nil {
		t.Fatal(err)
	}
	return WriteFile(t, dir, name, data)
}

// WriteFile writes raw bytes under dir, creating parents, and returns the path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// Record returns a minimal valid export record created at usec.
func Record(usec int64, title string) map[string]any {
	return map[string]any{
		"createdTimestampUsec":    usec,
		"userEditedTimestampUsec": usec,
		"title":                   title,
		"isTrashed":               false,
		"isPinned":                false,
	}
}
