package index

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/starford/keepmd/internal/apperr"
	"github.com/starford/keepmd/internal/storage"
	"github.com/starford/keepmd/internal/tags"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleEntries() []Entry {
	return []Entry{
		{Path: "soup.md", Title: "Soup", CreatedUsec: 1, Checksum: "c1", Body: "lentil soup recipe", Tags: []string{"recipe-ideas", "created-2015"}},
		{Path: "blue.md", Title: "Blue", CreatedUsec: 2, Checksum: "c2", Body: "sky", Tags: []string{"color-blue", "created-2016"}},
		{Path: "bread.md", Title: "Bread", CreatedUsec: 3, Checksum: "c3", Body: "sourdough", Tags: []string{"recipe-ideas", "Pinned", "created-2015"}},
	}
}

func paths(rows []NoteRow) []string {
	var out []string
	for _, r := range rows {
		out = append(out, r.Path)
	}
	return out
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM note_tags`).Scan(&count); err != nil {
		t.Fatalf("note_tags table missing: %v", err)
	}
}

func TestRebuild_ReplacesEverything(t *testing.T) {
	db := testDB(t)
	if err := db.Rebuild(sampleEntries()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if err := db.Rebuild(sampleEntries()[:1]); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	n, err := db.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1 after second rebuild", n)
	}
	rows, _ := db.NotesByTag("created-2016")
	if len(rows) != 0 {
		t.Errorf("stale tag rows survived: %v", paths(rows))
	}
}

func TestRebuild_LastDuplicateWins(t *testing.T) {
	db := testDB(t)
	entries := []Entry{
		{Path: "same.md", Title: "First", Tags: []string{"a", "created-2015"}},
		{Path: "same.md", Title: "Second", Tags: []string{"created-2016"}},
	}
	if err := db.Rebuild(entries); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	got, err := db.GetNote("same.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Title != "Second" || !reflect.DeepEqual(got.Tags, []string{"created-2016"}) {
		t.Errorf("note = %+v, want the second entry", got)
	}
}

func TestTags_CountsAndOrder(t *testing.T) {
	db := testDB(t)
	if err := db.Rebuild(sampleEntries()); err != nil {
		t.Fatal(err)
	}
	got, err := db.Tags()
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	want := []TagCount{
		{Tag: "Pinned", Supertag: tags.Category, Count: 1},
		{Tag: "Uncategorized", Supertag: tags.Category, Count: 1},
		{Tag: "recipe-ideas", Supertag: tags.Category, Count: 2},
		{Tag: "color-blue", Supertag: tags.Color, Count: 1},
		{Tag: "created-2015", Supertag: tags.Year, Count: 2},
		{Tag: "created-2016", Supertag: tags.Year, Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags =\n%+v\nwant\n%+v", got, want)
	}
}

func TestNotesByTag_ConversionOrder(t *testing.T) {
	db := testDB(t)
	if err := db.Rebuild(sampleEntries()); err != nil {
		t.Fatal(err)
	}
	rows, err := db.NotesByTag("recipe-ideas")
	if err != nil {
		t.Fatalf("NotesByTag: %v", err)
	}
	if got := paths(rows); !reflect.DeepEqual(got, []string{"soup.md", "bread.md"}) {
		t.Errorf("paths = %v, want [soup.md bread.md]", got)
	}
	rows, _ = db.NotesByTag(tags.Uncategorized)
	if got := paths(rows); !reflect.DeepEqual(got, []string{"blue.md"}) {
		t.Errorf("uncategorized = %v, want [blue.md]", got)
	}
}

func TestGetNote(t *testing.T) {
	db := testDB(t)
	if err := db.Rebuild(sampleEntries()); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetNote("blue.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Title != "Blue" || got.Body != "sky" || got.CreatedUsec != 2 {
		t.Errorf("note = %+v", got)
	}
	if !reflect.DeepEqual(got.Tags, []string{"color-blue", "created-2016"}) {
		t.Errorf("tags = %v, synthesized tag must not be listed", got.Tags)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetNote("nonexistent.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	if err := db.Rebuild(sampleEntries()); err != nil {
		t.Fatal(err)
	}
	results, err := db.Search("sourdough", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "bread.md" {
		t.Errorf("search results = %+v, want 1 hit for bread.md", results)
	}
}

func TestSync_FromConvertedFolder(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	note := "---\ntitle: \"Soup\"\ncreated: 2015-01-01T00:00:00Z\ntags:\n  - \"recipe-ideas\"\n  - \"created-2015\"\n---\n\n# Soup\nlentils\n"
	if err := store.Write("soup.md", []byte(note)); err != nil {
		t.Fatal(err)
	}
	if err := store.Write("tag_toc.md", []byte("# Tags\n")); err != nil {
		t.Fatal(err)
	}

	db := testDB(t)
	n, err := Sync(db, store, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if n != 1 {
		t.Errorf("synced = %d, want 1 (toc has no frontmatter)", n)
	}
	got, err := db.GetNote("soup.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Title != "Soup" || got.CreatedUsec != 1420070400000000 {
		t.Errorf("note = %+v", got)
	}
	if !reflect.DeepEqual(got.Tags, []string{"recipe-ideas", "created-2015"}) {
		t.Errorf("tags = %v", got.Tags)
	}
}
