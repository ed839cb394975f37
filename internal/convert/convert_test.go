package convert

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/keepmd/internal/apperr"
	"github.com/starford/keepmd/internal/render"
	"github.com/starford/keepmd/internal/slug"
	"github.com/starford/keepmd/internal/stash"
	"github.com/starford/keepmd/internal/storage"
	"github.com/starford/keepmd/internal/testutil"
)

var testSlug = slug.Func(func(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
})

type env struct {
	src   string
	out   string
	toc   string
	store *storage.FS
}

func newEnv(t *testing.T) env {
	t.Helper()
	out, store := testutil.TestVault(t)
	return env{
		src:   t.TempDir(),
		out:   out,
		toc:   filepath.Join(t.TempDir(), "tag_toc.md"),
		store: store,
	}
}

func (e env) service(t *testing.T, opts Options, extra ...Option) *Service {
	t.Helper()
	r, err := render.New("", testSlug)
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	opts.SourceDir = e.src
	opts.TOCFile = e.toc
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return New(opts, e.store, r, testSlug, testutil.Logger(), extra...)
}

// scenarioRecord is the end-to-end example record: pinned, one label, empty
// title, and an empty attachments list.
func scenarioRecord() map[string]any {
	rec := testutil.Record(1420070400000000, "")
	rec["isPinned"] = true
	rec["labels"] = []map[string]string{{"name": "Recipe Ideas"}}
	rec["attachments"] = []any{}
	return rec
}

type tocSnapshot map[string]map[string]struct {
	Supertag string `json:"supertag"`
	Notes    []struct {
		Title    string   `json:"title"`
		Tags     []string `json:"tags"`
		NotePath string   `json:"note_path"`
	} `json:"notes"`
}

func readJSON(t *testing.T, path string) tocSnapshot {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out tocSnapshot
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return out
}

func TestRun_EndToEndScenario(t *testing.T) {
	e := newEnv(t)
	testutil.WriteRecord(t, e.src, "Takeout/Keep/note.json", scenarioRecord())

	res, err := e.service(t, Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Converted != 1 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}

	md, err := os.ReadFile(filepath.Join(e.out, "2015-01-01_000000.md"))
	if err != nil {
		t.Fatalf("note not written: %v", err)
	}
	text := string(md)
	for _, want := range []string{"# 2015-01-01_000000", "#recipe-ideas #Pinned #created-2015"} {
		if !strings.Contains(text, want) {
			t.Errorf("note missing %q:\n%s", want, text)
		}
	}

	toc := readJSON(t, strings.TrimSuffix(e.toc, ".md")+".json")
	if n := len(toc["Category"]["recipe-ideas"].Notes); n != 1 {
		t.Errorf("recipe-ideas notes = %d, want 1", n)
	}
	if n := len(toc["Category"]["Pinned"].Notes); n != 1 {
		t.Errorf("Pinned notes = %d, want 1", n)
	}
	if n := len(toc["Year"]["created-2015"].Notes); n != 1 {
		t.Errorf("created-2015 notes = %d, want 1", n)
	}
	if _, ok := toc["Category"]["Uncategorized"]; ok {
		t.Error("Uncategorized must not be applied to a note with a Category tag")
	}

	note := toc["Year"]["created-2015"].Notes[0]
	wantRel, _ := filepath.Rel(filepath.Dir(e.toc), filepath.Join(e.out, "2015-01-01_000000.md"))
	if note.NotePath != filepath.ToSlash(wantRel) {
		t.Errorf("note_path = %q, want %q", note.NotePath, filepath.ToSlash(wantRel))
	}
	if res.TOCPath != e.toc {
		t.Errorf("toc path = %q, want %q", res.TOCPath, e.toc)
	}
}

func TestRun_DefaultSlugFoldsAccents(t *testing.T) {
	e := newEnv(t)
	accented := testutil.Record(1420070400000000, "Résumé")
	accented["labels"] = []map[string]string{{"name": "Café Ideas"}}
	testutil.WriteRecord(t, e.src, "resume.json", accented)
	testutil.WriteRecord(t, e.src, "untitled.json", testutil.Record(1420070500000000, ""))

	r, err := render.New("", slug.Default())
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	svc := New(Options{SourceDir: e.src, TOCFile: e.toc, Location: time.UTC}, e.store, r, slug.Default(), testutil.Logger())
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, name := range []string{"resume.md", "2015-01-01_000140.md"} {
		if _, err := os.Stat(filepath.Join(e.out, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	toc := readJSON(t, strings.TrimSuffix(e.toc, ".md")+".json")
	if _, ok := toc["Category"]["cafe-ideas"]; !ok {
		t.Errorf("Category tags = %v, want cafe-ideas", toc["Category"])
	}
}

func TestRun_AttachmentsRelocated(t *testing.T) {
	e := newEnv(t)
	testutil.WriteFile(t, e.src, "photo.png", []byte{0x89, 'P', 'N', 'G'})
	testutil.WriteFile(t, e.src, "doc.pdf", []byte("%PDF"))
	rec := testutil.Record(1420070400000000, "With Files")
	rec["attachments"] = []map[string]string{
		{"filePath": "photo.png", "mimetype": "image/png"},
		{"filePath": "doc.pdf", "mimetype": "application/pdf"},
	}
	testutil.WriteRecord(t, e.src, "files.json", rec)

	res, err := e.service(t, Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Attachments != 2 {
		t.Errorf("attachments = %d, want 2", res.Attachments)
	}
	for _, p := range []string{"images/photo.png", "assets/doc.pdf"} {
		if !e.store.Exists(p) {
			t.Errorf("%s not copied", p)
		}
	}
	md, _ := e.store.Read("with-files.md")
	if !strings.Contains(string(md), "![](images/photo.png)") || !strings.Contains(string(md), "[doc.pdf](assets/doc.pdf)") {
		t.Errorf("note does not reference attachments:\n%s", md)
	}
}

func TestRun_Idempotent(t *testing.T) {
	e := newEnv(t)
	testutil.WriteRecord(t, e.src, "a.json", scenarioRecord())
	testutil.WriteRecord(t, e.src, "b.json", testutil.Record(1500000000000000, "Shopping List"))
	svc := e.service(t, Options{})

	snapshot := func() map[string]string {
		out := map[string]string{}
		for _, p := range []string{
			filepath.Join(e.out, "2015-01-01_000000.md"),
			filepath.Join(e.out, "shopping-list.md"),
			e.toc,
			strings.TrimSuffix(e.toc, ".md") + ".json",
		} {
			data, err := os.ReadFile(p)
			if err != nil {
				t.Fatalf("read %s: %v", p, err)
			}
			out[p] = string(data)
		}
		return out
	}

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := snapshot()
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	for p, data := range snapshot() {
		if first[p] != data {
			t.Errorf("%s differs between runs", filepath.Base(p))
		}
	}
}

func TestRun_MalformedRecordAbortsByDefault(t *testing.T) {
	e := newEnv(t)
	testutil.WriteFile(t, e.src, "bad.json", []byte(`{"title": "no timestamps"}`))
	testutil.WriteRecord(t, e.src, "good.json", testutil.Record(1420070400000000, "Good"))

	_, err := e.service(t, Options{}).Run(context.Background())
	if !errors.Is(err, apperr.ErrMalformedRecord) {
		t.Fatalf("err = %v, want ErrMalformedRecord", err)
	}
	var re *apperr.RecordError
	if !errors.As(err, &re) || filepath.Base(re.Path) != "bad.json" {
		t.Errorf("err = %v, want RecordError for bad.json", err)
	}
}

func TestRun_SkipFailedContinues(t *testing.T) {
	e := newEnv(t)
	testutil.WriteFile(t, e.src, "bad.json", []byte(`{"createdTimestampUsec": "soon"}`))
	missing := testutil.Record(1420070400000000, "Missing Attachment")
	missing["attachments"] = []map[string]string{{"filePath": "gone.png", "mimetype": "image/png"}}
	testutil.WriteRecord(t, e.src, "missing.json", missing)
	testutil.WriteRecord(t, e.src, "good.json", testutil.Record(1420070400000000, "Good"))

	res, err := e.service(t, Options{SkipFailed: true, Workers: 4}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Converted != 1 || res.Failed != 2 {
		t.Errorf("result = %+v, want 1 converted and 2 failed", res)
	}
	if e.store.Exists("missing-attachment.md") {
		t.Error("a note with a missing attachment must not be written")
	}
	if !e.store.Exists("good.md") {
		t.Error("good note not written")
	}
}

func TestRun_TitleCollisions(t *testing.T) {
	tests := []struct {
		name  string
		dedup bool
		want  int
	}{
		{"overwrite", false, 1},
		{"dedupe", true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			testutil.WriteRecord(t, e.src, "one.json", testutil.Record(1420070400000000, "Same"))
			testutil.WriteRecord(t, e.src, "two.json", testutil.Record(1420070500000000, "Same"))

			res, err := e.service(t, Options{Dedupe: tt.dedup}).Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.Converted != 2 {
				t.Errorf("converted = %d, want 2", res.Converted)
			}
			metas, err := e.store.List("")
			if err != nil {
				t.Fatal(err)
			}
			if len(metas) != tt.want {
				t.Errorf("files = %d, want %d", len(metas), tt.want)
			}
		})
	}
}

func TestRun_RebuildsCatalog(t *testing.T) {
	e := newEnv(t)
	testutil.WriteRecord(t, e.src, "a.json", scenarioRecord())
	testutil.WriteRecord(t, e.src, "b.json", testutil.Record(1500000000000000, "Plain"))
	db := testutil.TestDB(t)

	if _, err := e.service(t, Options{}, WithCatalog(db)).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rows, err := db.NotesByTag("recipe-ideas")
	if err != nil {
		t.Fatalf("NotesByTag: %v", err)
	}
	if len(rows) != 1 || rows[0].Path != "2015-01-01_000000.md" {
		t.Errorf("rows = %+v", rows)
	}
	rows, _ = db.NotesByTag("Uncategorized")
	if len(rows) != 1 || rows[0].Title != "Plain" {
		t.Errorf("uncategorized rows = %+v", rows)
	}
}

type fakeStasher struct {
	docs []stash.Document
	err  error
}

func (f *fakeStasher) Bulk(_ context.Context, docs []stash.Document) error {
	f.docs = append(f.docs, docs...)
	return f.err
}

func TestRun_Stash(t *testing.T) {
	e := newEnv(t)
	testutil.WriteRecord(t, e.src, "a.json", scenarioRecord())

	st := &fakeStasher{}
	res, err := e.service(t, Options{Stash: true}, WithStasher(st)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stashed != 1 || len(st.docs) != 1 {
		t.Fatalf("stashed = %d, docs = %d", res.Stashed, len(st.docs))
	}
	if st.docs[0].ExportFile != "a.json" || st.docs[0].ID != stash.DocumentID("a.json") {
		t.Errorf("doc = %+v", st.docs[0])
	}
}

func TestRun_StashFailureDoesNotAbort(t *testing.T) {
	e := newEnv(t)
	testutil.WriteRecord(t, e.src, "a.json", scenarioRecord())

	st := &fakeStasher{err: apperr.ErrPersistenceFailure}
	res, err := e.service(t, Options{Stash: true}, WithStasher(st)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stashed != 0 || res.TOCPath == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestRun_StashDisabled(t *testing.T) {
	e := newEnv(t)
	testutil.WriteRecord(t, e.src, "a.json", scenarioRecord())

	st := &fakeStasher{}
	if _, err := e.service(t, Options{}, WithStasher(st)).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.docs) != 0 {
		t.Error("stash must not run unless enabled")
	}
}

func TestDiscover_SortedAndExcluding(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "b/2.json", []byte("{}"))
	testutil.WriteFile(t, root, "a.json", []byte("{}"))
	testutil.WriteFile(t, root, "b/1.JSON", []byte("{}"))
	testutil.WriteFile(t, root, "photo.png", []byte("x"))
	testutil.WriteFile(t, root, "tag_toc.json", []byte("{}"))
	testutil.WriteFile(t, root, "converted/x.json", []byte("{}"))

	got, err := Discover(root, []string{
		filepath.Join(root, "tag_toc.json"),
		filepath.Join(root, "converted"),
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	var rel []string
	for _, p := range got {
		r, _ := filepath.Rel(root, p)
		rel = append(rel, filepath.ToSlash(r))
	}
	want := "a.json,b/1.JSON,b/2.json"
	if strings.Join(rel, ",") != want {
		t.Errorf("discovered = %v, want %s", rel, want)
	}
}

func TestRun_Cancelled(t *testing.T) {
	e := newEnv(t)
	testutil.WriteRecord(t, e.src, "a.json", scenarioRecord())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.service(t, Options{}).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
