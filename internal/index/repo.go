package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/keepmd/internal/apperr"
	"github.com/starford/keepmd/internal/tags"
)

// Entry is one converted note as handed to Rebuild.
type Entry struct {
	Path        string // slash path relative to the converted-notes root
	Title       string
	CreatedUsec int64
	Checksum    string
	Body        string
	Tags        []string
}

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path        string   `json:"path"`
	Title       string   `json:"title"`
	CreatedUsec int64    `json:"createdTimestampUsec"`
	Checksum    string   `json:"checksum"`
	Tags        []string `json:"tags,omitempty"`
	Body        string   `json:"body,omitempty"`
}

// TagCount is one tag with its supertag and number of notes.
type TagCount struct {
	Tag      string        `json:"tag"`
	Supertag tags.SuperTag `json:"supertag"`
	Count    int           `json:"count"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Rebuild replaces the whole catalog with entries in one transaction. Entry
// order is kept as the note order within every tag. When two entries share a
// path the later one wins, as it does on disk. A note without any Category
// tag is also filed under tags.Uncategorized.
func (db *DB) Rebuild(entries []Entry) error {
	last := make(map[string]int, len(entries))
	for i, e := range entries {
		last[e.Path] = i
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM note_tags`); err != nil {
		return fmt.Errorf("index: clear tags: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes`); err != nil {
		return fmt.Errorf("index: clear notes: %w", err)
	}
	if err := ftsReset(tx); err != nil {
		return err
	}

	noteStmt, err := tx.Prepare(`
		INSERT INTO notes (path, seq, title, created_usec, checksum, body)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare note insert: %w", err)
	}
	defer noteStmt.Close()

	tagStmt, err := tx.Prepare(`INSERT INTO note_tags (path, tag, supertag, position, synthetic) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare tag insert: %w", err)
	}
	defer tagStmt.Close()

	for seq, e := range entries {
		if last[e.Path] != seq {
			continue
		}
		if _, err := noteStmt.Exec(e.Path, seq, e.Title, e.CreatedUsec, e.Checksum, e.Body); err != nil {
			return fmt.Errorf("index: insert note %s: %w", e.Path, err)
		}
		hasCategory := false
		for pos, tag := range e.Tags {
			st := tags.Classify(tag)
			hasCategory = hasCategory || st == tags.Category
			if _, err := tagStmt.Exec(e.Path, tag, string(st), pos, false); err != nil {
				return fmt.Errorf("index: insert tag %s: %w", tag, err)
			}
		}
		if !hasCategory {
			if _, err := tagStmt.Exec(e.Path, tags.Uncategorized, string(tags.Category), len(e.Tags), true); err != nil {
				return fmt.Errorf("index: insert tag %s: %w", tags.Uncategorized, err)
			}
		}
		if err := ftsInsert(tx, e.Path, e.Title, e.Body, e.Tags); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Tags returns every tag with its note count, sorted by supertag then tag.
func (db *DB) Tags() ([]TagCount, error) {
	rows, err := db.conn.Query(`
		SELECT tag, supertag, count(DISTINCT path)
		FROM note_tags
		GROUP BY tag, supertag
		ORDER BY supertag, tag
	`)
	if err != nil {
		return nil, fmt.Errorf("index: tags: %w", err)
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var tc TagCount
		var st string
		if err := rows.Scan(&tc.Tag, &st, &tc.Count); err != nil {
			return nil, err
		}
		tc.Supertag = tags.SuperTag(st)
		out = append(out, tc)
	}
	return out, rows.Err()
}

// NotesByTag returns the notes filed under tag in conversion order.
func (db *DB) NotesByTag(tag string) ([]NoteRow, error) {
	rows, err := db.conn.Query(`
		SELECT DISTINCT n.path, n.title, n.created_usec, n.checksum, n.seq
		FROM notes n
		JOIN note_tags t ON t.path = n.path
		WHERE t.tag = ?
		ORDER BY n.seq
	`, tag)
	if err != nil {
		return nil, fmt.Errorf("index: notes by tag: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		var r NoteRow
		var seq int
		if err := rows.Scan(&r.Path, &r.Title, &r.CreatedUsec, &r.Checksum, &seq); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetNote returns one note with its tags and body. A missing path yields an
// error wrapping apperr.ErrNotFound.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	var r NoteRow
	err := db.conn.QueryRow(`
		SELECT path, title, created_usec, checksum, body FROM notes WHERE path = ?
	`, path).Scan(&r.Path, &r.Title, &r.CreatedUsec, &r.Checksum, &r.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT tag FROM note_tags WHERE path = ? AND synthetic = 0 ORDER BY position
	`, path)
	if err != nil {
		return nil, fmt.Errorf("index: note tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		r.Tags = append(r.Tags, tag)
	}
	return &r, rows.Err()
}

// Count returns the number of catalogued notes.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}
