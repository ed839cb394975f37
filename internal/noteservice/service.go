// Package noteservice is the read side over converted notes: the Markdown files
// on disk, the catalog, and the tag TOC snapshot.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/starford/keepmd/internal/apperr"
	"github.com/starford/keepmd/internal/checksum"
	"github.com/starford/keepmd/internal/index"
	"github.com/starford/keepmd/internal/markdown"
	"github.com/starford/keepmd/internal/parser"
	"github.com/starford/keepmd/internal/storage"
	"github.com/starford/keepmd/internal/tagtoc"
)

// NoteDetail is the full representation of a converted note.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	HTML        string         `json:"html,omitempty"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TOCDocument is the tag TOC as served: the structured snapshot plus the
// rendered Markdown.
type TOCDocument struct {
	Index    tagtoc.Index `json:"index"`
	Markdown string       `json:"markdown"`
	HTML     string       `json:"html,omitempty"`
}

// Service answers read queries. It never writes.
type Service struct {
	store   storage.Provider
	db      index.Catalog
	md      *markdown.Renderer
	tocFile string
}

// NewService creates a read service. tocFile is the configured tag TOC
// location; both of its artifacts are read from there.
func NewService(store storage.Provider, db index.Catalog, md *markdown.Renderer, tocFile string) *Service {
	if md == nil {
		md = markdown.New()
	}
	return &Service{store: store, db: db, md: md, tocFile: tocFile}
}

// GetNote reads a converted note and parses its frontmatter. With withHTML the
// body is also rendered to HTML.
func (s *Service) GetNote(_ context.Context, path string, withHTML bool) (*NoteDetail, error) {
	if !strings.HasSuffix(path, ".md") {
		return nil, apperr.ErrNotFound
	}
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	res, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("noteservice: parse %s: %w", path, err)
	}
	tags := res.Tags
	if tags == nil {
		tags = []string{}
	}
	d := &NoteDetail{
		Path:        path,
		Title:       res.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        tags,
		Frontmatter: res.Frontmatter,
	}
	if withHTML {
		html, err := s.md.ToHTML([]byte(res.Body))
		if err != nil {
			return nil, err
		}
		d.HTML = string(html)
	}
	return d, nil
}

// ListNotes returns every converted note under folder.
func (s *Service) ListNotes(_ context.Context, folder string) ([]NoteListItem, error) {
	metas, err := s.store.List(folder)
	if err != nil {
		return nil, err
	}
	items := make([]NoteListItem, 0, len(metas))
	for _, m := range metas {
		items = append(items, NoteListItem{Path: m.Path, Checksum: m.Checksum, UpdatedAt: m.UpdatedAt})
	}
	return items, nil
}

// ListTags returns every catalogued tag with its note count.
func (s *Service) ListTags(_ context.Context) ([]index.TagCount, error) {
	tags, err := s.db.Tags()
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []index.TagCount{}
	}
	return tags, nil
}

// NotesByTag returns the notes filed under tag in conversion order. An unknown
// tag yields apperr.ErrNotFound.
func (s *Service) NotesByTag(_ context.Context, tag string) ([]index.NoteRow, error) {
	rows, err := s.db.NotesByTag(tag)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("noteservice: tag %s: %w", tag, apperr.ErrNotFound)
	}
	return rows, nil
}

// Search runs a catalog search.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	results, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	return results, nil
}

// TOC loads the last written tag TOC. Before the first conversion it returns
// apperr.ErrNotFound.
func (s *Service) TOC(_ context.Context, withHTML bool) (*TOCDocument, error) {
	paths := tagtoc.PathsFor(s.tocFile)
	raw, err := os.ReadFile(paths.JSON)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("noteservice: read toc: %w", err)
	}
	idx, err := tagtoc.Load(raw)
	if err != nil {
		return nil, err
	}
	md, err := os.ReadFile(paths.Markdown)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("noteservice: read toc: %w", err)
	}

	doc := &TOCDocument{Index: idx, Markdown: string(md)}
	if withHTML {
		html, err := s.md.ToHTML(md)
		if err != nil {
			return nil, err
		}
		doc.HTML = string(html)
	}
	return doc, nil
}
