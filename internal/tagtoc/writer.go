package tagtoc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/keepmd/internal/render"
	"github.com/starford/keepmd/internal/storage"
)

// Paths are the two artifacts written for one TOC.
type Paths struct {
	Markdown string
	JSON     string
}

// BasePath strips the extension from the configured TOC file path.
func BasePath(tocFile string) string {
	return strings.TrimSuffix(tocFile, filepath.Ext(tocFile))
}

// PathsFor returns the Markdown and JSON paths for a configured TOC file.
func PathsFor(tocFile string) Paths {
	base := BasePath(tocFile)
	return Paths{Markdown: base + ".md", JSON: base + ".json"}
}

// Context is what the TOC template receives.
type Context struct {
	Groups []Group
	Index  Index
}

// Writer renders and persists the TOC.
type Writer struct {
	renderer render.Renderer
	template string
	logger   *slog.Logger
}

// NewWriter creates a Writer that renders with the named template.
func NewWriter(r render.Renderer, templateName string, logger *slog.Logger) *Writer {
	if templateName == "" {
		templateName = render.TagTOCTemplate
	}
	return &Writer{renderer: r, template: templateName, logger: logger}
}

// Write renders idx and writes both artifacts next to each other at tocFile
// with .md and .json extensions.
func (w *Writer) Write(idx Index, tocFile string) (Paths, error) {
	paths := PathsFor(tocFile)

	md, err := w.renderer.Render(w.template, Context{Groups: idx.Groups(), Index: idx})
	if err != nil {
		return Paths{}, fmt.Errorf("tagtoc: render: %w", err)
	}
	snapshot, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return Paths{}, fmt.Errorf("tagtoc: marshal: %w", err)
	}

	if err := storage.WriteFileAtomic(paths.Markdown, []byte(md)); err != nil {
		return Paths{}, fmt.Errorf("tagtoc: write markdown: %w", err)
	}
	if err := storage.WriteFileAtomic(paths.JSON, snapshot); err != nil {
		return Paths{}, fmt.Errorf("tagtoc: write json: %w", err)
	}

	w.logger.Info("tag toc written",
		slog.String("markdown", paths.Markdown),
		slog.String("json", paths.JSON),
		slog.Int("supertags", len(idx)))
	return paths, nil
}

// Load reads a JSON snapshot written by Write.
func Load(data []byte) (Index, error) {
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("tagtoc: decode snapshot: %w", err)
	}
	return idx, nil
}
