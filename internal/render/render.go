// Package render is the templating collaborator: it renders a named template
// against a context object.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/starford/keepmd/internal/apperr"
	"github.com/starford/keepmd/internal/slug"
)

// Default template names shipped with the binary.
const (
	NoteTemplate   = "note.md.tmpl"
	TagTOCTemplate = "tag_toc.md.tmpl"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// Renderer renders the template called name with data as its context.
type Renderer interface {
	Render(name string, data any) (string, error)
}

// Engine is a text/template backed Renderer.
type Engine struct {
	tmpl *template.Template
}

// New loads the embedded templates and then every *.tmpl file in overrideDir,
// which replaces an embedded template of the same name. An empty overrideDir
// uses the embedded set only.
func New(overrideDir string, s slug.Slugger) (*Engine, error) {
	if s == nil {
		s = slug.Default()
	}
	root, err := template.New("").Funcs(funcMap(s)).ParseFS(defaultTemplates, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("render: parse embedded templates: %w", err)
	}
	if overrideDir == "" {
		return &Engine{tmpl: root}, nil
	}

	files, err := filepath.Glob(filepath.Join(overrideDir, "*.tmpl"))
	if err != nil {
		return nil, fmt.Errorf("render: glob %s: %w", overrideDir, err)
	}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("render: read %s: %w", f, err)
		}
		if _, err := root.New(filepath.Base(f)).Parse(string(data)); err != nil {
			return nil, fmt.Errorf("render: parse %s: %w", f, err)
		}
	}
	return &Engine{tmpl: root}, nil
}

// Render executes the named template. Unknown names and execution errors are
// reported as apperr.ErrRenderFailure.
func (e *Engine) Render(name string, data any) (string, error) {
	t := e.tmpl.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("%w: unknown template %q", apperr.ErrRenderFailure, name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %s: %v", apperr.ErrRenderFailure, name, err)
	}
	return buf.String(), nil
}

func funcMap(s slug.Slugger) template.FuncMap {
	return template.FuncMap{
		"slugify":  s.Slugify,
		"quote":    quote,
		"inline":   inline,
		"linktext": linkText,
		"tojson":   toPrettyJSON,
		"join":     strings.Join,
		"base":     path.Base,
		"date": func(t time.Time) string {
			return t.Format(time.RFC3339)
		},
	}
}

// quote renders s as a double-quoted scalar that is valid YAML and JSON.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

var linkEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`)

// inline collapses s onto one line so it cannot break a heading or list item.
func inline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// linkText makes s safe inside the brackets of a Markdown link.
func linkText(s string) string {
	return linkEscaper.Replace(inline(s))
}

// toPrettyJSON indents v with object keys in sorted order. Structs are
// decoded into generic maps first since they marshal in field order.
func toPrettyJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(generic); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
