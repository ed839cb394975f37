// Package parser decodes export records and reads converted Markdown notes
// back into their frontmatter, body, title, and tags.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"
)

// Result holds the output of parsing a converted Markdown note.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Tags        []string
	Title       string
}

// Parse extracts frontmatter, body, title, and tags from a converted note.
// Content without a frontmatter block is returned as body only.
func Parse(data []byte) (*Result, error) {
	var fm map[string]interface{}
	body, err := frontmatter.Parse(bytes.NewReader(data), &fm)
	if err != nil {
		return nil, fmt.Errorf("parser: frontmatter: %w", err)
	}
	if len(fm) == 0 {
		fm = nil
	}

	b := string(body)
	return &Result{
		Frontmatter: fm,
		Body:        b,
		Tags:        frontmatterTags(fm),
		Title:       deriveTitle(fm, b),
	}, nil
}

// frontmatterTags returns the "tags" list from frontmatter, skipping blanks.
func frontmatterTags(fm map[string]interface{}) []string {
	raw, ok := fm["tags"]
	if !ok {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if t, ok := fm["title"].(string); ok && t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
