// Package tags derives note tags from export metadata and classifies them
// into supertags.
package tags

import (
	"strings"
	"time"

	"github.com/starford/keepmd/internal/models"
	"github.com/starford/keepmd/internal/slug"
)

const (
	Trashed = "Trashed"
	Pinned  = "Pinned"

	// Uncategorized is synthesized for notes without a Category tag.
	Uncategorized = "Uncategorized"

	// DefaultColor is the export's "no color" sentinel.
	DefaultColor = "DEFAULT"

	colorPrefix   = "color-"
	createdPrefix = "created-"
)

// SuperTag is the coarse bucket a tag belongs to.
type SuperTag string

const (
	Year     SuperTag = "Year"
	Color    SuperTag = "Color"
	Category SuperTag = "Category"
)

// Classify maps a tag name to its supertag by prefix.
func Classify(tag string) SuperTag {
	switch {
	case strings.HasPrefix(tag, createdPrefix):
		return Year
	case strings.HasPrefix(tag, colorPrefix):
		return Color
	default:
		return Category
	}
}

// Derive builds the ordered tag list for a record: slugified labels, then
// Trashed, Pinned, color-<name>, and always created-<YYYY>. Duplicates are
// kept.
func Derive(rec models.RawNoteRecord, createdAt time.Time, s slug.Slugger) []string {
	out := make([]string, 0, len(rec.Labels)+4)
	for _, l := range rec.Labels {
		out = append(out, s.Slugify(l.Name))
	}
	if rec.IsTrashed {
		out = append(out, Trashed)
	}
	if rec.IsPinned {
		out = append(out, Pinned)
	}
	if rec.Color != "" && rec.Color != DefaultColor {
		out = append(out, colorPrefix+strings.ToLower(rec.Color))
	}
	return append(out, YearTag(createdAt))
}

// YearTag returns the created-<YYYY> tag for t.
func YearTag(t time.Time) string {
	return createdPrefix + t.Format("2006")
}
