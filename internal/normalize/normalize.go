// Package normalize turns a raw export record into a note ready for rendering:
// dates, tags, title fallback, and attachment relocation, in that order.
package normalize

import (
	"time"

	"github.com/starford/keepmd/internal/apperr"
	"github.com/starford/keepmd/internal/models"
	"github.com/starford/keepmd/internal/slug"
	"github.com/starford/keepmd/internal/tags"
)

// TitleLayout formats the creation time used as a fallback title.
const TitleLayout = "2006-01-02_150405"

// Relocator relocates a note's attachments and returns the updated note.
type Relocator interface {
	Relocate(n models.NormalizedNote) (models.NormalizedNote, error)
}

// Normalizer runs the normalization pipeline.
type Normalizer struct {
	slugger   slug.Slugger
	relocator Relocator
	loc       *time.Location
}

// New creates a Normalizer. A nil loc means time.Local; a nil relocator
// leaves attachments untouched.
func New(s slug.Slugger, r Relocator, loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	if s == nil {
		s = slug.Default()
	}
	return &Normalizer{slugger: s, relocator: r, loc: loc}
}

// Normalize builds a NormalizedNote from rec.
func (n *Normalizer) Normalize(rec models.RawNoteRecord) (models.NormalizedNote, error) {
	note, err := DeriveDates(rec, n.loc)
	if err != nil {
		return models.NormalizedNote{}, err
	}
	note = WithTags(note, tags.Derive(rec, note.CreatedAt, n.slugger))
	note = WithTitleFallback(note)

	if rec.HasAttachments() && n.relocator != nil {
		return n.relocator.Relocate(note)
	}
	return note, nil
}

// FromUsec converts microseconds since the Unix epoch to a time in loc.
func FromUsec(usec int64, loc *time.Location) time.Time {
	return time.UnixMicro(usec).In(loc)
}

// DeriveDates starts a note from rec with CreatedAt and EditedAt set.
func DeriveDates(rec models.RawNoteRecord, loc *time.Location) (models.NormalizedNote, error) {
	if rec.CreatedTimestampUsec == nil {
		return models.NormalizedNote{}, apperr.Record(rec.SourcePath, apperr.Malformed("createdTimestampUsec is missing"))
	}
	if rec.UserEditedTimestampUsec == nil {
		return models.NormalizedNote{}, apperr.Record(rec.SourcePath, apperr.Malformed("userEditedTimestampUsec is missing"))
	}
	return models.NormalizedNote{
		Record:    rec,
		CreatedAt: FromUsec(*rec.CreatedTimestampUsec, loc),
		EditedAt:  FromUsec(*rec.UserEditedTimestampUsec, loc),
		Title:     rec.Title,
	}, nil
}

// WithTags returns a copy of n carrying tagList.
func WithTags(n models.NormalizedNote, tagList []string) models.NormalizedNote {
	n.Tags = append([]string(nil), tagList...)
	return n
}

// WithTitleFallback returns a copy of n whose empty title is replaced by the
// creation time formatted with TitleLayout.
func WithTitleFallback(n models.NormalizedNote) models.NormalizedNote {
	if n.Title == "" {
		n.Title = n.CreatedAt.Format(TitleLayout)
	}
	return n
}
