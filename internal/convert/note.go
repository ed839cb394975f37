package convert

import (
	"path"

	"github.com/starford/keepmd/internal/apperr"
	"github.com/starford/keepmd/internal/checksum"
	"github.com/starford/keepmd/internal/index"
	"github.com/starford/keepmd/internal/models"
	"github.com/starford/keepmd/internal/normalize"
)

// NoteContext is what the note template receives.
type NoteContext struct {
	Note models.NormalizedNote
}

// renderNote renders n, writes it under the converted-notes root, and
// returns n with NotePath set to the absolute target path plus its catalog
// entry. A note whose slug matches an earlier one overwrites it unless
// Dedupe is set.
func (s *Service) renderNote(n models.NormalizedNote) (models.NormalizedNote, index.Entry, error) {
	src := n.Record.SourcePath

	text, err := s.renderer.Render(s.opts.NoteTemplate, NoteContext{Note: n})
	if err != nil {
		return n, index.Entry{}, apperr.Record(src, err)
	}

	rel := s.fileName(n) + ".md"
	if err := s.store.Write(rel, []byte(text)); err != nil {
		return n, index.Entry{}, apperr.Record(src, err)
	}
	abs, err := s.store.Abs(rel)
	if err != nil {
		return n, index.Entry{}, apperr.Record(src, err)
	}

	out := n
	out.NotePath = abs
	return out, index.Entry{
		Path:        path.Clean(rel),
		Title:       out.Title,
		CreatedUsec: out.CreatedUsec(),
		Checksum:    checksum.Sum([]byte(text)),
		Body:        text,
		Tags:        append([]string(nil), out.Tags...),
	}, nil
}

// fileName returns the slug used as the note's file name. A title that
// slugifies to nothing falls back to the slugged creation time.
func (s *Service) fileName(n models.NormalizedNote) string {
	name := s.slugger.Slugify(n.Title)
	if name == "" {
		name = s.slugger.Slugify(n.CreatedAt.Format(normalize.TitleLayout))
	}
	if name == "" {
		name = "note"
	}
	if s.opts.Dedupe {
		name += "-" + checksum.Short(n.Record.SourcePath)
	}
	return name
}
