// Package attachment copies note attachments into the converted-notes folder
// and records their relative paths on the note.
package attachment

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/keepmd/internal/apperr"
	"github.com/starford/keepmd/internal/models"
	"github.com/starford/keepmd/internal/storage"
)

// Target subfolders under the converted-notes root.
const (
	ImagesDir = "images"
	AssetsDir = "assets"
)

// Relocator copies attachments for one conversion run. It is not safe for
// concurrent use.
type Relocator struct {
	store  storage.Provider
	logger *slog.Logger
	copied map[string]string // relative target -> source of the last copy this run
	count  int
}

// NewRelocator creates a relocator writing through store.
func NewRelocator(store storage.Provider, logger *slog.Logger) *Relocator {
	return &Relocator{
		store:  store,
		logger: logger,
		copied: make(map[string]string),
	}
}

// Subfolder returns the target subfolder for a MIME type.
func Subfolder(mimeType string) string {
	if strings.HasPrefix(mimeType, "image") {
		return ImagesDir
	}
	return AssetsDir
}

// Copied returns the number of files copied so far.
func (r *Relocator) Copied() int {
	return r.count
}

// Relocate copies every attachment of n's record and returns a copy of n with
// Images and Assets filled in encounter order. Source paths resolve against
// the directory of the record file. If any source is missing nothing is
// copied and an apperr.ErrAttachmentMissing error is returned.
func (r *Relocator) Relocate(n models.NormalizedNote) (models.NormalizedNote, error) {
	rec := n.Record
	baseDir := filepath.Dir(rec.SourcePath)

	type planned struct {
		src, rel string
		image    bool
	}
	plan := make([]planned, 0, len(rec.Attachments))
	for _, a := range rec.Attachments {
		src := filepath.Join(baseDir, filepath.FromSlash(a.FilePath))
		if _, err := os.Stat(src); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return n, apperr.Record(rec.SourcePath, fmt.Errorf("%w: %s", apperr.ErrAttachmentMissing, a.FilePath))
			}
			return n, apperr.Record(rec.SourcePath, fmt.Errorf("attachment: stat %s: %w", a.FilePath, err))
		}
		sub := Subfolder(a.MimeType)
		plan = append(plan, planned{
			src:   src,
			rel:   path.Join(sub, filepath.Base(src)),
			image: sub == ImagesDir,
		})
	}

	out := n
	out.Images = nil
	out.Assets = nil
	for _, p := range plan {
		if prev, ok := r.copied[p.rel]; ok && prev != p.src {
			r.logger.Warn("attachment: overwriting target from another source",
				slog.String("target", p.rel),
				slog.String("previous", prev),
				slog.String("source", p.src))
		}
		if _, err := r.store.Import(p.src, p.rel); err != nil {
			return n, apperr.Record(rec.SourcePath, fmt.Errorf("attachment: copy %s: %w", p.rel, err))
		}
		r.copied[p.rel] = p.src
		r.count++
		r.logger.Debug("attachment: copied", slog.String("target", p.rel))

		if p.image {
			out.Images = append(out.Images, p.rel)
		} else {
			out.Assets = append(out.Assets, p.rel)
		}
	}
	return out, nil
}
