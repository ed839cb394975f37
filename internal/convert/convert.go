// Package convert drives one conversion run: discover export records, normalize
// and render each note, then build the tag TOC, the catalog, and the optional
// remote stash.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/starford/keepmd/internal/attachment"
	"github.com/starford/keepmd/internal/index"
	"github.com/starford/keepmd/internal/models"
	"github.com/starford/keepmd/internal/normalize"
	"github.com/starford/keepmd/internal/render"
	"github.com/starford/keepmd/internal/slug"
	"github.com/starford/keepmd/internal/stash"
	"github.com/starford/keepmd/internal/storage"
	"github.com/starford/keepmd/internal/tagtoc"
)

// Options controls a conversion run.
type Options struct {
	SourceDir    string
	TOCFile      string
	NoteTemplate string
	TOCTemplate  string
	Workers      int
	SkipFailed   bool
	Dedupe       bool
	Location     *time.Location
	Stash        bool
	// Exclude lists extra files and directory trees discovery skips, such
	// as the stash dump folder.
	Exclude []string
}

// Result summarizes a run.
type Result struct {
	Converted   int
	Failed      int
	Attachments int
	TOCPath     string
	Stashed     int
}

// Stasher stores converted notes remotely.
type Stasher interface {
	Bulk(ctx context.Context, docs []stash.Document) error
}

// Option configures optional collaborators.
type Option func(*Service)

// WithCatalog rebuilds c after every successful run.
func WithCatalog(c index.Catalog) Option {
	return func(s *Service) {
		s.catalog = c
	}
}

// WithStasher pushes converted notes through st when Options.Stash is set.
func WithStasher(st Stasher) Option {
	return func(s *Service) {
		s.stasher = st
	}
}

// Service runs conversions. Runs must not overlap.
type Service struct {
	opts     Options
	store    storage.Provider
	renderer render.Renderer
	slugger  slug.Slugger
	catalog  index.Catalog
	stasher  Stasher
	logger   *slog.Logger
}

// New creates a Service writing converted notes through store.
func New(opts Options, store storage.Provider, r render.Renderer, s slug.Slugger, logger *slog.Logger, extra ...Option) *Service {
	if opts.NoteTemplate == "" {
		opts.NoteTemplate = render.NoteTemplate
	}
	if opts.TOCTemplate == "" {
		opts.TOCTemplate = render.TagTOCTemplate
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if s == nil {
		s = slug.Default()
	}
	svc := &Service{
		opts:     opts,
		store:    store,
		renderer: r,
		slugger:  s,
		logger:   logger,
	}
	for _, o := range extra {
		o(svc)
	}
	return svc
}

// converted is what a successfully rendered note contributes to the run.
type converted struct {
	note  models.NormalizedNote
	entry index.Entry
}

// Run converts every record under SourceDir. With SkipFailed unset the first
// failing note aborts the run; otherwise failures are logged and counted.
func (s *Service) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result

	sources, err := Discover(s.opts.SourceDir, s.excluded())
	if err != nil {
		return res, err
	}
	s.logger.Info("convert: starting",
		slog.String("source", s.opts.SourceDir),
		slog.Int("records", len(sources)))

	loaded, err := loadRecords(ctx, sources, s.opts.Workers)
	if err != nil {
		return res, err
	}

	relocator := attachment.NewRelocator(s.store, s.logger)
	normalizer := normalize.New(s.slugger, relocator, s.opts.Location)

	notes := make([]converted, 0, len(loaded))
	for _, l := range loaded {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		c, err := s.convertOne(normalizer, l)
		if err != nil {
			if !s.opts.SkipFailed {
				return res, err
			}
			res.Failed++
			s.logger.Warn("convert: note skipped",
				slog.String("path", l.path),
				slog.String("error", err.Error()))
			continue
		}
		notes = append(notes, c)
		res.Converted++
	}
	res.Attachments = relocator.Copied()

	briefs := make([]models.BriefNote, 0, len(notes))
	entries := make([]index.Entry, 0, len(notes))
	for _, c := range notes {
		briefs = append(briefs, c.note.Brief())
		entries = append(entries, c.entry)
	}

	idx, err := tagtoc.Build(briefs, filepath.Dir(s.opts.TOCFile))
	if err != nil {
		return res, err
	}
	paths, err := tagtoc.NewWriter(s.renderer, s.opts.TOCTemplate, s.logger).Write(idx, s.opts.TOCFile)
	if err != nil {
		return res, err
	}
	res.TOCPath = paths.Markdown

	if s.catalog != nil {
		if err := s.catalog.Rebuild(entries); err != nil {
			return res, fmt.Errorf("convert: rebuild catalog: %w", err)
		}
	}

	if s.opts.Stash && s.stasher != nil {
		res.Stashed = s.push(ctx, notes)
	}

	s.logger.Info("convert: finished",
		slog.Int("converted", res.Converted),
		slog.Int("failed", res.Failed),
		slog.Int("attachments", res.Attachments),
		slog.String("toc", res.TOCPath),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (s *Service) convertOne(n *normalize.Normalizer, l loadedRecord) (converted, error) {
	if l.err != nil {
		return converted{}, l.err
	}
	note, err := n.Normalize(*l.rec)
	if err != nil {
		return converted{}, err
	}
	note, entry, err := s.renderNote(note)
	if err != nil {
		return converted{}, err
	}
	s.logger.Debug("convert: note written",
		slog.String("source", l.path),
		slog.String("target", entry.Path))
	return converted{note: note, entry: entry}, nil
}

// push sends the converted notes and returns how many were stored. A failed
// push has already been dumped locally by the stasher and does not fail the run.
func (s *Service) push(ctx context.Context, notes []converted) int {
	docs := make([]stash.Document, 0, len(notes))
	for _, c := range notes {
		docs = append(docs, stash.NewDocument(c.note))
	}
	if err := s.stasher.Bulk(ctx, docs); err != nil {
		s.logger.Warn("convert: stash failed", slog.String("error", err.Error()))
		return 0
	}
	return len(docs)
}

// excluded lists paths discovery must skip: the TOC snapshot, the
// converted-notes root and Options.Exclude.
func (s *Service) excluded() []string {
	out := append([]string(nil), s.opts.Exclude...)
	if s.opts.TOCFile != "" {
		out = append(out, tagtoc.PathsFor(s.opts.TOCFile).JSON)
	}
	if root, err := s.store.Abs(""); err == nil {
		out = append(out, root)
	}
	return out
}
