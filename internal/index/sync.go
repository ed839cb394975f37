package index

import (
	"log/slog"
	"time"

	"github.com/starford/keepmd/internal/checksum"
	"github.com/starford/keepmd/internal/parser"
	"github.com/starford/keepmd/internal/storage"
)

// Sync rebuilds the catalog from the Markdown files already present in the
// converted-notes folder. Files without frontmatter (such as a TOC written
// into the same folder) are skipped. Notes are catalogued in path order.
func Sync(db Catalog, store storage.Provider, logger *slog.Logger) (int, error) {
	metas, err := store.List("")
	if err != nil {
		return 0, err
	}

	entries := make([]Entry, 0, len(metas))
	for _, m := range metas {
		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		e, ok := entryFromMarkdown(m.Path, data)
		if !ok {
			logger.Debug("sync: skipped, no frontmatter", slog.String("path", m.Path))
			continue
		}
		entries = append(entries, e)
	}

	if err := db.Rebuild(entries); err != nil {
		return 0, err
	}
	logger.Info("sync: catalog rebuilt", slog.Int("notes", len(entries)))
	return len(entries), nil
}

// entryFromMarkdown parses a converted note back into a catalog entry.
func entryFromMarkdown(path string, data []byte) (Entry, bool) {
	res, err := parser.Parse(data)
	if err != nil || res.Frontmatter == nil {
		return Entry{}, false
	}
	return Entry{
		Path:        path,
		Title:       res.Title,
		CreatedUsec: createdUsec(res.Frontmatter["created"]),
		Checksum:    checksum.Sum(data),
		Body:        res.Body,
		Tags:        res.Tags,
	}, true
}

// createdUsec accepts the frontmatter "created" value as decoded by either
// YAML library: a time.Time or an RFC 3339 string.
func createdUsec(v any) int64 {
	switch t := v.(type) {
	case time.Time:
		return t.UnixMicro()
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.UnixMicro()
		}
	}
	return 0
}
