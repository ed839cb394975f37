package convert

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/keepmd/internal/models"
	"github.com/starford/keepmd/internal/parser"
)

// Discover returns every .json file under root in lexical path order,
// skipping the excluded files and directory trees.
func Discover(root string, exclude []string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("convert: resolve %s: %w", root, err)
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, p := range exclude {
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = struct{}{}
		}
	}

	var out []string
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if _, ok := skip[p]; ok {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".json") {
			return nil
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("convert: discover: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// loadedRecord is one source file after reading and decoding. A record that
// failed to decode carries err and a nil rec.
type loadedRecord struct {
	path string
	rec  *models.RawNoteRecord
	err  error
}

// loadRecords reads and decodes paths with up to workers goroutines. Results
// keep the order of paths. Decode failures are returned per record; only
// cancellation fails the whole load.
func loadRecords(ctx context.Context, paths []string, workers int) ([]loadedRecord, error) {
	out := make([]loadedRecord, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			out[i] = loadRecord(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func loadRecord(path string) loadedRecord {
	data, err := os.ReadFile(path)
	if err != nil {
		return loadedRecord{path: path, err: fmt.Errorf("convert: read %s: %w", path, err)}
	}
	rec, err := parser.ParseRecord(data, path)
	return loadedRecord{path: path, rec: rec, err: err}
}
