package index

// Catalog is the queryable snapshot of one conversion run. Consumers should
// depend on this interface rather than the concrete *DB type.
type Catalog interface {
	Rebuild(entries []Entry) error
	Tags() ([]TagCount, error)
	NotesByTag(tag string) ([]NoteRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	GetNote(path string) (*NoteRow, error)
	Count() (int, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
