// Package storage defines the converted-notes file-system abstraction.
package storage

import "github.com/starford/keepmd/internal/models"

// Provider is the interface for operations on the converted-notes folder.
// All paths are relative to the folder root.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, replacing any existing file.
	Write(path string, content []byte) error
	// Import copies the external file src to path, replacing any existing file.
	Import(src, path string) (int64, error)
	// Exists reports whether path is present.
	Exists(path string) bool
	// Abs resolves path to an absolute location under the root.
	Abs(path string) (string, error)
}
