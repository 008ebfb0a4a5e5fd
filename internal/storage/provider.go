// Package storage defines the journal tree file-system abstraction.
//
// Paths accepted by a Provider are either relative to the journal root or
// absolute paths that lie inside it. Anything resolving outside the root is
// rejected.
package storage

import "github.com/starford/journal/internal/models"

// Provider is the interface for journal tree file operations.
type Provider interface {
	// Root returns the absolute journal root directory.
	Root() string
	// Join combines path segments below the root into an absolute path.
	Join(elem ...string) string
	// Rel returns path relative to the root, slash separated.
	Rel(path string) (string, error)
	// Walk calls fn with the absolute path of every .md file under dir.
	// Returning ErrStopWalk from fn ends the walk without error.
	Walk(dir string, fn func(path string) error) error
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the content at path, creating parents as needed.
	Write(path string, content []byte) error
	// Create writes a new file, failing if path is already occupied.
	Create(path string, content []byte) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
	// MkdirAll creates dir and its parents if absent.
	MkdirAll(dir string) error
}
