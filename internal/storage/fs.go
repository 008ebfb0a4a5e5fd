package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/journal/internal/apperr"
	"github.com/starford/journal/internal/models"
)

// ErrStopWalk ends a Walk early without error.
var ErrStopWalk = errors.New("storage: stop walk")

const tempPattern = ".journal-tmp-*"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the journal root
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute journal root.
func (f *FS) Root() string { return f.root }

// Join combines path segments below the root.
func (f *FS) Join(elem ...string) string {
	return filepath.Join(append([]string{f.root}, elem...)...)
}

// Rel returns path relative to the root using forward slashes.
func (f *FS) Rel(path string) (string, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return "", fmt.Errorf("storage: rel: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// safePath resolves path against the journal root and rejects any result
// that escapes it (directory traversal).
func (f *FS) safePath(path string) (string, error) {
	if path == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if !filepath.IsAbs(cleaned) {
		cleaned = filepath.Join(f.root, cleaned)
	}
	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: %w: %s", apperr.ErrInvalidPath, path)
	}
	return abs, nil
}

// Walk visits every .md file under dir in directory order.
// A missing dir is not an error.
func (f *FS) Walk(dir string, fn func(path string) error) error {
	base, err := f.safePath(dir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(base); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		if err := fn(p); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return fs.SkipAll
			}
			return err
		}
		return nil
	})
	if err != nil {
		var se *apperr.StorageError
		if errors.As(err, &se) {
			return err
		}
		return apperr.Storage("walk", dir, err)
	}
	return nil
}

// List returns metadata for every .md file under dir.
func (f *FS) List(dir string) ([]models.FileMetadata, error) {
	var out []models.FileMetadata
	err := f.Walk(dir, func(p string) error {
		info, err := os.Stat(p)
		if err != nil {
			return apperr.Storage("stat", p, err)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return apperr.Storage("read", p, err)
		}
		rel, _ := filepath.Rel(f.root, p)
		out = append(out, models.FileMetadata{
			Path:      filepath.ToSlash(rel),
			Checksum:  Checksum(data),
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Read returns the raw bytes of a journal file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, apperr.Storage("read", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Storage("mkdir", dir, err)
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return apperr.Storage("create temp", path, err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return apperr.Storage("write temp", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return apperr.Storage("fsync", path, err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Storage("close temp", path, err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return apperr.Storage("rename", path, err)
	}
	success = true
	return nil
}

// Create writes content to a new file. An occupied path fails with an error
// matching fs.ErrExist; the existing file is left untouched.
func (f *FS) Create(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Storage("mkdir", dir, err)
	}
	file, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return apperr.Storage("create", path, err)
	}
	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		_ = os.Remove(abs)
		return apperr.Storage("write", path, err)
	}
	if err := file.Close(); err != nil {
		return apperr.Storage("close", path, err)
	}
	return nil
}

// Exists reports whether a regular file exists at path.
func (f *FS) Exists(path string) bool {
	abs, err := f.safePath(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// MkdirAll creates dir below the root if absent.
func (f *FS) MkdirAll(dir string) error {
	abs, err := f.safePath(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return apperr.Storage("mkdir", dir, err)
	}
	return nil
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
