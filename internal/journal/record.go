package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/journal/internal/apperr"
	"github.com/starford/journal/internal/storage"
)

// Record is one parsed entry file. Body is everything after the front matter,
// heading line included, exactly as stored.
type Record struct {
	FilePath    string
	FrontMatter FrontMatter
	Body        string
}

// EntryDate returns the date of the record.
func (r Record) EntryDate() Date { return r.FrontMatter.EntryDate() }

// Reader parses entry files from the journal tree.
type Reader struct {
	store storage.Provider
}

// NewReader creates a Reader over store.
func NewReader(store storage.Provider) *Reader {
	return &Reader{store: store}
}

// ReadRecord reads and parses the entry at path. A missing file fails with
// apperr.ErrRecordNotFound and a bad header with apperr.ErrFrontMatterFormat.
func (r *Reader) ReadRecord(path string) (Record, error) {
	abs, err := absPath(r.store, path)
	if err != nil {
		return Record{}, err
	}
	data, err := r.store.Read(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, fmt.Errorf("%w: %s", apperr.ErrRecordNotFound, path)
		}
		return Record{}, err
	}
	return ParseRecord(abs, data)
}

// ParseRecord parses the content of the entry file at path. The entry date is
// taken from the base name of path.
func ParseRecord(path string, content []byte) (Record, error) {
	header, body, err := splitFrontMatter(string(content))
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	// Non-canonical names still parse; they just carry no date.
	date, _ := DateFromFileName(path)
	fm, err := decodeHeader(header, date)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return Record{FilePath: path, FrontMatter: fm, Body: body}, nil
}

// Writer creates entry files and rewrites their headers.
type Writer struct {
	store storage.Provider
}

// NewWriter creates a Writer over store.
func NewWriter(store storage.Provider) *Writer {
	return &Writer{store: store}
}

// EntryFilePath returns root/YYYY/MM/YYYY-MM-DD.md for d, creating the month
// directory if it does not exist yet.
func (w *Writer) EntryFilePath(d Date) (string, error) {
	if d.IsZero() {
		return "", fmt.Errorf("journal: entry date is required")
	}
	parent := w.store.Join(YearDirectoryName(d), MonthDirectoryName(d))
	if err := w.store.MkdirAll(parent); err != nil {
		return "", err
	}
	return filepath.Join(parent, EntryFileName(d)), nil
}

// EntryExists reports whether an entry file exists at path.
func (w *Writer) EntryExists(path string) bool {
	return w.store.Exists(path)
}

// CreateRecord writes a new entry: the embedded header followed by a heading
// line for entryDate. It never overwrites; an occupied path fails with
// apperr.ErrAlreadyExists.
func (w *Writer) CreateRecord(fm FrontMatter, path string, entryDate Date) error {
	if w.store.Exists(path) {
		return fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, path)
	}
	header, err := fm.WithEntryDate(entryDate).Serialize(true)
	if err != nil {
		return err
	}
	content := header + "# " + entryDate.Display() + "\n"
	if err := w.store.Create(path, []byte(content)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, path)
		}
		return err
	}
	return nil
}

// RenameTag replaces oldTag (exact match) with newTag at the same position in
// the tag list and rewrites the file as new header + original body. The
// rewrite goes through a temp file and rename, so readers see either the old
// or the new content.
func (w *Writer) RenameTag(rec Record, oldTag, newTag string) (Record, error) {
	oldTag, newTag = strings.TrimSpace(oldTag), strings.TrimSpace(newTag)
	if oldTag == "" || newTag == "" {
		return Record{}, fmt.Errorf("%w: old and new tag must not be blank", apperr.ErrInvalidTag)
	}
	if !rec.FrontMatter.HasTags() {
		return Record{}, fmt.Errorf("%w: %s has no tags", apperr.ErrTagNotFound, rec.FilePath)
	}

	tags := rec.FrontMatter.tags
	idx := slices.Index(tags, oldTag)
	if idx < 0 {
		return Record{}, fmt.Errorf("%w: %q in %s", apperr.ErrTagNotFound, oldTag, rec.FilePath)
	}
	for i, t := range tags {
		if i != idx && strings.EqualFold(t, newTag) {
			return Record{}, fmt.Errorf("%w: %q is already present in %s", apperr.ErrInvalidTag, newTag, rec.FilePath)
		}
	}

	fm := rec.FrontMatter.renameTagAt(idx, newTag)
	header, err := fm.Serialize(true)
	if err != nil {
		return Record{}, err
	}
	if err := w.store.Write(rec.FilePath, []byte(header+rec.Body)); err != nil {
		return Record{}, err
	}
	return Record{FilePath: rec.FilePath, FrontMatter: fm, Body: rec.Body}, nil
}

// absPath normalizes path to an absolute path inside the store root.
func absPath(store storage.Provider, path string) (string, error) {
	rel, err := store.Rel(path)
	if err != nil {
		return "", err
	}
	return store.Join(filepath.FromSlash(rel)), nil
}
