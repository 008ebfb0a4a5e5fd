// Package journal implements the dated Markdown journal: file naming, the
// front-matter header, record reading and writing, and the entry index.
//
// Entries live at root/YYYY/MM/YYYY-MM-DD.md. Each file starts with a YAML
// header between "---" lines, followed by a "# <display date>" heading and
// free text. The package is synchronous and does no locking; callers are
// expected to be the only writer of the tree.
package journal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/journal/internal/apperr"
	"github.com/starford/journal/internal/models"
	"github.com/starford/journal/internal/storage"
)

// Journal is the entry point over one journal tree.
type Journal struct {
	store  storage.Provider
	reader *Reader
	writer *Writer
}

// Open returns a Journal over store.
func Open(store storage.Provider) *Journal {
	return &Journal{
		store:  store,
		reader: NewReader(store),
		writer: NewWriter(store),
	}
}

// Root returns the absolute journal root.
func (j *Journal) Root() string { return j.store.Root() }

// Reader returns the record reader.
func (j *Journal) Reader() *Reader { return j.reader }

// Writer returns the record writer.
func (j *Journal) Writer() *Writer { return j.writer }

// OpenRecord reads the entry at path (absolute, or relative to the root).
func (j *Journal) OpenRecord(path string) (Record, error) {
	return j.reader.ReadRecord(path)
}

// OpenDate reads the entry for d.
func (j *Journal) OpenDate(d Date) (Record, error) {
	return j.reader.ReadRecord(EntryRelPath(d))
}

// CreateEntry creates the file for date with the given header and returns
// the new record. An existing entry for date fails with
// apperr.ErrAlreadyExists.
func (j *Journal) CreateEntry(date Date, tags []string, readme string) (Record, error) {
	fm, err := NewFrontMatter(tags, readme, date)
	if err != nil {
		return Record{}, err
	}
	path, err := j.writer.EntryFilePath(date)
	if err != nil {
		return Record{}, err
	}
	if err := j.writer.CreateRecord(fm, path, date); err != nil {
		return Record{}, err
	}
	return j.reader.ReadRecord(path)
}

// RenameTag renames a tag in the single entry at path.
func (j *Journal) RenameTag(path, oldTag, newTag string) (Record, error) {
	rec, err := j.reader.ReadRecord(path)
	if err != nil {
		return Record{}, err
	}
	return j.writer.RenameTag(rec, oldTag, newTag)
}

// RenameTagEverywhere renames oldTag to newTag in every entry that carries
// oldTag exactly, in ascending date order. It returns the paths rewritten
// so far and stops at the first error.
func (j *Journal) RenameTagEverywhere(oldTag, newTag string) ([]string, error) {
	oldTag, newTag = strings.TrimSpace(oldTag), strings.TrimSpace(newTag)
	if oldTag == "" || newTag == "" {
		return nil, fmt.Errorf("%w: old and new tag must not be blank", apperr.ErrInvalidTag)
	}
	ix, err := j.CreateIndex(nil, []string{oldTag}, WithRecords())
	if err != nil {
		return nil, err
	}
	var renamed []string
	for _, e := range ix.Entries(Ascending, 0) {
		if !hasExactTag(e.Record.FrontMatter.tags, oldTag) {
			continue
		}
		if _, err := j.writer.RenameTag(*e.Record, oldTag, newTag); err != nil {
			return renamed, err
		}
		renamed = append(renamed, e.FilePath)
	}
	return renamed, nil
}

func hasExactTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Files lists every dated entry in the tree without reading any of them.
func (j *Journal) Files(order Order, limit int) ([]Entry, error) {
	var entries []Entry
	for path, err := range NewMarkdownFiles(j.store).FindAll() {
		if err != nil {
			return nil, err
		}
		date, err := DateFromFileName(path)
		if err != nil {
			continue // not a dated entry
		}
		entries = append(entries, Entry{FilePath: path, EntryDate: date})
	}
	sortEntries(entries, order)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// RecentEntries returns up to limit records, newest first.
func (j *Journal) RecentEntries(limit int) ([]Record, error) {
	entries, err := j.Files(Descending, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		rec, err := j.reader.ReadRecord(e.FilePath)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadmeEntries returns the records with a readme note, oldest first.
func (j *Journal) ReadmeEntries() ([]Record, error) {
	ix, err := j.CreateIndex(nil, nil, WithRecords())
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, e := range ix.Entries(Ascending, 0) {
		if e.Record.FrontMatter.Readme() != "" {
			out = append(out, *e.Record)
		}
	}
	return out, nil
}

// Tags counts how many entries carry each tag. Tags differing only in case
// count together under the first spelling seen in date order.
func (j *Journal) Tags() ([]models.TagCount, error) {
	ix, err := j.CreateIndex(nil, nil, WithRecords())
	if err != nil {
		return nil, err
	}
	return CountTags(ix.Entries(Ascending, 0)), nil
}

// CountTags tallies the tags of entries that carry a record, sorted by count
// descending then by tag.
func CountTags(entries []Entry) []models.TagCount {
	counts := make(map[string]int)
	spelling := make(map[string]string)
	for _, e := range entries {
		if e.Record == nil {
			continue
		}
		for _, t := range e.Record.FrontMatter.tags {
			k := strings.ToLower(t)
			if _, ok := spelling[k]; !ok {
				spelling[k] = t
			}
			counts[k]++
		}
	}
	out := make([]models.TagCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, models.TagCount{Tag: spelling[k], Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
