package journal

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/journal/internal/apperr"
)

// Order is the sort direction for entries.
type Order int

const (
	Descending Order = iota
	Ascending
)

// ParseOrder parses "ascending"/"asc" or "descending"/"desc". An empty string
// is Descending.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc", "descending":
		return Descending, nil
	case "asc", "ascending":
		return Ascending, nil
	}
	return Descending, fmt.Errorf("journal: unknown sort order %q", s)
}

func (o Order) String() string {
	if o == Ascending {
		return "ascending"
	}
	return "descending"
}

// Entry is one indexed journal entry. Record is set only when the index was
// built with records.
type Entry struct {
	FilePath  string
	EntryDate Date
	Record    *Record
}

// Bucket groups the entries of one file.
type Bucket struct {
	FilePath string
	Entries  []Entry
}

// Index is a transient view over the tree built by CreateIndex. Buckets have
// no particular order; use Entries for an ordered listing.
type Index []Bucket

type entryKey struct {
	path string
	date Date
}

// Len returns the number of distinct entries.
func (ix Index) Len() int {
	seen := make(map[entryKey]struct{})
	for _, b := range ix {
		for _, e := range b.Entries {
			seen[entryKey{e.FilePath, e.EntryDate}] = struct{}{}
		}
	}
	return len(seen)
}

// Entries flattens the index, drops duplicates, sorts by date (file path
// breaks ties) and keeps at most limit entries. limit <= 0 keeps all.
func (ix Index) Entries(order Order, limit int) []Entry {
	seen := make(map[entryKey]struct{})
	var out []Entry
	for _, b := range ix {
		for _, e := range b.Entries {
			k := entryKey{e.FilePath, e.EntryDate}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, e)
		}
	}
	sortEntries(out, order)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortEntries(entries []Entry, order Order) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		c := a.EntryDate.Compare(b.EntryDate)
		if c == 0 {
			c = strings.Compare(a.FilePath, b.FilePath)
		}
		if order == Ascending {
			return c < 0
		}
		return c > 0
	})
}

type indexOptions struct {
	withRecords   bool
	requireFilter bool
}

// IndexOption configures CreateIndex.
type IndexOption func(*indexOptions)

// WithRecords attaches the parsed record to every entry.
func WithRecords() IndexOption {
	return func(o *indexOptions) { o.withRecords = true }
}

// WithRequireFilter makes a query with neither range nor tags fail with
// apperr.ErrNoFilter instead of matching every entry.
func WithRequireFilter() IndexOption {
	return func(o *indexOptions) { o.requireFilter = true }
}

// CreateIndex builds an index of every entry whose date lies in dateRange
// (nil means any date) and, when tags is non-empty, that carries at least one
// of tags (ignoring case). Files with non-date names are skipped. Any other
// error aborts the query.
func (j *Journal) CreateIndex(dateRange *DateRange, tags []string, opts ...IndexOption) (Index, error) {
	var o indexOptions
	for _, opt := range opts {
		opt(&o)
	}

	wanted, err := normalizeTags(tags)
	if err != nil {
		return nil, err
	}
	if o.requireFilter && dateRange == nil && len(wanted) == 0 {
		return nil, apperr.ErrNoFilter
	}
	if dateRange != nil {
		if _, err := NewDateRange(dateRange.From, dateRange.To); err != nil {
			return nil, err
		}
	}
	needRecord := o.withRecords || len(wanted) > 0

	var (
		ix     Index
		bucket = make(map[string]int)
		seen   = make(map[entryKey]struct{})
	)
	for path, err := range NewMarkdownFiles(j.store).FindAll() {
		if err != nil {
			return nil, err
		}
		date, err := DateFromFileName(path)
		if err != nil {
			if errors.Is(err, apperr.ErrMalformedName) {
				continue
			}
			return nil, err
		}
		if dateRange != nil && !dateRange.Contains(date) {
			continue
		}

		entry := Entry{FilePath: path, EntryDate: date}
		if needRecord {
			rec, err := j.reader.ReadRecord(path)
			if err != nil {
				return nil, err
			}
			if len(wanted) > 0 && !rec.FrontMatter.HasAnyTag(wanted) {
				continue
			}
			if o.withRecords {
				entry.Record = &rec
			}
		}

		k := entryKey{path, date}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}

		i, ok := bucket[path]
		if !ok {
			i = len(ix)
			bucket[path] = i
			ix = append(ix, Bucket{FilePath: path})
		}
		ix[i].Entries = append(ix[i].Entries, entry)
	}
	return ix, nil
}
