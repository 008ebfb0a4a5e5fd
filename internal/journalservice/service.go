// Package journalservice coordinates the journal tree, the SQLite catalog
// and change notifications for the HTTP, MCP and CLI surfaces.
package journalservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/starford/journal/internal/apperr"
	"github.com/starford/journal/internal/catalog"
	"github.com/starford/journal/internal/clock"
	"github.com/starford/journal/internal/journal"
	"github.com/starford/journal/internal/models"
	"github.com/starford/journal/internal/storage"
)

// EntryDetail is the full representation of an entry.
type EntryDetail struct {
	Path     string   `json:"path"`
	Date     string   `json:"date,omitempty"`
	Heading  string   `json:"heading,omitempty"`
	Tags     []string `json:"tags"`
	Readme   string   `json:"readme,omitempty"`
	Body     string   `json:"body"`
	Content  string   `json:"content"`
	Checksum string   `json:"checksum"`
}

// EntryListItem is a lightweight item in a list response.
type EntryListItem struct {
	Path   string   `json:"path"`
	Date   string   `json:"date"`
	Tags   []string `json:"tags"`
	Readme string   `json:"readme,omitempty"`
}

// Query selects entries. Zero From/To are unbounded; Limit <= 0 is unlimited.
type Query struct {
	From  journal.Date
	To    journal.Date
	Tags  []string
	Order journal.Order
	Limit int
}

func (q Query) hasFilter() bool {
	return !q.From.IsZero() || !q.To.IsZero() || len(q.Tags) > 0
}

func (q Query) dateRange() *journal.DateRange {
	if q.From.IsZero() && q.To.IsZero() {
		return nil
	}
	return &journal.DateRange{From: q.From, To: q.To}
}

// Publisher receives change notifications. *sse.Broker implements it.
type Publisher interface {
	PublishEntryEvent(kind, path string)
	PublishTagRename(oldTag, newTag string, paths []string)
}

// Service coordinates journal, catalog and publisher.
type Service struct {
	journal       *journal.Journal
	store         storage.Provider
	catalog       catalog.Catalog
	publisher     Publisher
	clock         clock.Clock
	logger        *slog.Logger
	requireFilter bool
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog keeps db in step with every write and serves tag listings from it.
func WithCatalog(db catalog.Catalog) Option {
	return func(s *Service) { s.catalog = db }
}

// WithPublisher sets the change notification sink.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides the clock used for "today".
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger for non-fatal catalog failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRequireFilter rejects queries with neither dates nor tags.
func WithRequireFilter(on bool) Option {
	return func(s *Service) { s.requireFilter = on }
}

// NewService creates a new journal service over store.
func NewService(store storage.Provider, opts ...Option) *Service {
	s := &Service{
		journal: journal.Open(store),
		store:   store,
		clock:   clock.System{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Journal returns the underlying journal.
func (s *Service) Journal() *journal.Journal { return s.journal }

// Today returns the service clock's date.
func (s *Service) Today() journal.Date { return s.clock.Today() }

// GetEntry reads an entry by path (relative to the root).
func (s *Service) GetEntry(_ context.Context, path string) (*EntryDetail, error) {
	rec, data, err := s.load(path)
	if err != nil {
		return nil, err
	}
	return s.detail(rec, data)
}

// GetEntryByDate reads the entry for d.
func (s *Service) GetEntryByDate(ctx context.Context, d journal.Date) (*EntryDetail, error) {
	return s.GetEntry(ctx, journal.EntryRelPath(d))
}

// CreateEntry creates the entry for date (today when zero), catalogs it and
// announces it.
func (s *Service) CreateEntry(_ context.Context, date journal.Date, tags []string, readme string) (*EntryDetail, error) {
	if date.IsZero() {
		date = s.clock.Today()
	}
	rec, err := s.journal.CreateEntry(date, tags, readme)
	if err != nil {
		return nil, err
	}
	return s.afterWrite(rec, catalog.Created)
}

// RenameTag renames a tag in the single entry at path.
func (s *Service) RenameTag(_ context.Context, path, oldTag, newTag string) (*EntryDetail, error) {
	rec, err := s.journal.RenameTag(path, oldTag, newTag)
	if err != nil {
		return nil, err
	}
	d, err := s.afterWrite(rec, catalog.Updated)
	if err != nil {
		return nil, err
	}
	if s.publisher != nil {
		s.publisher.PublishTagRename(oldTag, newTag, []string{d.Path})
	}
	return d, nil
}

// RenameTagEverywhere renames oldTag in every entry carrying it exactly and
// returns the rewritten paths. Entries rewritten before a failure stay
// rewritten and are still reported.
func (s *Service) RenameTagEverywhere(_ context.Context, oldTag, newTag string) ([]string, error) {
	abs, renameErr := s.journal.RenameTagEverywhere(oldTag, newTag)
	paths := make([]string, 0, len(abs))
	for _, p := range abs {
		rel, err := s.store.Rel(p)
		if err != nil {
			return paths, err
		}
		s.recatalog(rel)
		if s.publisher != nil {
			s.publisher.PublishEntryEvent(catalog.Updated, rel)
		}
		paths = append(paths, rel)
	}
	if s.publisher != nil && len(paths) > 0 {
		s.publisher.PublishTagRename(oldTag, newTag, paths)
	}
	return paths, renameErr
}

// Query lists entries matching q. A From without a To ends the range today.
// With no filter at all the tree is listed straight from file names unless
// strict filtering is on.
func (s *Service) Query(_ context.Context, q Query) ([]EntryListItem, error) {
	if !q.From.IsZero() && q.To.IsZero() {
		q.To = s.clock.Today()
	}
	var entries []journal.Entry
	if !q.hasFilter() && !s.requireFilter {
		files, err := s.journal.Files(q.Order, q.Limit)
		if err != nil {
			return nil, err
		}
		for _, e := range files {
			rec, err := s.journal.OpenRecord(e.FilePath)
			if err != nil {
				return nil, err
			}
			e.Record = &rec
			entries = append(entries, e)
		}
	} else {
		opts := []journal.IndexOption{journal.WithRecords()}
		if s.requireFilter {
			opts = append(opts, journal.WithRequireFilter())
		}
		ix, err := s.journal.CreateIndex(q.dateRange(), q.Tags, opts...)
		if err != nil {
			return nil, err
		}
		entries = ix.Entries(q.Order, q.Limit)
	}

	items := make([]EntryListItem, 0, len(entries))
	for _, e := range entries {
		item, err := s.listItem(*e.Record)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Recent returns up to limit entries, newest first.
func (s *Service) Recent(_ context.Context, limit int) ([]EntryListItem, error) {
	recs, err := s.journal.RecentEntries(limit)
	if err != nil {
		return nil, err
	}
	return s.listItems(recs)
}

// Readme returns the entries that carry a readme note, oldest first.
func (s *Service) Readme(_ context.Context) ([]EntryListItem, error) {
	if s.catalog != nil {
		rows, err := s.catalog.Readmes()
		if err != nil {
			return nil, err
		}
		items := make([]EntryListItem, len(rows))
		for i, r := range rows {
			items[i] = EntryListItem{Path: r.Path, Date: r.Date, Tags: r.Tags, Readme: r.Readme}
		}
		return items, nil
	}
	recs, err := s.journal.ReadmeEntries()
	if err != nil {
		return nil, err
	}
	return s.listItems(recs)
}

// Tags returns tag counts, from the catalog when one is configured.
func (s *Service) Tags(_ context.Context) ([]models.TagCount, error) {
	var (
		tags []models.TagCount
		err  error
	)
	if s.catalog != nil {
		tags, err = s.catalog.Tags()
	} else {
		tags, err = s.journal.Tags()
	}
	if err != nil {
		return nil, err
	}
	return nonNilSlice(tags), nil
}

// Sync rebuilds the catalog from disk. It is a no-op without a catalog.
func (s *Service) Sync(_ context.Context) error {
	if s.catalog == nil {
		return nil
	}
	return catalog.Sync(s.catalog, s.store, s.logger)
}

// load reads and parses path, returning the raw bytes alongside.
func (s *Service) load(path string) (journal.Record, []byte, error) {
	rel, err := s.store.Rel(path)
	if err != nil {
		return journal.Record{}, nil, err
	}
	data, err := s.store.Read(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return journal.Record{}, nil, fmt.Errorf("%w: %s", apperr.ErrRecordNotFound, rel)
		}
		return journal.Record{}, nil, err
	}
	rec, err := journal.ParseRecord(s.store.Join(rel), data)
	if err != nil {
		return journal.Record{}, nil, err
	}
	return rec, data, nil
}

// afterWrite catalogs a freshly written record and announces it.
func (s *Service) afterWrite(rec journal.Record, kind string) (*EntryDetail, error) {
	_, data, err := s.load(rec.FilePath)
	if err != nil {
		return nil, err
	}
	d, err := s.detail(rec, data)
	if err != nil {
		return nil, err
	}
	if s.catalog != nil {
		entry := catalog.EntryFromRecord(d.Path, rec, d.Checksum, time.Now())
		if err := s.catalog.UpsertEntry(entry); err != nil {
			s.logger.Warn("catalog upsert failed", slog.String("path", d.Path), slog.String("error", err.Error()))
		}
	}
	if s.publisher != nil {
		s.publisher.PublishEntryEvent(kind, d.Path)
	}
	return d, nil
}

func (s *Service) recatalog(rel string) {
	if s.catalog == nil {
		return
	}
	data, err := s.store.Read(rel)
	if err == nil {
		err = catalog.IndexFile(s.catalog, rel, data, time.Now())
	}
	if err != nil {
		s.logger.Warn("catalog update failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
}

func (s *Service) detail(rec journal.Record, data []byte) (*EntryDetail, error) {
	rel, err := s.store.Rel(rec.FilePath)
	if err != nil {
		return nil, err
	}
	return &EntryDetail{
		Path:     rel,
		Date:     rec.EntryDate().String(),
		Heading:  rec.EntryDate().Display(),
		Tags:     nonNilSlice(rec.FrontMatter.Tags()),
		Readme:   rec.FrontMatter.Readme(),
		Body:     rec.Body,
		Content:  string(data),
		Checksum: storage.Checksum(data),
	}, nil
}

func (s *Service) listItem(rec journal.Record) (EntryListItem, error) {
	rel, err := s.store.Rel(rec.FilePath)
	if err != nil {
		return EntryListItem{}, err
	}
	return EntryListItem{
		Path:   rel,
		Date:   rec.EntryDate().String(),
		Tags:   nonNilSlice(rec.FrontMatter.Tags()),
		Readme: rec.FrontMatter.Readme(),
	}, nil
}

func (s *Service) listItems(recs []journal.Record) ([]EntryListItem, error) {
	items := make([]EntryListItem, 0, len(recs))
	for _, r := range recs {
		item, err := s.listItem(r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
