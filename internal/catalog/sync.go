package catalog

import (
	"log/slog"
	"time"

	"github.com/starford/journal/internal/journal"
	"github.com/starford/journal/internal/models"
	"github.com/starford/journal/internal/storage"
)

// Sync walks the journal tree and brings the catalog up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the catalog
//
// Only dated entry files are cataloged; other markdown in the tree is
// skipped silently. Entries whose header cannot be parsed are logged and
// left out.
func Sync(db Catalog, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if !IsEntry(m.Path) {
			continue
		}
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteEntry(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IsEntry reports whether rel is named like a journal entry (YYYY-MM-DD.md).
func IsEntry(rel string) bool {
	_, err := journal.DateFromFileName(rel)
	return err == nil
}

// IndexFile parses data as the entry at rel (slash separated, relative to
// the journal root) and upserts it. A rel that is not an entry name fails
// with apperr.ErrMalformedName.
func IndexFile(db Catalog, rel string, data []byte, updatedAt time.Time) error {
	if _, err := journal.DateFromFileName(rel); err != nil {
		return err
	}
	rec, err := journal.ParseRecord(rel, data)
	if err != nil {
		return err
	}
	return db.UpsertEntry(EntryFromRecord(rel, rec, storage.Checksum(data), updatedAt))
}

// EntryFromRecord builds the catalog row for rec.
func EntryFromRecord(rel string, rec journal.Record, checksum string, updatedAt time.Time) models.CatalogEntry {
	return models.CatalogEntry{
		Path:      rel,
		Date:      rec.EntryDate().String(),
		Tags:      rec.FrontMatter.Tags(),
		Readme:    rec.FrontMatter.Readme(),
		Checksum:  checksum,
		UpdatedAt: updatedAt,
	}
}
