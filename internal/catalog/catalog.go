package catalog

import "github.com/starford/journal/internal/models"

// Catalog is the persisted entry summary used by the service layer.
// Consumers depend on this interface rather than *DB so tests can swap it.
type Catalog interface {
	UpsertEntry(e models.CatalogEntry) error
	DeleteEntry(path string) error
	GetEntry(path string) (*models.CatalogEntry, error)
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	Tags() ([]models.TagCount, error)
	Readmes() ([]models.CatalogEntry, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
