package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/journal/internal/apperr"
	"github.com/starford/journal/internal/models"
)

// UpsertEntry inserts or replaces an entry and its tags within a transaction.
func (db *DB) UpsertEntry(e models.CatalogEntry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	_, err = tx.Exec(`
		INSERT INTO entries (path, date, readme, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			date       = excluded.date,
			readme     = excluded.readme,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, e.Path, e.Date, e.Readme, e.Checksum, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert entry: %w", err)
	}

	// Replace tags: delete old then bulk insert.
	if _, err := tx.Exec(`DELETE FROM entry_tags WHERE path = ?`, e.Path); err != nil {
		return fmt.Errorf("catalog: clear tags: %w", err)
	}
	if len(e.Tags) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO entry_tags (path, tag, tag_key, position) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("catalog: prepare tag insert: %w", err)
		}
		defer stmt.Close()
		for i, tag := range e.Tags {
			if _, err := stmt.Exec(e.Path, tag, tagKey(tag), i); err != nil {
				return fmt.Errorf("catalog: insert tag: %w", err)
			}
		}
	}

	return tx.Commit()
}

func tagKey(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// DeleteEntry removes an entry and its tags.
func (db *DB) DeleteEntry(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM entry_tags WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM entries WHERE path = ?`, path)

	return tx.Commit()
}

// GetEntry returns the cataloged summary of path or apperr.ErrNotFound.
func (db *DB) GetEntry(path string) (*models.CatalogEntry, error) {
	e := models.CatalogEntry{Path: path}
	err := db.conn.QueryRow(`SELECT date, readme, checksum, updated_at FROM entries WHERE path = ?`, path).
		Scan(&e.Date, &e.Readme, &e.Checksum, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get entry: %w", err)
	}

	rows, err := db.conn.Query(`SELECT tag FROM entry_tags WHERE path = ? ORDER BY position`, path)
	if err != nil {
		return nil, fmt.Errorf("catalog: get tags: %w", err)
	}
	defer rows.Close()
	e.Tags = []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		e.Tags = append(e.Tags, tag)
	}
	return &e, rows.Err()
}

// GetChecksum returns the stored checksum for an entry, or "" if the entry
// is not cataloged.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM entries WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("catalog: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every cataloged entry.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Tags counts entries per tag, ignoring case. Each tag is reported with the
// spelling of its earliest dated entry. Sorted by count descending, then tag.
func (db *DB) Tags() ([]models.TagCount, error) {
	// SQLite takes bare columns from the row that produced MIN().
	rows, err := db.conn.Query(`
		SELECT t.tag, MIN(e.date || ' ' || e.path), COUNT(*)
		FROM entry_tags t JOIN entries e ON e.path = t.path
		GROUP BY t.tag_key
		ORDER BY 3 DESC, 1 ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("catalog: tags: %w", err)
	}
	defer rows.Close()

	var out []models.TagCount
	for rows.Next() {
		var (
			tc    models.TagCount
			first string
		)
		if err := rows.Scan(&tc.Tag, &first, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// Readmes returns the entries with a readme note, oldest first, tags
// included in header order.
func (db *DB) Readmes() ([]models.CatalogEntry, error) {
	rows, err := db.conn.Query(`
		SELECT e.path, e.date, e.readme, e.checksum, e.updated_at, t.tag
		FROM entries e LEFT JOIN entry_tags t ON t.path = e.path
		WHERE e.readme <> ''
		ORDER BY e.date, e.path, t.position
	`)
	if err != nil {
		return nil, fmt.Errorf("catalog: readmes: %w", err)
	}
	defer rows.Close()

	var out []models.CatalogEntry
	for rows.Next() {
		var (
			e   models.CatalogEntry
			tag sql.NullString
		)
		if err := rows.Scan(&e.Path, &e.Date, &e.Readme, &e.Checksum, &e.UpdatedAt, &tag); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].Path != e.Path {
			e.Tags = []string{}
			out = append(out, e)
		}
		if tag.Valid {
			last := &out[len(out)-1]
			last.Tags = append(last.Tags, tag.String)
		}
	}
	return out, rows.Err()
}
