// Package models defines the plain data types shared between storage, the
// catalog and the outer surfaces.
package models

import "time"

// FileMetadata is a lightweight description of one Markdown file in the tree.
type FileMetadata struct {
	Path      string    `json:"path"` // relative to the journal root, slash separated
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TagCount is the number of entries carrying a tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// CatalogEntry is the persisted summary of one entry file.
type CatalogEntry struct {
	Path      string    `json:"path"`
	Date      string    `json:"date,omitempty"` // YYYY-MM-DD, empty for non-canonical names
	Tags      []string  `json:"tags"`
	Readme    string    `json:"readme,omitempty"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
