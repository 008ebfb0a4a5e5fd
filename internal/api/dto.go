package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/journal/internal/journal"
	"github.com/starford/journal/internal/journalservice"
	"github.com/starford/journal/internal/models"
)

// CreateEntryRequest is the request body for creating an entry.
type CreateEntryRequest struct {
	Date   string   `json:"date,omitempty" example:"2023-03-05"`
	Tags   []string `json:"tags,omitempty" example:"work,life"`
	Readme string   `json:"readme,omitempty" example:"re-read next spring"`
}

// Validate checks the request shape. Tag contents are checked by the journal.
func (r CreateEntryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Date, validation.Date(journal.DateLayout)),
		validation.Field(&r.Tags, validation.Each(validation.Required)),
	)
}

// RenameTagRequest is the request body for renaming a tag. An empty Path
// renames the tag in every entry.
type RenameTagRequest struct {
	Path string `json:"path,omitempty" example:"2023/03/2023-03-05.md"`
	Old  string `json:"old" example:"work" validate:"required"`
	New  string `json:"new" example:"job" validate:"required"`
}

func (r RenameTagRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Old, validation.Required),
		validation.Field(&r.New, validation.Required),
	)
}

// EntryDetail is the full entry response type (aliased from the domain layer).
type EntryDetail = journalservice.EntryDetail

// EntryListItem is a lightweight item in a list response (aliased from the domain layer).
type EntryListItem = journalservice.EntryListItem

// EntryListResponse wraps entry listings.
type EntryListResponse struct {
	Entries []EntryListItem `json:"entries" validate:"required"`
	Total   int             `json:"total" example:"42" validate:"required"`
}

// TagListResponse wraps tag counts.
type TagListResponse struct {
	Tags []models.TagCount `json:"tags" validate:"required"`
}

// TagRenameResponse reports the entries rewritten by a bulk rename.
type TagRenameResponse struct {
	Old   string   `json:"old" example:"work" validate:"required"`
	New   string   `json:"new" example:"job" validate:"required"`
	Paths []string `json:"paths" validate:"required"`
}
