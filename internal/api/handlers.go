package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/journal/internal/apperr"
	"github.com/starford/journal/internal/journal"
	"github.com/starford/journal/internal/journalservice"
)

// Defaults applies to list queries that omit sort or limit.
type Defaults struct {
	Order journal.Order
	Limit int
}

// Handler holds API route handlers.
type Handler struct {
	svc      *journalservice.Service
	defaults Defaults
}

// NewHandler creates a new Handler.
func NewHandler(svc *journalservice.Service, defaults Defaults) *Handler {
	return &Handler{svc: svc, defaults: defaults}
}

// entryPath extracts the entry path from the URL (everything after /api/entries/).
// Supports encoded slashes from OpenAPI clients (e.g. 2023%2F03%2F2023-03-05.md).
func entryPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// parseQuery reads from, to, tags, sort and limit from the query string.
func (h *Handler) parseQuery(v url.Values) (journalservice.Query, error) {
	q := journalservice.Query{Order: h.defaults.Order, Limit: h.defaults.Limit}
	var err error
	if s := v.Get("from"); s != "" {
		if q.From, err = journal.ParseDate(s); err != nil {
			return q, fmt.Errorf("from: %w", err)
		}
	}
	if s := v.Get("to"); s != "" {
		if q.To, err = journal.ParseDate(s); err != nil {
			return q, fmt.Errorf("to: %w", err)
		}
	}
	for _, raw := range v["tags"] {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				q.Tags = append(q.Tags, tag)
			}
		}
	}
	if s := v.Get("sort"); s != "" {
		if q.Order, err = journal.ParseOrder(s); err != nil {
			return q, err
		}
	}
	if s := v.Get("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil || q.Limit < 0 {
			return q, fmt.Errorf("limit must be a non-negative integer")
		}
	}
	return q, nil
}

// writeError maps domain errors to HTTP statuses. Unknown errors are logged
// and reported as 500.
func writeError(w http.ResponseWriter, msg string, err error, attrs ...any) {
	writeErrorBody(w, msg, err, errResponse{}, attrs...)
}

func writeErrorBody(w http.ResponseWriter, msg string, err error, body errResponse, attrs ...any) {
	var status int
	switch {
	case errors.Is(err, apperr.ErrRecordNotFound), errors.Is(err, apperr.ErrTagNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrInvalidTag),
		errors.Is(err, apperr.ErrInvalidRange),
		errors.Is(err, apperr.ErrNoFilter),
		errors.Is(err, apperr.ErrInvalidPath):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrFrontMatterFormat):
		status = http.StatusUnprocessableEntity
	default:
		slog.Error(msg, append(attrs, slog.String("error", err.Error()))...)
		body.Error = "internal error"
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	body.Error = err.Error()
	writeJSON(w, status, body)
}

// ListEntries handles GET /api/entries.
//
//	@Summary		List entries by date range and tags
//	@Tags			entries
//	@Produce		json
//	@Param			from	query		string	false	"First date (YYYY-MM-DD), inclusive"
//	@Param			to		query		string	false	"Last date (YYYY-MM-DD), inclusive"
//	@Param			tags	query		string	false	"Comma-separated tags, any may match"
//	@Param			sort	query		string	false	"Sort order"	Enums(ascending, descending)
//	@Param			limit	query		int		false	"Max entries (0 = all)"
//	@Success		200		{object}	EntryListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	items, err := h.svc.Query(r.Context(), q)
	if err != nil {
		writeError(w, "list entries failed", err)
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: items, Total: len(items)})
}

// GetEntry handles GET /api/entries/*. The path may also be a bare date.
//
//	@Summary		Get a single entry by path or date
//	@Tags			entries
//	@Produce		json
//	@Param			path	path		string	true	"Entry path or YYYY-MM-DD"
//	@Success		200		{object}	EntryDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{path} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	path := entryPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var (
		entry *EntryDetail
		err   error
	)
	if d, dateErr := journal.ParseDate(path); dateErr == nil {
		entry, err = h.svc.GetEntryByDate(r.Context(), d)
	} else {
		entry, err = h.svc.GetEntry(r.Context(), path)
	}
	if err != nil {
		writeError(w, "get entry failed", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// CreateEntry handles POST /api/entries.
//
//	@Summary		Create the entry for a date (today when omitted)
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateEntryRequest	true	"Entry to create"
//	@Success		201		{object}	EntryDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [post]
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var date journal.Date
	if req.Date != "" {
		date, _ = journal.ParseDate(req.Date)
	}
	entry, err := h.svc.CreateEntry(r.Context(), date, req.Tags, req.Readme)
	if err != nil {
		writeError(w, "create entry failed", err, slog.String("date", req.Date))
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// RenameTag handles POST /api/tags/rename.
//
//	@Summary		Rename a tag in one entry or in every entry
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenameTagRequest	true	"Rename request"
//	@Success		200		{object}	TagRenameResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/rename [post]
func (h *Handler) RenameTag(w http.ResponseWriter, r *http.Request) {
	var req RenameTagRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	if req.Path != "" {
		entry, err := h.svc.RenameTag(r.Context(), req.Path, req.Old, req.New)
		if err != nil {
			writeError(w, "rename tag failed", err, slog.String("path", req.Path))
			return
		}
		writeJSON(w, http.StatusOK, TagRenameResponse{Old: req.Old, New: req.New, Paths: []string{entry.Path}})
		return
	}

	paths, err := h.svc.RenameTagEverywhere(r.Context(), req.Old, req.New)
	if err != nil {
		writeErrorBody(w, "rename tag failed", err, errResponse{Paths: paths}, slog.String("old", req.Old))
		return
	}
	writeJSON(w, http.StatusOK, TagRenameResponse{Old: req.Old, New: req.New, Paths: paths})
}

// ListTags handles GET /api/tags.
//
//	@Summary		List tags with entry counts
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagListResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.Tags(r.Context())
	if err != nil {
		writeError(w, "list tags failed", err)
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: tags})
}

// Readme handles GET /api/readme.
//
//	@Summary		List entries carrying a readme note, oldest first
//	@Tags			entries
//	@Produce		json
//	@Success		200	{object}	EntryListResponse
//	@Security		BearerAuth
//	@Router			/readme [get]
func (h *Handler) Readme(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Readme(r.Context())
	if err != nil {
		writeError(w, "list readme entries failed", err)
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: items, Total: len(items)})
}
