// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes journal tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/journal/internal/journal"
	"github.com/starford/journal/internal/journalservice"
)

// EntryFormatURI is the resource URI of the entry format contract.
const EntryFormatURI = "journal://entry-format"

// Server wraps the MCP server with journal tools.
type Server struct {
	mcp *server.MCPServer
	svc *journalservice.Service
}

// New creates a new MCP server with all journal tools registered.
func New(svc *journalservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Journal",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("query_entries",
		mcp.WithDescription("List journal entries by inclusive date range and tags. "+
			"Any of the given tags may match; tag matching ignores case. "+
			"With no filter every entry is listed."),
		mcp.WithString("from", mcp.Description("First date, YYYY-MM-DD")),
		mcp.WithString("to", mcp.Description("Last date, YYYY-MM-DD")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags to match")),
		mcp.WithString("sort", mcp.Description("ascending or descending (default)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries; 0 for all")),
	), s.queryEntries)

	s.mcp.AddTool(mcp.NewTool("read_entry",
		mcp.WithDescription("Read the full content of a journal entry by date or path."),
		mcp.WithString("date", mcp.Description("Entry date, YYYY-MM-DD")),
		mcp.WithString("path", mcp.Description("Path relative to the journal root (e.g. 2023/03/2023-03-05.md)")),
	), s.readEntry)

	s.mcp.AddTool(mcp.NewTool("create_entry",
		mcp.WithDescription("Create the journal entry for a date (today when omitted). "+
			"Fails if the entry already exists. Read the format first via "+
			"get_entry_format or the "+EntryFormatURI+" resource."),
		mcp.WithString("date", mcp.Description("Entry date, YYYY-MM-DD")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags for the new entry")),
		mcp.WithString("readme", mcp.Description("Optional note to re-read later")),
	), s.createEntry)

	s.mcp.AddTool(mcp.NewTool("rename_tag",
		mcp.WithDescription("Rename a tag. With a path only that entry is rewritten, "+
			"otherwise every entry carrying the tag with exactly this spelling."),
		mcp.WithString("old", mcp.Required(), mcp.Description("Tag to replace, exact spelling")),
		mcp.WithString("new", mcp.Required(), mcp.Description("Replacement tag")),
		mcp.WithString("path", mcp.Description("Optional entry path to limit the rename to")),
	), s.renameTag)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List every tag with the number of entries carrying it."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("get_entry_format",
		mcp.WithDescription("Returns the journal entry format contract. "+
			"Call this before creating entries to ensure correct structure."),
	), s.getEntryFormat)

	s.mcp.AddResource(
		mcp.NewResource(EntryFormatURI, "Entry Format Contract",
			mcp.WithResourceDescription("On-disk layout and header format of journal entries."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEntryFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func optionalDate(req mcp.CallToolRequest, key string) (journal.Date, error) {
	s := req.GetString(key, "")
	if s == "" {
		return journal.Date{}, nil
	}
	d, err := journal.ParseDate(s)
	if err != nil {
		return journal.Date{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func (s *Server) queryEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		q   journalservice.Query
		err error
	)
	if q.From, err = optionalDate(req, "from"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if q.To, err = optionalDate(req, "to"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if q.Order, err = journal.ParseOrder(req.GetString("sort", "")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q.Tags = req.GetStringSlice("tags", nil)
	q.Limit = req.GetInt("limit", 0)

	items, err := s.svc.Query(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func (s *Server) readEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := optionalDate(req, "date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path := req.GetString("path", "")

	var entry *journalservice.EntryDetail
	switch {
	case !d.IsZero():
		entry, err = s.svc.GetEntryByDate(ctx, d)
	case path != "":
		entry, err = s.svc.GetEntry(ctx, path)
	default:
		return mcp.NewToolResultError("date or path is required"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(entry.Content), nil
}

func (s *Server) createEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := optionalDate(req, "date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.svc.CreateEntry(ctx, d,
		req.GetStringSlice("tags", nil),
		req.GetString("readme", ""),
	)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", entry.Path)), nil
}

func (s *Server) renameTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	oldTag, err := req.RequireString("old")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newTag, err := req.RequireString("new")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var paths []string
	if path := req.GetString("path", ""); path != "" {
		entry, renameErr := s.svc.RenameTag(ctx, path, oldTag, newTag)
		if renameErr == nil {
			paths = []string{entry.Path}
		}
		err = renameErr
	} else {
		paths, err = s.svc.RenameTagEverywhere(ctx, oldTag, newTag)
	}
	if err != nil {
		if len(paths) > 0 {
			return mcp.NewToolResultError(fmt.Sprintf("%v (already renamed: %v)", err, paths)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if paths == nil {
		paths = []string{}
	}
	return jsonResult(map[string]any{"old": oldTag, "new": newTag, "paths": paths})
}

func (s *Server) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.svc.Tags(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tags)
}

func (s *Server) getEntryFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EntryFormatContract), nil
}

func (s *Server) readEntryFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      EntryFormatURI,
			MIMEType: "text/markdown",
			Text:     EntryFormatContract,
		},
	}, nil
}
