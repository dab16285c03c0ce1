package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/core/highlight"
	"github.com/kirillkom/judgment-search/internal/core/ports"
	"github.com/kirillkom/judgment-search/internal/core/usecase"
)

const (
	toolSearch   = "search_judgments"
	toolDocument = "get_judgment"
)

// Server exposes judgment search and retrieval as MCP tools.
type Server struct {
	searcher ports.DocumentSearcher
	viewer   ports.DocumentViewer
	logger   *slog.Logger
	mcp      *server.MCPServer
}

func NewServer(name, version string, searcher ports.DocumentSearcher, viewer ports.DocumentViewer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		searcher: searcher,
		viewer:   viewer,
		logger:   logger,
		mcp:      server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool(toolSearch,
		mcp.WithDescription("Search court judgments by keywords. Returns id, title, source, type and a 200 character snippet per hit."),
		mcp.WithString("query", mcp.Description("Whitespace separated keywords that must appear.")),
		mcp.WithString("exclude", mcp.Description("Whitespace separated keywords that must not appear.")),
		mcp.WithString("type", mcp.Description("Field to search."), mcp.Enum(string(domain.FieldContent), string(domain.FieldTitle), string(domain.FieldAll))),
		mcp.WithString("doc_type", mcp.Description("Case type."), mcp.Enum(domain.DocTypeAll, domain.DocTypeCriminal, domain.DocTypeCivil)),
		mcp.WithString("source", mcp.Description("Court source."), mcp.Enum(domain.SourceAll, domain.SourceTaizhou, domain.SourceWenling, domain.SourceImported)),
	), s.handleSearch)

	s.mcp.AddTool(mcp.NewTool(toolDocument,
		mcp.WithDescription("Fetch the full text of one judgment returned by search_judgments."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Document id from the search result.")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source of the search result.")),
	), s.handleDocument)

	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

type searchHit struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Source  string `json:"source"`
	Type    string `json:"type"`
	Snippet string `json:"snippet"`
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := domain.SearchQuery{
		Query:   req.GetString("query", ""),
		Exclude: req.GetString("exclude", ""),
		Field:   domain.SearchField(req.GetString("type", "")),
		DocType: req.GetString("doc_type", ""),
		Source:  req.GetString("source", ""),
	}

	page, err := s.searcher.Search(ctx, query)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return mcp.NewToolResultError(usecase.MessageEnterKeywords), nil
		}
		s.logger.Warn("mcp_search_failed", "error", err)
		return mcp.NewToolResultError(usecase.MessageSearchFailed), nil
	}

	hits := make([]searchHit, 0, len(page.Results))
	for _, result := range page.Results {
		doc := result.Document
		hits = append(hits, searchHit{
			ID:      doc.ID,
			Title:   doc.Title,
			Source:  doc.Source,
			Type:    doc.Type,
			Snippet: highlight.Snippet(doc.Content, highlight.SnippetRunes),
		})
	}
	return jsonResult(hits)
}

func (s *Server) handleDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil || id <= 0 {
		return mcp.NewToolResultError("id must be a positive integer"), nil
	}
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source is required"), nil
	}

	view, err := s.viewer.View(ctx, domain.DocumentRef{ID: id, Source: source})
	if err != nil {
		return mcp.NewToolResultError(usecase.MessageDocumentFailed), nil
	}
	return jsonResult(view.Document)
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
