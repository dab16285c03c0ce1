package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/core/highlight"
	"github.com/kirillkom/judgment-search/internal/core/ports"
)

const (
	MessageEnterKeywords  = "enter search keywords"
	MessageNoResults      = "no documents found, check the search conditions and try again"
	MessageSearchFailed   = "search failed, refresh the page and try again"
	MessageDocumentFailed = "failed to fetch document details, please try again"
)

type SearchUseCase struct {
	search ports.SearchService
	logger *slog.Logger
}

func NewSearchUseCase(search ports.SearchService, logger *slog.Logger) *SearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{search: search, logger: logger}
}

// Search degrades transport failures to an empty page. Only an explicit
// service error payload is returned to the caller.
func (uc *SearchUseCase) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchPage, error) {
	if query.IsEmpty() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New(MessageEnterKeywords))
	}
	query = query.Normalize()

	docs, err := uc.search.Search(ctx, query)
	if err != nil {
		if domain.IsKind(err, domain.ErrRemote) {
			uc.logger.ErrorContext(ctx, "search_remote_error", "query", query.Query, "error", err)
			return nil, err
		}
		uc.logger.WarnContext(ctx, "search_fail_soft", "query", query.Query, "error", err)
		docs = nil
	}

	return buildSearchPage(query, docs), nil
}

func buildSearchPage(query domain.SearchQuery, docs []domain.Document) *domain.SearchPage {
	keywords := highlight.Keywords(query.Query)
	page := &domain.SearchPage{
		Query:   query,
		Results: make([]domain.ResultView, 0, len(docs)),
		Count:   len(docs),
	}
	for _, doc := range docs {
		page.Results = append(page.Results, domain.ResultView{
			Document: doc,
			Snippet:  highlight.Highlight(highlight.Snippet(doc.Content, highlight.SnippetRunes), keywords),
		})
	}
	if page.Count == 0 {
		page.Message = MessageNoResults
	}
	return page
}
