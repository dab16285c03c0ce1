package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/judgment-search/internal/core/domain"
)

type searchServiceFake struct {
	query domain.SearchQuery
	calls int
	docs  []domain.Document
	err   error
}

func (f *searchServiceFake) Search(_ context.Context, query domain.SearchQuery) ([]domain.Document, error) {
	f.calls++
	f.query = query
	return f.docs, f.err
}

func TestSearchRequiresKeywords(t *testing.T) {
	svc := &searchServiceFake{}
	_, err := NewSearchUseCase(svc, nil).Search(context.Background(), domain.SearchQuery{Query: "  ", Exclude: ""})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if svc.calls != 0 {
		t.Fatalf("expected no request")
	}
}

func TestSearchExcludeOnlyIsAllowedAndDefaultsApplied(t *testing.T) {
	svc := &searchServiceFake{}
	page, err := NewSearchUseCase(svc, nil).Search(context.Background(), domain.SearchQuery{Exclude: "撤诉"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if svc.query.Field != domain.FieldContent || svc.query.DocType != domain.DocTypeAll || svc.query.Source != domain.SourceAll {
		t.Fatalf("expected defaults, got %+v", svc.query)
	}
	if page.Count != 0 || page.Message != MessageNoResults {
		t.Fatalf("expected empty page with no-results message, got %+v", page)
	}
}

func TestSearchNullResponseIsZeroResults(t *testing.T) {
	svc := &searchServiceFake{docs: nil}
	page, err := NewSearchUseCase(svc, nil).Search(context.Background(), domain.SearchQuery{Query: "盗窃"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if page.Count != 0 || page.Message != MessageNoResults {
		t.Fatalf("expected no-results page, got %+v", page)
	}
}

func TestSearchTransportFailureIsFailSoft(t *testing.T) {
	svc := &searchServiceFake{err: domain.WrapError(domain.ErrTransport, "search", errors.New("dial tcp: refused"))}
	page, err := NewSearchUseCase(svc, nil).Search(context.Background(), domain.SearchQuery{Query: "盗窃"})
	if err != nil {
		t.Fatalf("expected fail-soft, got %v", err)
	}
	if page.Count != 0 {
		t.Fatalf("expected zero results, got %d", page.Count)
	}
}

func TestSearchRemoteErrorIsReturned(t *testing.T) {
	svc := &searchServiceFake{err: &domain.RemoteError{Operation: "search", Message: "数据库搜索出错"}}
	_, err := NewSearchUseCase(svc, nil).Search(context.Background(), domain.SearchQuery{Query: "盗窃"})
	if !domain.IsKind(err, domain.ErrRemote) {
		t.Fatalf("expected ErrRemote, got %v", err)
	}
}

func TestSearchBuildsHighlightedSnippets(t *testing.T) {
	svc := &searchServiceFake{docs: []domain.Document{
		{ID: 1, Title: "刑事判决书", Content: "被告人 ABC 与 abc <b>x</b>", Source: "台州中院", Type: domain.DocTypeCriminal},
	}}
	page, err := NewSearchUseCase(svc, nil).Search(context.Background(), domain.SearchQuery{Query: "abc"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if page.Count != 1 || len(page.Results) != 1 {
		t.Fatalf("expected one result, got %+v", page)
	}
	snippet := string(page.Results[0].Snippet)
	if strings.Count(snippet, `<span class="highlight">`) != 2 {
		t.Fatalf("expected two highlights, got %q", snippet)
	}
	if strings.Contains(snippet, "<b>") {
		t.Fatalf("expected content markup to be escaped, got %q", snippet)
	}
	if !strings.HasSuffix(snippet, "...") {
		t.Fatalf("expected ellipsis, got %q", snippet)
	}
}
