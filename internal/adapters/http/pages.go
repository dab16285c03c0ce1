package httpadapter

import (
	"embed"
	"html/template"
	"net/url"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/core/usecase"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	searchTemplate   = template.Must(template.ParseFS(templateFS, "templates/search.html", "templates/layout.html"))
	documentTemplate = template.Must(template.ParseFS(templateFS, "templates/document.html", "templates/layout.html"))
)

var (
	searchFields = []domain.SearchField{domain.FieldContent, domain.FieldTitle, domain.FieldAll}
	docTypes     = []string{domain.DocTypeAll, domain.DocTypeCriminal, domain.DocTypeCivil}
	sources      = []string{domain.SourceAll, domain.SourceTaizhou, domain.SourceWenling, domain.SourceImported}
)

type searchPageData struct {
	Title          string
	View           ViewSnapshot
	Query          domain.SearchQuery
	Searched       bool
	Results        []domain.ResultView
	Count          int
	Message        string
	Fields         []domain.SearchField
	DocTypes       []string
	Sources        []string
	ResetWarning   string
	ImportedSource string
}

func newSearchPageData(view ViewSnapshot, query domain.SearchQuery) searchPageData {
	return searchPageData{
		Title:          "Judgment search",
		View:           view,
		Query:          query,
		Fields:         searchFields,
		DocTypes:       docTypes,
		Sources:        sources,
		ResetWarning:   usecase.ResetWarning,
		ImportedSource: domain.SourceImported,
	}
}

type documentPageData struct {
	Title   string
	View    ViewSnapshot
	Doc     *domain.DocumentView
	Message string
	BackURL string
}

func backURL(ref domain.DocumentRef) string {
	params := url.Values{}
	if ref.Query != "" {
		params.Set("q", ref.Query)
	}
	if ref.Source != "" {
		params.Set("source", ref.Source)
	}
	if len(params) == 0 {
		return "/"
	}
	return "/?" + params.Encode()
}
