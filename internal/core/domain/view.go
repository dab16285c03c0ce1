package domain

import "html/template"

// ResultView is one rendered search hit. Snippet is already escaped and
// carries only highlight markup.
type ResultView struct {
	Document Document
	Snippet  template.HTML
}

type SearchPage struct {
	Query   SearchQuery
	Results []ResultView
	Count   int
	Message string
}

type DocumentView struct {
	Document Document
	Query    string
	Body     template.HTML
}
