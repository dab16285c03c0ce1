package domain

import "strings"

// Court sources as exposed by the judgment service.
const (
	SourceAll       = "全部"
	SourceTaizhou   = "台州中院 2020 前"
	SourceWenling   = "温岭法院 2020 前"
	SourceImported  = "已导入数据"
	DocTypeAll      = "全部"
	DocTypeCriminal = "刑事"
	DocTypeCivil    = "民事"
	DocTypeOther    = "其他"
)

type SearchField string

const (
	FieldTitle   SearchField = "title"
	FieldContent SearchField = "content"
	FieldAll     SearchField = "all"
)

type Document struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
	Type    string `json:"type"`
}

type SearchQuery struct {
	Query   string
	Exclude string
	Field   SearchField
	DocType string
	Source  string
}

// Normalize trims the free-text parts and fills the service defaults.
func (q SearchQuery) Normalize() SearchQuery {
	out := q
	out.Query = strings.TrimSpace(out.Query)
	out.Exclude = strings.TrimSpace(out.Exclude)
	switch out.Field {
	case FieldTitle, FieldContent, FieldAll:
	default:
		out.Field = FieldContent
	}
	if strings.TrimSpace(out.DocType) == "" {
		out.DocType = DocTypeAll
	}
	if strings.TrimSpace(out.Source) == "" {
		out.Source = SourceAll
	}
	return out
}

func (q SearchQuery) IsEmpty() bool {
	return strings.TrimSpace(q.Query) == "" && strings.TrimSpace(q.Exclude) == ""
}

// DocumentRef addresses a single document returned by a search.
type DocumentRef struct {
	ID     int
	Source string
	Query  string
}
