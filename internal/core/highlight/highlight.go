// Package highlight renders untrusted judgment text as HTML with search
// keywords wrapped in <span class="highlight">. Text is escaped before any
// markup is added, and the result is passed through a sanitizer that admits
// nothing but the highlight span and line breaks.
package highlight

import (
	"html"
	"html/template"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	openTag  = `<span class="highlight">`
	closeTag = `</span>`

	// SnippetRunes is the number of leading characters shown in a result snippet.
	SnippetRunes = 200
)

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("br")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^highlight$`)).OnElements("span")
	return p
}

// Keywords splits a query into whitespace-delimited keywords.
func Keywords(query string) []string {
	return strings.Fields(query)
}

// Snippet returns the first limit characters of content followed by "...".
func Snippet(content string, limit int) string {
	if limit <= 0 {
		limit = SnippetRunes
	}
	if utf8.RuneCountInString(content) <= limit {
		return content + "..."
	}
	runes := []rune(content)
	return string(runes[:limit]) + "..."
}

// Highlight escapes text and wraps every case-insensitive keyword match.
func Highlight(text string, keywords []string) template.HTML {
	return template.HTML(policy.Sanitize(mark(text, keywords)))
}

// Body renders a full document: keywords highlighted, newlines as <br>.
func Body(content string, keywords []string) template.HTML {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	marked := strings.ReplaceAll(mark(content, keywords), "\n", "<br>")
	return template.HTML(policy.Sanitize(marked))
}

func mark(text string, keywords []string) string {
	re := matcher(keywords)
	if re == nil {
		return html.EscapeString(text)
	}

	var b strings.Builder
	b.Grow(len(text) + len(text)/8)
	last := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if loc[0] == loc[1] {
			continue
		}
		b.WriteString(html.EscapeString(text[last:loc[0]]))
		b.WriteString(openTag)
		b.WriteString(html.EscapeString(text[loc[0]:loc[1]]))
		b.WriteString(closeTag)
		last = loc[1]
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}

// matcher builds one case-insensitive alternation so a match is never
// searched for inside markup inserted for an earlier keyword. Longer keywords
// come first so overlapping terms prefer the widest match.
func matcher(keywords []string) *regexp.Regexp {
	seen := make(map[string]struct{}, len(keywords))
	terms := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		terms = append(terms, kw)
	}
	if len(terms) == 0 {
		return nil
	}
	sort.SliceStable(terms, func(i, j int) bool {
		return utf8.RuneCountInString(terms[i]) > utf8.RuneCountInString(terms[j])
	})

	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, regexp.QuoteMeta(term))
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}
