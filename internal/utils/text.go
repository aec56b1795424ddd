package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const ellipsis = "..."

// Excerpt cuts text to at most limit runes, appending "..." when it had to cut.
func Excerpt(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + ellipsis
}

// SearchTerms lowercases the query, splits it on whitespace, trims edge
// punctuation, drops terms of minLen runes or fewer and keeps at most
// maxTerms of what is left.
func SearchTerms(query string, minLen, maxTerms int) []string {
	var terms []string
	for _, field := range strings.Fields(strings.ToLower(query)) {
		field = strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if utf8.RuneCountInString(field) <= minLen {
			continue
		}
		terms = append(terms, field)
		if len(terms) == maxTerms {
			break
		}
	}
	return terms
}

// PlainText returns the visible text of an HTML fragment. Text without any
// tag, such as "a < b > c", is returned untouched.
func PlainText(body string) string {
	if !strings.ContainsRune(body, '<') || !strings.ContainsRune(body, '>') {
		return body
	}

	tokenizer := html.NewTokenizer(strings.NewReader(body))
	var text strings.Builder
	skipDepth := 0
	sawTag := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			sawTag = true
		}
		switch tt {
		case html.ErrorToken:
			if !sawTag {
				return body
			}
			return strings.Join(strings.Fields(text.String()), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				skipDepth++
			case "br", "p", "li", "div", "h1", "h2", "h3", "h4", "tr":
				text.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if (string(name) == "script" || string(name) == "style") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				text.Write(tokenizer.Text())
				text.WriteByte(' ')
			}
		}
	}
}
