package crawler

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// minContentLen is the floor under which a page is considered boilerplate
// and never stored.
const minContentLen = 100

// boilerplateSelector names the nodes removed before text extraction:
// navigation, chrome, and ad containers contribute no answerable content.
const boilerplateSelector = "script, style, nav, footer, header, aside, form, [role=\"navigation\"], .ads, #sidebar, .sidebar"

var whitespacePattern = regexp.MustCompile(`\s+`)

// Extract pulls the title and whitespace-normalized body text out of an HTML
// document. ok is false when the page is too short to index.
func Extract(doc *goquery.Document) (title, content string, ok bool) {
	doc.Find(boilerplateSelector).Remove()

	title = strings.TrimSpace(doc.Find("title").First().Text())
	content = Normalize(doc.Find("body").Text())

	if len(content) < minContentLen {
		return title, "", false
	}
	return title, content, true
}

// Normalize collapses all whitespace runs to single spaces and trims.
func Normalize(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}
