package backendmock

import (
	"regexp"
	"strings"
)

var (
	h3Re     = regexp.MustCompile(`(?m)^### (.+)$`)
	h2Re     = regexp.MustCompile(`(?m)^## (.+)$`)
	h1Re     = regexp.MustCompile(`(?m)^# (.+)$`)
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe = regexp.MustCompile(`\*(.+?)\*`)
	itemRe   = regexp.MustCompile(`(?m)^- (.+)$`)
)

// markdownToHTML is the backend's basic conversion: headings, emphasis,
// list items and paragraphs, without escaping.
func markdownToHTML(content string) string {
	content = h3Re.ReplaceAllString(content, "<h3>$1</h3>")
	content = h2Re.ReplaceAllString(content, "<h2>$1</h2>")
	content = h1Re.ReplaceAllString(content, "<h1>$1</h1>")
	content = boldRe.ReplaceAllString(content, "<strong>$1</strong>")
	content = italicRe.ReplaceAllString(content, "<em>$1</em>")
	content = itemRe.ReplaceAllString(content, "<li>$1</li>")
	content = strings.ReplaceAll(content, "\n\n", "</p><p>")
	return "<p>" + content + "</p>"
}
