package markdown

import (
	"strings"

	"golang.org/x/net/html"
)

// Kind classifies a rendered line.
type Kind int

const (
	// KindParagraph is body text.
	KindParagraph Kind = iota
	// KindHeading is an h1-h6 heading; Line.Level carries the depth.
	KindHeading
	// KindItem is a list item.
	KindItem
	// KindQuote is a block quote.
	KindQuote
	// KindCode is preformatted text.
	KindCode
)

// Line is one terminal line of converted HTML.
type Line struct {
	Kind  Kind
	Level int
	Spans []Span
}

// Text returns the unstyled text of the line.
func (l Line) Text() string {
	var b strings.Builder
	for _, span := range l.Spans {
		b.WriteString(span.Text)
	}
	return b.String()
}

// FromHTML converts the viewer HTML served by the backend into styled
// lines. Block elements start new lines, inline elements toggle styles and
// <mark> spans are carried as Mark. Comments and unknown tags are dropped;
// entities are decoded.
func FromHTML(src string) []Line {
	c := converter{}
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		switch z.Next() {
		case html.ErrorToken:
			c.flush()
			return c.lines
		case html.TextToken:
			c.text(string(z.Text()))
		case html.StartTagToken:
			name, _ := z.TagName()
			c.open(string(name))
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				c.breakLine()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			c.close(string(name))
		}
	}
}

// PlainText returns the lines joined without styling.
func PlainText(lines []Line) string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, line.Text())
	}
	return strings.Join(out, "\n")
}

type converter struct {
	lines   []Line
	current Line
	style   Span
	bold    int
	italic  int
	code    int
	mark    int
	pre     int
}

func (c *converter) open(tag string) {
	switch tag {
	case "strong", "b":
		c.bold++
	case "em", "i":
		c.italic++
	case "code":
		c.code++
	case "mark":
		c.mark++
	case "br":
		c.breakLine()
	case "p", "div", "ul", "ol", "section", "article", "table", "tr":
		c.block(KindParagraph, 0)
	case "li":
		c.block(KindItem, 0)
	case "blockquote":
		c.block(KindQuote, 0)
	case "pre":
		c.pre++
		c.block(KindCode, 0)
	case "h1", "h2", "h3", "h4", "h5", "h6":
		c.block(KindHeading, int(tag[1]-'0'))
	}
	c.restyle()
}

func (c *converter) close(tag string) {
	switch tag {
	case "strong", "b":
		c.bold = max(c.bold-1, 0)
	case "em", "i":
		c.italic = max(c.italic-1, 0)
	case "code":
		c.code = max(c.code-1, 0)
	case "mark":
		c.mark = max(c.mark-1, 0)
	case "pre":
		c.pre = max(c.pre-1, 0)
		c.block(KindParagraph, 0)
	case "p", "div", "li", "blockquote", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "tr":
		c.block(KindParagraph, 0)
	}
	c.restyle()
}

func (c *converter) restyle() {
	c.style = Span{Bold: c.bold > 0, Italic: c.italic > 0, Code: c.code > 0, Mark: c.mark > 0}
}

func (c *converter) block(kind Kind, level int) {
	c.flush()
	c.current = Line{Kind: kind, Level: level}
}

// breakLine ends the current line but keeps its kind for the continuation.
func (c *converter) breakLine() {
	kind, level := c.current.Kind, c.current.Level
	c.flush()
	c.current = Line{Kind: kind, Level: level}
}

func (c *converter) flush() {
	if len(c.current.Spans) > 0 {
		c.lines = append(c.lines, c.current)
	}
	c.current = Line{Kind: c.current.Kind, Level: c.current.Level}
}

func (c *converter) text(text string) {
	parts := strings.Split(text, "\n")
	for i, part := range parts {
		if i > 0 {
			c.breakLine()
		}
		if c.pre == 0 && strings.TrimSpace(part) == "" && len(c.current.Spans) == 0 {
			continue
		}
		c.add(part)
	}
}

func (c *converter) add(text string) {
	if text == "" {
		return
	}
	span := c.style
	span.Text = text
	if n := len(c.current.Spans); n > 0 && c.current.Spans[n-1].SameStyle(span) {
		c.current.Spans[n-1].Text += text
		return
	}
	c.current.Spans = append(c.current.Spans, span)
}
