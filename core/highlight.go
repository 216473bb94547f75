package core

import (
	"context"
	"html"
	"regexp"
	"strings"

	"pkt.systems/ecrituria/schema"
)

const (
	markOpen  = "<mark>"
	markClose = "</mark>"
)

var entityPattern = regexp.MustCompile(`&(?:#[0-9]+|#[xX][0-9a-fA-F]+|[a-zA-Z][a-zA-Z0-9]*);`)

// Highlight marks every case-insensitive occurrence of term in the open
// file's text and returns the number of marks. A blank term restores the
// raw content.
func (c *Controller) Highlight(ctx context.Context, term string) (int, error) {
	term = strings.TrimSpace(term)
	c.mu.Lock()
	if !c.session.HasOpenFile() {
		c.mu.Unlock()
		return 0, schema.ErrNoOpenFile
	}
	count := 0
	if term == "" {
		c.session.View = c.session.RawHTML
	} else {
		c.session.View, count = HighlightHTML(c.session.RawHTML, term)
	}
	c.session.Highlight = term
	event := c.viewerLocked()
	c.mu.Unlock()
	c.sink.OnViewer(event)
	if term != "" {
		c.logger.Debug("highlight applied", "matches", count)
	}
	return count, nil
}

// ResetHighlight restores exactly the raw content of the open file.
func (c *Controller) ResetHighlight() error {
	c.mu.Lock()
	if !c.session.HasOpenFile() {
		c.mu.Unlock()
		return schema.ErrNoOpenFile
	}
	c.session.View = c.session.RawHTML
	c.session.Highlight = ""
	event := c.viewerLocked()
	c.mu.Unlock()
	c.sink.OnViewer(event)
	return nil
}

// HighlightHTML wraps each occurrence of term found in the text of raw in
// <mark> tags. Tags, comments and character references are never split:
// a match covering part of an entity grows to the whole entity.
func HighlightHTML(raw, term string) (string, int) {
	if term == "" {
		return raw, 0
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
	var b strings.Builder
	b.Grow(len(raw))
	count := 0
	for i := 0; i < len(raw); {
		if raw[i] == '<' {
			end := markupEnd(raw[i:])
			b.WriteString(raw[i : i+end])
			i += end
			continue
		}
		next := strings.IndexByte(raw[i:], '<')
		if next < 0 {
			next = len(raw) - i
		}
		count += markText(&b, raw[i:i+next], re)
		i += next
	}
	return b.String(), count
}

// markupEnd returns the length of the tag or comment at the start of s.
func markupEnd(s string) int {
	if strings.HasPrefix(s, "<!--") {
		if end := strings.Index(s[4:], "-->"); end >= 0 {
			return 4 + end + 3
		}
		return len(s)
	}
	if end := strings.IndexByte(s, '>'); end >= 0 {
		return end + 1
	}
	return len(s)
}

// unit is a run of raw text and its decoded form. Entity units are atomic.
type unit struct {
	raw, rawLen int
	dec, decLen int
	entity      bool
}

func markText(b *strings.Builder, text string, re *regexp.Regexp) int {
	var decoded strings.Builder
	var units []unit
	last := 0
	addPlain := func(from, to int) {
		if from == to {
			return
		}
		units = append(units, unit{raw: from, rawLen: to - from, dec: decoded.Len(), decLen: to - from})
		decoded.WriteString(text[from:to])
	}
	for _, loc := range entityPattern.FindAllStringIndex(text, -1) {
		addPlain(last, loc[0])
		value := html.UnescapeString(text[loc[0]:loc[1]])
		units = append(units, unit{raw: loc[0], rawLen: loc[1] - loc[0], dec: decoded.Len(), decLen: len(value), entity: true})
		decoded.WriteString(value)
		last = loc[1]
	}
	addPlain(last, len(text))

	matches := re.FindAllStringIndex(decoded.String(), -1)
	if len(matches) == 0 {
		b.WriteString(text)
		return 0
	}
	written := 0
	count := 0
	for _, m := range matches {
		start := rawOffset(units, m[0], false)
		end := rawOffset(units, m[1], true)
		if start < written {
			// The previous mark already swallowed this entity.
			start = written
		}
		if end <= start {
			continue
		}
		b.WriteString(text[written:start])
		b.WriteString(markOpen)
		b.WriteString(text[start:end])
		b.WriteString(markClose)
		written = end
		count++
	}
	b.WriteString(text[written:])
	return count
}

// rawOffset maps a decoded offset back to text. Start offsets inside an
// entity snap to its beginning, end offsets to its end.
func rawOffset(units []unit, pos int, isEnd bool) int {
	for _, u := range units {
		lo, hi := u.dec, u.dec+u.decLen
		inside := pos >= lo && pos < hi
		if isEnd {
			inside = pos > lo && pos <= hi
		}
		if !inside {
			continue
		}
		if !u.entity {
			return u.raw + (pos - u.dec)
		}
		if isEnd {
			return u.raw + u.rawLen
		}
		return u.raw
	}
	if len(units) == 0 {
		return 0
	}
	tail := units[len(units)-1]
	return tail.raw + tail.rawLen
}
