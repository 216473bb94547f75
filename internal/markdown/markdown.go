package markdown

import "strings"

// Span is a run of text with one style.
type Span struct {
	Text   string
	Bold   bool
	Italic bool
	Code   bool
	// Mark is set on search matches and ==marked== text.
	Mark bool
	// Badge is set on agent badges such as [Rechercheur].
	Badge bool
}

// SameStyle reports whether s and o render identically.
func (s Span) SameStyle(o Span) bool {
	return s.Bold == o.Bold && s.Italic == o.Italic && s.Code == o.Code && s.Mark == o.Mark && s.Badge == o.Badge
}

// AnswerLine parses one line of a chat answer. A line made only of agent
// badges becomes badge spans, headings become bold text and list bullets
// become "• ". Everything else goes through ParseInline.
func AnswerLine(line string) []Span {
	trimmed := strings.TrimSpace(line)
	if badges, ok := badgeSpans(trimmed); ok {
		return badges
	}
	if level := headingLevel(trimmed); level > 0 {
		spans := ParseInline(strings.TrimSpace(trimmed[level:]))
		for i := range spans {
			spans[i].Bold = true
		}
		return spans
	}
	rest := strings.TrimLeft(line, " \t")
	indent := line[:len(line)-len(rest)]
	for _, bullet := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(rest, bullet) {
			return append([]Span{{Text: indent + "• "}}, ParseInline(rest[len(bullet):])...)
		}
	}
	return ParseInline(line)
}

func badgeSpans(line string) ([]Span, bool) {
	if !strings.HasPrefix(line, "[") {
		return nil, false
	}
	var spans []Span
	for line != "" {
		if !strings.HasPrefix(line, "[") {
			return nil, false
		}
		end := strings.IndexByte(line, ']')
		if end < 2 || strings.ContainsAny(line[1:end], "[") {
			return nil, false
		}
		if len(spans) > 0 {
			spans = append(spans, Span{Text: " "})
		}
		spans = append(spans, Span{Text: line[:end+1], Badge: true})
		line = strings.TrimLeft(line[end+1:], " ")
	}
	return spans, true
}

func headingLevel(line string) int {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(line) || line[level] != ' ' {
		return 0
	}
	return level
}

type inline struct {
	spans []Span
	buf   strings.Builder
	style Span
}

func (p *inline) flush() {
	if p.buf.Len() == 0 {
		return
	}
	span := p.style
	span.Text = p.buf.String()
	p.buf.Reset()
	if n := len(p.spans); n > 0 && p.spans[n-1].SameStyle(span) {
		p.spans[n-1].Text += span.Text
		return
	}
	p.spans = append(p.spans, span)
}

// toggle flips a style at marker. Opening needs the marker again later in
// rest, otherwise it stays literal.
func (p *inline) toggle(on *bool, rest, marker string) bool {
	if !*on && !strings.Contains(rest, marker) {
		return false
	}
	p.flush()
	*on = !*on
	return true
}

// ParseInline parses the inline markdown of chat answers: **bold**,
// *italic*, `code` and ==marked== text. Unclosed markers stay literal and
// a backslash escapes the next byte.
func ParseInline(input string) []Span {
	if input == "" {
		return nil
	}
	p := &inline{}
	for i := 0; i < len(input); {
		rest := input[i:]
		switch {
		case rest[0] == '\\' && len(rest) > 1:
			p.buf.WriteByte(rest[1])
			i += 2
			continue
		case rest[0] == '`':
			if p.toggle(&p.style.Code, rest[1:], "`") {
				i++
				continue
			}
		case p.style.Code:
		case strings.HasPrefix(rest, "**"):
			if !p.toggle(&p.style.Bold, rest[2:], "**") {
				p.buf.WriteString("**")
			}
			i += 2
			continue
		case strings.HasPrefix(rest, "=="):
			if !p.toggle(&p.style.Mark, rest[2:], "==") {
				p.buf.WriteString("==")
			}
			i += 2
			continue
		case rest[0] == '*':
			if p.toggle(&p.style.Italic, rest[1:], "*") {
				i++
				continue
			}
		}
		p.buf.WriteByte(rest[0])
		i++
	}
	p.flush()
	return p.spans
}
