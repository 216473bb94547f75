package tui

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"pkt.systems/ecrituria/internal/markdown"
	"pkt.systems/ecrituria/schema"
)

const barWidth = 20

// renderSpans styles spans for the terminal. Marked spans use reverse video
// so search matches stay visible in the plain theme too.
func renderSpans(spans []markdown.Span, theme Theme, base ...string) string {
	var b strings.Builder
	for _, span := range spans {
		text := sanitize(span.Text)
		if text == "" {
			continue
		}
		codes := append([]string(nil), base...)
		if span.Bold {
			codes = append(codes, ansiBold)
		}
		if span.Italic {
			codes = append(codes, ansiItalic)
		}
		if span.Code {
			codes = append(codes, theme.fg(theme.CodeFG))
		}
		if span.Badge {
			codes = append(codes, ansiBold, theme.fg(theme.HeadingFG))
		}
		if span.Mark {
			if theme.Plain {
				b.WriteString(ansiReverse + text + ansiReset)
				continue
			}
			codes = append(codes, theme.bg(theme.MarkBG), theme.fg(theme.MarkFG))
		}
		b.WriteString(theme.style(text, codes...))
	}
	return b.String()
}

// wrapSpans breaks spans into rows no wider than width display cells,
// splitting at spaces where possible.
func wrapSpans(spans []markdown.Span, width int) [][]markdown.Span {
	if width <= 0 {
		return [][]markdown.Span{spans}
	}
	var rows [][]markdown.Span
	var row []markdown.Span
	used := 0
	push := func(span markdown.Span, text string) {
		if text == "" {
			return
		}
		span.Text = text
		if n := len(row); n > 0 && row[n-1].SameStyle(span) {
			row[n-1].Text += text
		} else {
			row = append(row, span)
		}
		used += runewidth.StringWidth(text)
	}
	newRow := func() {
		if n := len(row); n > 0 {
			row[n-1].Text = strings.TrimRight(row[n-1].Text, " ")
			if row[n-1].Text == "" {
				row = row[:n-1]
			}
		}
		rows = append(rows, row)
		row = nil
		used = 0
	}
	for _, span := range spans {
		for _, word := range splitWords(span.Text) {
			w := runewidth.StringWidth(word)
			if word == " " {
				if used == 0 {
					continue
				}
				if used+w > width {
					newRow()
					continue
				}
				push(span, word)
				continue
			}
			if used > 0 && used+w > width {
				newRow()
			}
			for w > width {
				head := runewidth.Truncate(word, width, "")
				if head == "" {
					_, size := utf8.DecodeRuneInString(word)
					head = word[:size]
				}
				push(span, head)
				newRow()
				word = word[len(head):]
				w = runewidth.StringWidth(word)
			}
			push(span, word)
		}
	}
	if len(row) > 0 || len(rows) == 0 {
		rows = append(rows, row)
	}
	return rows
}

// splitWords splits text into words and single-space separators.
func splitWords(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		if r == ' ' || r == '\t' {
			if b.Len() > 0 {
				out = append(out, b.String())
				b.Reset()
			}
			out = append(out, " ")
			continue
		}
		b.WriteRune(r)
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// viewerLines renders converted HTML lines wrapped to width.
func viewerLines(lines []markdown.Line, width int, theme Theme) []string {
	var out []string
	for i, line := range lines {
		prefix := ""
		var base []string
		switch line.Kind {
		case markdown.KindHeading:
			if i > 0 {
				out = append(out, "")
			}
			prefix = strings.Repeat("#", max(line.Level, 1)) + " "
			base = []string{ansiBold, theme.fg(theme.HeadingFG)}
		case markdown.KindItem:
			prefix = "• "
		case markdown.KindQuote:
			prefix = "│ "
			base = []string{ansiItalic}
		case markdown.KindCode:
			prefix = "  "
			base = []string{theme.fg(theme.CodeFG)}
		}
		indent := strings.Repeat(" ", runewidth.StringWidth(prefix))
		for j, row := range wrapSpans(line.Spans, width-runewidth.StringWidth(prefix)) {
			lead := indent
			if j == 0 {
				lead = prefix
			}
			out = append(out, theme.style(lead, base...)+renderSpans(row, theme, base...))
		}
	}
	return out
}

// statusLine renders a status with an optional progress bar.
func statusLine(status schema.StatusEvent, percent int, theme Theme) string {
	text := sanitize(status.Text)
	line := theme.style(modeIcon(status.Mode)+" "+text, theme.fg(theme.statusFG(status.Mode)))
	if status.Mode == schema.StatusInfo && percent > 0 {
		line += " " + theme.style(progressBar(percent, barWidth), theme.fg(theme.BarFG)) + " " + strconv.Itoa(percent) + "%"
	}
	return line
}

func modeIcon(mode schema.StatusMode) string {
	switch mode {
	case schema.StatusSuccess:
		return "✓"
	case schema.StatusError:
		return "✗"
	case schema.StatusWarning:
		return "!"
	default:
		return "…"
	}
}

func progressBar(percent int, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(float64(width) * float64(percent) / 100))
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// sanitize drops escape sequences and control characters from server text.
func sanitize(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(text); {
		if text[i] == 0x1b {
			i = skipEscape(text, i+1)
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		switch {
		case r == utf8.RuneError && size == 1:
		case r == '\t':
			b.WriteString("    ")
		case r < 0x20 || r == 0x7f:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func skipEscape(text string, i int) int {
	if i >= len(text) {
		return i
	}
	switch text[i] {
	case '[':
		for i++; i < len(text); i++ {
			if text[i] >= 0x40 && text[i] <= 0x7e {
				return i + 1
			}
		}
		return i
	case ']':
		for i++; i < len(text); i++ {
			if text[i] == 0x07 {
				return i + 1
			}
			if text[i] == 0x1b && i+1 < len(text) && text[i+1] == '\\' {
				return i + 2
			}
		}
		return i
	default:
		return i + 1
	}
}
