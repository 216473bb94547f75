// Package diff computes line diffs between an original document and a
// proposed replacement, grouped into hunks with surrounding context.
package diff

import (
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Kind classifies a diff line.
type Kind int

const (
	// Context lines are present on both sides.
	Context Kind = iota
	// Added lines exist only in the proposed text.
	Added
	// Removed lines exist only in the original text.
	Removed
)

// Prefix returns the unified-diff marker for the kind.
func (k Kind) Prefix() string {
	switch k {
	case Added:
		return "+"
	case Removed:
		return "-"
	default:
		return " "
	}
}

// Line is one line of a diff. OldLine and NewLine are 1-based and zero
// when the line does not exist on that side.
type Line struct {
	Kind    Kind
	Text    string
	OldLine int
	NewLine int
}

// Hunk is a run of changed lines with context.
type Hunk struct {
	OldStart int
	NewStart int
	Lines    []Line
}

// Result is a complete diff.
type Result struct {
	Hunks     []Hunk
	Added     int
	Removed   int
	Truncated bool
}

// Empty reports whether the two texts had identical lines.
func (r Result) Empty() bool {
	return !r.Truncated && r.Added == 0 && r.Removed == 0
}

// Options tune TextDiffWithOptions.
type Options struct {
	// Context is the number of unchanged lines kept around each change.
	Context int
	// MaxLines skips the diff when both inputs together exceed it.
	MaxLines int
}

const (
	DefaultContext  = 3
	DefaultMaxLines = 5000
)

// TextDiff diffs before and after with default options.
func TextDiff(before, after string) Result {
	return TextDiffWithOptions(before, after, Options{Context: DefaultContext, MaxLines: DefaultMaxLines})
}

// TextDiffWithOptions diffs before and after line by line.
func TextDiffWithOptions(before, after string, opts Options) Result {
	if opts.Context < 0 {
		opts.Context = 0
	}
	if opts.MaxLines <= 0 {
		opts.MaxLines = DefaultMaxLines
	}
	if lineCount(before)+lineCount(after) > opts.MaxLines {
		return Result{Truncated: true}
	}
	lines := Lines(before, after)
	result := Result{}
	for _, ln := range lines {
		switch ln.Kind {
		case Added:
			result.Added++
		case Removed:
			result.Removed++
		}
	}
	result.Hunks = group(lines, opts.Context)
	return result
}

// Lines returns every line of the diff, unchanged ones included.
func Lines(before, after string) []Line {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var lines []Line
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, text := range chunk {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, Line{Kind: Context, Text: text, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, Line{Kind: Removed, Text: text, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, Line{Kind: Added, Text: text, NewLine: newLine})
				newLine++
			}
		}
	}
	return lines
}

func group(lines []Line, context int) []Hunk {
	keep := make([]bool, len(lines))
	for i, ln := range lines {
		if ln.Kind == Context {
			continue
		}
		lo, hi := max(0, i-context), min(len(lines)-1, i+context)
		for j := lo; j <= hi; j++ {
			keep[j] = true
		}
	}
	var hunks []Hunk
	oldNext, newNext := 1, 1
	for i := 0; i < len(lines); {
		if !keep[i] {
			oldNext, newNext = advance(lines[i], oldNext, newNext)
			i++
			continue
		}
		h := Hunk{OldStart: oldNext, NewStart: newNext}
		for i < len(lines) && keep[i] {
			h.Lines = append(h.Lines, lines[i])
			oldNext, newNext = advance(lines[i], oldNext, newNext)
			i++
		}
		hunks = append(hunks, h)
	}
	return hunks
}

func advance(ln Line, oldNext, newNext int) (int, int) {
	switch ln.Kind {
	case Added:
		return oldNext, newNext + 1
	case Removed:
		return oldNext + 1, newNext
	default:
		return oldNext + 1, newNext + 1
	}
}

// Render writes r in unified-diff style.
func Render(w io.Writer, r Result) error {
	if r.Truncated {
		_, err := fmt.Fprintln(w, "(diff trop volumineux, non affiché)")
		return err
	}
	if r.Empty() {
		_, err := fmt.Fprintln(w, "(aucune différence)")
		return err
	}
	for _, h := range r.Hunks {
		if _, err := fmt.Fprintf(w, "@@ -%d +%d @@\n", h.OldStart, h.NewStart); err != nil {
			return err
		}
		for _, ln := range h.Lines {
			if _, err := fmt.Fprintf(w, "%s%s\n", ln.Kind.Prefix(), ln.Text); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "%d ajout(s), %d suppression(s)\n", r.Added, r.Removed)
	return err
}

func lineCount(value string) int {
	if value == "" {
		return 0
	}
	return strings.Count(value, "\n") + 1
}
