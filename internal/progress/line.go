package progress

import (
	"fmt"
	"io"
	"sync"

	"pkt.systems/ecrituria/schema"
)

// Line is a Surface for one-shot commands: it prints each status change
// on its own line and ignores percentages in between.
type Line struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

// NewLine returns a Line surface writing to out.
func NewLine(out io.Writer) *Line {
	return &Line{out: out}
}

// SetStatus prints the status when it changes.
func (l *Line) SetStatus(text string, mode schema.StatusMode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := prefix(mode) + text
	if line == l.last || text == "" {
		return
	}
	l.last = line
	_, _ = fmt.Fprintln(l.out, line)
}

// SetPercent is a no-op.
func (l *Line) SetPercent(int) {}

// Hide forgets the last line so the next status prints again.
func (l *Line) Hide() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = ""
}

func prefix(mode schema.StatusMode) string {
	switch mode {
	case schema.StatusSuccess:
		return "✓ "
	case schema.StatusError:
		return "✗ "
	case schema.StatusWarning:
		return "! "
	default:
		return "… "
	}
}
