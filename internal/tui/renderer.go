// Package tui renders client events on a terminal.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"pkt.systems/ecrituria/internal/eventbus"
	"pkt.systems/ecrituria/internal/format"
	"pkt.systems/ecrituria/internal/markdown"
	"pkt.systems/ecrituria/schema"
	"pkt.systems/pslog"
)

// Options configures a Renderer.
type Options struct {
	Theme schema.ThemeName
	Width int
	// Live redraws the status line in place instead of printing each
	// change on its own line. Only useful on a TTY.
	Live   bool
	Logger pslog.Logger
}

// Renderer prints bus events. It is safe for concurrent use.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	theme   Theme
	width   int
	live    bool
	log     pslog.Logger
	status  schema.StatusEvent
	percent int
	drawn   bool
	last    string
}

// NewRenderer constructs a Renderer writing to out.
func NewRenderer(out io.Writer, opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.Logger == nil {
		opts.Logger = pslog.Ctx(context.Background())
	}
	return &Renderer{
		out:   out,
		theme: ThemeFor(opts.Theme),
		width: opts.Width,
		live:  opts.Live,
		log:   opts.Logger,
	}
}

// Run renders events until ctx ends or the channel closes.
func (r *Renderer) Run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.Handle(ev)
		}
	}
}

// Handle renders one event.
func (r *Renderer) Handle(ev eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev.Type {
	case eventbus.EventStatus:
		r.status = ev.Status
		if ev.Status.Mode != schema.StatusInfo {
			r.percent = 0
		}
		r.drawStatus()
	case eventbus.EventProgress:
		r.percent = ev.Percent
		if r.live {
			r.drawStatus()
		}
	case eventbus.EventHide:
		r.clearStatus()
		r.status = schema.StatusEvent{}
		r.percent = 0
		r.last = ""
	case eventbus.EventMessage:
		r.printLines(r.messageLines(ev.Message))
	case eventbus.EventViewer:
		r.printLines(r.viewerBlock(ev.Viewer))
	case eventbus.EventTree:
		r.printLines(r.treeLines(ev.Tree))
	case eventbus.EventJob:
		// The reporter already turns job updates into status events.
	default:
		r.log.Debug("tui unknown event", "type", ev.Type)
	}
}

// Println prints free-form lines, keeping the live status line below them.
func (r *Renderer) Println(lines ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, format.SplitLines(line)...)
	}
	r.printLines(out)
}

func (r *Renderer) drawStatus() {
	if r.status.Text == "" {
		return
	}
	line := statusLine(r.status, r.percent, r.theme)
	if r.live {
		_, _ = fmt.Fprint(r.out, "\r\x1b[2K"+line)
		r.drawn = true
		return
	}
	if line == r.last {
		return
	}
	r.last = line
	_, _ = fmt.Fprintln(r.out, line)
}

func (r *Renderer) clearStatus() {
	if r.live && r.drawn {
		_, _ = fmt.Fprint(r.out, "\r\x1b[2K")
		r.drawn = false
	}
}

func (r *Renderer) printLines(lines []string) {
	if len(lines) == 0 {
		return
	}
	r.clearStatus()
	_, _ = fmt.Fprintln(r.out, strings.Join(lines, "\n"))
	if r.live {
		r.drawStatus()
	}
}

func (r *Renderer) messageLines(ev schema.MessageEvent) []string {
	msg := ev.Message
	if ev.Op == schema.MessageRemoved {
		return nil
	}
	switch {
	case msg.Role == schema.RoleUser:
		return []string{r.theme.style("› "+sanitize(msg.Body), ansiBold, r.theme.fg(r.theme.UserFG))}
	case msg.Pending:
		return []string{r.theme.style("⏳ "+sanitize(msg.Body), ansiDim, ansiItalic, r.theme.fg(r.theme.MetaFG))}
	case msg.Failed:
		return r.wrapText(msg.Body, ansiBold, r.theme.fg(r.theme.ErrorFG))
	case msg.Role == schema.RoleSystem:
		return r.wrapText(msg.Body, ansiDim, r.theme.fg(r.theme.MetaFG))
	}
	var out []string
	for _, line := range format.SplitLines(msg.Body) {
		for _, row := range wrapSpans(markdown.AnswerLine(line), r.width) {
			out = append(out, renderSpans(row, r.theme))
		}
	}
	return append(out, "")
}

func (r *Renderer) wrapText(text string, codes ...string) []string {
	var out []string
	for _, line := range format.SplitLines(text) {
		for _, row := range wrapSpans([]markdown.Span{{Text: line}}, r.width) {
			out = append(out, renderSpans(row, r.theme, codes...))
		}
	}
	return out
}

func (r *Renderer) viewerBlock(ev schema.ViewerEvent) []string {
	if ev.Path.IsZero() {
		return []string{r.theme.style("(aucun fichier ouvert)", ansiDim)}
	}
	header := "── " + ev.Path.String() + " "
	if ev.Editing {
		header += "(édition) "
	}
	if pad := r.width - len([]rune(header)); pad > 0 {
		header += strings.Repeat("─", pad)
	}
	out := []string{r.theme.style(header, ansiBold, r.theme.fg(r.theme.HeadingFG))}
	if ev.Editing {
		for i, line := range format.SplitLines(ev.Draft) {
			out = append(out, r.theme.style(fmt.Sprintf("%4d ", i+1), ansiDim)+sanitize(line))
		}
		return out
	}
	return append(out, viewerLines(markdown.FromHTML(ev.HTML), r.width, r.theme)...)
}

func (r *Renderer) treeLines(ev schema.TreeEvent) []string {
	out := []string{r.theme.style("📚 "+string(ev.Project), ansiBold)}
	return append(out, format.MarkLines("  ", format.Tree(ev.Tree))...)
}
