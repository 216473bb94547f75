package tui

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/ecrituria/internal/eventbus"
	"pkt.systems/ecrituria/internal/markdown"
	"pkt.systems/ecrituria/schema"
)

func plainRenderer(width int) (*Renderer, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewRenderer(&buf, Options{Theme: "plain", Width: width}), &buf
}

func rowText(row []markdown.Span) string {
	var b strings.Builder
	for _, span := range row {
		b.WriteString(span.Text)
	}
	return b.String()
}

func TestWrapSpans(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"words", "un deux trois quatre", 10, []string{"un deux", "trois", "quatre"}},
		{"long-word", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"fits", "court", 20, []string{"court"}},
		{"empty", "", 10, []string{""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := wrapSpans([]markdown.Span{{Text: tc.text}}, tc.width)
			var got []string
			for _, row := range rows {
				got = append(got, rowText(row))
			}
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Fatalf("wrapSpans(%q, %d) = %q, want %q", tc.text, tc.width, got, tc.want)
			}
		})
	}
}

func TestStatusLineWithProgressBar(t *testing.T) {
	r, buf := plainRenderer(80)
	r.Handle(eventbus.Event{Type: eventbus.EventProgress, Percent: 50})
	if buf.Len() != 0 {
		t.Fatalf("progress alone should not print outside live mode, got %q", buf.String())
	}
	r.Handle(eventbus.Event{Type: eventbus.EventStatus, Status: schema.StatusEvent{Text: "Réindexation", Mode: schema.StatusInfo}})
	want := "… Réindexation ██████████░░░░░░░░░░ 50%\n"
	if buf.String() != want {
		t.Fatalf("status line = %q, want %q", buf.String(), want)
	}
	r.Handle(eventbus.Event{Type: eventbus.EventStatus, Status: schema.StatusEvent{Text: "Index mis à jour!", Mode: schema.StatusSuccess}})
	if !strings.HasSuffix(buf.String(), "✓ Index mis à jour!\n") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestStatusNotRepeated(t *testing.T) {
	r, buf := plainRenderer(80)
	ev := eventbus.Event{Type: eventbus.EventStatus, Status: schema.StatusEvent{Text: "Erreur", Mode: schema.StatusError}}
	r.Handle(ev)
	r.Handle(ev)
	if strings.Count(buf.String(), "✗ Erreur") != 1 {
		t.Fatalf("expected a single status line, got %q", buf.String())
	}
	r.Handle(eventbus.Event{Type: eventbus.EventHide})
	r.Handle(ev)
	if strings.Count(buf.String(), "✗ Erreur") != 2 {
		t.Fatalf("expected the status again after hide, got %q", buf.String())
	}
}

func TestViewerShowsMarksInReverseVideo(t *testing.T) {
	r, buf := plainRenderer(40)
	r.Handle(eventbus.Event{Type: eventbus.EventViewer, Viewer: schema.ViewerEvent{
		Path: schema.FilePath{Folder: "chapitres", Name: "ch1.md"},
		HTML: "<h1>Titre</h1><p>Le <mark>dragon</mark> vole.</p>",
	}})
	out := buf.String()
	for _, want := range []string{"── chapitres/ch1.md ─", "# Titre", "Le " + ansiReverse + "dragon" + ansiReset + " vole."} {
		if !strings.Contains(out, want) {
			t.Fatalf("viewer output missing %q:\n%s", want, out)
		}
	}
}

func TestViewerEditingShowsDraft(t *testing.T) {
	r, buf := plainRenderer(40)
	r.Handle(eventbus.Event{Type: eventbus.EventViewer, Viewer: schema.ViewerEvent{
		Path:    schema.FilePath{Folder: "notes", Name: "a.md"},
		Editing: true,
		Draft:   "# A\nligne",
	}})
	out := buf.String()
	if !strings.Contains(out, "(édition)") || !strings.Contains(out, "   1 # A") || !strings.Contains(out, "   2 ligne") {
		t.Fatalf("unexpected editor output:\n%s", out)
	}
	buf.Reset()
	r.Handle(eventbus.Event{Type: eventbus.EventViewer})
	if !strings.Contains(buf.String(), "aucun fichier ouvert") {
		t.Fatalf("expected empty viewer notice, got %q", buf.String())
	}
}

func TestMessageLines(t *testing.T) {
	r, buf := plainRenderer(80)
	r.Handle(eventbus.Event{Type: eventbus.EventMessage, Message: schema.MessageEvent{
		Op:      schema.MessageAppended,
		Message: schema.ChatMessage{ID: "1", Role: schema.RoleUser, Body: "Qui est Aria ?"},
	}})
	r.Handle(eventbus.Event{Type: eventbus.EventMessage, Message: schema.MessageEvent{
		Op:      schema.MessageAppended,
		Message: schema.ChatMessage{ID: "2", Role: schema.RoleAssistant, Body: "Réflexion en cours...", Pending: true},
	}})
	r.Handle(eventbus.Event{Type: eventbus.EventMessage, Message: schema.MessageEvent{
		Op:      schema.MessageRemoved,
		Message: schema.ChatMessage{ID: "2"},
	}})
	r.Handle(eventbus.Event{Type: eventbus.EventMessage, Message: schema.MessageEvent{
		Op:      schema.MessageReplaced,
		Message: schema.ChatMessage{ID: "2", Role: schema.RoleAssistant, Body: "Aria est **mage**."},
	}})
	want := "› Qui est Aria ?\n⏳ Réflexion en cours...\nAria est mage.\n\n"
	if buf.String() != want {
		t.Fatalf("messages = %q, want %q", buf.String(), want)
	}
}

func TestAnswerMarkupIsRendered(t *testing.T) {
	r, buf := plainRenderer(80)
	r.Handle(eventbus.Event{Type: eventbus.EventMessage, Message: schema.MessageEvent{
		Op: schema.MessageAppended,
		Message: schema.ChatMessage{ID: "1", Role: schema.RoleAssistant,
			Body: "[Rechercheur] [Coherence]\n\n## Aria\n- reine du ==nord==\n\n📚 Sources:\n📄 ch1.md"},
	}})
	want := "[Rechercheur] [Coherence]\n\nAria\n• reine du " + ansiReverse + "nord" + ansiReset + "\n\n📚 Sources:\n📄 ch1.md\n\n"
	if buf.String() != want {
		t.Fatalf("answer = %q, want %q", buf.String(), want)
	}
}

func TestTreeLines(t *testing.T) {
	r, buf := plainRenderer(80)
	r.Handle(eventbus.Event{Type: eventbus.EventTree, Tree: schema.TreeEvent{
		Project: "saga",
		Tree:    schema.FileTree{"lore": {"monde.md"}},
	}})
	want := "📚 saga\n  📁 lore\n    📄 monde.md\n"
	if buf.String() != want {
		t.Fatalf("tree = %q, want %q", buf.String(), want)
	}
}

func TestSanitizeDropsEscapes(t *testing.T) {
	if got := sanitize("a\x1b[31mb\x1b]0;titre\x07c\x01"); got != "abc" {
		t.Fatalf("sanitize = %q", got)
	}
}

func TestRunConsumesBus(t *testing.T) {
	bus := eventbus.New(nil)
	events, cancelSub := bus.Subscribe()
	defer cancelSub()
	var buf syncBuffer
	r := NewRenderer(&buf, Options{Theme: "plain"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, events)
		close(done)
	}()
	bus.SetStatus("Chargement", schema.StatusInfo)
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(buf.String(), "… Chargement") {
		if time.Now().After(deadline) {
			t.Fatalf("status never rendered, got %q", buf.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestThemeFor(t *testing.T) {
	if got := ThemeFor("Tokyo").Name; got != "tokyo-midnight" {
		t.Fatalf("ThemeFor(Tokyo) = %q", got)
	}
	if got := ThemeFor("neon").Name; got != schema.DefaultTheme {
		t.Fatalf("unknown theme should fall back, got %q", got)
	}
	if !ThemeFor("mono").Plain {
		t.Fatalf("mono should be plain")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
