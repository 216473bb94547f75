package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/ecrituria/internal/apiclient"
	"pkt.systems/ecrituria/internal/backendmock"
	"pkt.systems/ecrituria/internal/dialog"
	"pkt.systems/ecrituria/internal/jobpoll"
	"pkt.systems/ecrituria/schema"
)

var ch1 = schema.FilePath{Folder: "chapitres", Name: "ch1.md"}

type recSink struct {
	mu      sync.Mutex
	viewers []schema.ViewerEvent
	trees   []schema.TreeEvent
	jobs    []schema.JobStatus
}

func (s *recSink) OnViewer(e schema.ViewerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewers = append(s.viewers, e)
}

func (s *recSink) OnTree(e schema.TreeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trees = append(s.trees, e)
}

func (s *recSink) OnJob(st schema.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, st)
}

func (s *recSink) lastViewer() schema.ViewerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.viewers) == 0 {
		return schema.ViewerEvent{}
	}
	return s.viewers[len(s.viewers)-1]
}

type recNotes struct {
	mu    sync.Mutex
	notes []string
}

func (n *recNotes) Append(msg schema.ChatMessage) schema.ChatMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, msg.Body)
	return msg
}

func (n *recNotes) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.notes...)
}

type recReporter struct {
	mu     sync.Mutex
	events []string
}

func (r *recReporter) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recReporter) Begin(label string)                       { r.add("begin:" + label) }
func (r *recReporter) Succeed(msg string)                       { r.add("ok:" + msg) }
func (r *recReporter) Fail(msg string)                          { r.add("fail:" + msg) }
func (r *recReporter) Report(text string, _ int)                { r.add("report:" + text) }
func (r *recReporter) Status(text string, m schema.StatusMode) { r.add(string(m) + ":" + text) }

func (r *recReporter) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type harness struct {
	mock     *backendmock.Backend
	client   *apiclient.Client
	ctrl     *Controller
	dialogs  *dialog.Scripted
	sink     *recSink
	notes    *recNotes
	reporter *recReporter
}

func newHarness(t *testing.T, dialogs *dialog.Scripted) *harness {
	t.Helper()
	mock := backendmock.New()
	mock.AddProject("saga", map[string]string{
		"chapitres/ch1.md": "Le dragon vole.",
		"lore/monde.md":    "Un monde.",
	})
	srv := httptest.NewServer(mock.Handler(nil))
	t.Cleanup(srv.Close)
	client, err := apiclient.New(apiclient.Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if dialogs == nil {
		dialogs = &dialog.Scripted{}
	}
	h := &harness{mock: mock, client: client, dialogs: dialogs, sink: &recSink{}, notes: &recNotes{}, reporter: &recReporter{}}
	h.ctrl, err = NewController(ControllerDeps{
		Backend:  client,
		Dialogs:  dialogs,
		Reporter: h.reporter,
		Sink:     h.sink,
		Notes:    h.notes,
		Jobs:     jobpoll.Options{Interval: time.Millisecond, MaxPolls: 50, MaxErrors: 5},
	})
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	return h
}

func (h *harness) openCh1(t *testing.T) {
	t.Helper()
	if _, err := h.ctrl.SelectProject(context.Background(), "saga"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := h.ctrl.Open(context.Background(), ch1); err != nil {
		t.Fatalf("open: %v", err)
	}
	h.mock.ResetCalls()
}

func TestNewControllerRequiresBackendAndDialogs(t *testing.T) {
	if _, err := NewController(ControllerDeps{}); err == nil {
		t.Fatalf("expected error without backend")
	}
	client, _ := apiclient.New(apiclient.Options{BaseURL: "http://localhost:1"})
	if _, err := NewController(ControllerDeps{Backend: client}); err == nil {
		t.Fatalf("expected error without dialogs")
	}
}

func TestSelectProjectLoadsTree(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.ctrl.LoadTree(context.Background()); !errors.Is(err, schema.ErrNoProject) {
		t.Fatalf("expected ErrNoProject, got %v", err)
	}
	if _, err := h.ctrl.SelectProject(context.Background(), "  "); !errors.Is(err, schema.ErrNoProject) {
		t.Fatalf("expected ErrNoProject for blank name, got %v", err)
	}
	tree, err := h.ctrl.SelectProject(context.Background(), " saga ")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !tree.Contains(ch1) || tree.Count() != 2 {
		t.Fatalf("unexpected tree %v", tree)
	}
	if h.ctrl.Project() != "saga" {
		t.Fatalf("project %q", h.ctrl.Project())
	}
	if len(h.sink.trees) != 1 || h.sink.trees[0].Project != "saga" {
		t.Fatalf("expected one tree event, got %+v", h.sink.trees)
	}
}

func TestOpenSetsSessionAndLeavesEditMode(t *testing.T) {
	h := newHarness(t, nil)
	h.openCh1(t)
	if _, err := h.ctrl.ToggleEdit(context.Background()); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := h.ctrl.Open(context.Background(), schema.FilePath{Folder: "lore", Name: "monde.md"}); err != nil {
		t.Fatalf("open: %v", err)
	}
	s := h.ctrl.Session()
	if s.OpenFile.String() != "lore/monde.md" || s.RawText != "Un monde." || s.Editing || s.Draft != "" {
		t.Fatalf("unexpected session %+v", s)
	}
	if s.View != s.RawHTML || !strings.Contains(s.RawHTML, "Un monde.") {
		t.Fatalf("viewer should show raw html, got %q", s.View)
	}
	if v := h.sink.lastViewer(); v.Path != s.OpenFile || v.HTML != s.RawHTML {
		t.Fatalf("unexpected viewer event %+v", v)
	}
}

type blockingBackend struct {
	*apiclient.Client
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) ReadFile(ctx context.Context, project schema.ProjectName, path schema.FilePath) (schema.FileContent, error) {
	close(b.entered)
	<-b.release
	return b.Client.ReadFile(ctx, project, path)
}

func TestConcurrentOpenIsBusy(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.ctrl.SelectProject(context.Background(), "saga"); err != nil {
		t.Fatalf("select: %v", err)
	}
	backend := &blockingBackend{Client: h.client, entered: make(chan struct{}), release: make(chan struct{})}
	ctrl, err := NewController(ControllerDeps{Backend: backend, Dialogs: h.dialogs})
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	if _, err := ctrl.SelectProject(context.Background(), "saga"); err != nil {
		t.Fatalf("select: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- ctrl.Open(context.Background(), ch1) }()
	<-backend.entered
	if err := ctrl.Open(context.Background(), ch1); !errors.Is(err, schema.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(backend.release)
	if err := <-done; err != nil {
		t.Fatalf("first open: %v", err)
	}
}

func TestHighlightAndResetRestoreRawBytes(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.ctrl.Highlight(context.Background(), "dragon"); !errors.Is(err, schema.ErrNoOpenFile) {
		t.Fatalf("expected ErrNoOpenFile, got %v", err)
	}
	h.openCh1(t)
	raw := h.ctrl.Session().RawHTML

	n, err := h.ctrl.Highlight(context.Background(), "DRAGON")
	if err != nil || n != 1 {
		t.Fatalf("highlight: n=%d err=%v", n, err)
	}
	if view := h.ctrl.Session().View; !strings.Contains(view, "Le <mark>dragon</mark> vole.") {
		t.Fatalf("unexpected view %q", view)
	}
	if err := h.ctrl.ResetHighlight(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s := h.ctrl.Session(); s.View != raw || s.Highlight != "" {
		t.Fatalf("reset should restore raw bytes, got %q", s.View)
	}

	h.ctrl.Highlight(context.Background(), "vole")
	if n, _ := h.ctrl.Highlight(context.Background(), "   "); n != 0 || h.ctrl.Session().View != raw {
		t.Fatalf("blank term should restore raw content")
	}
	if h.mock.CallCount(http.MethodGet, "/api/file/") != 0 {
		t.Fatalf("highlight must not refetch the file")
	}
}

func TestSaveRequiresChange(t *testing.T) {
	h := newHarness(t, nil)
	h.openCh1(t)
	if err := h.ctrl.Save(context.Background(), "x"); !errors.Is(err, schema.ErrNotEditing) {
		t.Fatalf("expected ErrNotEditing, got %v", err)
	}
	editing, err := h.ctrl.ToggleEdit(context.Background())
	if err != nil || !editing {
		t.Fatalf("toggle: %v %v", editing, err)
	}
	if draft := h.ctrl.Session().Draft; draft != "Le dragon vole." {
		t.Fatalf("draft should be seeded with raw text, got %q", draft)
	}
	if err := h.ctrl.Save(context.Background(), "Le dragon vole."); !errors.Is(err, schema.ErrNoChange) {
		t.Fatalf("expected ErrNoChange, got %v", err)
	}
	if n := h.mock.CallCount(http.MethodPost, "/api/file/"); n != 0 {
		t.Fatalf("unchanged save must not write, got %d", n)
	}
	if alerts := h.dialogs.Alerts(); len(alerts) != 1 || alerts[0] != "Aucune modification détectée" {
		t.Fatalf("unexpected alerts %v", alerts)
	}

	if err := h.ctrl.Save(context.Background(), "Le dragon dort."); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got, _ := h.mock.File("saga", "chapitres/ch1.md"); got != "Le dragon dort." {
		t.Fatalf("stored %q", got)
	}
	if s := h.ctrl.Session(); s.Editing || s.RawText != "Le dragon dort." {
		t.Fatalf("save should reload and leave edit mode, got %+v", s)
	}
}

func TestToggleEditWithoutFileAlerts(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.ctrl.ToggleEdit(context.Background()); !errors.Is(err, schema.ErrNoOpenFile) {
		t.Fatalf("expected ErrNoOpenFile, got %v", err)
	}
	if alerts := h.dialogs.Alerts(); len(alerts) != 1 || alerts[0] != "Ouvrez d'abord un fichier" {
		t.Fatalf("unexpected alerts %v", alerts)
	}
}

func TestCancelEditAsksConfirmation(t *testing.T) {
	cases := []struct {
		confirmed   bool
		wantEditing bool
	}{
		{false, true},
		{true, false},
	}
	for _, tc := range cases {
		h := newHarness(t, &dialog.Scripted{Confirmed: tc.confirmed})
		h.openCh1(t)
		h.ctrl.ToggleEdit(context.Background())
		h.ctrl.SetDraft("brouillon")
		cancelled, err := h.ctrl.CancelEdit(context.Background())
		if err != nil || cancelled != tc.confirmed {
			t.Fatalf("cancel: %v %v", cancelled, err)
		}
		if h.ctrl.Session().Editing != tc.wantEditing {
			t.Fatalf("confirmed=%v: editing=%v", tc.confirmed, h.ctrl.Session().Editing)
		}
		if confirms := h.dialogs.Confirms(); len(confirms) != 1 || confirms[0] != "Annuler les modifications ?" {
			t.Fatalf("unexpected confirms %v", confirms)
		}
	}
}

func TestCreateFileSeedsTitle(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.SelectProject(context.Background(), "saga")
	path, err := h.ctrl.CreateFile(context.Background(), "notes", "idee.md")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := "# idee\n\n<!-- Écrivez votre contenu ici -->\n"
	if got, _ := h.mock.File("saga", "notes/idee.md"); got != want {
		t.Fatalf("stored %q, want %q", got, want)
	}
	if open, ok := h.ctrl.OpenFile(); !ok || open != path {
		t.Fatalf("created file should be open, got %v", open)
	}
	if !h.ctrl.Session().Tree.Contains(path) {
		t.Fatalf("tree should be reloaded")
	}
	if _, err := h.ctrl.CreateFile(context.Background(), "notes", "a/b.md"); !errors.Is(err, schema.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestCreateFilePromptsForBlankParts(t *testing.T) {
	h := newHarness(t, &dialog.Scripted{Answers: []string{"lore"}})
	h.ctrl.SelectProject(context.Background(), "saga")
	path, err := h.ctrl.CreateFile(context.Background(), "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if path.String() != "lore/nouveau.md" {
		t.Fatalf("unexpected path %s", path)
	}
	if prompts := h.dialogs.Prompts(); len(prompts) != 2 || prompts[0] != promptFolder || prompts[1] != promptFilename {
		t.Fatalf("unexpected prompts %v", prompts)
	}

	cancel := newHarness(t, &dialog.Scripted{CancelPrompts: true})
	cancel.ctrl.SelectProject(context.Background(), "saga")
	if _, err := cancel.ctrl.CreateFile(context.Background(), "", ""); !errors.Is(err, schema.ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
}

func TestRenameReadsCreatesThenDeletes(t *testing.T) {
	h := newHarness(t, nil)
	h.openCh1(t)
	if _, err := h.ctrl.Rename(context.Background(), "ch1.md"); !errors.Is(err, schema.ErrNoChange) {
		t.Fatalf("expected ErrNoChange, got %v", err)
	}
	target, err := h.ctrl.Rename(context.Background(), "ch2.md")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	var order []string
	for _, call := range h.mock.Calls() {
		if strings.HasPrefix(call.Path, "/api/file/") {
			order = append(order, call.Method+" "+call.Path)
		}
	}
	want := []string{
		"GET /api/file/saga/chapitres/ch1.md",
		"POST /api/file/saga/chapitres/ch2.md",
		"DELETE /api/file/saga/chapitres/ch1.md",
		"GET /api/file/saga/chapitres/ch2.md",
	}
	if strings.Join(order, "|") != strings.Join(want, "|") {
		t.Fatalf("call order\n got %v\nwant %v", order, want)
	}
	if _, ok := h.mock.File("saga", "chapitres/ch1.md"); ok {
		t.Fatalf("old file should be gone")
	}
	if got, _ := h.mock.File("saga", "chapitres/ch2.md"); got != "Le dragon vole." {
		t.Fatalf("renamed content %q", got)
	}
	if open, _ := h.ctrl.OpenFile(); open != target {
		t.Fatalf("renamed file should be open, got %v", open)
	}
}

func TestDuplicateSuggestsCopyName(t *testing.T) {
	h := newHarness(t, nil)
	h.openCh1(t)
	target, err := h.ctrl.Duplicate(context.Background(), "")
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if target.String() != "chapitres/ch1_copie.md" {
		t.Fatalf("unexpected target %s", target)
	}
	if prompts := h.dialogs.Prompts(); len(prompts) != 1 || prompts[0] != promptDuplicate {
		t.Fatalf("unexpected prompts %v", prompts)
	}
	for _, raw := range []string{"chapitres/ch1.md", "chapitres/ch1_copie.md"} {
		if got, _ := h.mock.File("saga", raw); got != "Le dragon vole." {
			t.Fatalf("%s = %q", raw, got)
		}
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	declined := newHarness(t, &dialog.Scripted{Confirmed: false})
	declined.openCh1(t)
	if err := declined.ctrl.Delete(context.Background()); !errors.Is(err, schema.ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	if declined.mock.CallCount(http.MethodDelete, "/api/file/") != 0 {
		t.Fatalf("declined delete must not call the backend")
	}
	want := "🗑️ Supprimer \"chapitres/ch1.md\" ?\n\nCette action est irréversible."
	if confirms := declined.dialogs.Confirms(); len(confirms) != 1 || confirms[0] != want {
		t.Fatalf("unexpected confirms %q", confirms)
	}

	h := newHarness(t, &dialog.Scripted{Confirmed: true})
	h.openCh1(t)
	if err := h.ctrl.Delete(context.Background()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := h.mock.File("saga", "chapitres/ch1.md"); ok {
		t.Fatalf("file should be deleted")
	}
	if s := h.ctrl.Session(); s.HasOpenFile() || s.Tree.Contains(ch1) {
		t.Fatalf("session should be cleared, got %+v", s)
	}
}

func TestAppendToOpenFileReloads(t *testing.T) {
	h := newHarness(t, nil)
	h.openCh1(t)
	if err := h.ctrl.AppendToFile(context.Background(), ch1, "Il rêve."); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got := h.ctrl.Session().RawText; !strings.HasPrefix(got, "Le dragon vole.") || !strings.Contains(got, "Il rêve.") {
		t.Fatalf("open file should be reloaded, got %q", got)
	}
}

func TestWriteFailureIsAlerted(t *testing.T) {
	h := newHarness(t, nil)
	h.openCh1(t)
	h.mock.FailWrites("disque plein")
	h.ctrl.ToggleEdit(context.Background())
	if err := h.ctrl.Save(context.Background(), "nouveau"); err == nil {
		t.Fatalf("expected save failure")
	}
	alerts := h.dialogs.Alerts()
	if len(alerts) == 0 || alerts[len(alerts)-1] != "❌ Erreur: disque plein" {
		t.Fatalf("unexpected alerts %v", alerts)
	}
	if !h.ctrl.Session().Editing {
		t.Fatalf("failed save should stay in edit mode")
	}
}
