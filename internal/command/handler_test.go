package command

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"pkt.systems/ecrituria"
	"pkt.systems/ecrituria/internal/appconfig"
	"pkt.systems/ecrituria/internal/backendmock"
	"pkt.systems/ecrituria/internal/dialog"
	"pkt.systems/ecrituria/schema"
)

type recPrinter struct {
	mu    sync.Mutex
	lines []string
}

func (p *recPrinter) Println(lines ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, lines...)
}

func (p *recPrinter) text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.lines, "\n")
}

type shellHarness struct {
	mock    *backendmock.Backend
	client  *ecrituria.Client
	handler *Handler
	out     *recPrinter
	dialogs *dialog.Scripted
}

func newShell(t *testing.T, cfg HandlerConfig) *shellHarness {
	t.Helper()
	mock := backendmock.New()
	mock.AddProject("saga", map[string]string{
		"chapitres/ch1.md": "Le dragon vole.",
	})
	srv := httptest.NewServer(mock.Handler(nil))
	t.Cleanup(srv.Close)
	appCfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	appCfg.Server.BaseURL = srv.URL
	appCfg.Project = "saga"
	dialogs := &dialog.Scripted{Confirmed: true, Permit: true}
	client, err := ecrituria.New(appCfg, ecrituria.ClientDeps{Dialogs: dialogs})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	t.Cleanup(client.Close)
	if err := client.Open(context.Background()); err != nil {
		t.Fatalf("open project: %v", err)
	}
	out := &recPrinter{}
	cfg.Out = out
	return &shellHarness{mock: mock, client: client, handler: NewHandler(client, cfg), out: out, dialogs: dialogs}
}

func (h *shellHarness) run(t *testing.T, input string) {
	t.Helper()
	if err := h.handler.Handle(context.Background(), input); err != nil {
		t.Fatalf("Handle(%q): %v", input, err)
	}
}

func TestHelpAndUnknownCommand(t *testing.T) {
	h := newShell(t, HandlerConfig{})
	h.run(t, "/help")
	if !strings.Contains(h.out.text(), "/open <dossier/fichier>") {
		t.Fatalf("help missing /open: %s", h.out.text())
	}
	err := h.handler.Handle(context.Background(), "/inconnue")
	var usageErr *UsageError
	if !errors.As(err, &usageErr) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if msg, ok := Describe(err); !ok || !strings.Contains(msg, "/inconnue") {
		t.Fatalf("Describe = %q, %v", msg, ok)
	}
	if err := h.handler.Handle(context.Background(), "/quit"); !errors.Is(err, ErrQuit) {
		t.Fatalf("expected ErrQuit, got %v", err)
	}
}

func TestOpenAndHighlight(t *testing.T) {
	h := newShell(t, HandlerConfig{})
	h.run(t, "/open chapitres/ch1.md")
	h.run(t, "/hl dragon")
	if !strings.Contains(h.out.text(), `🔍 1 occurrence(s) de "dragon"`) {
		t.Fatalf("unexpected output %q", h.out.text())
	}
	if view := h.client.Controller.Session().View; !strings.Contains(view, "<mark>dragon</mark>") {
		t.Fatalf("viewer not highlighted: %q", view)
	}
	h.run(t, "/reset")
	if s := h.client.Controller.Session(); s.View != s.RawHTML {
		t.Fatalf("reset did not restore raw content")
	}
}

func TestOpenMissingFilePrintsDetail(t *testing.T) {
	h := newShell(t, HandlerConfig{})
	err := h.handler.Handle(context.Background(), "/open lore/absent.md")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(h.out.text(), "❌ Erreur: Fichier non trouvé") {
		t.Fatalf("expected backend detail, got %q", h.out.text())
	}
	if _, ok := Describe(err); ok {
		t.Fatalf("a surfaced backend error should not be described again")
	}
}

func TestPlainLineIsAChatQuestion(t *testing.T) {
	h := newShell(t, HandlerConfig{})
	h.run(t, "Qui est Aria ?")
	last, ok := h.client.Transcript.Last(schema.RoleAssistant)
	if !ok || !strings.HasPrefix(last.Body, "Réponse à: Qui est Aria ?") {
		t.Fatalf("unexpected answer %+v", last)
	}
	if n := h.mock.CallCount(http.MethodPost, "/api/chat"); n != 1 {
		t.Fatalf("expected one chat call, got %d", n)
	}
}

func TestWritePreviewThenCommit(t *testing.T) {
	h := newShell(t, HandlerConfig{})
	h.mock.ResetCalls()
	h.run(t, "/write append chapitres/ch1.md Il atterrit.")
	if h.mock.Mutations() != 0 {
		t.Fatalf("preview must not mutate")
	}
	text := h.out.text()
	if !strings.Contains(text, "📝 Aperçu: Ajout de chapitres/ch1.md") || !strings.Contains(text, "+Il atterrit.") {
		t.Fatalf("unexpected preview output:\n%s", text)
	}
	h.run(t, "/commit")
	content, _ := h.mock.File("saga", "chapitres/ch1.md")
	if content != "Le dragon vole.\n\nIl atterrit." {
		t.Fatalf("unexpected content %q", content)
	}
	err := h.handler.Handle(context.Background(), "/commit")
	if msg, ok := Describe(err); !errors.Is(err, schema.ErrNoPendingWrite) || !ok || msg == "" {
		t.Fatalf("expected no pending write, got %v", err)
	}
}

func TestWriteUsage(t *testing.T) {
	h := newShell(t, HandlerConfig{})
	var usageErr *UsageError
	if err := h.handler.Handle(context.Background(), "/write append"); !errors.As(err, &usageErr) {
		t.Fatalf("expected usage error, got %v", err)
	}
	err := h.handler.Handle(context.Background(), "/write append chapitres/ch1.md")
	if !errors.Is(err, schema.ErrInvalidWriteRequest) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.mock.CallCount(http.MethodPost, "/api/ai-write") != 0 {
		t.Fatalf("invalid drafts must not reach the backend")
	}
}

func TestUploadFiltersAndReports(t *testing.T) {
	h := newShell(t, HandlerConfig{UploadFolder: "chapitres"})
	dir := t.TempDir()
	good := filepath.Join(dir, "a.md")
	bad := filepath.Join(dir, "b.png")
	if err := os.WriteFile(good, []byte("# A"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(bad, []byte("png"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	h.run(t, "/upload lore "+good+" "+bad)
	text := h.out.text()
	if !strings.Contains(text, "⚠️ Ignoré (extension non supportée): "+bad) {
		t.Fatalf("rejected file not reported:\n%s", text)
	}
	if !strings.Contains(text, "✅ a.md") || !strings.Contains(text, "✅ 1 fichier(s) ajouté(s) avec succès !") {
		t.Fatalf("unexpected upload output:\n%s", text)
	}
	if content, ok := h.mock.File("saga", "lore/a.md"); !ok || content != "# A" {
		t.Fatalf("uploaded file missing: %q %v", content, ok)
	}
}

func TestToggles(t *testing.T) {
	h := newShell(t, HandlerConfig{})
	h.run(t, "/graph off")
	h.run(t, "/agents on")
	settings := h.client.Chat.Settings()
	if settings.UseGraph || !settings.UseAgents {
		t.Fatalf("unexpected settings %+v", settings)
	}
	var usageErr *UsageError
	if err := h.handler.Handle(context.Background(), "/graph peut-être"); !errors.As(err, &usageErr) {
		t.Fatalf("expected usage error, got %v", err)
	}
	h.run(t, "/model mistral/large")
	if got := h.client.Chat.Settings().Model; got != "mistral/large" {
		t.Fatalf("model = %q", got)
	}
}

func TestEditWithEditorThenSave(t *testing.T) {
	var seen string
	h := newShell(t, HandlerConfig{Edit: func(_ context.Context, name, text string) (string, error) {
		seen = name + ":" + text
		return text + "\nSuite.", nil
	}})
	h.run(t, "/open chapitres/ch1.md")
	h.run(t, "/edit")
	if seen != "ch1.md:Le dragon vole." {
		t.Fatalf("editor received %q", seen)
	}
	h.run(t, "/save")
	content, _ := h.mock.File("saga", "chapitres/ch1.md")
	if content != "Le dragon vole.\nSuite." {
		t.Fatalf("unexpected saved content %q", content)
	}
	if h.client.Controller.Session().Editing {
		t.Fatalf("save should leave edit mode")
	}
}

func TestCopyWithoutAnswer(t *testing.T) {
	h := newShell(t, HandlerConfig{})
	err := h.handler.Handle(context.Background(), "/copy")
	if !errors.Is(err, schema.ErrUnknownMessage) {
		t.Fatalf("expected unknown message, got %v", err)
	}
}

func TestRenameWithQuotedName(t *testing.T) {
	h := newShell(t, HandlerConfig{})
	h.run(t, "/open chapitres/ch1.md")
	h.run(t, `/mv "le vol.md"`)
	if _, ok := h.mock.File("saga", "chapitres/le vol.md"); !ok {
		t.Fatalf("file was not renamed to a name with a space")
	}
}

func TestCopyAfterStatsCopiesAnswer(t *testing.T) {
	h := newShell(t, HandlerConfig{})
	h.run(t, "Qui est Aria ?")
	h.run(t, "/stats")
	id, err := h.handler.messageID(Command{Name: "copy"})
	if err != nil {
		t.Fatalf("messageID: %v", err)
	}
	msg, _ := h.client.Transcript.Get(id)
	if msg.Answer != "Réponse à: Qui est Aria ?" {
		t.Fatalf("default target is not the answer: %+v", msg)
	}
}

func TestMessageIDRejectsAmbiguousPrefix(t *testing.T) {
	h := newShell(t, HandlerConfig{})
	h.client.Transcript.Append(schema.ChatMessage{ID: "msg-1a", Role: schema.RoleAssistant, Body: "un", Answer: "un"})
	h.client.Transcript.Append(schema.ChatMessage{ID: "msg-1b", Role: schema.RoleAssistant, Body: "deux", Answer: "deux"})
	cases := []struct {
		ref  string
		want error
	}{
		{"msg-1", schema.ErrAmbiguousMessage},
		{"zz", schema.ErrUnknownMessage},
	}
	for _, tc := range cases {
		_, err := h.handler.messageID(Command{Name: "copy", Remainder: tc.ref})
		if !errors.Is(err, tc.want) {
			t.Fatalf("messageID(%q) = %v, want %v", tc.ref, err, tc.want)
		}
	}
	id, err := h.handler.messageID(Command{Name: "copy", Remainder: "msg-1b"})
	if err != nil || id != "msg-1b" {
		t.Fatalf("messageID(msg-1b) = %q, %v", id, err)
	}
	if msg, ok := Describe(schema.ErrAmbiguousMessage); !ok || msg == "" {
		t.Fatalf("ambiguous id should be described")
	}
}

func TestAPIKeyShowAndSet(t *testing.T) {
	h := newShell(t, HandlerConfig{})
	h.run(t, "/apikey")
	if !strings.Contains(h.out.text(), "Aucune clé configurée") {
		t.Fatalf("unexpected output %q", h.out.text())
	}
	h.run(t, "/apikey sk-or-abcdef1234")
	if h.mock.StoredAPIKey() != "sk-or-abcdef1234" {
		t.Fatalf("key not stored")
	}
	if !strings.Contains(h.out.text(), "sk-or-...1234") {
		t.Fatalf("masked key not shown: %q", h.out.text())
	}
}

func TestDescribeSilencesReportedErrors(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{schema.ErrDeclined, false},
		{schema.ErrNoChange, false},
		{schema.ErrNoProject, true},
		{schema.ErrBusy, true},
		{errors.New("réseau"), false},
	}
	for _, tc := range cases {
		if _, ok := Describe(tc.err); ok != tc.want {
			t.Fatalf("Describe(%v) ok = %v, want %v", tc.err, ok, tc.want)
		}
	}
}
