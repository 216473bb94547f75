package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pkt.systems/ecrituria/internal/backendmock"
	"pkt.systems/ecrituria/schema"
)

func newTestClient(t *testing.T, opts Options) (*Client, *backendmock.Backend) {
	t.Helper()
	backend := backendmock.New()
	backend.AddProject("saga", map[string]string{
		"chapitres/ch1.md":     "Le dragon vole.",
		"personnages/Élise.md": "# Élise",
	})
	srv := httptest.NewServer(backend.Handler(nil))
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL
	client, err := New(opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, backend
}

func TestNewRejectsInvalidURL(t *testing.T) {
	if _, err := New(Options{BaseURL: "localhost:8000"}); err == nil {
		t.Fatalf("expected invalid url error")
	}
}

func TestFilesAndReadFile(t *testing.T) {
	client, _ := newTestClient(t, Options{})
	ctx := context.Background()

	tree, err := client.Files(ctx, "saga")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if !tree.Contains(schema.FilePath{Folder: "personnages", Name: "Élise.md"}) {
		t.Fatalf("unexpected tree %v", tree)
	}
	content, err := client.ReadFile(ctx, "saga", schema.FilePath{Folder: "personnages", Name: "Élise.md"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if content.Content != "# Élise" || content.ContentHTML != "<p><h1>Élise</h1></p>" {
		t.Fatalf("unexpected content %+v", content)
	}
}

func TestErrorCarriesDetail(t *testing.T) {
	client, _ := newTestClient(t, Options{})
	_, err := client.ReadFile(context.Background(), "saga", schema.FilePath{Folder: "notes", Name: "absent.md"})
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Detail != "Fichier non trouvé" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if !IsStatus(err, http.StatusNotFound) || DetailOf(err) != "Fichier non trouvé" {
		t.Fatalf("helpers disagree with %v", err)
	}
}

func TestLogicalFailureBecomesError(t *testing.T) {
	client, backend := newTestClient(t, Options{})
	backend.FailWrites("disque en lecture seule")
	err := client.WriteFile(context.Background(), "saga", schema.FilePath{Folder: "notes", Name: "a.md"}, "x", false)
	if DetailOf(err) != "disque en lecture seule" {
		t.Fatalf("expected logical error detail, got %v", err)
	}
	if err.Error() != "disque en lecture seule" {
		t.Fatalf("logical errors should not mention a status, got %q", err.Error())
	}
}

func TestWriteAppendDelete(t *testing.T) {
	client, backend := newTestClient(t, Options{})
	ctx := context.Background()
	path := schema.FilePath{Folder: "chapitres", Name: "ch1.md"}

	if err := client.WriteFile(ctx, "saga", path, " Il crache du feu.", true); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got, _ := backend.File("saga", "chapitres/ch1.md"); got != "Le dragon vole. Il crache du feu." {
		t.Fatalf("unexpected content after append %q", got)
	}
	if err := client.DeleteFile(ctx, "saga", path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := backend.File("saga", "chapitres/ch1.md"); ok {
		t.Fatalf("expected file deleted")
	}
}

func TestUploadMultipart(t *testing.T) {
	client, backend := newTestClient(t, Options{})
	err := client.Upload(context.Background(), "saga", "notes", "idee.txt", strings.NewReader("une idée"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got, _ := backend.File("saga", "notes/idee.txt"); got != "une idée" {
		t.Fatalf("unexpected uploaded content %q", got)
	}
}

func TestChatSendsToggles(t *testing.T) {
	client, backend := newTestClient(t, Options{})
	var seen schema.ChatRequest
	backend.SetChatFunc(func(req schema.ChatRequest) (schema.ChatResponse, error) {
		seen = req
		return schema.ChatResponse{Answer: "ok", Agents: []string{"GraphRAG"}}, nil
	})
	resp, err := client.Chat(context.Background(), schema.ChatRequest{
		Question: "Qui est Élise ?", ShowSources: true, Project: "saga", Model: "m", UseGraph: true,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Answer != "ok" || len(resp.Agents) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !seen.ShowSources || !seen.UseGraph || seen.UseAgents || seen.Project != "saga" {
		t.Fatalf("unexpected request seen by backend %+v", seen)
	}
}

func TestAIWriteSendsEmptyContextFiles(t *testing.T) {
	client, _ := newTestClient(t, Options{})
	resp, err := client.AIWrite(context.Background(), "saga", schema.WriteRequest{
		Action: schema.WriteAppend, FilePath: "chapitres/ch1.md", Instruction: "Suite", PreviewOnly: true,
	})
	if err != nil {
		t.Fatalf("ai-write: %v", err)
	}
	if !resp.Preview || resp.Content != "Suite" {
		t.Fatalf("unexpected preview %+v", resp)
	}
}

func TestListingCache(t *testing.T) {
	client, backend := newTestClient(t, Options{CacheTTL: time.Minute})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := client.Projects(ctx); err != nil {
			t.Fatalf("projects: %v", err)
		}
		if _, err := client.Models(ctx); err != nil {
			t.Fatalf("models: %v", err)
		}
	}
	if n := backend.CallCount(http.MethodGet, "/api/projects"); n != 1 {
		t.Fatalf("expected one cached projects call, got %d", n)
	}
	if n := backend.CallCount(http.MethodGet, "/api/models"); n != 1 {
		t.Fatalf("expected one cached models call, got %d", n)
	}
	client.InvalidateListings()
	if _, err := client.Projects(ctx); err != nil {
		t.Fatalf("projects: %v", err)
	}
	if n := backend.CallCount(http.MethodGet, "/api/projects"); n != 2 {
		t.Fatalf("expected refetch after invalidation, got %d", n)
	}
}

func TestGraphStatusIsNeverCached(t *testing.T) {
	client, backend := newTestClient(t, Options{CacheTTL: time.Minute})
	for i := 0; i < 3; i++ {
		if _, err := client.GraphStatus(context.Background()); err != nil {
			t.Fatalf("status: %v", err)
		}
	}
	if n := backend.CallCount(http.MethodGet, "/api/task/graph-status"); n != 3 {
		t.Fatalf("expected 3 status calls, got %d", n)
	}
}

func TestUserAgentHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"masked_key":"","has_key":false}`))
	}))
	defer srv.Close()
	client, err := New(Options{BaseURL: srv.URL, UserAgent: "ecrituria-test"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := client.APIKey(context.Background()); err != nil {
		t.Fatalf("apikey: %v", err)
	}
	if got != "ecrituria-test" {
		t.Fatalf("unexpected user agent %q", got)
	}
}

func TestDetailFromBody(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"fastapi", `{"detail":"Projet non trouvé: x"}`, "Projet non trouvé: x"},
		{"validation-list", `{"detail":[{"msg":"field required"}]}`, `[{"msg":"field required"}]`},
		{"error-field", `{"error":"boom"}`, "boom"},
		{"plain", "Internal Server Error", "Internal Server Error"},
		{"empty", "", "502 Bad Gateway"},
	}
	for _, tc := range cases {
		if got := detailFromBody([]byte(tc.body), "502 Bad Gateway"); got != tc.want {
			t.Fatalf("case %q: got %q want %q", tc.name, got, tc.want)
		}
	}
}
