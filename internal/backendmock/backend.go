// Package backendmock is an in-memory stand-in for the Écrituria backend.
// It implements the REST contract the client consumes, records every call
// and lets tests script graph jobs and inject failures.
package backendmock

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pkt.systems/ecrituria/schema"
)

// Call is one recorded request.
type Call struct {
	Method string
	Path   string
}

// ChatFunc answers a chat request.
type ChatFunc func(schema.ChatRequest) (schema.ChatResponse, error)

// WriteFunc generates content for an AI write request. existing is the
// current file content, or "" for a new file.
type WriteFunc func(req schema.WriteRequest, existing string) string

// Backend holds the fake server state.
type Backend struct {
	mu sync.Mutex

	projects map[schema.ProjectName]map[string]map[string]string
	models   []schema.Model
	apiKey   string

	calls     []Call
	mutations int

	indexed map[schema.ProjectName]map[string]string

	graphScript      []schema.JobStatus
	graphIdx         int
	graphRunning     bool
	graphStatusFails int
	lastGraph        *schema.GraphResult

	failUploads map[string]string
	failWrites  string
	chatFunc    ChatFunc
	chatDelay   time.Duration
	writeFunc   WriteFunc
}

// New returns an empty backend with a default model list.
func New() *Backend {
	return &Backend{
		projects: map[schema.ProjectName]map[string]map[string]string{},
		models: []schema.Model{
			{ID: "openai/gpt-4o-mini", Label: "rapide - GPT-4o mini", Provider: "openrouter"},
			{ID: "anthropic/claude-3.5-sonnet", Label: "qualite - Claude 3.5 Sonnet", Provider: "openrouter"},
		},
		indexed:     map[schema.ProjectName]map[string]string{},
		failUploads: map[string]string{},
	}
}

// AddProject creates a project seeded with files keyed by "folder/name".
func (b *Backend) AddProject(name schema.ProjectName, files map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	folders := b.projects[name]
	if folders == nil {
		folders = map[string]map[string]string{}
		b.projects[name] = folders
	}
	for raw, content := range files {
		path, err := schema.ParseFilePath(raw)
		if err != nil {
			continue
		}
		if folders[path.Folder] == nil {
			folders[path.Folder] = map[string]string{}
		}
		folders[path.Folder][path.Name] = content
	}
}

// File returns the stored content of a file.
func (b *Backend) File(project schema.ProjectName, raw string) (string, bool) {
	path, err := schema.ParseFilePath(raw)
	if err != nil {
		return "", false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.projects[project][path.Folder][path.Name]
	return content, ok
}

// SetModels replaces the model list.
func (b *Backend) SetModels(models []schema.Model) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.models = append([]schema.Model(nil), models...)
}

// SetAPIKey seeds the stored API key.
func (b *Backend) SetAPIKey(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apiKey = key
}

// StoredAPIKey returns the stored API key in clear.
func (b *Backend) StoredAPIKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.apiKey
}

// SetGraphScript sets the statuses returned by successive graph-status
// polls once a job is started. The last status repeats.
func (b *Backend) SetGraphScript(statuses ...schema.JobStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.graphScript = append([]schema.JobStatus(nil), statuses...)
	b.graphIdx = 0
}

// SetGraphRunning marks a job as already in flight.
func (b *Backend) SetGraphRunning(running bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.graphRunning = running
}

// FailGraphStatus makes the next n graph-status polls answer 503.
func (b *Backend) FailGraphStatus(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.graphStatusFails = n
}

// FailUpload makes uploads of the named file fail with detail.
func (b *Backend) FailUpload(name, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failUploads[name] = detail
}

// FailWrites makes every file write and AI commit fail with detail.
// An empty detail restores normal behaviour.
func (b *Backend) FailWrites(detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWrites = detail
}

// SetChatFunc overrides chat answers.
func (b *Backend) SetChatFunc(fn ChatFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chatFunc = fn
}

// SetChatDelay delays every chat answer.
func (b *Backend) SetChatDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chatDelay = d
}

// SetWriteFunc overrides AI write generation.
func (b *Backend) SetWriteFunc(fn WriteFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeFunc = fn
}

// Calls returns every recorded request in arrival order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallCount counts recorded requests by method and path prefix.
func (b *Backend) CallCount(method, prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, call := range b.calls {
		if call.Method == method && strings.HasPrefix(call.Path, prefix) {
			n++
		}
	}
	return n
}

// Mutations counts requests that changed stored files.
func (b *Backend) Mutations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mutations
}

// ResetCalls clears the call log and mutation counter.
func (b *Backend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
	b.mutations = 0
}

func (b *Backend) record(method, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Method: method, Path: path})
}

func (b *Backend) tree(project schema.ProjectName) (schema.FileTree, bool) {
	folders, ok := b.projects[project]
	if !ok {
		return nil, false
	}
	tree := schema.FileTree{}
	for folder, files := range folders {
		if len(files) == 0 {
			continue
		}
		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		sort.Strings(names)
		tree[folder] = names
	}
	return tree, true
}

func (b *Backend) putLocked(project schema.ProjectName, path schema.FilePath, content string, appendTo bool) {
	folders := b.projects[project]
	if folders[path.Folder] == nil {
		folders[path.Folder] = map[string]string{}
	}
	if appendTo {
		content = folders[path.Folder][path.Name] + content
	}
	folders[path.Folder][path.Name] = content
	b.mutations++
}

// DefaultGraphScript returns a job that processes files one poll at a time
// and completes with a small result.
func DefaultGraphScript(files int) []schema.JobStatus {
	if files <= 0 {
		files = 1
	}
	out := make([]schema.JobStatus, 0, files+1)
	for i := 1; i <= files; i++ {
		out = append(out, schema.JobStatus{
			Running:     true,
			Progress:    i,
			Total:       files,
			Percent:     i * 100 / files,
			Step:        "Extraction des entités",
			CurrentFile: fmt.Sprintf("chapitres/ch%d.md", i),
			Elapsed:     fmt.Sprintf("%ds", i*2),
		})
	}
	out = append(out, schema.JobStatus{
		Completed: true,
		Progress:  files,
		Total:     files,
		Percent:   100,
		Step:      "Terminé!",
		Elapsed:   fmt.Sprintf("%ds", files*2+1),
		Result:    &schema.GraphResult{Nodes: files * 7, Relationships: files * 11},
	})
	return out
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 10 {
		return strings.Repeat("*", len(key))
	}
	return key[:6] + "..." + key[len(key)-4:]
}
