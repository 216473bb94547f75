// Package apiclient is a typed HTTP client for the Écrituria backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"pkt.systems/ecrituria/internal/version"
	"pkt.systems/ecrituria/schema"
	"pkt.systems/pslog"
)

const (
	maxErrorBodyBytes = 4096
	projectsCacheKey  = "projects"
	modelsCacheKey    = "models"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	// CacheTTL caches project and model listings. Zero disables caching.
	CacheTTL  time.Duration
	UserAgent string
}

// Client talks to the backend REST contract.
type Client struct {
	baseURL   string
	client    *http.Client
	userAgent string
	listings  *cache.Cache
}

// New constructs a Client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", opts.BaseURL)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	c := &Client{
		baseURL:   base,
		client:    client,
		userAgent: userAgent,
	}
	if opts.CacheTTL > 0 {
		c.listings = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return c, nil
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// InvalidateListings drops cached project and model listings.
func (c *Client) InvalidateListings() {
	if c.listings != nil {
		c.listings.Flush()
	}
}

// Projects lists the projects known to the backend.
func (c *Client) Projects(ctx context.Context) ([]schema.Project, error) {
	if cached, ok := c.cached(projectsCacheKey); ok {
		return cached.([]schema.Project), nil
	}
	var out []schema.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out); err != nil {
		return nil, err
	}
	c.store(projectsCacheKey, out)
	return out, nil
}

// Models lists the selectable chat models.
func (c *Client) Models(ctx context.Context) ([]schema.Model, error) {
	if cached, ok := c.cached(modelsCacheKey); ok {
		return cached.([]schema.Model), nil
	}
	var out []schema.Model
	if err := c.do(ctx, http.MethodGet, "/api/models", nil, &out); err != nil {
		return nil, err
	}
	c.store(modelsCacheKey, out)
	return out, nil
}

// Files returns the folder to file listing of a project.
func (c *Client) Files(ctx context.Context, project schema.ProjectName) (schema.FileTree, error) {
	out := schema.FileTree{}
	if err := c.do(ctx, http.MethodGet, apiPath("files", string(project)), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFile fetches the raw and rendered content of a file.
func (c *Client) ReadFile(ctx context.Context, project schema.ProjectName, path schema.FilePath) (schema.FileContent, error) {
	var out schema.FileContent
	err := c.do(ctx, http.MethodGet, apiPath("file", string(project), path.Folder, path.Name), nil, &out)
	return out, err
}

// WriteFile replaces or appends to a file.
func (c *Client) WriteFile(ctx context.Context, project schema.ProjectName, path schema.FilePath, content string, appendTo bool) error {
	body := schema.WriteFileRequest{Content: content, Append: appendTo}
	return c.doResult(ctx, http.MethodPost, apiPath("file", string(project), path.Folder, path.Name), body)
}

// DeleteFile removes a file.
func (c *Client) DeleteFile(ctx context.Context, project schema.ProjectName, path schema.FilePath) error {
	return c.doResult(ctx, http.MethodDelete, apiPath("file", string(project), path.Folder, path.Name), nil)
}

// Upload sends one file as multipart form field "file".
func (c *Client) Upload(ctx context.Context, project schema.ProjectName, folder, name string, r io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, apiPath("upload", string(project), folder), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var result schema.Result
	if err := c.send(req, &result); err != nil {
		return err
	}
	return resultError(result)
}

// Reindex asks the backend to refresh the project index.
func (c *Client) Reindex(ctx context.Context, project schema.ProjectName) (schema.IndexResult, error) {
	var out schema.IndexResult
	if err := c.do(ctx, http.MethodPost, apiPath("index", string(project)), nil, &out); err != nil {
		return out, err
	}
	if !out.Success {
		return out, logicalError(out.Detail)
	}
	return out, nil
}

// Stats returns index and graph statistics.
func (c *Client) Stats(ctx context.Context, project schema.ProjectName) (schema.Stats, error) {
	var out schema.Stats
	err := c.do(ctx, http.MethodGet, apiPath("stats", string(project)), nil, &out)
	return out, err
}

// Chat asks a question.
func (c *Client) Chat(ctx context.Context, req schema.ChatRequest) (schema.ChatResponse, error) {
	var out schema.ChatResponse
	err := c.do(ctx, http.MethodPost, "/api/chat", req, &out)
	return out, err
}

// PopulateGraph starts the graph population job.
func (c *Client) PopulateGraph(ctx context.Context, project schema.ProjectName) (schema.PopulateResponse, error) {
	var out schema.PopulateResponse
	err := c.do(ctx, http.MethodPost, apiPath("graph", "populate", string(project)), nil, &out)
	return out, err
}

// GraphStatus polls the graph population job. Never cached.
func (c *Client) GraphStatus(ctx context.Context) (schema.JobStatus, error) {
	var out schema.JobStatus
	err := c.do(ctx, http.MethodGet, "/api/task/graph-status", nil, &out)
	return out, err
}

// AIWrite submits a write request in preview or commit mode.
func (c *Client) AIWrite(ctx context.Context, project schema.ProjectName, req schema.WriteRequest) (schema.WriteResponse, error) {
	if req.ContextFiles == nil {
		req.ContextFiles = []string{}
	}
	var out schema.WriteResponse
	if err := c.do(ctx, http.MethodPost, apiPath("ai-write", string(project)), req, &out); err != nil {
		return out, err
	}
	if !out.Success && out.Detail != "" {
		return out, logicalError(out.Detail)
	}
	return out, nil
}

// APIKey returns the masked API key.
func (c *Client) APIKey(ctx context.Context) (schema.APIKeyStatus, error) {
	var out schema.APIKeyStatus
	err := c.do(ctx, http.MethodGet, "/api/config/apikey", nil, &out)
	return out, err
}

// SetAPIKey replaces the API key stored by the backend.
func (c *Client) SetAPIKey(ctx context.Context, key string) error {
	return c.doResult(ctx, http.MethodPost, "/api/config/apikey", schema.APIKeyUpdate{APIKey: key})
}

func (c *Client) doResult(ctx context.Context, method, path string, body any) error {
	var result schema.Result
	if err := c.do(ctx, method, path, body, &result); err != nil {
		return err
	}
	return resultError(result)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	log := pslog.Ctx(req.Context())
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.Debug("api request failed", "method", req.Method, "path", req.URL.Path, "err", err)
		return err
	}
	defer resp.Body.Close()
	log.Debug("api request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &Error{Status: resp.StatusCode, Detail: detailFromBody(data, resp.Status)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func (c *Client) cached(key string) (any, bool) {
	if c.listings == nil {
		return nil, false
	}
	return c.listings.Get(key)
}

func (c *Client) store(key string, value any) {
	if c.listings != nil {
		c.listings.Set(key, value, cache.DefaultExpiration)
	}
}

func apiPath(segments ...string) string {
	var b strings.Builder
	b.WriteString("/api")
	for _, segment := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(segment))
	}
	return b.String()
}
