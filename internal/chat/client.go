// Package chat sends questions to the chat endpoint and keeps the
// transcript with its per-message actions.
package chat

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/ecrituria/internal/apiclient"
	"pkt.systems/ecrituria/internal/dialog"
	"pkt.systems/ecrituria/internal/format"
	"pkt.systems/ecrituria/internal/logx"
	"pkt.systems/ecrituria/schema"
)

const (
	// DefaultLongWait is when the "still working" hint fires.
	DefaultLongWait = 25 * time.Second
	// LongWaitHint is the hint posted on the status line.
	LongWaitHint = "Toujours en cours... (IA)"
	// PlaceholderBody is shown while an answer is pending.
	PlaceholderBody = "⏳ Réflexion en cours..."
)

// Backend is the chat endpoint.
type Backend interface {
	Chat(ctx context.Context, req schema.ChatRequest) (schema.ChatResponse, error)
}

// Reporter shows progress of a chat request.
type Reporter interface {
	Begin(label string)
	Succeed(message string)
	Fail(message string)
	Status(text string, mode schema.StatusMode)
}

// Settings are the per-question toggles.
type Settings struct {
	Model     schema.ModelID
	UseGraph  bool
	UseAgents bool
}

// Options wire a Client.
type Options struct {
	Backend    Backend
	Transcript *Transcript
	Reporter   Reporter
	Workspace  Workspace
	Dialogs    dialog.Dialogs
	Clipboard  Clipboard
	Settings   Settings
	LongWait   time.Duration
}

// Client sends one question at a time.
type Client struct {
	backend    Backend
	transcript *Transcript
	reporter   Reporter
	workspace  Workspace
	dialogs    dialog.Dialogs
	clipboard  Clipboard
	longWait   time.Duration

	busy     atomic.Bool
	mu       sync.Mutex
	settings Settings
	wait     *waitTimer
}

// New returns a Client.
func New(opts Options) *Client {
	if opts.Transcript == nil {
		opts.Transcript = NewTranscript(0, nil)
	}
	if opts.LongWait <= 0 {
		opts.LongWait = DefaultLongWait
	}
	return &Client{
		backend:    opts.Backend,
		transcript: opts.Transcript,
		reporter:   opts.Reporter,
		workspace:  opts.Workspace,
		dialogs:    opts.Dialogs,
		clipboard:  opts.Clipboard,
		longWait:   opts.LongWait,
		settings:   opts.Settings,
	}
}

// Transcript returns the client's transcript.
func (c *Client) Transcript() *Transcript {
	return c.transcript
}

// Settings returns the current toggles.
func (c *Client) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// SetModel selects the model sent with questions.
func (c *Client) SetModel(model schema.ModelID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Model = model
}

// SetUseGraph toggles graph retrieval.
func (c *Client) SetUseGraph(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.UseGraph = on
}

// SetUseAgents toggles the multi-agent pipeline.
func (c *Client) SetUseAgents(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.UseAgents = on
}

// Busy reports whether a question is in flight.
func (c *Client) Busy() bool {
	return c.busy.Load()
}

// LongWaitArmed reports whether the long-wait timer is pending.
func (c *Client) LongWaitArmed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wait != nil
}

// Send asks question. The pending placeholder is replaced in place by
// the answer or the error, and the long-wait timer is cleared on every
// path.
func (c *Client) Send(ctx context.Context, question string) (schema.ChatMessage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return schema.ChatMessage{}, schema.ErrEmptyQuestion
	}
	project := c.project()
	if project == "" {
		return schema.ChatMessage{}, schema.ErrNoProject
	}
	if !c.busy.CompareAndSwap(false, true) {
		return schema.ChatMessage{}, schema.ErrBusy
	}
	defer c.busy.Store(false)

	settings := c.Settings()
	log := logx.WithProject(ctx, project)
	c.transcript.Append(schema.ChatMessage{Role: schema.RoleUser, Body: question})
	placeholder := c.transcript.Append(schema.ChatMessage{Role: schema.RoleAssistant, Body: PlaceholderBody, Pending: true})
	c.begin("Réponse IA en cours...")
	c.armLongWait()
	defer c.disarmLongWait()

	start := time.Now()
	resp, err := c.backend.Chat(ctx, schema.ChatRequest{
		Question:    question,
		ShowSources: true,
		Project:     project,
		Model:       settings.Model,
		UseGraph:    settings.UseGraph,
		UseAgents:   settings.UseAgents,
	})
	c.disarmLongWait()
	if err != nil {
		detail := apiclient.DetailOf(err)
		msg, _ := c.transcript.Replace(placeholder.ID, schema.ChatMessage{
			Role:   schema.RoleAssistant,
			Body:   format.Error(detail),
			Failed: true,
		})
		c.fail("Erreur IA: " + detail)
		log.Warn("chat failed", "err", err)
		return msg, err
	}
	msg, _ := c.transcript.Replace(placeholder.ID, schema.ChatMessage{
		Role:    schema.RoleAssistant,
		Body:    format.ChatAnswer(resp),
		Answer:  resp.Answer,
		Agents:  resp.Agents,
		Sources: resp.Sources,
	})
	c.succeed("Réponse IA reçue")
	log.Info("chat answered", "agents", len(resp.Agents), "sources", len(resp.Sources), "duration_ms", time.Since(start).Milliseconds())
	return msg, nil
}

// Note appends an assistant notice that is not an answer.
func (c *Client) Note(text string) schema.ChatMessage {
	return c.transcript.Append(schema.ChatMessage{Role: schema.RoleSystem, Body: text})
}

func (c *Client) project() schema.ProjectName {
	if c.workspace == nil {
		return ""
	}
	return c.workspace.Project()
}

func (c *Client) armLongWait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wait != nil {
		c.wait.stop()
	}
	c.wait = startWait(c.longWait, func() {
		if c.reporter != nil {
			c.reporter.Status(LongWaitHint, schema.StatusInfo)
		}
	})
}

func (c *Client) disarmLongWait() {
	c.mu.Lock()
	w := c.wait
	c.wait = nil
	c.mu.Unlock()
	if w != nil {
		w.stop()
	}
}

func (c *Client) begin(label string) {
	if c.reporter != nil {
		c.reporter.Begin(label)
	}
}

func (c *Client) succeed(msg string) {
	if c.reporter != nil {
		c.reporter.Succeed(msg)
	}
}

func (c *Client) fail(msg string) {
	if c.reporter != nil {
		c.reporter.Fail(msg)
	}
}

// waitTimer fires fn once unless stopped first. stop waits for a running
// fn so nothing fires after it returns.
type waitTimer struct {
	mu      sync.Mutex
	stopped bool
	timer   *time.Timer
}

func startWait(d time.Duration, fn func()) *waitTimer {
	w := &waitTimer{}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timer = time.AfterFunc(d, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.stopped {
			return
		}
		w.stopped = true
		fn()
	})
	return w
}

func (w *waitTimer) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.timer.Stop()
}
