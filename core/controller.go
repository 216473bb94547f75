// Package core owns the client session: the selected project, the file
// tree, the open file and its viewer, and the project-wide jobs.
package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"pkt.systems/ecrituria/internal/apiclient"
	"pkt.systems/ecrituria/internal/format"
	"pkt.systems/ecrituria/internal/jobpoll"
	"pkt.systems/ecrituria/internal/logx"
	"pkt.systems/ecrituria/schema"
	"pkt.systems/pslog"
)

// Session is the state of one client session.
type Session struct {
	Project  schema.ProjectName
	OpenFile schema.FilePath
	// RawHTML and RawText are the open file exactly as served.
	RawHTML string
	RawText string
	// View is what the viewer shows: RawHTML, or RawHTML with marks.
	View      string
	Highlight string
	Editing   bool
	Draft     string
	Tree      schema.FileTree
}

// HasOpenFile reports whether a file is open.
func (s Session) HasOpenFile() bool {
	return !s.OpenFile.IsZero()
}

// Controller drives the session against the backend.
type Controller struct {
	backend  Backend
	dialogs  asker
	reporter Reporter
	sink     EventSink
	notes    Notes
	logger   pslog.Logger
	poller   *jobpoll.Poller

	busy atomic.Bool

	mu      sync.Mutex
	session Session
	graph   *GraphRun
}

type asker interface {
	Confirm(ctx context.Context, message string) (bool, error)
	Prompt(ctx context.Context, message, def string) (string, bool, error)
	Alert(ctx context.Context, message string) error
}

// NewController constructs a Controller.
func NewController(deps ControllerDeps) (*Controller, error) {
	if deps.Backend == nil {
		return nil, errors.New("controller backend is required")
	}
	if deps.Dialogs == nil {
		return nil, errors.New("controller dialogs are required")
	}
	if deps.Reporter == nil {
		deps.Reporter = nopReporter{}
	}
	if deps.Sink == nil {
		deps.Sink = nopSink{}
	}
	if deps.Notes == nil {
		deps.Notes = nopNotes{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	c := &Controller{
		backend:  deps.Backend,
		dialogs:  deps.Dialogs,
		reporter: deps.Reporter,
		sink:     deps.Sink,
		notes:    deps.Notes,
		logger:   logger,
	}
	c.poller = jobpoll.New(deps.Backend.GraphStatus, deps.Jobs, c.onJobStatus)
	return c, nil
}

// Session returns a copy of the session state.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Project returns the selected project.
func (c *Controller) Project() schema.ProjectName {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Project
}

// OpenFile returns the open file, if any.
func (c *Controller) OpenFile() (schema.FilePath, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.OpenFile, c.session.HasOpenFile()
}

// LoadProjects lists the projects.
func (c *Controller) LoadProjects(ctx context.Context) ([]schema.Project, error) {
	projects, err := c.backend.Projects(ctx)
	if err != nil {
		pslog.Ctx(ctx).Warn("project listing failed", "err", err)
		return nil, err
	}
	return projects, nil
}

// LoadModels lists the chat models.
func (c *Controller) LoadModels(ctx context.Context) ([]schema.Model, error) {
	models, err := c.backend.Models(ctx)
	if err != nil {
		pslog.Ctx(ctx).Warn("model listing failed", "err", err)
		return nil, err
	}
	return models, nil
}

// SelectProject switches project, closes the open file and loads the tree.
func (c *Controller) SelectProject(ctx context.Context, name string) (schema.FileTree, error) {
	project, err := schema.NormalizeProjectName(name)
	if err != nil {
		return nil, err
	}
	if !c.busy.CompareAndSwap(false, true) {
		return nil, schema.ErrBusy
	}
	defer c.busy.Store(false)
	c.mu.Lock()
	c.session = Session{Project: project}
	c.mu.Unlock()
	c.sink.OnViewer(schema.ViewerEvent{})
	logx.WithProject(ctx, project).Info("project selected")
	return c.LoadTree(ctx)
}

// LoadTree reloads the file tree of the selected project.
func (c *Controller) LoadTree(ctx context.Context) (schema.FileTree, error) {
	project := c.Project()
	if project == "" {
		return nil, schema.ErrNoProject
	}
	tree, err := c.backend.Files(ctx, project)
	if err != nil {
		logx.WithProject(ctx, project).Warn("file tree load failed", "err", err)
		return nil, err
	}
	if tree == nil {
		tree = schema.FileTree{}
	}
	c.mu.Lock()
	if c.session.Project == project {
		c.session.Tree = tree
	}
	c.mu.Unlock()
	c.sink.OnTree(schema.TreeEvent{Project: project, Tree: tree})
	return tree, nil
}

// Open loads a file into the viewer and leaves edit mode. Only one load
// runs at a time; a concurrent call returns ErrBusy.
func (c *Controller) Open(ctx context.Context, path schema.FilePath) error {
	if !c.busy.CompareAndSwap(false, true) {
		return schema.ErrBusy
	}
	defer c.busy.Store(false)
	return c.open(ctx, path)
}

func (c *Controller) open(ctx context.Context, path schema.FilePath) error {
	project := c.Project()
	if project == "" {
		return schema.ErrNoProject
	}
	if err := path.Validate(); err != nil {
		return err
	}
	log := logx.WithProjectFile(ctx, project, path)
	content, err := c.backend.ReadFile(ctx, project, path)
	if err != nil {
		log.Warn("file load failed", "err", err)
		return err
	}
	c.mu.Lock()
	if c.session.Project != project {
		c.mu.Unlock()
		return schema.ErrProjectChanged
	}
	c.session.OpenFile = path
	c.session.RawHTML = content.ContentHTML
	c.session.RawText = content.Content
	c.session.View = content.ContentHTML
	c.session.Highlight = ""
	c.session.Editing = false
	c.session.Draft = ""
	event := c.viewerLocked()
	c.mu.Unlock()
	c.sink.OnViewer(event)
	log.Debug("file opened", "bytes", len(content.Content))
	return nil
}

func (c *Controller) viewerLocked() schema.ViewerEvent {
	return schema.ViewerEvent{
		Path:    c.session.OpenFile,
		HTML:    c.session.View,
		Editing: c.session.Editing,
		Draft:   c.session.Draft,
	}
}

func (c *Controller) note(text string) {
	c.notes.Append(schema.ChatMessage{Role: schema.RoleAssistant, Body: text})
}

func (c *Controller) alertError(ctx context.Context, err error) {
	_ = c.dialogs.Alert(ctx, format.Error(apiclient.DetailOf(err)))
}
