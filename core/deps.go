package core

import (
	"context"

	"pkt.systems/ecrituria/internal/dialog"
	"pkt.systems/ecrituria/internal/jobpoll"
	"pkt.systems/ecrituria/schema"
	"pkt.systems/pslog"
)

// Backend is the part of the API the controller drives.
type Backend interface {
	Projects(ctx context.Context) ([]schema.Project, error)
	Models(ctx context.Context) ([]schema.Model, error)
	Files(ctx context.Context, project schema.ProjectName) (schema.FileTree, error)
	ReadFile(ctx context.Context, project schema.ProjectName, path schema.FilePath) (schema.FileContent, error)
	WriteFile(ctx context.Context, project schema.ProjectName, path schema.FilePath, content string, appendTo bool) error
	DeleteFile(ctx context.Context, project schema.ProjectName, path schema.FilePath) error
	Reindex(ctx context.Context, project schema.ProjectName) (schema.IndexResult, error)
	Stats(ctx context.Context, project schema.ProjectName) (schema.Stats, error)
	PopulateGraph(ctx context.Context, project schema.ProjectName) (schema.PopulateResponse, error)
	GraphStatus(ctx context.Context) (schema.JobStatus, error)
}

// Reporter shows the status line and progress bar.
type Reporter interface {
	Begin(label string)
	Succeed(message string)
	Fail(message string)
	Report(text string, percent int)
	Status(text string, mode schema.StatusMode)
}

// Notes receives the assistant notices the controller posts to the
// transcript.
type Notes interface {
	Append(msg schema.ChatMessage) schema.ChatMessage
}

// ControllerDeps captures the dependencies of a Controller. Only Backend
// is required.
type ControllerDeps struct {
	Backend  Backend
	Dialogs  dialog.Dialogs
	Reporter Reporter
	Sink     EventSink
	Notes    Notes
	Jobs     jobpoll.Options
	Logger   pslog.Logger
}
