// Package writer runs the two-phase AI write: a preview that never
// mutates files, then a confirmed commit of the identical request.
package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pkt.systems/ecrituria/internal/apiclient"
	"pkt.systems/ecrituria/internal/dialog"
	"pkt.systems/ecrituria/internal/diff"
	"pkt.systems/ecrituria/internal/logx"
	"pkt.systems/ecrituria/schema"
)

// Backend is the AI write endpoint.
type Backend interface {
	AIWrite(ctx context.Context, project schema.ProjectName, req schema.WriteRequest) (schema.WriteResponse, error)
}

// Reporter shows progress of the preview and commit requests.
type Reporter interface {
	Begin(label string)
	Succeed(message string)
	Fail(message string)
}

// Preview is a generated candidate, not yet written.
type Preview struct {
	Project        schema.ProjectName
	Request        schema.WriteRequest
	Content        string
	Original       string
	HasOriginal    bool
	GenerationTime float64
	Diff           diff.Result
}

// CommitResult summarises a committed write.
type CommitResult struct {
	Project       schema.ProjectName
	Action        schema.WriteAction
	Mode          string
	FilePath      string
	TotalTime     float64
	BackupCreated bool
}

// Summary is the user-facing success line.
func (r CommitResult) Summary() string {
	s := fmt.Sprintf("%s appliquée à %s en %.1fs", r.Action.Label(), r.FilePath, r.TotalTime)
	if r.BackupCreated {
		s += " (sauvegarde créée)"
	}
	return s
}

// Options wire a Workflow.
type Options struct {
	Backend  Backend
	Dialogs  dialog.Dialogs
	Reporter Reporter
	// OnCommitted runs after a successful commit.
	OnCommitted func(ctx context.Context, result CommitResult)
}

type pending struct {
	project   schema.ProjectName
	req       schema.WriteRequest
	previewed bool
	preview   Preview
}

// Workflow holds at most one pending write request.
type Workflow struct {
	backend     Backend
	dialogs     dialog.Dialogs
	reporter    Reporter
	onCommitted func(context.Context, CommitResult)

	mu         sync.Mutex
	gen        uint64
	pending    *pending
	committing bool
}

// New returns a Workflow.
func New(opts Options) *Workflow {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Workflow{
		backend:     opts.Backend,
		dialogs:     opts.Dialogs,
		reporter:    reporter,
		onCommitted: opts.OnCommitted,
	}
}

// Preview validates d, stores it as the pending request and asks the
// backend for generated content without mutating any file. A preview
// answered after a newer Preview or Cancel returns ErrStalePreview.
func (w *Workflow) Preview(ctx context.Context, project schema.ProjectName, d Draft) (Preview, error) {
	if project == "" {
		return Preview{}, schema.ErrNoProject
	}
	req, err := d.Request()
	if err != nil {
		return Preview{}, err
	}
	w.mu.Lock()
	if w.committing {
		w.mu.Unlock()
		return Preview{}, schema.ErrBusy
	}
	w.gen++
	gen := w.gen
	w.pending = &pending{project: project, req: req}
	w.mu.Unlock()

	log := logx.WithProject(ctx, project)
	w.reporter.Begin(fmt.Sprintf("Génération de l'aperçu (%s)...", req.Action.Label()))
	resp, err := w.backend.AIWrite(ctx, project, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		log.Debug("write preview superseded", "file", req.FilePath)
		return Preview{}, schema.ErrStalePreview
	}
	if err != nil {
		w.reporter.Fail("Erreur : " + apiclient.DetailOf(err))
		return Preview{}, err
	}
	p := Preview{
		Project:        project,
		Request:        req,
		Content:        resp.Content,
		GenerationTime: resp.GenerationTime,
	}
	if resp.OriginalContent != nil {
		p.Original = *resp.OriginalContent
		p.HasOriginal = true
	}
	p.Diff = diff.TextDiff(p.Original, p.Content)
	w.pending.previewed = true
	w.pending.preview = p
	w.reporter.Succeed(fmt.Sprintf("Aperçu généré en %.1fs", resp.GenerationTime))
	log.Info("write preview ready", "file", req.FilePath, "action", req.Action, "added", p.Diff.Added, "removed", p.Diff.Removed)
	return p, nil
}

// Commit asks for confirmation and resubmits the previewed request with
// commit semantics. A declined or failed commit keeps the pending request.
func (w *Workflow) Commit(ctx context.Context) (CommitResult, error) {
	w.mu.Lock()
	switch {
	case w.pending == nil:
		w.mu.Unlock()
		return CommitResult{}, schema.ErrNoPendingWrite
	case !w.pending.previewed:
		w.mu.Unlock()
		return CommitResult{}, schema.ErrNotPreviewed
	case w.committing:
		w.mu.Unlock()
		return CommitResult{}, schema.ErrBusy
	}
	w.committing = true
	snapshot := *w.pending
	gen := w.gen
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.committing = false
		w.mu.Unlock()
	}()

	req := snapshot.req
	question := fmt.Sprintf("Confirmer l'action : %s du fichier %s ?", req.Action.Label(), req.FilePath)
	ok, err := w.dialogs.Confirm(ctx, question)
	if err != nil {
		return CommitResult{}, err
	}
	if !ok {
		return CommitResult{}, schema.ErrDeclined
	}

	log := logx.WithProject(ctx, snapshot.project)
	req.PreviewOnly = false
	w.reporter.Begin(fmt.Sprintf("%s de %s...", req.Action.Label(), req.FilePath))
	resp, err := w.backend.AIWrite(ctx, snapshot.project, req)
	if err != nil {
		w.reporter.Fail("Erreur : " + apiclient.DetailOf(err))
		log.Warn("write commit failed", "file", req.FilePath, "err", err)
		return CommitResult{}, err
	}
	result := CommitResult{
		Project:       snapshot.project,
		Action:        req.Action,
		Mode:          resp.Mode,
		FilePath:      resp.FilePath,
		TotalTime:     resp.TotalTime,
		BackupCreated: resp.BackupCreated,
	}
	if result.FilePath == "" {
		result.FilePath = req.FilePath
	}
	w.mu.Lock()
	if w.gen == gen {
		w.pending = nil
	}
	w.mu.Unlock()
	w.reporter.Succeed(result.Summary())
	log.Info("write committed", "file", result.FilePath, "mode", result.Mode, "backup", result.BackupCreated)
	if w.onCommitted != nil {
		w.onCommitted(ctx, result)
	}
	return result, nil
}

// Cancel discards the pending request and abandons any preview in flight.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.pending = nil
}

// Pending returns a copy of the pending request.
func (w *Workflow) Pending() (schema.WriteRequest, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return schema.WriteRequest{}, false
	}
	req := w.pending.req
	req.ContextFiles = append([]string{}, req.ContextFiles...)
	return req, true
}

// LastPreview returns the preview of the pending request, if any.
func (w *Workflow) LastPreview() (Preview, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil || !w.pending.previewed {
		return Preview{}, false
	}
	return w.pending.preview, true
}

// IsDeclined reports whether err is a declined confirmation.
func IsDeclined(err error) bool {
	return errors.Is(err, schema.ErrDeclined)
}

type nopReporter struct{}

func (nopReporter) Begin(string)   {}
func (nopReporter) Succeed(string) {}
func (nopReporter) Fail(string)    {}
