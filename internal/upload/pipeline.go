package upload

import (
	"context"
	"fmt"
	"io"
	"strings"

	"pkt.systems/ecrituria/internal/apiclient"
	"pkt.systems/ecrituria/internal/logx"
	"pkt.systems/ecrituria/schema"
)

// Backend is the part of the API the pipeline uses.
type Backend interface {
	Upload(ctx context.Context, project schema.ProjectName, folder, name string, r io.Reader) error
	Reindex(ctx context.Context, project schema.ProjectName) (schema.IndexResult, error)
}

// Reporter shows determinate progress.
type Reporter interface {
	Report(text string, percent int)
	Succeed(message string)
	Fail(message string)
}

// Outcome is the result of one file.
type Outcome struct {
	File string
	Path string
	Err  error
}

// OK reports whether the file was stored.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Line renders the outcome the way the upload results list shows it.
func (o Outcome) Line() string {
	if o.Err != nil {
		return fmt.Sprintf("❌ %s: %s", o.File, apiclient.DetailOf(o.Err))
	}
	return fmt.Sprintf("✅ %s → %s", o.File, o.Path)
}

// Summary is the result of a batch.
type Summary struct {
	Outcomes   []Outcome
	Succeeded  int
	Failed     int
	Reindexed  bool
	Index      schema.IndexResult
	ReindexErr error
}

// Message is the final status line of a batch.
func (s Summary) Message() string {
	if s.Failed == 0 {
		return fmt.Sprintf("✅ %d fichier(s) ajouté(s) avec succès !", s.Succeeded)
	}
	return fmt.Sprintf("⚠️ %d réussi(s), %d échec(s)", s.Succeeded, s.Failed)
}

// ProgressFunc observes each finished attempt.
type ProgressFunc func(done, total int, outcome Outcome)

// Options configure a Pipeline.
type Options struct {
	Backend  Backend
	Reporter Reporter
	// Reindex requests one reindex after a batch with at least one success.
	Reindex    bool
	OnProgress ProgressFunc
}

// Pipeline uploads batches strictly one file after another.
type Pipeline struct {
	backend    Backend
	reporter   Reporter
	reindex    bool
	onProgress ProgressFunc
}

// New returns a Pipeline.
func New(opts Options) *Pipeline {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Pipeline{
		backend:    opts.Backend,
		reporter:   reporter,
		reindex:    opts.Reindex,
		onProgress: opts.OnProgress,
	}
}

// Run uploads files into project/folder. A failed file does not stop the
// batch. Cancelling ctx stops before the next file and returns the partial
// summary with ctx.Err().
func (p *Pipeline) Run(ctx context.Context, project schema.ProjectName, folder string, files []File) (Summary, error) {
	var summary Summary
	if project == "" {
		return summary, schema.ErrNoProject
	}
	if len(files) == 0 {
		return summary, schema.ErrNoFiles
	}
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	log := logx.WithProject(ctx, project)
	total := len(files)
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		p.reporter.Report(fmt.Sprintf("Upload %d/%d : %s", i+1, total, f.Name), i*100/total)
		outcome := Outcome{File: f.Name, Path: folder + "/", Err: p.send(ctx, project, folder, f)}
		if outcome.OK() {
			summary.Succeeded++
			log.Debug("file uploaded", "file", f.Name, "folder", folder)
		} else {
			summary.Failed++
			log.Warn("file upload failed", "file", f.Name, "folder", folder, "err", outcome.Err)
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
		if p.onProgress != nil {
			p.onProgress(i+1, total, outcome)
		}
	}
	p.reporter.Report(fmt.Sprintf("Upload %d/%d terminé", total, total), 100)

	if p.reindex && summary.Succeeded > 0 {
		p.reporter.Report("🔄 Réindexation en cours...", 100)
		summary.Reindexed = true
		summary.Index, summary.ReindexErr = p.backend.Reindex(ctx, project)
		if summary.ReindexErr != nil {
			log.Warn("reindex after upload failed", "err", summary.ReindexErr)
		}
	}

	switch {
	case summary.Succeeded == 0:
		p.reporter.Fail(summary.Message())
	case summary.ReindexErr != nil:
		p.reporter.Fail(summary.Message() + " | Erreur réindexation: " + apiclient.DetailOf(summary.ReindexErr))
	default:
		p.reporter.Succeed(summary.Message())
	}
	log.Info("upload batch finished", "succeeded", summary.Succeeded, "failed", summary.Failed, "reindexed", summary.Reindexed)
	return summary, nil
}

func (p *Pipeline) send(ctx context.Context, project schema.ProjectName, folder string, f File) error {
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()
	return p.backend.Upload(ctx, project, folder, f.Name, r)
}

type nopReporter struct{}

func (nopReporter) Report(string, int) {}
func (nopReporter) Succeed(string)     {}
func (nopReporter) Fail(string)        {}
