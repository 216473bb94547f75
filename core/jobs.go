package core

import (
	"context"

	"pkt.systems/ecrituria/internal/apiclient"
	"pkt.systems/ecrituria/internal/format"
	"pkt.systems/ecrituria/internal/jobpoll"
	"pkt.systems/ecrituria/internal/logx"
	"pkt.systems/ecrituria/schema"
)

// Stats fetches and posts the index and graph statistics.
func (c *Controller) Stats(ctx context.Context) (schema.Stats, error) {
	project := c.Project()
	if project == "" {
		return schema.Stats{}, schema.ErrNoProject
	}
	stats, err := c.backend.Stats(ctx, project)
	if err != nil {
		logx.WithProject(ctx, project).Warn("stats failed", "err", err)
		c.note(format.Error(apiclient.DetailOf(err)))
		return schema.Stats{}, err
	}
	c.note(format.Stats(project, stats))
	return stats, nil
}

// Reindex refreshes the project index and posts the new/modified/deleted
// counts.
func (c *Controller) Reindex(ctx context.Context) (schema.IndexResult, error) {
	project := c.Project()
	if project == "" {
		return schema.IndexResult{}, schema.ErrNoProject
	}
	log := logx.WithProject(ctx, project)
	c.reporter.Begin("Réindexation en cours...")
	c.note("🔄 Lancement de la réindexation...")
	result, err := c.backend.Reindex(ctx, project)
	if err != nil {
		log.Warn("reindex failed", "err", err)
		c.note(format.Error(apiclient.DetailOf(err)))
		c.reporter.Fail("Erreur réindexation")
		return result, err
	}
	log.Info("reindex finished", "new", result.New, "modified", result.Modified, "deleted", result.Deleted)
	c.note(format.IndexResult(result))
	c.reporter.Succeed("Index mis à jour!")
	return result, nil
}

// GraphRun is one tracked graph population.
type GraphRun struct {
	Kickoff schema.PopulateResponse
	job     *jobpoll.Job
	done    chan struct{}
	outcome jobpoll.Outcome
}

// Job returns the underlying poll handle.
func (r *GraphRun) Job() *jobpoll.Job {
	return r.job
}

// Cancel stops polling.
func (r *GraphRun) Cancel() {
	r.job.Cancel()
}

// Wait blocks until the run ended and its outcome was reported.
func (r *GraphRun) Wait(ctx context.Context) (jobpoll.Outcome, error) {
	select {
	case <-r.done:
		return r.outcome, nil
	case <-ctx.Done():
		return jobpoll.Outcome{State: r.job.State()}, ctx.Err()
	}
}

// PopulateGraph starts, or attaches to, the server-side graph population
// and tracks it until a terminal state. A previous run is cancelled.
func (c *Controller) PopulateGraph(ctx context.Context) (*GraphRun, error) {
	project := c.Project()
	if project == "" {
		return nil, schema.ErrNoProject
	}
	log := logx.WithProject(ctx, project)
	c.note("🔄 Lancement de la population du graphe...")
	c.reporter.Begin("Initialisation...")
	kickoff, err := c.backend.PopulateGraph(ctx, project)
	if err != nil {
		log.Warn("graph population start failed", "err", err)
		c.note(format.Error(apiclient.DetailOf(err)))
		c.reporter.Fail("Erreur de lancement")
		return nil, err
	}
	c.note(format.Populate(kickoff))
	log.Info("graph population tracking", "status", kickoff.Status)

	run := &GraphRun{Kickoff: kickoff, done: make(chan struct{})}
	c.mu.Lock()
	run.job = c.poller.Start(logx.ContextWithProjectLogger(ctx, log, project))
	c.graph = run
	c.mu.Unlock()
	go c.finishGraph(ctx, run)
	return run, nil
}

// GraphRun returns the most recent graph run, or nil.
func (c *Controller) GraphRun() *GraphRun {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph
}

func (c *Controller) finishGraph(ctx context.Context, run *GraphRun) {
	defer close(run.done)
	<-run.job.Done()
	outcome := run.job.Outcome()
	run.outcome = outcome
	c.mu.Lock()
	current := c.graph == run
	c.mu.Unlock()
	log := c.logger
	if project := c.Project(); project != "" {
		log = logx.WithProject(ctx, project)
	}
	switch outcome.State {
	case jobpoll.StateCompleted:
		log.Info("graph population completed", "polls", outcome.Polls)
		c.note(format.GraphDone(outcome.Status))
		c.reporter.Succeed("Graphe peuplé!")
	case jobpoll.StateFailed:
		msg := outcome.Status.ErrorMessage()
		log.Warn("graph population failed", "err", msg)
		c.note(format.Error(msg))
		c.reporter.Fail("Erreur: " + msg)
	case jobpoll.StateTimedOut:
		log.Warn("graph population polling timed out", "polls", outcome.Polls)
		c.note(format.GraphTimeout)
		c.reporter.Status("Timeout", schema.StatusWarning)
	case jobpoll.StateUnreachable:
		log.Warn("graph status unreachable", "err", outcome.Err)
		c.note(format.Error("statut du graphe injoignable"))
		c.reporter.Fail("Erreur: statut du graphe injoignable")
	case jobpoll.StateCancelled:
		// A newer run owns the status line.
		if current {
			log.Debug("graph population tracking cancelled")
		}
	}
}

func (c *Controller) onJobStatus(status schema.JobStatus) {
	c.reporter.Report(format.JobStatus(status), status.Percent)
	c.sink.OnJob(status)
}
