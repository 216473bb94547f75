package core

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"

	"pkt.systems/ecrituria/internal/backendmock"
	"pkt.systems/ecrituria/internal/format"
	"pkt.systems/ecrituria/internal/jobpoll"
	"pkt.systems/ecrituria/schema"
)

func waitRun(t *testing.T, run *GraphRun) jobpoll.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	outcome, err := run.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	return outcome
}

func TestPopulateGraphCompletes(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.SelectProject(context.Background(), "saga")
	h.mock.SetGraphScript(backendmock.DefaultGraphScript(2)...)

	run, err := h.ctrl.PopulateGraph(context.Background())
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	if run.Kickoff.Status != schema.PopulateStarted {
		t.Fatalf("kickoff %+v", run.Kickoff)
	}
	outcome := waitRun(t, run)
	if outcome.State != jobpoll.StateCompleted || outcome.Polls != 3 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if n := h.mock.CallCount(http.MethodGet, "/api/task/graph-status"); n != 3 {
		t.Fatalf("expected 3 polls, got %d", n)
	}
	notes := h.notes.all()
	want := []string{
		"🔄 Lancement de la population du graphe...",
		"✅ Population lancée! Suivi en temps réel...",
		"✅ Graphe peuplé avec succès!\n• 14 nœuds\n• 22 relations\n⏱️ Temps: 5s",
	}
	if !slices.Equal(notes, want) {
		t.Fatalf("notes\n got %q\nwant %q", notes, want)
	}
	events := h.reporter.all()
	if events[0] != "begin:Initialisation..." || events[len(events)-1] != "ok:Graphe peuplé!" {
		t.Fatalf("unexpected reporter events %v", events)
	}
	if !slices.Contains(events, "report:Extraction des entités (1/2 - 50%) 📄 chapitres/ch1.md [2s]") {
		t.Fatalf("missing determinate update in %v", events)
	}
	if len(h.sink.jobs) != 3 {
		t.Fatalf("expected 3 job events, got %d", len(h.sink.jobs))
	}
}

func TestPopulateGraphAttachesToRunningJob(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.SelectProject(context.Background(), "saga")
	h.mock.SetGraphScript(backendmock.DefaultGraphScript(1)...)
	h.mock.SetGraphRunning(true)
	run, err := h.ctrl.PopulateGraph(context.Background())
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	if run.Kickoff.Status != schema.PopulateAlreadyRunning {
		t.Fatalf("expected already_running, got %+v", run.Kickoff)
	}
	if outcome := waitRun(t, run); outcome.State != jobpoll.StateCompleted {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if notes := h.notes.all(); notes[1] != "⏳ Population déjà en cours. Suivi de la progression..." {
		t.Fatalf("unexpected notes %q", notes)
	}
}

func TestPopulateGraphServerError(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.SelectProject(context.Background(), "saga")
	msg := "Neo4j indisponible"
	h.mock.SetGraphScript(
		schema.JobStatus{Running: true, Step: "Connexion"},
		schema.JobStatus{Error: &msg},
	)
	run, err := h.ctrl.PopulateGraph(context.Background())
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	outcome := waitRun(t, run)
	if outcome.State != jobpoll.StateFailed || !jobpoll.IsJobError(outcome.Err) {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	notes := h.notes.all()
	if notes[len(notes)-1] != "❌ Erreur: Neo4j indisponible" {
		t.Fatalf("unexpected notes %q", notes)
	}
	events := h.reporter.all()
	if events[len(events)-1] != "fail:Erreur: Neo4j indisponible" {
		t.Fatalf("unexpected reporter events %v", events)
	}
}

func TestPopulateGraphTimeoutIsDistinct(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.SelectProject(context.Background(), "saga")
	h.mock.SetGraphScript(schema.JobStatus{Running: true, Step: "Extraction"})
	run, err := h.ctrl.PopulateGraph(context.Background())
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	outcome := waitRun(t, run)
	if outcome.State != jobpoll.StateTimedOut || !errors.Is(outcome.Err, schema.ErrJobTimeout) {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if n := h.mock.CallCount(http.MethodGet, "/api/task/graph-status"); n != 50 {
		t.Fatalf("expected exactly 50 polls, got %d", n)
	}
	notes := h.notes.all()
	if notes[len(notes)-1] != format.GraphTimeout {
		t.Fatalf("unexpected notes %q", notes)
	}
	events := h.reporter.all()
	if events[len(events)-1] != "warning:Timeout" {
		t.Fatalf("timeout should not be reported as an error, got %v", events[len(events)-1])
	}
}

func TestPopulateGraphSwallowsTransientErrors(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.SelectProject(context.Background(), "saga")
	h.mock.SetGraphScript(backendmock.DefaultGraphScript(1)...)
	h.mock.FailGraphStatus(3)
	run, err := h.ctrl.PopulateGraph(context.Background())
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	outcome := waitRun(t, run)
	if outcome.State != jobpoll.StateCompleted || outcome.Polls != 2 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if run.Job().Requests() != 5 {
		t.Fatalf("expected 5 requests, got %d", run.Job().Requests())
	}
}

func TestPopulateGraphKickoffFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.SelectProject(context.Background(), "saga")
	h.ctrl.SelectProject(context.Background(), "inconnu")
	if _, err := h.ctrl.PopulateGraph(context.Background()); err == nil {
		t.Fatalf("expected kickoff failure for unknown project")
	}
	events := h.reporter.all()
	if events[len(events)-1] != "fail:Erreur de lancement" {
		t.Fatalf("unexpected reporter events %v", events)
	}
	if h.ctrl.GraphRun() != nil {
		t.Fatalf("no run should be tracked")
	}
}

func TestReindexAndStatsPostNotes(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.SelectProject(context.Background(), "saga")
	result, err := h.ctrl.Reindex(context.Background())
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if result.New != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	notes := h.notes.all()
	if notes[0] != "🔄 Lancement de la réindexation..." || notes[1] != "✅ Réindexation terminée!\n• Nouveaux: 2\n• Modifiés: 0\n• Supprimés: 0" {
		t.Fatalf("unexpected notes %q", notes)
	}
	events := h.reporter.all()
	if events[0] != "begin:Réindexation en cours..." || events[len(events)-1] != "ok:Index mis à jour!" {
		t.Fatalf("unexpected reporter events %v", events)
	}

	if _, err := h.ctrl.Stats(context.Background()); err != nil {
		t.Fatalf("stats: %v", err)
	}
	notes = h.notes.all()
	if !strings.HasPrefix(notes[len(notes)-1], "📊 Statistiques - saga") {
		t.Fatalf("unexpected stats note %q", notes[len(notes)-1])
	}
}
