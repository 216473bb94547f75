package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/ecrituria/schema"
	"pkt.systems/pslog"
)

func TestWithFileAddsField(t *testing.T) {
	capture := &logCapture{}
	logger := newCaptureLogger(capture)
	log := WithFile(logger, schema.FilePath{Folder: "chapitres", Name: "ch1.md"})
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["file"] != "chapitres/ch1.md" {
		t.Fatalf("expected file field, got %+v", entry)
	}
}

func TestWithFileSkipsZeroPath(t *testing.T) {
	capture := &logCapture{}
	log := WithFile(newCaptureLogger(capture), schema.FilePath{})
	log.Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["file"]; ok {
		t.Fatalf("did not expect file field for zero path")
	}
}

func TestWithProjectFileAddsFields(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newCaptureLogger(capture))
	log := WithProjectFile(ctx, "saga", schema.FilePath{Folder: "lore", Name: "world.md"})
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["project"] != "saga" {
		t.Fatalf("expected project field, got %+v", entry)
	}
	if entry["file"] != "lore/world.md" {
		t.Fatalf("expected file field, got %+v", entry)
	}
}

func TestWithProjectDeduplicatesContextMarker(t *testing.T) {
	capture := &logCapture{}
	base := newCaptureLogger(capture).With("project", "saga")
	ctx := ContextWithProjectLogger(context.Background(), base, "saga")
	WithProject(ctx, "saga").Info("hello")

	line := bytes.TrimSpace(capture.buf.Bytes())
	if n := bytes.Count(line, []byte(`"project"`)); n != 1 {
		t.Fatalf("expected one project field, got %d in %s", n, line)
	}
}

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
