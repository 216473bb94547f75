package diff

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func numbered(n int, change map[int]string) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if text, ok := change[i]; ok {
			b.WriteString(text)
		} else {
			fmt.Fprintf(&b, "ligne %d", i)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func TestIdenticalTextIsEmpty(t *testing.T) {
	text := numbered(5, nil)
	r := TextDiff(text, text)
	if !r.Empty() || len(r.Hunks) != 0 {
		t.Fatalf("expected empty diff, got %+v", r)
	}
}

func TestSingleChangeHunk(t *testing.T) {
	before := numbered(10, nil)
	after := numbered(10, map[int]string{5: "ligne cinq"})
	r := TextDiffWithOptions(before, after, Options{Context: 1})
	if r.Added != 1 || r.Removed != 1 {
		t.Fatalf("added=%d removed=%d", r.Added, r.Removed)
	}
	if len(r.Hunks) != 1 {
		t.Fatalf("expected one hunk, got %d", len(r.Hunks))
	}
	h := r.Hunks[0]
	if len(h.Lines) != 4 {
		t.Fatalf("expected 4 lines (1 context each side), got %+v", h.Lines)
	}
	if h.OldStart != 4 || h.NewStart != 4 {
		t.Fatalf("unexpected hunk start -%d +%d", h.OldStart, h.NewStart)
	}
}

func TestDistantChangesSplitHunks(t *testing.T) {
	before := numbered(20, nil)
	after := numbered(20, map[int]string{2: "deux", 18: "dix-huit"})
	r := TextDiff(before, after)
	if len(r.Hunks) != 2 {
		t.Fatalf("expected 2 hunks, got %d", len(r.Hunks))
	}
	if r.Hunks[1].OldStart != 15 {
		t.Fatalf("second hunk starts at %d, want 15", r.Hunks[1].OldStart)
	}
}

func TestCreateFromEmpty(t *testing.T) {
	r := TextDiff("", "# Titre\n\nTexte\n")
	if r.Added != 3 || r.Removed != 0 {
		t.Fatalf("added=%d removed=%d", r.Added, r.Removed)
	}
	if r.Hunks[0].Lines[0].NewLine != 1 || r.Hunks[0].Lines[0].OldLine != 0 {
		t.Fatalf("unexpected numbering %+v", r.Hunks[0].Lines[0])
	}
}

func TestLimitTruncates(t *testing.T) {
	r := TextDiffWithOptions(numbered(10, nil), numbered(10, nil), Options{MaxLines: 5})
	if !r.Truncated || r.Empty() {
		t.Fatalf("expected truncated diff, got %+v", r)
	}
}

func TestRender(t *testing.T) {
	r := TextDiffWithOptions("a\nb\nc\n", "a\nB\nc\n", Options{Context: 1})
	var buf bytes.Buffer
	if err := Render(&buf, r); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"@@ -1 +1 @@", " a\n", "-b\n", "+B\n", " c\n", "1 ajout(s), 1 suppression(s)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("render output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	_ = Render(&buf, TextDiff("x\n", "x\n"))
	if buf.String() != "(aucune différence)\n" {
		t.Fatalf("unexpected empty render %q", buf.String())
	}
}
