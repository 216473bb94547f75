package command

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		input     string
		ok        bool
		name      string
		args      []string
		remainder string
	}{
		{"Qui est Aria ?", false, "", nil, ""},
		{"  /Open chapitres/ch1.md", true, "open", []string{"chapitres/ch1.md"}, "chapitres/ch1.md"},
		{"/", true, "", []string{}, ""},
		{`/new "mes notes" "idée 1.md"`, true, "new", []string{"mes notes", "idée 1.md"}, `"mes notes" "idée 1.md"`},
		{`/mv 'idée 2.md'`, true, "mv", []string{"idée 2.md"}, "idée 2.md"},
		{"/hl l'épée  du roi", true, "hl", []string{"l'épée", "du", "roi"}, "l'épée  du roi"},
		{`/upload lore "carte du monde.md`, true, "upload", []string{"lore", `"carte`, `du`, `monde.md`}, `lore "carte du monde.md`},
	}
	for _, tc := range cases {
		cmd, ok := Parse(tc.input)
		if ok != tc.ok {
			t.Fatalf("Parse(%q) ok = %v", tc.input, ok)
		}
		if !ok {
			continue
		}
		if cmd.Name != tc.name || !reflect.DeepEqual(cmd.Args, tc.args) || cmd.Remainder != tc.remainder {
			t.Fatalf("Parse(%q) = %+v", tc.input, cmd)
		}
	}
}

func TestTextAfter(t *testing.T) {
	cases := []struct {
		input string
		n     int
		want  string
	}{
		{"/write append chapitres/ch1.md Il atterrit.", 2, "Il atterrit."},
		{`/write create "mes notes/idée 1.md" "Une idée, vite."`, 2, "Une idée, vite."},
		{"/write append", 2, ""},
	}
	for _, tc := range cases {
		cmd, _ := Parse(tc.input)
		if got := cmd.textAfter(tc.n); got != tc.want {
			t.Fatalf("textAfter(%q, %d) = %q, want %q", tc.input, tc.n, got, tc.want)
		}
	}
}
