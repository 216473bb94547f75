package main

import (
	"testing"
)

func TestArgv0Alias(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{name: "ecrituria-mock", base: "ecrituria-mock", want: "mock-backend"},
		{name: "ecrituria-backend-mock", base: "ecrituria-backend-mock", want: "mock-backend"},
		{name: "ecrituria-shell", base: "ecrituria-shell", want: "shell"},
		{name: "ecrituria", base: "ecrituria", want: ""},
	}
	for _, tc := range tests {
		if got := argv0Alias(tc.base); got != tc.want {
			t.Fatalf("%s: argv0Alias(%q) = %q, want %q", tc.name, tc.base, got, tc.want)
		}
	}
}

func TestApplyArgv0Alias(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "empty", args: nil, want: nil},
		{name: "no-alias", args: []string{"ecrituria", "shell"}, want: []string{"ecrituria", "shell"}},
		{name: "mock", args: []string{"ecrituria-mock", "-l", ":9000"}, want: []string{"ecrituria-mock", "mock-backend", "-l", ":9000"}},
		{name: "shell", args: []string{"/usr/bin/ecrituria-shell", "-p", "saga"}, want: []string{"/usr/bin/ecrituria-shell", "shell", "-p", "saga"}},
	}
	for _, tc := range tests {
		got := applyArgv0Alias(tc.args)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: applyArgv0Alias length = %d, want %d", tc.name, len(got), len(tc.want))
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: applyArgv0Alias[%d] = %q, want %q", tc.name, i, got[i], tc.want[i])
			}
		}
	}
}

func TestRootHasSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{
		"shell", "projects", "models", "files", "show", "new", "rm", "mv", "cp", "edit",
		"chat", "write", "upload", "reindex", "stats", "graph", "apikey",
		"mock-backend", "config", "doctor", "version",
	} {
		if !names[want] {
			t.Fatalf("expected root command to include %s", want)
		}
	}
}

func TestRootPersistentFlags(t *testing.T) {
	root := newRootCmd()
	for _, flag := range []string{"config", "env-file", "server", "project", "theme", "yes"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Fatalf("expected persistent flag --%s", flag)
		}
	}
}

func TestEditorCommand(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "visual", env: map[string]string{"VISUAL": "code --wait", "EDITOR": "nano"}, want: "code|--wait"},
		{name: "editor", env: map[string]string{"EDITOR": "nano"}, want: "nano"},
		{name: "blank", env: map[string]string{"VISUAL": "  "}, want: "vi"},
		{name: "none", env: nil, want: "vi"},
	}
	for _, tc := range tests {
		got := editorCommand(func(key string) string { return tc.env[key] })
		joined := ""
		for i, part := range got {
			if i > 0 {
				joined += "|"
			}
			joined += part
		}
		if joined != tc.want {
			t.Fatalf("%s: editorCommand = %q, want %q", tc.name, joined, tc.want)
		}
	}
}

func TestLineQuotesArgumentsWithSpaces(t *testing.T) {
	cases := []struct {
		parts []string
		want  string
	}{
		{[]string{"open", "chapitres/ch1.md"}, "/open chapitres/ch1.md"},
		{[]string{"new", "mes notes", "idée 1.md"}, `/new "mes notes" "idée 1.md"`},
		{[]string{"hl", `le "dragon" rouge`}, `/hl 'le "dragon" rouge'`},
	}
	for _, tc := range cases {
		if got := line(tc.parts...); got != tc.want {
			t.Fatalf("line(%q) = %q, want %q", tc.parts, got, tc.want)
		}
	}
}
