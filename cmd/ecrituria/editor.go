package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"pkt.systems/ecrituria/internal/command"
)

const defaultEditor = "vi"

// editorCommand returns the editor argv from $VISUAL or $EDITOR.
func editorCommand(lookup func(string) string) []string {
	for _, key := range []string{"VISUAL", "EDITOR"} {
		if fields := strings.Fields(lookup(key)); len(fields) > 0 {
			return fields
		}
	}
	return []string{defaultEditor}
}

// editInEditor edits the draft in a temporary file named after the open
// file so the editor picks the right syntax.
func editInEditor(in io.Reader, out, errOut io.Writer) command.EditFunc {
	return func(ctx context.Context, name, text string) (string, error) {
		dir, err := os.MkdirTemp("", "ecrituria-edit-")
		if err != nil {
			return "", err
		}
		defer func() { _ = os.RemoveAll(dir) }()
		if name == "" {
			name = "brouillon.md"
		}
		path := filepath.Join(dir, filepath.Base(name))
		if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
			return "", err
		}
		argv := editorCommand(os.Getenv)
		editor := exec.CommandContext(ctx, argv[0], append(argv[1:], path)...)
		editor.Stdin = in
		editor.Stdout = out
		editor.Stderr = errOut
		if err := editor.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return "", fmt.Errorf("editor %s exited with %d", argv[0], exitErr.ExitCode())
			}
			return "", fmt.Errorf("editor %s: %w", argv[0], err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
