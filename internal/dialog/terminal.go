package dialog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/term"
)

// Terminal drives dialogs on a terminal. When in is a TTY the permission
// modal reads single keys in raw mode; otherwise every answer is a line.
type Terminal struct {
	in  io.Reader
	out io.Writer
	fd  int
	tty bool

	startOnce sync.Once
	chunks    chan []byte

	mu      sync.Mutex
	pending []byte
}

// NewTerminal returns a Terminal reading in and writing out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{in: in, out: out, fd: -1}
	if f, ok := in.(interface{ Fd() uintptr }); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			t.fd = fd
			t.tty = true
		}
	}
	return t
}

// IsTTY reports whether input is an interactive terminal.
func (t *Terminal) IsTTY() bool {
	return t.tty
}

// Width returns the terminal width, or def when unknown.
func (t *Terminal) Width(def int) int {
	if !t.tty {
		return def
	}
	w, _, err := term.GetSize(t.fd)
	if err != nil || w <= 0 {
		return def
	}
	return w
}

// start launches the single reader goroutine that owns t.in.
func (t *Terminal) start() {
	t.startOnce.Do(func() {
		t.chunks = make(chan []byte, 16)
		go func() {
			defer close(t.chunks)
			buf := make([]byte, 256)
			for {
				n, err := t.in.Read(buf)
				if n > 0 {
					chunk := make([]byte, n)
					copy(chunk, buf[:n])
					t.chunks <- chunk
				}
				if err != nil {
					return
				}
			}
		}()
	})
}

func (t *Terminal) next(ctx context.Context) ([]byte, error) {
	if len(t.pending) > 0 {
		chunk := t.pending
		t.pending = nil
		return chunk, nil
	}
	t.start()
	select {
	case chunk, ok := <-t.chunks:
		if !ok {
			return nil, io.EOF
		}
		return chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Terminal) readLine(ctx context.Context) (string, error) {
	var line []byte
	for {
		chunk, err := t.next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return strings.TrimRight(string(line), "\r"), nil
			}
			return "", err
		}
		if i := bytes.IndexByte(chunk, '\n'); i >= 0 {
			line = append(line, chunk[:i]...)
			if i+1 < len(chunk) {
				t.pending = append([]byte(nil), chunk[i+1:]...)
			}
			return strings.TrimRight(string(line), "\r"), nil
		}
		line = append(line, chunk...)
	}
}

// ReadLine reads one line of input. It returns io.EOF when input ends.
func (t *Terminal) ReadLine(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readLine(ctx)
}

// Permission shows the permission modal and waits for a key or a line.
func (t *Terminal) Permission(ctx context.Context, req PermissionRequest) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := NewModal(req, terminalView{t: t})
	if t.tty {
		if state, err := term.MakeRaw(t.fd); err == nil {
			t.readModalKeys(ctx, m)
			_ = term.Restore(t.fd, state)
			return t.result(ctx, m)
		}
	}
	fmt.Fprint(t.out, "Accepter ? [O/n] ")
	line, err := t.readLine(ctx)
	switch {
	case errors.Is(err, io.EOF):
		m.ClickOutside()
	case err != nil:
		// ctx is done; Wait abandons the modal.
	default:
		switch answer := strings.ToLower(strings.TrimSpace(line)); answer {
		case "", "o", "oui", "y", "yes":
			m.Accept()
		case "esc", "échap":
			m.Escape()
		default:
			m.Reject()
		}
	}
	return t.result(ctx, m)
}

func (t *Terminal) result(ctx context.Context, m *Modal) (bool, error) {
	accepted := m.Wait(ctx)
	if m.Resolution() == Abandoned {
		return false, ctx.Err()
	}
	return accepted, nil
}

func (t *Terminal) readModalKeys(ctx context.Context, m *Modal) {
	for !m.Resolved() {
		chunk, err := t.next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				m.ClickOutside()
			}
			return
		}
		modalKey(m, chunk)
	}
}

func modalKey(m *Modal, chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	if chunk[0] == 0x1b {
		// A lone ESC is the key; longer sequences are cursor keys.
		if len(chunk) == 1 {
			m.Escape()
		}
		return
	}
	for _, b := range chunk {
		switch b {
		case 'y', 'Y', 'o', 'O', '\r', '\n':
			m.Accept()
			return
		case 'n', 'N':
			m.Reject()
			return
		case 'q', 'Q', 0x03:
			m.ClickOutside()
			return
		}
	}
}

// Confirm asks a yes/no question; the default is no.
func (t *Terminal) Confirm(ctx context.Context, message string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s [o/N] ", sanitize(message))
	line, err := t.readLine(ctx)
	if errors.Is(err, io.EOF) {
		t.println("")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "o", "oui", "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Prompt asks for a value; an empty answer takes def.
func (t *Terminal) Prompt(ctx context.Context, message, def string) (string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if def != "" {
		fmt.Fprintf(t.out, "%s [%s] : ", sanitize(message), sanitize(def))
	} else {
		fmt.Fprintf(t.out, "%s : ", sanitize(message))
	}
	line, err := t.readLine(ctx)
	if errors.Is(err, io.EOF) {
		t.println("")
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	value := strings.TrimSpace(line)
	if value == "" {
		value = def
	}
	return value, true, nil
}

// Alert prints message.
func (t *Terminal) Alert(_ context.Context, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.println("! " + sanitize(message))
	return nil
}

func (t *Terminal) println(s string) {
	fmt.Fprint(t.out, s+"\r\n")
}

type terminalView struct {
	t *Terminal
}

func (v terminalView) ShowModal(p Preview) {
	t := v.t
	t.println("┌ 🤖 L'IA demande l'autorisation")
	t.println("│ Action : " + sanitize(p.Action))
	t.println("│ Mode : " + p.ModeLabel)
	t.println("│ Fichier : " + sanitize(p.Target))
	size := fmt.Sprintf("│ Taille : %d octets", p.Size)
	if p.Tokens >= 0 {
		size += fmt.Sprintf(" (~%d tokens)", p.Tokens)
	}
	t.println(size)
	t.println("│")
	for _, line := range strings.Split(p.Excerpt, "\n") {
		t.println("│ " + sanitize(line))
	}
	if notice := p.Notice(); notice != "" {
		t.println("│ " + notice)
	}
	t.println("└ [o] accepter  [n] refuser  [Échap] annuler")
}

func (v terminalView) RemoveModal() {
	v.t.println("")
}

// sanitize drops control characters so content cannot drive the terminal.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, s)
}
