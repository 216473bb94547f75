package dialog

import (
	"context"
	"sync"
)

// Resolution records how a modal was closed.
type Resolution int

const (
	// Unresolved is the state of an open modal.
	Unresolved Resolution = iota
	// Accepted grants the mutation.
	Accepted
	// Rejected declines through the cancel action.
	Rejected
	// Escaped declines through the escape key.
	Escaped
	// Dismissed declines by leaving the modal without choosing.
	Dismissed
	// Abandoned declines because the waiting context ended.
	Abandoned
)

// String returns the lowercase resolution name.
func (r Resolution) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Escaped:
		return "escaped"
	case Dismissed:
		return "dismissed"
	case Abandoned:
		return "abandoned"
	default:
		return "unresolved"
	}
}

// ModalView displays and removes a modal.
type ModalView interface {
	ShowModal(Preview)
	RemoveModal()
}

// Modal is a permission dialog that resolves exactly once.
type Modal struct {
	preview Preview
	view    ModalView
	once    sync.Once
	done    chan struct{}

	mu         sync.Mutex
	resolution Resolution
}

// NewModal shows req on view and returns the pending modal.
func NewModal(req PermissionRequest, view ModalView) *Modal {
	m := &Modal{preview: BuildPreview(req), view: view, done: make(chan struct{})}
	if view != nil {
		view.ShowModal(m.preview)
	}
	return m
}

// Preview returns what the modal displays.
func (m *Modal) Preview() Preview {
	return m.preview
}

// Accept resolves the modal to true.
func (m *Modal) Accept() { m.resolve(Accepted) }

// Reject resolves the modal to false.
func (m *Modal) Reject() { m.resolve(Rejected) }

// Escape resolves the modal to false.
func (m *Modal) Escape() { m.resolve(Escaped) }

// ClickOutside resolves the modal to false.
func (m *Modal) ClickOutside() { m.resolve(Dismissed) }

func (m *Modal) resolve(r Resolution) {
	m.once.Do(func() {
		m.mu.Lock()
		m.resolution = r
		m.mu.Unlock()
		if m.view != nil {
			m.view.RemoveModal()
		}
		close(m.done)
	})
}

// Done is closed once the modal resolves.
func (m *Modal) Done() <-chan struct{} {
	return m.done
}

// Resolved reports whether the modal has resolved.
func (m *Modal) Resolved() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// Resolution returns how the modal was closed.
func (m *Modal) Resolution() Resolution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolution
}

// Wait blocks until the modal resolves and reports whether it was
// accepted. A done ctx abandons the modal.
func (m *Modal) Wait(ctx context.Context) bool {
	select {
	case <-m.done:
	case <-ctx.Done():
		m.resolve(Abandoned)
	}
	return m.Resolution() == Accepted
}
