package dialog

import (
	"context"
	"sync"
)

// Dialogs asks the user to confirm or supply values.
type Dialogs interface {
	// Permission shows the permission modal and reports acceptance.
	Permission(ctx context.Context, req PermissionRequest) (bool, error)
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, message string) (bool, error)
	// Prompt asks for a value; ok is false when the user cancels.
	Prompt(ctx context.Context, message, def string) (value string, ok bool, err error)
	// Alert shows a message.
	Alert(ctx context.Context, message string) error
}

type assumeYes struct {
	Dialogs
}

// AssumeYes wraps d so permissions and confirmations are granted and
// prompts take their default without asking.
func AssumeYes(d Dialogs) Dialogs {
	return assumeYes{Dialogs: d}
}

func (assumeYes) Permission(context.Context, PermissionRequest) (bool, error) { return true, nil }

func (assumeYes) Confirm(context.Context, string) (bool, error) { return true, nil }

func (a assumeYes) Prompt(_ context.Context, _ string, def string) (string, bool, error) {
	return def, def != "", nil
}

// Scripted answers dialogs from fixed values and records what was asked.
type Scripted struct {
	// Permit answers Permission.
	Permit bool
	// Confirmed answers Confirm.
	Confirmed bool
	// Answers are returned by successive Prompt calls; once exhausted the
	// default is returned.
	Answers []string
	// CancelPrompts makes Prompt report a cancellation.
	CancelPrompts bool

	mu          sync.Mutex
	permissions []Preview
	confirms    []string
	prompts     []string
	alerts      []string
}

// Permission records the preview and resolves it with Permit.
func (s *Scripted) Permission(ctx context.Context, req PermissionRequest) (bool, error) {
	m := NewModal(req, nil)
	s.mu.Lock()
	s.permissions = append(s.permissions, m.Preview())
	permit := s.Permit
	s.mu.Unlock()
	if permit {
		m.Accept()
	} else {
		m.Reject()
	}
	return m.Wait(ctx), nil
}

// Confirm records message and answers Confirmed.
func (s *Scripted) Confirm(_ context.Context, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirms = append(s.confirms, message)
	return s.Confirmed, nil
}

// Prompt records message and returns the next scripted answer, or def.
func (s *Scripted) Prompt(_ context.Context, message, def string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, message)
	if s.CancelPrompts {
		return "", false, nil
	}
	if len(s.Answers) > 0 {
		answer := s.Answers[0]
		s.Answers = s.Answers[1:]
		return answer, true, nil
	}
	return def, true, nil
}

// Alert records message.
func (s *Scripted) Alert(_ context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, message)
	return nil
}

// Permissions returns the previews shown so far.
func (s *Scripted) Permissions() []Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Preview(nil), s.permissions...)
}

// Confirms returns the confirmation messages asked so far.
func (s *Scripted) Confirms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.confirms...)
}

// Prompts returns the prompt messages asked so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Alerts returns the alerts shown so far.
func (s *Scripted) Alerts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.alerts...)
}
