package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"pkt.systems/ecrituria/schema"
)

// Sink observes transcript mutations.
type Sink interface {
	OnMessage(schema.MessageEvent)
}

// DefaultTranscriptMax bounds the transcript when no size is given.
const DefaultTranscriptMax = 500

// Transcript is the ordered chat history.
type Transcript struct {
	mu       sync.Mutex
	messages []schema.ChatMessage
	max      int
	sink     Sink
	now      func() time.Time
}

// NewTranscript returns a transcript holding at most max messages.
func NewTranscript(max int, sink Sink) *Transcript {
	if max <= 0 {
		max = DefaultTranscriptMax
	}
	return &Transcript{max: max, sink: sink, now: time.Now}
}

// Append adds msg at the end, assigning an id and timestamp when unset.
// The oldest messages are dropped beyond the size bound.
func (t *Transcript) Append(msg schema.ChatMessage) schema.ChatMessage {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = t.now()
	}
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	var dropped []schema.ChatMessage
	if over := len(t.messages) - t.max; over > 0 {
		dropped = append(dropped, t.messages[:over]...)
		t.messages = append([]schema.ChatMessage(nil), t.messages[over:]...)
	}
	t.mu.Unlock()
	for _, old := range dropped {
		t.emit(schema.MessageRemoved, old)
	}
	t.emit(schema.MessageAppended, msg)
	return msg
}

// Replace swaps the message with id in place; the replacement keeps id.
func (t *Transcript) Replace(id string, msg schema.ChatMessage) (schema.ChatMessage, error) {
	t.mu.Lock()
	idx := t.indexLocked(id)
	if idx < 0 {
		t.mu.Unlock()
		return schema.ChatMessage{}, schema.ErrUnknownMessage
	}
	msg.ID = id
	if msg.Timestamp.IsZero() {
		msg.Timestamp = t.now()
	}
	t.messages[idx] = msg
	t.mu.Unlock()
	t.emit(schema.MessageReplaced, msg)
	return msg, nil
}

// Remove drops the message with id.
func (t *Transcript) Remove(id string) error {
	t.mu.Lock()
	idx := t.indexLocked(id)
	if idx < 0 {
		t.mu.Unlock()
		return schema.ErrUnknownMessage
	}
	msg := t.messages[idx]
	t.messages = append(t.messages[:idx], t.messages[idx+1:]...)
	t.mu.Unlock()
	t.emit(schema.MessageRemoved, msg)
	return nil
}

// Get returns the message with id.
func (t *Transcript) Get(id string) (schema.ChatMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.indexLocked(id)
	if idx < 0 {
		return schema.ChatMessage{}, false
	}
	return t.messages[idx], true
}

// Last returns the newest finished message with role.
func (t *Transcript) Last(role schema.Role) (schema.ChatMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if msg := t.messages[i]; msg.Role == role && !msg.Pending {
			return msg, true
		}
	}
	return schema.ChatMessage{}, false
}

// LastAnswer returns the newest chat answer. Notices, failures and
// placeholders are skipped.
func (t *Transcript) LastAnswer() (schema.ChatMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		msg := t.messages[i]
		if msg.Role == schema.RoleAssistant && !msg.Pending && !msg.Failed && msg.Answer != "" {
			return msg, true
		}
	}
	return schema.ChatMessage{}, false
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []schema.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]schema.ChatMessage(nil), t.messages...)
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

func (t *Transcript) indexLocked(id string) int {
	for i := range t.messages {
		if t.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *Transcript) emit(op schema.MessageOp, msg schema.ChatMessage) {
	if t.sink != nil {
		t.sink.OnMessage(schema.MessageEvent{Op: op, Message: msg})
	}
}
