// Package eventbus fans view events out to the renderers subscribed to
// a client session.
package eventbus

import (
	"context"
	"sync"

	"pkt.systems/ecrituria/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventStatus carries the status line.
	EventStatus EventType = "status"
	// EventProgress carries the progress bar percentage.
	EventProgress EventType = "progress"
	// EventHide hides the status surface.
	EventHide EventType = "hide"
	// EventMessage carries a chat transcript mutation.
	EventMessage EventType = "message"
	// EventViewer carries the viewer content.
	EventViewer EventType = "viewer"
	// EventTree carries a reloaded file tree.
	EventTree EventType = "tree"
	// EventJob carries a polled job status.
	EventJob EventType = "job"
)

// Event represents a UI-facing event.
type Event struct {
	Type    EventType
	Status  schema.StatusEvent
	Percent int
	Message schema.MessageEvent
	Viewer  schema.ViewerEvent
	Tree    schema.TreeEvent
	Job     schema.JobStatus
}

// Bus fans events out to subscribers. Publishing never blocks; a full
// subscriber drops the event.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	b.log.Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
			b.log.Debug("eventbus unsubscribe")
		})
	}
}

// SetStatus publishes a status line.
func (b *Bus) SetStatus(text string, mode schema.StatusMode) {
	b.publish(Event{Type: EventStatus, Status: schema.StatusEvent{Text: text, Mode: mode}})
}

// SetPercent publishes a progress percentage.
func (b *Bus) SetPercent(percent int) {
	b.publish(Event{Type: EventProgress, Percent: percent})
}

// Hide publishes a status hide.
func (b *Bus) Hide() {
	b.publish(Event{Type: EventHide})
}

// OnMessage publishes a transcript mutation.
func (b *Bus) OnMessage(event schema.MessageEvent) {
	b.publish(Event{Type: EventMessage, Message: event})
}

// OnViewer publishes viewer content.
func (b *Bus) OnViewer(event schema.ViewerEvent) {
	b.publish(Event{Type: EventViewer, Viewer: event})
}

// OnTree publishes a file tree.
func (b *Bus) OnTree(event schema.TreeEvent) {
	b.publish(Event{Type: EventTree, Tree: event})
}

// OnJob publishes a polled job status.
func (b *Bus) OnJob(status schema.JobStatus) {
	b.publish(Event{Type: EventJob, Job: status})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) == 0 {
		return
	}
	dropped := 0
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		b.log.Trace("eventbus dropped", "type", event.Type, "count", dropped)
	}
}
