package schema

import "time"

// Role identifies the author of a transcript message.
type Role string

const (
	// RoleUser is a question typed by the user.
	RoleUser Role = "user"
	// RoleAssistant is an answer or notice from the assistant.
	RoleAssistant Role = "assistant"
	// RoleSystem is a client-side notice.
	RoleSystem Role = "system"
)

// ChatMessage is one entry of the chat transcript.
type ChatMessage struct {
	ID        string
	Role      Role
	Body      string
	Answer    string
	Agents    []string
	Sources   []string
	Pending   bool
	Failed    bool
	Timestamp time.Time
}

// MessageOp describes a transcript mutation.
type MessageOp string

const (
	// MessageAppended adds a message at the end.
	MessageAppended MessageOp = "appended"
	// MessageReplaced swaps a message in place.
	MessageReplaced MessageOp = "replaced"
	// MessageRemoved drops a message.
	MessageRemoved MessageOp = "removed"
)

// MessageEvent reports a transcript mutation.
type MessageEvent struct {
	Op      MessageOp
	Message ChatMessage
}

// ViewerEvent reports what the file viewer displays.
type ViewerEvent struct {
	Path    FilePath
	HTML    string
	Editing bool
	Draft   string
}

// StatusEvent reports the status line.
type StatusEvent struct {
	Text string
	Mode StatusMode
}

// TreeEvent reports a reloaded file tree.
type TreeEvent struct {
	Project ProjectName
	Tree    FileTree
}
