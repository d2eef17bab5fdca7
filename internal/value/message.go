package value

import "fmt"

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// FinishReason classifies why a model stopped generating a message.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCall       FinishReason = "tool_call"
	FinishContentFilter FinishReason = "content_filter"
)

// Message is a complete, finished chat message.
//
// Only Assistant messages may carry ToolCalls. A Tool message's ID
// correlates to the Function part's id on the assistant message that
// requested it.
type Message struct {
	Role      Role
	ID        string
	Contents  []Part
	Thinking  string
	ToolCalls []Part
}

// Text joins every Text-kind content part with no separator, the
// conventional "visible text" of a message.
func (m Message) Text() string {
	var out string
	for _, p := range m.Contents {
		if t, ok := p.Text(); ok && p.Kind() == PartKindText {
			out += t
		}
	}
	return out
}

// MessageOutput pairs a finished message with its terminal finish reason.
// FinishReason is always set: a MessageOutput only exists for a terminal
// stream segment.
type MessageOutput struct {
	Message      Message
	FinishReason FinishReason
}

// ToolDesc describes a callable tool to a model backend. Parameters and
// Returns are opaque JSON-schema values; the model backend is responsible
// for rendering them into its wire format.
type ToolDesc struct {
	Name        string
	Description string
	Parameters  Value
	Returns     Value
}

// Document is a single retrieved knowledge snippet.
type Document struct {
	Text     string
	Metadata Value
}

// RoleConflictError is returned by Accumulate when two non-empty deltas
// disagree on Role.
type RoleConflictError struct {
	A, B Role
}

func (e *RoleConflictError) Error() string {
	return fmt.Sprintf("value: conflicting message role %q vs %q", e.A, e.B)
}

// IDConflictError is returned by Accumulate when two non-empty deltas
// disagree on ID.
type IDConflictError struct {
	A, B string
}

func (e *IDConflictError) Error() string {
	return fmt.Sprintf("value: conflicting message id %q vs %q", e.A, e.B)
}
