// Package transcript holds the conversation history the task loop appends to.
// The structure is deliberately minimal: just enough block typing for protocol
// detection to distinguish native tool calls (which carry a call id) from
// XML-embedded ones, and for hosts to persist and replay a task verbatim.
package transcript

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockType identifies the kind of a content block.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolCall   BlockType = "tool_call"
	BlockToolResult BlockType = "tool_result"
	BlockImage      BlockType = "image"
)

// Block is one content block inside a message. For tool_call blocks the
// CallID is empty exactly when the call was lexed out of free text (XML
// protocol); hosts must persist that absence verbatim, protocol re-derivation
// on resume depends on it.
type Block struct {
	Type BlockType `json:"type"`

	// Text payload for text blocks; result text for tool_result blocks.
	Text string `json:"text,omitempty"`

	// Tool call fields
	CallID    string                 `json:"call_id,omitempty"`
	ToolName  string                 `json:"tool_name,omitempty"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`

	// IsError marks a tool_result block that reports a failure.
	IsError bool `json:"is_error,omitempty"`

	// Image payload (raw bytes plus media type) for image blocks.
	ImageData []byte `json:"image_data,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// Message is one transcript entry.
type Message struct {
	Role      Role      `json:"role"`
	Blocks    []Block   `json:"blocks"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is an append-only message list owned by a single task loop.
// It is not safe for concurrent mutation; the owning loop serializes access.
type Transcript struct {
	messages []Message
}

// New creates an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// FromMessages rebuilds a transcript from persisted messages, e.g. when a
// host resumes a task.
func FromMessages(messages []Message) *Transcript {
	return &Transcript{messages: append([]Message(nil), messages...)}
}

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	t.messages = append(t.messages, msg)
}

// AppendText is a convenience for a single text block.
func (t *Transcript) AppendText(role Role, text string) {
	t.Append(Message{Role: role, Blocks: []Block{{Type: BlockText, Text: text}}})
}

// AppendToolResult appends a tool role message with one tool_result block.
func (t *Transcript) AppendToolResult(callID, text string, isError bool) {
	t.Append(Message{Role: RoleTool, Blocks: []Block{{
		Type:    BlockToolResult,
		CallID:  callID,
		Text:    text,
		IsError: isError,
	}}})
}

// Messages returns the messages in order. The returned slice is a copy so
// callers cannot bypass the append-only discipline.
func (t *Transcript) Messages() []Message {
	return append([]Message(nil), t.messages...)
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Last returns the most recent message, or false when the transcript is empty.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}
