package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// MessageKind tags a Message variant.
type MessageKind string

const (
	KindUser      MessageKind = "user"
	KindAssistant MessageKind = "assistant"
	KindTool      MessageKind = "tool"
	KindSystem    MessageKind = "system"
	KindThinking  MessageKind = "thinking"
	KindPlan      MessageKind = "plan"
	KindTodo      MessageKind = "todo"
)

// SystemLevel is the severity carried by system messages.
type SystemLevel string

const (
	LevelInfo    SystemLevel = "info"
	LevelWarning SystemLevel = "warning"
	LevelError   SystemLevel = "error"
)

// TodoStatus is the progress state of one todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// TodoItem is one entry of a Todo message.
type TodoItem struct {
	Content    string     `json:"content"`
	Status     TodoStatus `json:"status"`
	ActiveForm string     `json:"active_form,omitempty"`
}

// ToolUse describes a tool invocation recorded in a transcript.
type ToolUse struct {
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output *string         `json:"output,omitempty"`
	CallID string          `json:"call_id,omitempty"`
}

// Metadata keeps the origin of a message for lossless round-trips.
type Metadata struct {
	Source  AiTool          `json:"source"`
	RawData json.RawMessage `json:"raw_data,omitempty"`
}

// Message is one normalized conversation turn. Kind selects which of the
// optional fields are meaningful.
type Message struct {
	ID        string      `json:"id"`
	Kind      MessageKind `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Content   string      `json:"content,omitempty"`
	Tool      *ToolUse    `json:"tool,omitempty"`
	Level     SystemLevel `json:"level,omitempty"`
	ToolUseID string      `json:"tool_use_id,omitempty"`
	Todos     []TodoItem  `json:"todos,omitempty"`
	Meta      *Metadata   `json:"metadata,omitempty"`
}

// Identity returns the stable key used to deduplicate m across re-syncs:
// the source-assigned id when present, otherwise a hash of the normalized
// content and timestamp.
func (m Message) Identity() string {
	if m.ID != "" {
		return m.ID
	}
	h := sha256.New()
	h.Write([]byte(m.Kind))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(m.Content)))
	h.Write([]byte{0})
	if m.Tool != nil {
		h.Write([]byte(m.Tool.Name))
		h.Write([]byte(m.Tool.CallID))
		h.Write(m.Tool.Input)
	}
	h.Write([]byte{0})
	h.Write([]byte(m.ToolUseID))
	for _, todo := range m.Todos {
		h.Write([]byte(todo.Content))
		h.Write([]byte(todo.Status))
	}
	h.Write([]byte{0})
	h.Write([]byte(m.Timestamp.UTC().Format(time.RFC3339Nano)))
	return "h:" + hex.EncodeToString(h.Sum(nil))[:32]
}

// IsToolResult reports whether m only carries the output of an earlier tool call.
func (m Message) IsToolResult() bool {
	return m.Kind == KindTool && m.Tool != nil && m.Tool.Name == "" && m.Tool.CallID != "" && m.Tool.Output != nil
}

// Conversation is the unified history of one tool session.
type Conversation struct {
	SessionID   string    `json:"session_id"`
	Tool        AiTool    `json:"ai_tool"`
	ProjectPath string    `json:"project_path,omitempty"`
	SourcePath  string    `json:"source_path,omitempty"`
	Messages    []Message `json:"messages"`

	index map[string]int
	calls map[string]int
}

// Append adds messages in order, skipping identities already present and
// folding tool results into the matching tool call. A duplicate tool call
// that now carries an output fills in the stored one. It returns how many
// messages were added.
func (c *Conversation) Append(msgs ...Message) int {
	if c.index == nil {
		c.reindex()
	}
	added := 0
	for _, msg := range msgs {
		if msg.IsToolResult() {
			if idx, ok := c.calls[msg.Tool.CallID]; ok {
				c.Messages[idx].Tool.Output = msg.Tool.Output
				continue
			}
		}
		key := msg.Identity()
		if idx, dup := c.index[key]; dup {
			c.fillOutput(idx, msg)
			continue
		}
		msg.ID = key
		c.index[key] = len(c.Messages)
		if msg.Kind == KindTool && msg.Tool != nil && msg.Tool.CallID != "" {
			c.calls[msg.Tool.CallID] = len(c.Messages)
		}
		c.Messages = append(c.Messages, msg)
		added++
	}
	return added
}

func (c *Conversation) fillOutput(idx int, msg Message) {
	stored := &c.Messages[idx]
	if stored.Tool != nil && stored.Tool.Output == nil && msg.Tool != nil && msg.Tool.Output != nil {
		stored.Tool.Output = msg.Tool.Output
	}
}

func (c *Conversation) reindex() {
	c.index = make(map[string]int, len(c.Messages))
	c.calls = make(map[string]int)
	for i, msg := range c.Messages {
		c.index[msg.Identity()] = i
		if msg.Kind == KindTool && msg.Tool != nil && msg.Tool.CallID != "" {
			c.calls[msg.Tool.CallID] = i
		}
	}
}

// Summary returns the first user message, trimmed to roughly maxLen bytes.
func (c *Conversation) Summary(maxLen int) string {
	for _, msg := range c.Messages {
		if msg.Kind != KindUser {
			continue
		}
		text := strings.Join(strings.Fields(msg.Content), " ")
		if maxLen > 0 && len(text) > maxLen {
			runes := []rune(text)
			if len(runes) > maxLen {
				text = string(runes[:maxLen]) + "…"
			}
		}
		return text
	}
	return ""
}
