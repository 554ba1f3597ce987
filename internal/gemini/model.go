// Package gemini provides the Gemini CLI stream adapter and chat log parser.
package gemini

import "encoding/json"

// MessageType is the "type" of one recorded chat message.
type MessageType string

const (
	MessageTypeUser    MessageType = "user"
	MessageTypeGemini  MessageType = "gemini"
	MessageTypeInfo    MessageType = "info"
	MessageTypeWarning MessageType = "warning"
	MessageTypeError   MessageType = "error"
)

// StreamEvent is the "type" of one `--output-format stream-json` line.
type StreamEvent string

const (
	StreamInit    StreamEvent = "init"
	StreamMessage StreamEvent = "message"
	StreamToolUse StreamEvent = "tool_use"
	StreamResult  StreamEvent = "result"
	StreamError   StreamEvent = "error"
)

type chatDocument struct {
	SessionID   string            `json:"sessionId"`
	ProjectHash string            `json:"projectHash"`
	StartTime   string            `json:"startTime"`
	LastUpdated string            `json:"lastUpdated"`
	Messages    []json.RawMessage `json:"messages"`
}

type chatMessage struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content"`
	Thoughts  []thought       `json:"thoughts"`
	ToolCalls []toolCall      `json:"toolCalls"`
	Model     string          `json:"model"`

	// logs.json shape
	SessionID string          `json:"sessionId"`
	MessageID json.RawMessage `json:"messageId"`
	Message   string          `json:"message"`
}

type thought struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

type toolCall struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Args          json.RawMessage `json:"args"`
	Result        json.RawMessage `json:"result"`
	ResultDisplay json.RawMessage `json:"resultDisplay"`
	Status        string          `json:"status"`
	Timestamp     string          `json:"timestamp"`
}
