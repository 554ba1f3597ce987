// Package claude provides the Claude Code stream adapter and transcript parser.
package claude

import "encoding/json"

// Claude Code-specific types and constants

// EntryType represents the top-level "type" field values in Claude Code JSONL logs.
type EntryType string

const (
	EntryTypeUser      EntryType = "user"
	EntryTypeAssistant EntryType = "assistant"
	EntryTypeSummary   EntryType = "summary"
	EntryTypeSystem    EntryType = "system"
	EntryTypeResult    EntryType = "result"
)

// ContentBlockType represents the "type" field in content blocks.
type ContentBlockType string

const (
	ContentBlockTypeText       ContentBlockType = "text"
	ContentBlockTypeThinking   ContentBlockType = "thinking"
	ContentBlockTypeToolUse    ContentBlockType = "tool_use"
	ContentBlockTypeToolResult ContentBlockType = "tool_result"
)

// Tool names that map onto dedicated message kinds.
const (
	toolTodoWrite    = "TodoWrite"
	toolExitPlanMode = "ExitPlanMode"
)

type rawEntry struct {
	Type       string          `json:"type"`
	Subtype    string          `json:"subtype"`
	UUID       string          `json:"uuid"`
	ParentUUID string          `json:"parentUuid"`
	SessionID  string          `json:"sessionId"`
	CWD        string          `json:"cwd"`
	Version    string          `json:"version"`
	Timestamp  string          `json:"timestamp"`
	IsMeta     bool            `json:"isMeta"`
	Message    json.RawMessage `json:"message"`
	Content    json.RawMessage `json:"content"`
	Level      string          `json:"level"`
	Summary    string          `json:"summary"`
	LeafUUID   string          `json:"leafUuid"`
}

type messagePayload struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

type todoInput struct {
	Todos []struct {
		Content    string `json:"content"`
		Status     string `json:"status"`
		ActiveForm string `json:"activeForm"`
	} `json:"todos"`
}

type planInput struct {
	Plan string `json:"plan"`
}
