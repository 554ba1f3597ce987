// Package codex provides the Codex CLI stream adapter and rollout parser.
package codex

import "encoding/json"

// Codex-specific types and constants

// EntryType represents the top-level "type" field values observed in Codex JSONL logs.
type EntryType string

const (
	EntryTypeSessionMeta  EntryType = "session_meta"
	EntryTypeResponseItem EntryType = "response_item"
	EntryTypeEventMsg     EntryType = "event_msg"
	EntryTypeTurnContext  EntryType = "turn_context"
)

// ResponseItemType captures the "payload.type" values in response_item entries.
type ResponseItemType string

const (
	ResponseItemTypeMessage              ResponseItemType = "message"
	ResponseItemTypeReasoning            ResponseItemType = "reasoning"
	ResponseItemTypeFunctionCall         ResponseItemType = "function_call"
	ResponseItemTypeFunctionCallOutput   ResponseItemType = "function_call_output"
	ResponseItemTypeCustomToolCall       ResponseItemType = "custom_tool_call"
	ResponseItemTypeCustomToolCallOutput ResponseItemType = "custom_tool_call_output"
)

// EventMsgType captures the "payload.type" values in event_msg entries.
type EventMsgType string

const (
	EventMsgTypeTokenCount     EventMsgType = "token_count"
	EventMsgTypeAgentReasoning EventMsgType = "agent_reasoning"
	EventMsgTypeUserMessage    EventMsgType = "user_message"
	EventMsgTypeAgentMessage   EventMsgType = "agent_message"
	EventMsgTypeTurnAborted    EventMsgType = "turn_aborted"
	EventMsgTypeError          EventMsgType = "error"
)

// PayloadRole captures the "payload.role" values observed in Codex response items.
type PayloadRole string

const (
	PayloadRoleUser      PayloadRole = "user"
	PayloadRoleAssistant PayloadRole = "assistant"
	PayloadRoleSystem    PayloadRole = "system"
	PayloadRoleDeveloper PayloadRole = "developer"
)

// StreamEvent captures the "type" values printed by `codex exec --json`.
type StreamEvent string

const (
	StreamItemCompleted StreamEvent = "item.completed"
	StreamTurnCompleted StreamEvent = "turn.completed"
	StreamTurnFailed    StreamEvent = "turn.failed"
	StreamError         StreamEvent = "error"
)

// Legacy `msg.type` values printed by older Codex releases.
const (
	legacyAgentMessage       = "agent_message"
	legacyTaskComplete       = "task_complete"
	legacyError              = "error"
	legacyExecApproval       = "exec_approval_request"
	legacyApplyPatchApproval = "apply_patch_approval_request"
	itemTypeAgentMessage     = "agent_message"
	permissionToolExec       = "exec"
	permissionToolApplyPatch = "apply_patch"
	functionUpdatePlan       = "update_plan"
	environmentContextPrefix = "<environment_context>"
	userInstructionsPrefix   = "<user_instructions>"
)

type rawRecord struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type sessionMetaPayload struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	CWD        string `json:"cwd"`
	Originator string `json:"originator"`
	CLIVersion string `json:"cli_version"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseItemPayload struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Name      string          `json:"name"`
	Arguments string          `json:"arguments"`
	Input     string          `json:"input"`
	CallID    string          `json:"call_id"`
	Output    json.RawMessage `json:"output"`
	Content   json.RawMessage `json:"content"`
	Summary   json.RawMessage `json:"summary"`
}

type eventMsgPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

type turnContextPayload struct {
	CWD   string `json:"cwd"`
	Model string `json:"model"`
}

type planArguments struct {
	Plan []struct {
		Step   string `json:"step"`
		Status string `json:"status"`
	} `json:"plan"`
}
