package codex

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sessionhub/internal/model"
)

func init() {
	model.RegisterParser(model.ToolCodex, func() model.Parser { return Parser{} })
	model.RegisterAdapter(model.ToolCodex, func() model.Adapter { return Adapter{} })
}

// ErrMissingType is returned for records without a top-level "type".
var ErrMissingType = errors.New("record has no type")

// Parser implements model.Parser for Codex rollout files.
type Parser struct{}

// Tool returns model.ToolCodex.
func (Parser) Tool() model.AiTool { return model.ToolCodex }

// Transcripts describes the Codex sessions tree. Rollouts of every project
// share one directory, so they are filtered by the recorded cwd.
func (Parser) Transcripts() model.Transcripts {
	return model.Transcripts{
		Root:        "sessions",
		Globs:       []string{"rollout-*.jsonl"},
		FilterByCWD: true,
	}
}

// DefaultHome returns $CODEX_HOME or ~/.codex.
func (Parser) DefaultHome() string {
	if dir := os.Getenv("CODEX_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".codex")
}

// ProjectDir returns the shared sessions directory.
func (Parser) ProjectDir(home, _ string) string {
	return filepath.Join(home, "sessions")
}

// ParseRecord maps one rollout line onto unified messages.
func (Parser) ParseRecord(raw []byte) (model.Record, error) {
	var rec rawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	if rec.Type == "" {
		return model.Record{}, ErrMissingType
	}

	var ts time.Time
	if rec.Timestamp != "" {
		var err error
		ts, err = parseTimestamp(rec.Timestamp)
		if err != nil {
			return model.Record{}, err
		}
	}
	meta := &model.Metadata{Source: model.ToolCodex, RawData: json.RawMessage(append([]byte(nil), raw...))}

	switch EntryType(rec.Type) {
	case EntryTypeSessionMeta:
		var payload sessionMetaPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return model.Record{}, fmt.Errorf("unmarshal session_meta payload: %w", err)
		}
		return model.Record{SessionID: payload.ID, CWD: payload.CWD}, nil

	case EntryTypeTurnContext:
		var payload turnContextPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return model.Record{}, fmt.Errorf("unmarshal turn_context payload: %w", err)
		}
		return model.Record{CWD: payload.CWD}, nil

	case EntryTypeResponseItem:
		var payload responseItemPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return model.Record{}, fmt.Errorf("unmarshal response_item payload: %w", err)
		}
		msg, ok := responseMessage(payload, ts, meta)
		if !ok {
			return model.Record{}, nil
		}
		return model.Record{Messages: []model.Message{msg}}, nil

	case EntryTypeEventMsg:
		var payload eventMsgPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return model.Record{}, fmt.Errorf("unmarshal event_msg payload: %w", err)
		}
		// user_message, agent_message and agent_reasoning repeat response items.
		switch EventMsgType(payload.Type) {
		case EventMsgTypeTurnAborted:
			text := "turn aborted"
			if payload.Reason != "" {
				text += ": " + payload.Reason
			}
			return model.Record{Messages: []model.Message{{Kind: model.KindSystem, Level: model.LevelWarning, Timestamp: ts, Content: text, Meta: meta}}}, nil
		case EventMsgTypeError:
			return model.Record{Messages: []model.Message{{Kind: model.KindSystem, Level: model.LevelError, Timestamp: ts, Content: payload.Message, Meta: meta}}}, nil
		}
	}
	return model.Record{}, nil
}

func responseMessage(payload responseItemPayload, ts time.Time, meta *model.Metadata) (model.Message, bool) {
	switch ResponseItemType(payload.Type) {
	case ResponseItemTypeMessage:
		text := joinBlocks(payload.Content)
		if strings.TrimSpace(text) == "" {
			return model.Message{}, false
		}
		msg := model.Message{ID: payload.ID, Timestamp: ts, Content: text, Meta: meta}
		switch PayloadRole(payload.Role) {
		case PayloadRoleUser:
			msg.Kind = model.KindUser
			trimmed := strings.TrimSpace(text)
			if strings.HasPrefix(trimmed, environmentContextPrefix) || strings.HasPrefix(trimmed, userInstructionsPrefix) {
				msg.Kind = model.KindSystem
				msg.Level = model.LevelInfo
			}
		case PayloadRoleAssistant:
			msg.Kind = model.KindAssistant
		default:
			msg.Kind = model.KindSystem
			msg.Level = model.LevelInfo
		}
		return msg, true

	case ResponseItemTypeReasoning:
		text := joinBlocks(payload.Summary)
		if strings.TrimSpace(text) == "" {
			text = joinBlocks(payload.Content)
		}
		if strings.TrimSpace(text) == "" {
			return model.Message{}, false
		}
		return model.Message{ID: payload.ID, Kind: model.KindThinking, Timestamp: ts, Content: text, Meta: meta}, true

	case ResponseItemTypeFunctionCall, ResponseItemTypeCustomToolCall:
		if payload.Name == functionUpdatePlan {
			if todos := planTodos(payload.Arguments); len(todos) > 0 {
				return model.Message{ID: payload.ID, Kind: model.KindTodo, Timestamp: ts, Todos: todos, Meta: meta}, true
			}
		}
		input := payload.Arguments
		if input == "" {
			input = payload.Input
		}
		return model.Message{
			ID:        payload.ID,
			Kind:      model.KindTool,
			Timestamp: ts,
			Tool:      &model.ToolUse{Name: payload.Name, Input: toolInput(input), CallID: payload.CallID},
			Meta:      meta,
		}, true

	case ResponseItemTypeFunctionCallOutput, ResponseItemTypeCustomToolCallOutput:
		output := decodeOutput(payload.Output)
		return model.Message{
			Kind:      model.KindTool,
			Timestamp: ts,
			Tool:      &model.ToolUse{CallID: payload.CallID, Output: &output},
			Meta:      meta,
		}, true
	}
	return model.Message{}, false
}

func joinBlocks(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return text
		}
		return ""
	}
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// toolInput keeps JSON arguments as-is and quotes free-form input.
func toolInput(input string) json.RawMessage {
	if input == "" {
		return nil
	}
	if json.Valid([]byte(input)) {
		return json.RawMessage(input)
	}
	quoted, _ := json.Marshal(input)
	return quoted
}

// decodeOutput accepts the plain string and {"output": ...} shapes.
func decodeOutput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		var wrapped struct {
			Output string `json:"output"`
		}
		if err := json.Unmarshal([]byte(text), &wrapped); err == nil && wrapped.Output != "" {
			return wrapped.Output
		}
		return text
	}
	var wrapped struct {
		Output string `json:"output"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Output
	}
	return string(raw)
}

func planTodos(arguments string) []model.TodoItem {
	var args planArguments
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil
	}
	todos := make([]model.TodoItem, 0, len(args.Plan))
	for _, step := range args.Plan {
		todos = append(todos, model.TodoItem{Content: step.Step, Status: model.TodoStatus(step.Status)})
	}
	return todos
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("missing timestamp")
	}

	// Try RFC3339Nano first
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}

	// Try RFC3339
	return time.Parse(time.RFC3339, value)
}
