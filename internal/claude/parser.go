package claude

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sessionhub/internal/model"
)

func init() {
	model.RegisterParser(model.ToolClaude, func() model.Parser { return Parser{} })
	model.RegisterAdapter(model.ToolClaude, func() model.Adapter { return Adapter{} })
}

// ErrMissingType is returned for records without a top-level "type".
var ErrMissingType = errors.New("record has no type")

// Parser implements model.Parser for Claude Code session logs.
type Parser struct{}

// Tool returns model.ToolClaude.
func (Parser) Tool() model.AiTool { return model.ToolClaude }

// Transcripts describes the Claude Code project directory layout.
func (Parser) Transcripts() model.Transcripts {
	return model.Transcripts{
		Root:    "projects",
		Globs:   []string{"*.jsonl"},
		Markers: []string{"*.jsonl"},
	}
}

// DefaultHome returns $CLAUDE_CONFIG_DIR or ~/.claude.
func (Parser) DefaultHome() string {
	if dir := os.Getenv("CLAUDE_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude")
}

var projectNameReplacer = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ProjectDir returns the directory Claude Code uses for projectPath, which
// encodes the absolute path by replacing every non-alphanumeric rune with '-'.
func (Parser) ProjectDir(home, projectPath string) string {
	cleaned := filepath.Clean(projectPath)
	return filepath.Join(home, "projects", projectNameReplacer.ReplaceAllString(cleaned, "-"))
}

// ParseRecord maps one JSONL entry onto unified messages.
func (Parser) ParseRecord(raw []byte) (model.Record, error) {
	var entry rawEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return model.Record{}, fmt.Errorf("unmarshal entry: %w", err)
	}
	if entry.Type == "" {
		return model.Record{}, ErrMissingType
	}

	var ts time.Time
	if entry.Timestamp != "" {
		var err error
		ts, err = parseTimestamp(entry.Timestamp)
		if err != nil {
			return model.Record{}, err
		}
	}

	rec := model.Record{SessionID: entry.SessionID, CWD: entry.CWD}
	meta := &model.Metadata{Source: model.ToolClaude, RawData: json.RawMessage(append([]byte(nil), raw...))}

	switch EntryType(entry.Type) {
	case EntryTypeUser, EntryTypeAssistant:
		if len(entry.Message) == 0 {
			return rec, nil
		}
		var msg messagePayload
		if err := json.Unmarshal(entry.Message, &msg); err != nil {
			return model.Record{}, fmt.Errorf("unmarshal message: %w", err)
		}
		kind := model.KindUser
		if EntryType(entry.Type) == EntryTypeAssistant {
			kind = model.KindAssistant
		}
		msgs, err := decodeContent(msg.Content, kind, entry.UUID, ts, meta)
		if err != nil {
			return model.Record{}, err
		}
		if entry.IsMeta {
			for i := range msgs {
				if msgs[i].Kind == model.KindUser {
					msgs[i].Kind = model.KindSystem
					msgs[i].Level = model.LevelInfo
				}
			}
		}
		rec.Messages = msgs

	case EntryTypeSystem:
		text := decodeText(entry.Content)
		if text == "" {
			return rec, nil
		}
		rec.Messages = []model.Message{{
			ID:        entry.UUID,
			Kind:      model.KindSystem,
			Timestamp: ts,
			Content:   text,
			Level:     systemLevel(entry.Level),
			Meta:      meta,
		}}

	case EntryTypeSummary:
		// Summaries describe the session, not a turn.
	}

	return rec, nil
}

func decodeContent(raw json.RawMessage, kind model.MessageKind, uuid string, ts time.Time, meta *model.Metadata) ([]model.Message, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	// Try as string first (simple message)
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if strings.TrimSpace(asString) == "" {
			return nil, nil
		}
		return []model.Message{{ID: uuid, Kind: kind, Timestamp: ts, Content: asString, Meta: meta}}, nil
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}

	result := make([]model.Message, 0, len(blocks))
	for idx, block := range blocks {
		id := blockID(uuid, idx)
		switch ContentBlockType(block.Type) {
		case ContentBlockTypeText:
			if strings.TrimSpace(block.Text) == "" {
				continue
			}
			result = append(result, model.Message{ID: id, Kind: kind, Timestamp: ts, Content: block.Text, Meta: meta})
		case ContentBlockTypeThinking:
			if strings.TrimSpace(block.Thinking) == "" {
				continue
			}
			result = append(result, model.Message{ID: id, Kind: model.KindThinking, Timestamp: ts, Content: block.Thinking, Meta: meta})
		case ContentBlockTypeToolUse:
			result = append(result, toolUseMessage(block, id, ts, meta))
		case ContentBlockTypeToolResult:
			output := decodeText(block.Content)
			result = append(result, model.Message{
				ID:        id,
				Kind:      model.KindTool,
				Timestamp: ts,
				Tool:      &model.ToolUse{CallID: block.ToolUseID, Output: &output},
				Meta:      meta,
			})
		}
	}
	return result, nil
}

func toolUseMessage(block contentBlock, id string, ts time.Time, meta *model.Metadata) model.Message {
	switch block.Name {
	case toolTodoWrite:
		var input todoInput
		if err := json.Unmarshal(block.Input, &input); err == nil && len(input.Todos) > 0 {
			todos := make([]model.TodoItem, 0, len(input.Todos))
			for _, todo := range input.Todos {
				todos = append(todos, model.TodoItem{
					Content:    todo.Content,
					Status:     model.TodoStatus(todo.Status),
					ActiveForm: todo.ActiveForm,
				})
			}
			return model.Message{ID: id, Kind: model.KindTodo, Timestamp: ts, Todos: todos, Meta: meta}
		}
	case toolExitPlanMode:
		var input planInput
		if err := json.Unmarshal(block.Input, &input); err == nil && input.Plan != "" {
			return model.Message{ID: id, Kind: model.KindPlan, Timestamp: ts, Content: input.Plan, ToolUseID: block.ID, Meta: meta}
		}
	}
	return model.Message{
		ID:        id,
		Kind:      model.KindTool,
		Timestamp: ts,
		Tool:      &model.ToolUse{Name: block.Name, Input: block.Input, CallID: block.ID},
		Meta:      meta,
	}
}

// decodeText flattens a string or an array of text blocks.
func decodeText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var nested []contentBlock
	if err := json.Unmarshal(raw, &nested); err == nil {
		parts := make([]string, 0, len(nested))
		for _, nb := range nested {
			if nb.Text != "" {
				parts = append(parts, nb.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return string(raw)
}

func blockID(uuid string, idx int) string {
	if uuid == "" {
		return ""
	}
	return uuid + ":" + strconv.Itoa(idx)
}

func systemLevel(level string) model.SystemLevel {
	switch strings.ToLower(level) {
	case "warning", "warn":
		return model.LevelWarning
	case "error":
		return model.LevelError
	default:
		return model.LevelInfo
	}
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
