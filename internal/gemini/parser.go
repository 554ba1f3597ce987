package gemini

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"sessionhub/internal/model"
)

func init() {
	model.RegisterParser(model.ToolGemini, func() model.Parser { return Parser{} })
	model.RegisterAdapter(model.ToolGemini, func() model.Adapter { return Adapter{} })
}

// ErrMissingType is returned for records without a "type".
var ErrMissingType = errors.New("record has no type")

// Parser implements model.Parser and model.DocumentParser for Gemini CLI
// chat logs.
type Parser struct{}

// Tool returns model.ToolGemini.
func (Parser) Tool() model.AiTool { return model.ToolGemini }

// Transcripts describes the Gemini project temp directory.
func (Parser) Transcripts() model.Transcripts {
	return model.Transcripts{
		Root:     "tmp",
		Globs:    []string{"session-*.json", "*.jsonl"},
		Markers:  []string{"chats", "logs.json"},
		Document: true,
	}
}

// DefaultHome returns ~/.gemini.
func (Parser) DefaultHome() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gemini")
}

// ProjectDir returns <home>/tmp/<sha256 of the project path>.
func (Parser) ProjectDir(home, projectPath string) string {
	return filepath.Join(home, "tmp", ProjectHash(projectPath))
}

// ProjectHash is the hex sha256 Gemini CLI uses to name a project's temp dir.
func ProjectHash(projectPath string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(projectPath)))
	return hex.EncodeToString(sum[:])
}

// SplitDocument accepts a chat document with a "messages" array or a bare
// array of records.
func (Parser) SplitDocument(data []byte) (model.Record, []json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var records []json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			return model.Record{}, nil, fmt.Errorf("unmarshal records: %w", err)
		}
		return model.Record{}, records, nil
	}
	var doc chatDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.Record{}, nil, fmt.Errorf("unmarshal chat document: %w", err)
	}
	return model.Record{SessionID: doc.SessionID}, doc.Messages, nil
}

// ParseRecord maps one chat message onto unified messages.
func (Parser) ParseRecord(raw []byte) (model.Record, error) {
	var msg chatMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.Record{}, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Type == "" {
		return model.Record{}, ErrMissingType
	}
	ts, err := parseTimestamp(msg.Timestamp)
	if err != nil {
		return model.Record{}, err
	}

	rec := model.Record{SessionID: msg.SessionID}
	meta := &model.Metadata{Source: model.ToolGemini, RawData: json.RawMessage(append([]byte(nil), raw...))}
	id := msg.ID
	if id == "" && msg.SessionID != "" && len(msg.MessageID) > 0 {
		id = msg.SessionID + ":" + strings.Trim(string(msg.MessageID), `"`)
	}
	content := decodeContent(msg.Content)
	if content == "" {
		content = msg.Message
	}

	switch MessageType(msg.Type) {
	case MessageTypeUser:
		if strings.TrimSpace(content) != "" {
			rec.Messages = append(rec.Messages, model.Message{ID: id, Kind: model.KindUser, Timestamp: ts, Content: content, Meta: meta})
		}

	case MessageTypeGemini:
		for i, th := range msg.Thoughts {
			text := strings.TrimSpace(strings.Join(nonEmpty(th.Subject, th.Description), "\n"))
			if text == "" {
				continue
			}
			rec.Messages = append(rec.Messages, model.Message{ID: subID(id, "thought", i), Kind: model.KindThinking, Timestamp: ts, Content: text, Meta: meta})
		}
		if strings.TrimSpace(content) != "" {
			rec.Messages = append(rec.Messages, model.Message{ID: id, Kind: model.KindAssistant, Timestamp: ts, Content: content, Meta: meta})
		}
		for i, call := range msg.ToolCalls {
			use := &model.ToolUse{Name: call.Name, Input: call.Args, CallID: call.ID}
			if out, ok := toolOutput(call); ok {
				use.Output = &out
			}
			rec.Messages = append(rec.Messages, model.Message{ID: subID(id, "tool", i), Kind: model.KindTool, Timestamp: ts, Tool: use, Meta: meta})
		}

	case MessageTypeInfo, MessageTypeWarning, MessageTypeError:
		if strings.TrimSpace(content) != "" {
			level := model.LevelInfo
			switch MessageType(msg.Type) {
			case MessageTypeWarning:
				level = model.LevelWarning
			case MessageTypeError:
				level = model.LevelError
			}
			rec.Messages = append(rec.Messages, model.Message{ID: id, Kind: model.KindSystem, Level: level, Timestamp: ts, Content: content, Meta: meta})
		}
	}
	return rec, nil
}

// decodeContent accepts a string or an array of {"text": ...} parts.
func decodeContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var parts []string
	gjson.ParseBytes(raw).ForEach(func(_, part gjson.Result) bool {
		if t := part.Get("text"); t.Exists() && !part.Get("thought").Bool() {
			parts = append(parts, t.String())
		}
		return true
	})
	return strings.Join(parts, "")
}

func toolOutput(call toolCall) (string, bool) {
	if len(call.ResultDisplay) > 0 {
		var display string
		if err := json.Unmarshal(call.ResultDisplay, &display); err == nil && display != "" {
			return display, true
		}
	}
	if len(call.Result) == 0 {
		return "", false
	}
	var outputs []string
	for _, out := range gjson.GetBytes(call.Result, "#.functionResponse.response.output").Array() {
		if s := out.String(); s != "" {
			outputs = append(outputs, s)
		}
	}
	if len(outputs) == 0 {
		return "", false
	}
	return strings.Join(outputs, "\n"), true
}

func subID(id, part string, idx int) string {
	if id == "" {
		return ""
	}
	return id + ":" + part + ":" + strconv.Itoa(idx)
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return ts, nil
}
