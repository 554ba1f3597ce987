package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"sessionhub/internal/model"
)

// RenderMessageLines returns the formatted body lines for a conversation
// message.
func RenderMessageLines(msg model.Message, wrapWidth int) []string {
	var parts []string
	switch msg.Kind {
	case model.KindUser, model.KindAssistant, model.KindPlan:
		parts = append(parts, wrapBody(strings.TrimSpace(msg.Content), wrapWidth))
	case model.KindThinking:
		parts = append(parts, "[thinking] "+wrapBody(strings.TrimSpace(msg.Content), wrapWidth))
	case model.KindSystem:
		level := msg.Level
		if level == "" {
			level = model.LevelInfo
		}
		parts = append(parts, fmt.Sprintf("[%s] %s", level, wrapBody(strings.TrimSpace(msg.Content), wrapWidth)))
	case model.KindTool:
		parts = append(parts, renderTool(msg.Tool)...)
	case model.KindTodo:
		for _, todo := range msg.Todos {
			parts = append(parts, fmt.Sprintf("%s %s", todoMark(todo.Status), todo.Content))
		}
	default:
		parts = append(parts, fmt.Sprintf("[%s] %s", msg.Kind, wrapBody(strings.TrimSpace(msg.Content), wrapWidth)))
	}

	body := strings.Join(parts, "\n")
	if strings.TrimSpace(body) == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

func renderTool(tool *model.ToolUse) []string {
	if tool == nil {
		return nil
	}
	var parts []string
	name := tool.Name
	if name == "" {
		name = "(result)"
	}
	parts = append(parts, fmt.Sprintf("Function: %s", name))
	if len(tool.Input) > 0 {
		formatted := formatJSON(string(tool.Input))
		if strings.Contains(formatted, "\n") {
			parts = append(parts, "Arguments:\n"+formatted)
		} else {
			parts = append(parts, "Arguments: "+formatted)
		}
	}
	if tool.Output != nil {
		formatted := formatJSON(*tool.Output)
		if formatted == *tool.Output && !strings.Contains(formatted, "\n") {
			parts = append(parts, "Output: "+formatted)
		} else {
			parts = append(parts, "Output:\n"+formatted)
		}
	}
	return parts
}

func todoMark(status model.TodoStatus) string {
	switch status {
	case model.TodoCompleted:
		return "[x]"
	case model.TodoInProgress:
		return "[~]"
	default:
		return "[ ]"
	}
}

// RenderChunk converts a stream chunk into the text printed by the chat
// command. Text chunks are returned verbatim.
func RenderChunk(chunk model.StreamChunk) string {
	switch chunk.Type {
	case model.ChunkText:
		return chunk.Content
	case model.ChunkPermission:
		return fmt.Sprintf("\n[permission] %s: %s\n", chunk.Tool, strings.Join(chunk.Patterns, ", "))
	case model.ChunkError:
		return fmt.Sprintf("\n[error] %s\n", chunk.Message)
	case model.ChunkDone:
		return "\n"
	default:
		return ""
	}
}

func wrapBody(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var out []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if len(current)+1+len(word) > width {
				out = append(out, current)
				current = word
			} else {
				current += " " + word
			}
		}
		out = append(out, current)
	}
	return strings.Join(out, "\n")
}

func formatJSON(raw string) string {
	if raw == "" {
		return raw
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err == nil {
		return buf.String()
	}
	return raw
}
