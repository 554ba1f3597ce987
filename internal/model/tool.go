// Package model provides the tool-neutral types shared by the bridge, the
// streaming gateway and the history importer.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// AiTool identifies one of the supported external AI coding CLIs.
type AiTool string

const (
	// ToolClaude represents the Claude Code CLI.
	ToolClaude AiTool = "claude"
	// ToolCodex represents the Codex CLI.
	ToolCodex AiTool = "codex"
	// ToolGemini represents the Gemini CLI.
	ToolGemini AiTool = "gemini"
)

// ErrUnknownTool is returned when a tool name is outside the supported set.
var ErrUnknownTool = errors.New("unknown ai tool")

// Tools returns every supported tool in a stable order.
func Tools() []AiTool {
	return []AiTool{ToolClaude, ToolCodex, ToolGemini}
}

// ParseTool validates a tool name. Matching is case-insensitive.
func ParseTool(name string) (AiTool, error) {
	tool := AiTool(strings.ToLower(strings.TrimSpace(name)))
	if !tool.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return tool, nil
}

// Valid reports whether t is one of the supported tools.
func (t AiTool) Valid() bool {
	switch t {
	case ToolClaude, ToolCodex, ToolGemini:
		return true
	default:
		return false
	}
}

func (t AiTool) String() string { return string(t) }
