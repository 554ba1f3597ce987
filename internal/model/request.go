package model

import (
	"errors"
	"strings"
)

// ToolConfig carries optional per-request settings forwarded to the CLI.
type ToolConfig struct {
	Model           string   `json:"model,omitempty"`
	PermissionMode  string   `json:"permission_mode,omitempty"`
	AllowedTools    []string `json:"allowed_tools,omitempty"`
	ResumeSessionID string   `json:"resume_session_id,omitempty"`
	ExtraArgs       []string `json:"extra_args,omitempty"`
}

// ChatRequest is submitted by a client to start one run of an AI CLI.
// It is treated as immutable once validated.
type ChatRequest struct {
	RequestID   string      `json:"request_id"`
	SessionID   string      `json:"session_id"`
	Tool        AiTool      `json:"ai_tool"`
	ProjectPath string      `json:"project_path"`
	Prompt      string      `json:"prompt,omitempty"`
	Config      *ToolConfig `json:"config,omitempty"`
}

// Validate checks the fields every adapter relies on.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.RequestID) == "" {
		return errors.New("request_id is required")
	}
	if !r.Tool.Valid() {
		return ErrUnknownTool
	}
	if strings.TrimSpace(r.ProjectPath) == "" {
		return errors.New("project_path is required")
	}
	return nil
}

// Invocation is the fully resolved command line for one external process.
type Invocation struct {
	Executable string
	Args       []string
	Dir        string
	Stdin      string
	Env        []string
}

// ImportStats summarizes one history sync run.
type ImportStats struct {
	Scanned  int         `json:"scanned"`
	Imported int         `json:"imported"`
	Skipped  int         `json:"skipped"`
	Errors   []FileError `json:"errors"`
}

// FileError records a per-file import failure.
type FileError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}
