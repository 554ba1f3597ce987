package gemini

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"sessionhub/internal/model"
)

// Executable is the default Gemini CLI binary name.
const Executable = "gemini"

// Adapter implements model.Adapter for `gemini --output-format stream-json`.
type Adapter struct{}

// Tool returns model.ToolGemini.
func (Adapter) Tool() model.AiTool { return model.ToolGemini }

// BuildInvocation passes the prompt with -p; Gemini does not read stdin in
// headless mode when -p is given.
func (Adapter) BuildInvocation(projectPath, prompt string, cfg *model.ToolConfig) (model.Invocation, error) {
	if projectPath == "" {
		return model.Invocation{}, fmt.Errorf("gemini: project path is required")
	}
	args := []string{"--output-format", "stream-json"}
	if cfg != nil {
		if cfg.Model != "" {
			args = append(args, "--model", cfg.Model)
		}
		if cfg.PermissionMode != "" {
			args = append(args, "--approval-mode", cfg.PermissionMode)
		}
		if len(cfg.AllowedTools) > 0 {
			args = append(args, "--allowed-tools", strings.Join(cfg.AllowedTools, ","))
		}
		if cfg.ResumeSessionID != "" {
			args = append(args, "--resume", cfg.ResumeSessionID)
		}
		args = append(args, cfg.ExtraArgs...)
	}
	args = append(args, "-p", prompt)
	return model.Invocation{
		Executable: Executable,
		Args:       args,
		Dir:        projectPath,
	}, nil
}

// ParseLine maps one stream-json line onto tokens.
func (Adapter) ParseLine(line []byte) []model.Token {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil
	}
	if !gjson.Valid(trimmed) || !strings.HasPrefix(trimmed, "{") {
		return []model.Token{{Kind: model.TokenText, Text: string(line) + "\n"}}
	}

	event := gjson.Parse(trimmed)
	switch StreamEvent(event.Get("type").String()) {
	case StreamMessage:
		if event.Get("role").String() == "assistant" {
			if text := event.Get("content").String(); text != "" {
				return []model.Token{{Kind: model.TokenText, Text: text}}
			}
		}
	case StreamResult:
		status := event.Get("status").String()
		if status == "success" {
			return []model.Token{{Kind: model.TokenDone}}
		}
		msg := event.Get("error.message").String()
		switch {
		case msg != "":
		case status == "":
			msg = "gemini: result without status"
		default:
			msg = "gemini: result " + status
		}
		return []model.Token{{Kind: model.TokenError, Text: msg}}
	case StreamError:
		if event.Get("severity").String() == "error" {
			msg := event.Get("message").String()
			if msg == "" {
				msg = "gemini: request failed"
			}
			return []model.Token{{Kind: model.TokenError, Text: msg}}
		}
	}
	return nil
}
