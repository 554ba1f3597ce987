package claude

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"sessionhub/internal/model"
)

// Executable is the default Claude Code binary name.
const Executable = "claude"

// Adapter implements model.Adapter for `claude -p --output-format stream-json`.
type Adapter struct{}

// Tool returns model.ToolClaude.
func (Adapter) Tool() model.AiTool { return model.ToolClaude }

// BuildInvocation runs Claude Code non-interactively in projectPath with the
// prompt on stdin.
func (Adapter) BuildInvocation(projectPath, prompt string, cfg *model.ToolConfig) (model.Invocation, error) {
	if projectPath == "" {
		return model.Invocation{}, fmt.Errorf("claude: project path is required")
	}
	args := []string{"-p", "--output-format", "stream-json", "--verbose"}
	if cfg != nil {
		if cfg.Model != "" {
			args = append(args, "--model", cfg.Model)
		}
		if cfg.PermissionMode != "" {
			args = append(args, "--permission-mode", cfg.PermissionMode)
		}
		if len(cfg.AllowedTools) > 0 {
			args = append(args, "--allowedTools", strings.Join(cfg.AllowedTools, ","))
		}
		if cfg.ResumeSessionID != "" {
			args = append(args, "--resume", cfg.ResumeSessionID)
		}
		args = append(args, cfg.ExtraArgs...)
	}
	return model.Invocation{
		Executable: Executable,
		Args:       args,
		Dir:        projectPath,
		Stdin:      prompt,
	}, nil
}

// ParseLine maps one stream-json line onto tokens.
//
//	assistant text blocks   -> Text
//	result permission_denials -> Permission (before the terminal token)
//	result success         -> Done
//	result error           -> Error
func (Adapter) ParseLine(line []byte) []model.Token {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil
	}
	if !gjson.Valid(trimmed) || !strings.HasPrefix(trimmed, "{") {
		return []model.Token{{Kind: model.TokenText, Text: string(line) + "\n"}}
	}

	event := gjson.Parse(trimmed)
	switch EntryType(event.Get("type").String()) {
	case EntryTypeAssistant:
		var tokens []model.Token
		event.Get("message.content").ForEach(func(_, block gjson.Result) bool {
			if block.Get("type").String() == string(ContentBlockTypeText) {
				if text := block.Get("text").String(); text != "" {
					tokens = append(tokens, model.Token{Kind: model.TokenText, Text: text})
				}
			}
			return true
		})
		return tokens

	case EntryTypeResult:
		var tokens []model.Token
		event.Get("permission_denials").ForEach(func(_, denial gjson.Result) bool {
			name := denial.Get("tool_name").String()
			if name == "" {
				return true
			}
			var patterns []string
			if cmd := denial.Get("tool_input.command").String(); cmd != "" {
				patterns = append(patterns, cmd)
			} else if path := denial.Get("tool_input.file_path").String(); path != "" {
				patterns = append(patterns, path)
			} else if pattern := denial.Get("tool_input.pattern").String(); pattern != "" {
				patterns = append(patterns, pattern)
			}
			tokens = append(tokens, model.Token{Kind: model.TokenPermission, Tool: name, Patterns: patterns})
			return true
		})
		subtype := event.Get("subtype").String()
		if event.Get("is_error").Bool() || strings.HasPrefix(subtype, "error") {
			msg := event.Get("result").String()
			if msg == "" {
				msg = "claude: " + subtype
			}
			return append(tokens, model.Token{Kind: model.TokenError, Text: msg})
		}
		return append(tokens, model.Token{Kind: model.TokenDone})
	}
	return nil
}
