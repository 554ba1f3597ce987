package codex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"sessionhub/internal/model"
)

// Executable is the default Codex CLI binary name.
const Executable = "codex"

// Adapter implements model.Adapter for `codex exec --json`.
type Adapter struct{}

// Tool returns model.ToolCodex.
func (Adapter) Tool() model.AiTool { return model.ToolCodex }

// BuildInvocation runs `codex exec` in projectPath reading the prompt from
// stdin. PermissionMode maps onto the sandbox policy.
func (Adapter) BuildInvocation(projectPath, prompt string, cfg *model.ToolConfig) (model.Invocation, error) {
	if projectPath == "" {
		return model.Invocation{}, fmt.Errorf("codex: project path is required")
	}
	args := []string{"exec", "--json", "--skip-git-repo-check"}
	resume := ""
	if cfg != nil {
		if cfg.Model != "" {
			args = append(args, "--model", cfg.Model)
		}
		if cfg.PermissionMode != "" {
			args = append(args, "--sandbox", cfg.PermissionMode)
		}
		args = append(args, cfg.ExtraArgs...)
		resume = cfg.ResumeSessionID
	}
	if resume != "" {
		args = append(args, "resume", resume)
	}
	args = append(args, "-")
	return model.Invocation{
		Executable: Executable,
		Args:       args,
		Dir:        projectPath,
		Stdin:      prompt,
	}, nil
}

// ParseLine maps one `codex exec --json` line onto tokens. Both the
// item/turn event stream and the legacy {"msg": {...}} stream are accepted.
func (Adapter) ParseLine(line []byte) []model.Token {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil
	}
	if !gjson.Valid(trimmed) || !strings.HasPrefix(trimmed, "{") {
		return []model.Token{{Kind: model.TokenText, Text: string(line) + "\n"}}
	}

	event := gjson.Parse(trimmed)
	if msg := event.Get("msg"); msg.IsObject() {
		return parseLegacy(msg)
	}

	switch StreamEvent(event.Get("type").String()) {
	case StreamItemCompleted:
		item := event.Get("item")
		itemType := item.Get("type").String()
		if itemType == "" {
			itemType = item.Get("item_type").String()
		}
		if itemType == itemTypeAgentMessage {
			if text := item.Get("text").String(); text != "" {
				return []model.Token{{Kind: model.TokenText, Text: text}}
			}
		}
	case StreamTurnCompleted:
		return []model.Token{{Kind: model.TokenDone}}
	case StreamTurnFailed:
		return []model.Token{{Kind: model.TokenError, Text: errorText(event.Get("error.message").String())}}
	case StreamError:
		return []model.Token{{Kind: model.TokenError, Text: errorText(event.Get("message").String())}}
	}
	return nil
}

func parseLegacy(msg gjson.Result) []model.Token {
	switch msg.Get("type").String() {
	case legacyAgentMessage:
		if text := msg.Get("message").String(); text != "" {
			return []model.Token{{Kind: model.TokenText, Text: text}}
		}
	case legacyTaskComplete:
		return []model.Token{{Kind: model.TokenDone}}
	case legacyError:
		return []model.Token{{Kind: model.TokenError, Text: errorText(msg.Get("message").String())}}
	case legacyExecApproval:
		var parts []string
		msg.Get("command").ForEach(func(_, v gjson.Result) bool {
			parts = append(parts, v.String())
			return true
		})
		var patterns []string
		if len(parts) > 0 {
			patterns = []string{strings.Join(parts, " ")}
		}
		return []model.Token{{Kind: model.TokenPermission, Tool: permissionToolExec, Patterns: patterns}}
	case legacyApplyPatchApproval:
		var paths []string
		msg.Get("changes").ForEach(func(key, _ gjson.Result) bool {
			paths = append(paths, key.String())
			return true
		})
		sort.Strings(paths)
		return []model.Token{{Kind: model.TokenPermission, Tool: permissionToolApplyPatch, Patterns: paths}}
	}
	return nil
}

func errorText(msg string) string {
	if msg == "" {
		return "codex: request failed"
	}
	return msg
}
