package format

import (
	"encoding/json"
	"strings"
	"testing"

	"sessionhub/internal/model"
)

func TestRenderMessageLinesWrapsText(t *testing.T) {
	msg := model.Message{Kind: model.KindAssistant, Content: "one two three four five six"}

	lines := RenderMessageLines(msg, 10)
	if len(lines) < 2 {
		t.Fatalf("expected wrapped lines, got %v", lines)
	}
	if strings.TrimSpace(lines[0]) == "" {
		t.Fatalf("first line should contain text: %v", lines)
	}
}

func TestRenderMessageLinesTool(t *testing.T) {
	output := `{"ok":true}`
	msg := model.Message{
		Kind: model.KindTool,
		Tool: &model.ToolUse{Name: "Bash", Input: json.RawMessage(`{"command":"ls","cwd":"/tmp"}`), Output: &output},
	}

	lines := RenderMessageLines(msg, 80)
	if lines[0] != "Function: Bash" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "Arguments:\n{\n  \"command\": \"ls\"") {
		t.Fatalf("arguments not pretty-printed:\n%s", joined)
	}
	if !strings.Contains(joined, "Output:\n{\n  \"ok\": true\n}") {
		t.Fatalf("output not pretty-printed:\n%s", joined)
	}
}

func TestRenderMessageLinesKinds(t *testing.T) {
	tests := []struct {
		name string
		msg  model.Message
		want []string
	}{
		{
			name: "system",
			msg:  model.Message{Kind: model.KindSystem, Level: model.LevelWarning, Content: "turn aborted"},
			want: []string{"[warning] turn aborted"},
		},
		{
			name: "thinking",
			msg:  model.Message{Kind: model.KindThinking, Content: "hmm"},
			want: []string{"[thinking] hmm"},
		},
		{
			name: "todo",
			msg: model.Message{Kind: model.KindTodo, Todos: []model.TodoItem{
				{Content: "write tests", Status: model.TodoCompleted},
				{Content: "ship", Status: model.TodoPending},
			}},
			want: []string{"[x] write tests", "[ ] ship"},
		},
		{
			name: "empty",
			msg:  model.Message{Kind: model.KindUser},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderMessageLines(tt.msg, 80)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderChunk(t *testing.T) {
	if got := RenderChunk(model.TextChunk("Hel")); got != "Hel" {
		t.Fatalf("text chunk = %q", got)
	}
	if got := RenderChunk(model.PermissionChunk("Bash", []string{"rm -rf", "ls"})); !strings.Contains(got, "[permission] Bash: rm -rf, ls") {
		t.Fatalf("permission chunk = %q", got)
	}
	if got := RenderChunk(model.ErrorChunk("boom")); !strings.Contains(got, "[error] boom") {
		t.Fatalf("error chunk = %q", got)
	}
}
