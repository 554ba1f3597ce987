package codex

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"sessionhub/internal/model"
)

const fixtureName = "rollout-2025-01-05T10-00-00-abc.jsonl"

func TestParseRecordRollout(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", fixtureName))
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	conv := model.Conversation{Tool: model.ToolCodex}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		rec, err := Parser{}.ParseRecord(scanner.Bytes())
		if err != nil {
			t.Fatalf("ParseRecord returned error: %v", err)
		}
		if rec.SessionID != "" {
			conv.SessionID = rec.SessionID
		}
		if rec.CWD != "" {
			conv.ProjectPath = rec.CWD
		}
		conv.Append(rec.Messages...)
	}

	if conv.SessionID != "codex-session-1" || conv.ProjectPath != "/work/project" {
		t.Fatalf("unexpected session fields: %q %q", conv.SessionID, conv.ProjectPath)
	}

	kinds := []model.MessageKind{
		model.KindSystem,
		model.KindUser,
		model.KindThinking,
		model.KindTool,
		model.KindTodo,
		model.KindAssistant,
		model.KindSystem,
	}
	if len(conv.Messages) != len(kinds) {
		t.Fatalf("expected %d messages, got %d: %+v", len(kinds), len(conv.Messages), conv.Messages)
	}
	for i, kind := range kinds {
		if conv.Messages[i].Kind != kind {
			t.Fatalf("message %d: expected %s, got %s", i, kind, conv.Messages[i].Kind)
		}
	}

	tool := conv.Messages[3]
	if tool.Tool.Name != "shell" || string(tool.Tool.Input) != `{"command":["ls"]}` {
		t.Fatalf("unexpected tool call: %+v", tool.Tool)
	}
	if tool.Tool.Output == nil || *tool.Tool.Output != "main.go\n" {
		t.Fatalf("tool output not paired: %+v", tool.Tool)
	}

	todo := conv.Messages[4]
	if len(todo.Todos) != 2 || todo.Todos[0].Content != "Inspect files" || todo.Todos[0].Status != model.TodoCompleted {
		t.Fatalf("unexpected todos: %+v", todo.Todos)
	}

	aborted := conv.Messages[6]
	if aborted.Level != model.LevelWarning || aborted.Content != "turn aborted: interrupted" {
		t.Fatalf("unexpected abort message: %+v", aborted)
	}
}

func TestParseRecordInvalid(t *testing.T) {
	for _, tc := range []string{`{`, `{"payload":{}}`, `{"type":"response_item","payload":"oops"}`} {
		if _, err := (Parser{}).ParseRecord([]byte(tc)); err == nil {
			t.Fatalf("expected error for %q", tc)
		}
	}
}

func TestTranscripts(t *testing.T) {
	tr := Parser{}.Transcripts()
	if !tr.FilterByCWD || tr.Document {
		t.Fatalf("unexpected transcripts: %+v", tr)
	}
	if got := (Parser{}).ProjectDir("/h/.codex", "/any"); got != filepath.Join("/h/.codex", "sessions") {
		t.Fatalf("unexpected project dir: %s", got)
	}
}
