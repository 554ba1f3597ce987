package claude

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sessionhub/internal/model"
)

func fixturePath(parts ...string) string {
	elems := append([]string{"testdata"}, parts...)
	return filepath.Join(elems...)
}

func parseFixture(t *testing.T, name string) ([]model.Record, int) {
	t.Helper()
	f, err := os.Open(fixturePath(name))
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	var records []model.Record
	skipped := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		rec, err := Parser{}.ParseRecord(scanner.Bytes())
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan fixture: %v", err)
	}
	return records, skipped
}

func TestParseRecordSession(t *testing.T) {
	records, skipped := parseFixture(t, "session.jsonl")
	if skipped != 1 {
		t.Fatalf("expected 1 skipped line, got %d", skipped)
	}

	conv := model.Conversation{SessionID: "claude-session-1", Tool: model.ToolClaude}
	for _, rec := range records {
		conv.Append(rec.Messages...)
	}

	kinds := []model.MessageKind{
		model.KindUser,
		model.KindThinking,
		model.KindAssistant,
		model.KindTool,
		model.KindTodo,
		model.KindPlan,
		model.KindSystem,
	}
	if len(conv.Messages) != len(kinds) {
		t.Fatalf("expected %d messages, got %d", len(kinds), len(conv.Messages))
	}
	for i, kind := range kinds {
		if conv.Messages[i].Kind != kind {
			t.Fatalf("message %d: expected kind %s, got %s", i, kind, conv.Messages[i].Kind)
		}
	}

	first := conv.Messages[0]
	if first.Content != "What is Python?" || first.ID != "u1" {
		t.Fatalf("unexpected first message: %+v", first)
	}
	if got := first.Timestamp.Format(time.RFC3339); got != "2025-01-05T10:00:00Z" {
		t.Fatalf("unexpected timestamp: %s", got)
	}

	tool := conv.Messages[3]
	if tool.Tool == nil || tool.Tool.Name != "Bash" || tool.Tool.CallID != "toolu_1" {
		t.Fatalf("unexpected tool message: %+v", tool)
	}
	if tool.Tool.Output == nil || *tool.Tool.Output != "Python 3.12.1" {
		t.Fatalf("tool output not paired: %+v", tool.Tool)
	}
	if tool.ID != "u2:2" {
		t.Fatalf("unexpected tool message id: %s", tool.ID)
	}

	todo := conv.Messages[4]
	if len(todo.Todos) != 2 || todo.Todos[1].Status != model.TodoInProgress {
		t.Fatalf("unexpected todos: %+v", todo.Todos)
	}

	plan := conv.Messages[5]
	if plan.Content != "1. Install\n2. Run" || plan.ToolUseID != "toolu_3" {
		t.Fatalf("unexpected plan: %+v", plan)
	}

	sys := conv.Messages[6]
	if sys.Level != model.LevelWarning || sys.Content != "Context compacted" {
		t.Fatalf("unexpected system message: %+v", sys)
	}
	if sys.Meta == nil || sys.Meta.Source != model.ToolClaude {
		t.Fatalf("expected claude metadata, got %+v", sys.Meta)
	}
}

func TestParseRecordSessionFields(t *testing.T) {
	rec, err := Parser{}.ParseRecord([]byte(`{"type":"user","uuid":"x","sessionId":"s1","cwd":"/tmp/p","timestamp":"2025-01-05T10:00:00.123Z","message":{"role":"user","content":"hi"}}`))
	if err != nil {
		t.Fatalf("ParseRecord returned error: %v", err)
	}
	if rec.SessionID != "s1" || rec.CWD != "/tmp/p" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Messages) != 1 || rec.Messages[0].Timestamp.Nanosecond() != 123000000 {
		t.Fatalf("unexpected messages: %+v", rec.Messages)
	}
}

func TestParseRecordInvalid(t *testing.T) {
	cases := []string{
		`not json`,
		`{"uuid":"no-type"}`,
		`{"type":"user","timestamp":"yesterday","message":{"content":"x"}}`,
	}
	for _, tc := range cases {
		if _, err := (Parser{}).ParseRecord([]byte(tc)); err == nil {
			t.Fatalf("expected error for %q", tc)
		}
	}
}

func TestParseRecordMetaBecomesSystem(t *testing.T) {
	rec, err := Parser{}.ParseRecord([]byte(`{"type":"user","isMeta":true,"uuid":"m","timestamp":"2025-01-05T10:00:00Z","message":{"role":"user","content":"<command-name>/clear</command-name>"}}`))
	if err != nil {
		t.Fatalf("ParseRecord returned error: %v", err)
	}
	if len(rec.Messages) != 1 || rec.Messages[0].Kind != model.KindSystem {
		t.Fatalf("expected system message, got %+v", rec.Messages)
	}
}

func TestProjectDir(t *testing.T) {
	got := Parser{}.ProjectDir("/home/u/.claude", "/Users/test/my_project.v2")
	want := filepath.Join("/home/u/.claude", "projects", "-Users-test-my-project-v2")
	if got != want {
		t.Fatalf("ProjectDir = %q, want %q", got, want)
	}
}

func TestRegistered(t *testing.T) {
	p, err := model.NewParser(model.ToolClaude)
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	if p.Tool() != model.ToolClaude {
		t.Fatalf("unexpected parser tool %s", p.Tool())
	}
	if _, err := model.NewAdapter(model.ToolClaude); err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
}
