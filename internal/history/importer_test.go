package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "sessionhub/internal/claude"
	_ "sessionhub/internal/codex"
	_ "sessionhub/internal/gemini"
	"sessionhub/internal/model"
)

const project = "/work/project"

func claudeLine(i int) string {
	return fmt.Sprintf(`{"type":"user","uuid":"u%d","sessionId":"claude-1","cwd":%q,"timestamp":"2025-01-05T10:00:%02dZ","message":{"role":"user","content":"message %d"}}`, i, project, i, i)
}

func codexLine(ts int, role, text string) string {
	kind := "input_text"
	if role == "assistant" {
		kind = "output_text"
	}
	return fmt.Sprintf(`{"timestamp":"2025-01-05T10:00:%02d.000Z","type":"response_item","payload":{"type":"message","role":%q,"content":[{"type":%q,"text":%q}]}}`, ts, role, kind, text)
}

func codexMeta(id, cwd string) string {
	return fmt.Sprintf(`{"timestamp":"2025-01-05T10:00:00.000Z","type":"session_meta","payload":{"id":%q,"cwd":%q}}`, id, cwd)
}

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func appendLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func newTestImporter(t *testing.T, sink Sink) (*Importer, map[model.AiTool]string) {
	t.Helper()
	homes := map[model.AiTool]string{
		model.ToolClaude: t.TempDir(),
		model.ToolCodex:  t.TempDir(),
		model.ToolGemini: t.TempDir(),
	}
	return NewImporter(sink, Options{Homes: homes, Workers: 2}), homes
}

func assertUniqueIdentities(t *testing.T, conv model.Conversation) {
	t.Helper()
	seen := make(map[string]bool, len(conv.Messages))
	for _, msg := range conv.Messages {
		id := msg.Identity()
		if seen[id] {
			t.Fatalf("duplicate message identity %s", id)
		}
		seen[id] = true
	}
}

func TestSyncGrowingFileImportsOnlyNewRecords(t *testing.T) {
	sink := NewMemorySink()
	im, _ := newTestImporter(t, sink)
	dir, err := im.ProjectDir(project, model.ToolClaude)
	if err != nil {
		t.Fatalf("ProjectDir: %v", err)
	}
	path := filepath.Join(dir, "claude-1.jsonl")
	writeLines(t, path, claudeLine(0), claudeLine(1), claudeLine(2))

	stats, err := im.Sync(context.Background(), project, model.ToolClaude)
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if stats.Scanned != 1 || stats.Imported != 3 || stats.Skipped != 0 || len(stats.Errors) != 0 {
		t.Fatalf("unexpected first stats: %+v", stats)
	}

	appendLines(t, path, claudeLine(3), claudeLine(4))
	stats, err = im.Sync(context.Background(), project, model.ToolClaude)
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if stats.Imported != 2 {
		t.Fatalf("expected only the 2 appended records, got %+v", stats)
	}

	stats, _ = im.Sync(context.Background(), project, model.ToolClaude)
	if stats.Imported != 0 {
		t.Fatalf("unchanged file must import nothing, got %+v", stats)
	}

	conv, ok := sink.Get("claude-1")
	if !ok || len(conv.Messages) != 5 {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
	assertUniqueIdentities(t, conv)
	if conv.ProjectPath != project || conv.Tool != model.ToolClaude || conv.SourcePath != path {
		t.Fatalf("unexpected conversation fields: %+v", conv)
	}
}

func TestSyncCountsMessagesNotRecords(t *testing.T) {
	sink := NewMemorySink()
	im, _ := newTestImporter(t, sink)
	dir, err := im.ProjectDir(project, model.ToolClaude)
	if err != nil {
		t.Fatalf("ProjectDir: %v", err)
	}
	path := filepath.Join(dir, "claude-1.jsonl")
	writeLines(t, path,
		claudeLine(0),
		fmt.Sprintf(`{"type":"assistant","uuid":"a1","sessionId":"claude-1","cwd":%q,"timestamp":"2025-01-05T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Checking."},{"type":"tool_use","id":"toolu_1","name":"Bash","input":{"command":"ls"}}]}}`, project),
	)

	stats, err := im.Sync(context.Background(), project, model.ToolClaude)
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if stats.Imported != 3 {
		t.Fatalf("two records holding three messages, got %+v", stats)
	}

	appendLines(t, path, fmt.Sprintf(`{"type":"user","uuid":"r1","sessionId":"claude-1","cwd":%q,"timestamp":"2025-01-05T10:00:06Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_1","content":"main.go"}]}}`, project))
	stats, err = im.Sync(context.Background(), project, model.ToolClaude)
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if stats.Imported != 0 {
		t.Fatalf("a tool result completes an existing message, got %+v", stats)
	}

	conv, _ := sink.Get("claude-1")
	if len(conv.Messages) != 3 {
		t.Fatalf("unexpected messages: %+v", conv.Messages)
	}
	tool := conv.Messages[2].Tool
	if tool == nil || tool.Output == nil || *tool.Output != "main.go" {
		t.Fatalf("tool output not filled: %+v", conv.Messages[2])
	}
}

func TestSyncMalformedLineIsSkipped(t *testing.T) {
	sink := NewMemorySink()
	im, _ := newTestImporter(t, sink)
	dir, _ := im.ProjectDir(project, model.ToolClaude)

	lines := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		if i == 6 {
			lines = append(lines, `{"type":"user","uuid":"u6","message":{"con`)
			continue
		}
		lines = append(lines, claudeLine(i))
	}
	writeLines(t, filepath.Join(dir, "claude-1.jsonl"), lines...)

	stats, err := im.Sync(context.Background(), project, model.ToolClaude)
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if stats.Imported != 9 || stats.Skipped != 1 || len(stats.Errors) != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSyncCodexFiltersByCWDAndHashesIdentity(t *testing.T) {
	sink := NewMemorySink()
	im, homes := newTestImporter(t, sink)
	day := filepath.Join(homes[model.ToolCodex], "sessions", "2025", "01", "05")
	mine := filepath.Join(day, "rollout-2025-01-05T10-00-00-a.jsonl")
	writeLines(t, mine,
		codexMeta("codex-a", project),
		codexLine(1, "user", "hello"),
		codexLine(2, "assistant", "hi there"),
	)
	writeLines(t, filepath.Join(day, "rollout-2025-01-05T11-00-00-b.jsonl"),
		codexMeta("codex-b", "/other/project"),
		codexLine(1, "user", "unrelated"),
	)

	stats, err := im.Sync(context.Background(), project, model.ToolCodex)
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if stats.Scanned != 1 || stats.Imported != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if ids := sink.SessionIDs(); len(ids) != 1 || ids[0] != "codex-a" {
		t.Fatalf("unexpected sessions: %v", ids)
	}

	appendLines(t, mine, codexLine(3, "user", "hello"), codexLine(4, "assistant", "again"))
	stats, _ = im.Sync(context.Background(), project, model.ToolCodex)
	if stats.Imported != 2 {
		t.Fatalf("expected 2 new hashed messages, got %+v", stats)
	}
	conv, _ := sink.Get("codex-a")
	assertUniqueIdentities(t, conv)
	if len(conv.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(conv.Messages))
	}
}

func TestSyncGeminiDocumentsAndFileErrors(t *testing.T) {
	sink := NewMemorySink()
	im, _ := newTestImporter(t, sink)
	dir, _ := im.ProjectDir(project, model.ToolGemini)

	writeLines(t, filepath.Join(dir, "chats", "session-1.json"),
		`{"sessionId":"gem-1","messages":[`,
		`{"id":"g1","timestamp":"2025-01-05T10:00:00Z","type":"user","content":"hi"},`,
		`{"id":"g2","timestamp":"2025-01-05T10:00:01Z","type":"gemini","content":"hello"}`,
		`]}`,
	)
	writeLines(t, filepath.Join(dir, "chats", "session-2.json"), `{"sessionId":"gem-2","messages":[{"id"`)

	stats, err := im.Sync(context.Background(), project, model.ToolGemini)
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if stats.Scanned != 2 || stats.Imported != 2 || len(stats.Errors) != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if !strings.HasSuffix(stats.Errors[0].Path, "session-2.json") {
		t.Fatalf("unexpected error entry: %+v", stats.Errors[0])
	}
	if !Detect(dir, model.ToolGemini) {
		t.Fatalf("expected gemini project dir to be detected")
	}
}

func TestSyncMissingDirectory(t *testing.T) {
	im, _ := newTestImporter(t, NewMemorySink())
	stats, err := im.Sync(context.Background(), "/no/such/project", model.ToolClaude)
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if stats.Scanned != 0 || stats.Imported != 0 || stats.Errors == nil {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSyncUnknownTool(t *testing.T) {
	im, _ := newTestImporter(t, NewMemorySink())
	_, err := im.Sync(context.Background(), project, model.AiTool("cursor"))
	if !errors.Is(err, ErrNoParser) {
		t.Fatalf("expected ErrNoParser, got %v", err)
	}
}

type failingSink struct{}

func (failingSink) Upsert(context.Context, *model.Conversation) (int, error) {
	return 0, errors.New("database is locked")
}

func TestSyncSinkFailureIsPerFile(t *testing.T) {
	im, _ := newTestImporter(t, failingSink{})
	dir, _ := im.ProjectDir(project, model.ToolClaude)
	writeLines(t, filepath.Join(dir, "a.jsonl"), claudeLine(0))
	writeLines(t, filepath.Join(dir, "b.jsonl"), strings.Replace(claudeLine(1), "claude-1", "claude-2", 1))

	stats, err := im.Sync(context.Background(), project, model.ToolClaude)
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if stats.Scanned != 2 || stats.Imported != 0 || len(stats.Errors) != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
