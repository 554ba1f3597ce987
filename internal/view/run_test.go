package view

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "sessionhub/internal/claude"
	"sessionhub/internal/model"
)

var fixture = filepath.Join("..", "claude", "testdata", "session.jsonl")

func TestBuildKindFilterDefaults(t *testing.T) {
	kinds, err := buildKindFilter(false, "")
	if err != nil {
		t.Fatalf("buildKindFilter returned error: %v", err)
	}
	if len(kinds) != 2 {
		t.Fatalf("expected user and assistant by default, got %#v", kinds)
	}
	if _, ok := kinds[model.KindUser]; !ok {
		t.Fatalf("default filter should include user")
	}

	if kinds, _ := buildKindFilter(false, "all"); kinds != nil {
		t.Fatalf("all should disable the filter, got %#v", kinds)
	}
	if kinds, _ := buildKindFilter(true, "user"); kinds != nil {
		t.Fatalf("--all should override the kinds argument, got %#v", kinds)
	}
	if _, err := buildKindFilter(false, "user,unknown"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestMessageRingKeepsTail(t *testing.T) {
	ring := newMessageRing(2)
	for _, id := range []string{"a", "b", "c"} {
		ring.push(model.Message{ID: id})
	}
	got := ring.slice()
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("unexpected ring contents %+v", got)
	}

	unbounded := newMessageRing(0)
	unbounded.push(model.Message{ID: "a"})
	if len(unbounded.slice()) != 1 {
		t.Fatalf("unbounded ring dropped messages")
	}
}

func TestRenderChatLinesAlignment(t *testing.T) {
	messages := []model.Message{
		{Kind: model.KindUser, Timestamp: time.Date(2025, 10, 27, 12, 0, 0, 0, time.UTC), Content: "hello there"},
		{Kind: model.KindAssistant, Timestamp: time.Date(2025, 10, 27, 12, 0, 5, 0, time.UTC), Content: "hi, how can I help you today?"},
		{Kind: model.KindSystem, Timestamp: time.Date(2025, 10, 27, 12, 0, 10, 0, time.UTC), Content: "compacted"},
	}

	lines := renderChatTranscript(messages, 80, newPalette(&bytes.Buffer{}, false))
	if len(lines) == 0 {
		t.Fatal("expected chat lines")
	}

	userTop := findPrefix(lines, "╭")
	if userTop < 0 {
		t.Fatalf("failed to locate user bubble: %v", lines)
	}
	next := findPrefix(lines[userTop+1:], "╭")
	if next < 0 {
		t.Fatalf("failed to locate assistant bubble: %v", lines)
	}
	assistantTop := next + userTop + 1

	if idx := strings.Index(lines[userTop], "╭"); idx <= 2 {
		t.Fatalf("user bubble should be right aligned, got index %d line %q", idx, lines[userTop])
	}
	if !strings.HasPrefix(lines[assistantTop], "  ╭") {
		t.Fatalf("assistant bubble should be left aligned: %q", lines[assistantTop])
	}
	for _, line := range lines {
		if strings.Contains(line, "\x1b[") {
			t.Fatalf("color codes emitted with color disabled: %q", line)
		}
	}
}

func findPrefix(lines []string, prefix string) int {
	for i, line := range lines {
		if strings.Contains(line, prefix) {
			return i
		}
	}
	return -1
}

func TestRunText(t *testing.T) {
	var buf bytes.Buffer
	err := Run(Options{Path: fixture, Tool: model.ToolClaude, Format: "text", Out: &buf})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "[#001] user | 2025-01-05T10:00:00Z") {
		t.Fatalf("missing user header:\n%s", out)
	}
	if !strings.Contains(out, "| Python is a programming language.") {
		t.Fatalf("missing assistant body:\n%s", out)
	}
	if strings.Contains(out, "Function: Bash") {
		t.Fatalf("tool messages should be filtered by default:\n%s", out)
	}
}

func TestRunJSONWithKinds(t *testing.T) {
	var buf bytes.Buffer
	err := Run(Options{Path: fixture, Tool: model.ToolClaude, Format: "json", KindsArg: "tool,todo", Out: &buf})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	var conv model.Conversation
	if err := json.Unmarshal(buf.Bytes(), &conv); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if conv.SessionID != "claude-session-1" || len(conv.Messages) != 2 {
		t.Fatalf("unexpected conversation %+v", conv)
	}
	tool := conv.Messages[0]
	if tool.Kind != model.KindTool || tool.Tool == nil || tool.Tool.Output == nil || *tool.Tool.Output != "Python 3.12.1" {
		t.Fatalf("tool result not paired: %+v", tool)
	}
	if conv.Messages[1].Kind != model.KindTodo || len(conv.Messages[1].Todos) != 2 {
		t.Fatalf("unexpected todo message %+v", conv.Messages[1])
	}
}

func TestRunRawPrintsSourceRecords(t *testing.T) {
	var buf bytes.Buffer
	err := Run(Options{Path: fixture, Tool: model.ToolClaude, Format: "raw", AllKinds: true, MaxMessages: 1, Out: &buf})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], `"uuid":"u5"`) {
		t.Fatalf("expected the last source record, got %q", buf.String())
	}
}

func TestRunUnsupportedFormat(t *testing.T) {
	if err := Run(Options{Path: fixture, Tool: model.ToolClaude, Format: "xml", Out: &bytes.Buffer{}}); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
