package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"sessionhub/internal/bridge"
	"sessionhub/internal/history"
	"sessionhub/internal/model"
	"sessionhub/internal/registry"
	"sessionhub/internal/store"
)

func sampleSummaries() []history.Summary {
	return []history.Summary{
		{
			SessionID:       "session-a",
			Tool:            model.ToolClaude,
			CWD:             "/tmp/project",
			StartedAt:       time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC),
			Summary:         "Alpha",
			MessageCount:    10,
			DurationSeconds: 90,
		},
		{
			SessionID:       "session-b",
			Tool:            model.ToolCodex,
			CWD:             "/tmp/other",
			StartedAt:       time.Date(2025, 10, 2, 9, 30, 0, 0, time.UTC),
			Summary:         "Beta\nsecond line",
			MessageCount:    20,
			DurationSeconds: 45,
		},
	}
}

func TestWriteSummariesPlain(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummaries(&buf, sampleSummaries(), true, "plain"); err != nil {
		t.Fatalf("WriteSummaries plain returned error: %v", err)
	}

	expected := strings.Join([]string{
		"timestamp\tai_tool\tsession_id\tcwd\tduration\tmessage_count\tsummary",
		"2025-10-01T12:00:00Z\tclaude\tsession-a\t/tmp/project\t00:01:30\t10\tAlpha",
		"2025-10-02T09:30:00Z\tcodex\tsession-b\t/tmp/other\t00:00:45\t20\tBeta\\nsecond line",
	}, "\n") + "\n"

	if got := buf.String(); got != expected {
		t.Fatalf("plain output mismatch:\nexpected: %q\nactual:   %q", expected, got)
	}
}

func TestWriteSummariesTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummaries(&buf, sampleSummaries(), true, "table"); err != nil {
		t.Fatalf("WriteSummaries table returned error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "DURATION") || !strings.Contains(out, "MESSAGES") {
		t.Fatalf("table header missing expected columns:\n%s", out)
	}
	if !strings.Contains(out, "│ 2025-10-01T12:00:00Z │") || !strings.Contains(out, "│ session-a  │") {
		t.Fatalf("table row unexpected: %s", out)
	}
	if strings.Index(out, "session-a") > strings.Index(out, "session-b") {
		t.Fatalf("table rows out of order: %s", out)
	}
}

func TestWriteSummariesEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummaries(&buf, nil, true, "table"); err != nil {
		t.Fatalf("WriteSummaries returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "(no sessions)") {
		t.Fatalf("expected placeholder row:\n%s", buf.String())
	}
}

func TestWriteSummariesInvalidFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummaries(&buf, sampleSummaries(), true, "xml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWriteSummariesJSONL(t *testing.T) {
	var buf bytes.Buffer
	items := sampleSummaries()
	if err := WriteSummaries(&buf, items, false, "jsonl"); err != nil {
		t.Fatalf("WriteSummaries jsonl returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(items) {
		t.Fatalf("expected %d lines, got %d", len(items), len(lines))
	}
	if !strings.Contains(lines[0], `"session-a"`) || !strings.Contains(lines[0], `"duration_seconds":90`) {
		t.Fatalf("first jsonl line unexpected: %s", lines[0])
	}
}

func TestWriteActive(t *testing.T) {
	now := time.Date(2025, 1, 5, 10, 1, 5, 0, time.UTC)
	items := []registry.ActiveProcess{
		{RequestID: "r1", SessionID: "s1", Tool: model.ToolGemini, StartedAt: now.Add(-65 * time.Second)},
		{RequestID: "r2", Tool: model.ToolClaude, StartedAt: now},
	}

	var buf bytes.Buffer
	if err := WriteActive(&buf, items, false, "plain", now); err != nil {
		t.Fatalf("WriteActive returned error: %v", err)
	}
	expected := "r1\ts1\tgemini\t2025-01-05T10:00:00Z\t00:01:05\n" +
		"r2\t-\tclaude\t2025-01-05T10:01:05Z\t00:00:00\n"
	if buf.String() != expected {
		t.Fatalf("plain output mismatch:\nexpected: %q\nactual:   %q", expected, buf.String())
	}

	buf.Reset()
	if err := WriteActive(&buf, nil, false, "json", now); err != nil {
		t.Fatalf("WriteActive json returned error: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Fatalf("empty json list = %q", buf.String())
	}
}

func TestWriteTools(t *testing.T) {
	items := []bridge.ToolStatus{
		{Tool: model.ToolClaude, Executable: "claude", Path: "/usr/bin/claude", Installed: true},
		{Tool: model.ToolCodex, Executable: "codex"},
	}
	var buf bytes.Buffer
	if err := WriteTools(&buf, items, true, "table"); err != nil {
		t.Fatalf("WriteTools returned error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "/usr/bin/claude") || !strings.Contains(out, " no ") {
		t.Fatalf("tools table unexpected:\n%s", out)
	}
}

func TestWriteConversations(t *testing.T) {
	items := []store.ConversationSummary{{
		SessionID:    "claude-1",
		Tool:         model.ToolClaude,
		ProjectPath:  "/work/project",
		Summary:      "Fix the build",
		MessageCount: 7,
		UpdatedAt:    time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC),
	}}
	var buf bytes.Buffer
	if err := WriteConversations(&buf, items, false, "plain"); err != nil {
		t.Fatalf("WriteConversations returned error: %v", err)
	}
	expected := "2025-01-05T10:00:00Z\tclaude\tclaude-1\t/work/project\t7\tFix the build\n"
	if buf.String() != expected {
		t.Fatalf("plain output mismatch:\nexpected: %q\nactual:   %q", expected, buf.String())
	}
}

func TestWriteImportStats(t *testing.T) {
	stats := model.ImportStats{
		Scanned:  3,
		Imported: 12,
		Skipped:  1,
		Errors:   []model.FileError{{Path: "/tmp/bad.json", Message: "decode document: unexpected EOF"}},
	}

	var buf bytes.Buffer
	if err := WriteImportStats(&buf, stats, "plain"); err != nil {
		t.Fatalf("WriteImportStats returned error: %v", err)
	}
	expected := "scanned\timported\tskipped\terrors\n3\t12\t1\t1\n" +
		"path\terror\n/tmp/bad.json\tdecode document: unexpected EOF\n"
	if buf.String() != expected {
		t.Fatalf("plain output mismatch:\nexpected: %q\nactual:   %q", expected, buf.String())
	}

	buf.Reset()
	if err := WriteImportStats(&buf, model.ImportStats{}, "json"); err != nil {
		t.Fatalf("WriteImportStats json returned error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if errs, ok := decoded["errors"].([]any); !ok || len(errs) != 0 {
		t.Fatalf("errors should be an empty list: %v", decoded)
	}
}
