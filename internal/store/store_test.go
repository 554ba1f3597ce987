package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"sessionhub/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func msg(id string, kind model.MessageKind, sec int, content string) model.Message {
	return model.Message{
		ID:        id,
		Kind:      kind,
		Timestamp: time.Date(2025, 1, 5, 10, 0, sec, 0, time.UTC),
		Content:   content,
	}
}

func conversation(msgs ...model.Message) *model.Conversation {
	conv := &model.Conversation{SessionID: "s1", Tool: model.ToolClaude, ProjectPath: "/work/project", SourcePath: "/tmp/s1.jsonl"}
	conv.Append(msgs...)
	return conv
}

func TestUpsertDeduplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Upsert(ctx, conversation(
		msg("u1", model.KindUser, 0, "What is Go?"),
		msg("u2", model.KindAssistant, 1, "A language."),
	))
	if err != nil || n != 2 {
		t.Fatalf("first Upsert = %d, %v", n, err)
	}

	n, err = s.Upsert(ctx, conversation(
		msg("u1", model.KindUser, 0, "What is Go?"),
		msg("u2", model.KindAssistant, 1, "A language."),
		msg("u3", model.KindUser, 2, "Thanks"),
	))
	if err != nil || n != 1 {
		t.Fatalf("second Upsert = %d, %v", n, err)
	}

	conv, err := s.GetConversation(ctx, "s1")
	if err != nil {
		t.Fatalf("GetConversation returned error: %v", err)
	}
	if len(conv.Messages) != 3 || conv.Messages[2].ID != "u3" || conv.Tool != model.ToolClaude {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
	if !conv.Messages[0].Timestamp.Equal(time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp not preserved: %v", conv.Messages[0].Timestamp)
	}
}

func TestUpsertFillsToolOutput(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	call := model.Message{ID: "a1:0", Kind: model.KindTool, Tool: &model.ToolUse{Name: "Bash", CallID: "toolu_1"}}
	if _, err := s.Upsert(ctx, conversation(call)); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	out := "ok"
	withOutput := model.Message{ID: "a1:0", Kind: model.KindTool, Tool: &model.ToolUse{Name: "Bash", CallID: "toolu_1", Output: &out}}
	n, err := s.Upsert(ctx, conversation(withOutput))
	if err != nil || n != 0 {
		t.Fatalf("Upsert = %d, %v", n, err)
	}

	conv, _ := s.GetConversation(ctx, "s1")
	if len(conv.Messages) != 1 || conv.Messages[0].Tool.Output == nil || *conv.Messages[0].Tool.Output != "ok" {
		t.Fatalf("tool output not updated: %+v", conv.Messages)
	}
}

func TestListConversations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _ = s.Upsert(ctx, conversation(msg("u1", model.KindUser, 0, "First question")))
	other := &model.Conversation{SessionID: "s2", Tool: model.ToolCodex, ProjectPath: "/other"}
	other.Append(msg("", model.KindUser, 3, "Other"))
	_, _ = s.Upsert(ctx, other)

	all, err := s.ListConversations(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("ListConversations = %+v, %v", all, err)
	}

	mine, err := s.ListConversations(ctx, "/work/project")
	if err != nil || len(mine) != 1 {
		t.Fatalf("ListConversations(project) = %+v, %v", mine, err)
	}
	if mine[0].Summary != "First question" || mine[0].MessageCount != 1 || mine[0].StartedAt.IsZero() {
		t.Fatalf("unexpected summary row: %+v", mine[0])
	}
}

func TestGetConversationNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetConversation(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sessionhub.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if _, err := s.Upsert(context.Background(), conversation(msg("u1", model.KindUser, 0, "hi"))); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer reopened.Close()
	conv, err := reopened.GetConversation(context.Background(), "s1")
	if err != nil || len(conv.Messages) != 1 {
		t.Fatalf("data not persisted: %+v, %v", conv, err)
	}
}
