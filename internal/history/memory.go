package history

import (
	"context"
	"sort"
	"sync"

	"sessionhub/internal/model"
)

// MemorySink is an in-memory Sink.
type MemorySink struct {
	mu    sync.Mutex
	convs map[string]*model.Conversation
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{convs: make(map[string]*model.Conversation)}
}

// Upsert merges conv into the stored conversation with the same session id.
func (m *MemorySink) Upsert(_ context.Context, conv *model.Conversation) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.convs[conv.SessionID]
	if !ok {
		stored = &model.Conversation{
			SessionID:   conv.SessionID,
			Tool:        conv.Tool,
			ProjectPath: conv.ProjectPath,
			SourcePath:  conv.SourcePath,
		}
		m.convs[conv.SessionID] = stored
	}
	return stored.Append(conv.Messages...), nil
}

// Get returns a copy of the stored conversation.
func (m *MemorySink) Get(sessionID string) (model.Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[sessionID]
	if !ok {
		return model.Conversation{}, false
	}
	out := model.Conversation{
		SessionID:   conv.SessionID,
		Tool:        conv.Tool,
		ProjectPath: conv.ProjectPath,
		SourcePath:  conv.SourcePath,
		Messages:    append([]model.Message(nil), conv.Messages...),
	}
	return out, true
}

// SessionIDs returns the stored session ids in order.
func (m *MemorySink) SessionIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.convs))
	for id := range m.convs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
