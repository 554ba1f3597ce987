// Package store persists imported conversations in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"sessionhub/internal/model"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

const summaryLen = 120

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	session_id    TEXT PRIMARY KEY,
	ai_tool       TEXT NOT NULL,
	project_path  TEXT NOT NULL DEFAULT '',
	source_path   TEXT NOT NULL DEFAULT '',
	summary       TEXT NOT NULL DEFAULT '',
	message_count INTEGER NOT NULL DEFAULT 0,
	started_at    TEXT NOT NULL DEFAULT '',
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_project ON conversations(project_path);
CREATE TABLE IF NOT EXISTS messages (
	session_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	timestamp  TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL,
	PRIMARY KEY (session_id, message_id)
);`

// ConversationSummary is one row of the conversation listing.
type ConversationSummary struct {
	SessionID    string       `json:"session_id"`
	Tool         model.AiTool `json:"ai_tool"`
	ProjectPath  string       `json:"project_path"`
	SourcePath   string       `json:"source_path"`
	Summary      string       `json:"summary"`
	MessageCount int          `json:"message_count"`
	StartedAt    time.Time    `json:"started_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Store is a SQLite-backed history.Sink.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert merges conv into the stored conversation keyed by session id.
// Messages are deduplicated by identity; a known message whose payload
// changed (for example a tool call that gained its output) is updated in
// place. It returns the number of newly inserted messages.
func (s *Store) Upsert(ctx context.Context, conv *model.Conversation) (int, error) {
	if conv.SessionID == "" {
		return 0, errors.New("upsert conversation: empty session id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(s.now())
	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (session_id, ai_tool, project_path, source_path, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			ai_tool = excluded.ai_tool,
			project_path = excluded.project_path,
			source_path = excluded.source_path`,
		conv.SessionID, string(conv.Tool), conv.ProjectPath, conv.SourcePath, now)
	if err != nil {
		return 0, fmt.Errorf("upsert conversation %s: %w", conv.SessionID, err)
	}

	var seq int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE session_id = ?",
		conv.SessionID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query sequence: %w", err)
	}

	inserted := 0
	for _, msg := range conv.Messages {
		id := msg.Identity()
		payload, err := json.Marshal(msg)
		if err != nil {
			return 0, fmt.Errorf("marshal message %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO messages (session_id, message_id, seq, kind, timestamp, payload)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, message_id) DO NOTHING`,
			conv.SessionID, id, seq, string(msg.Kind), formatTime(msg.Timestamp), string(payload))
		if err != nil {
			return 0, fmt.Errorf("insert message %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
			seq++
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE messages SET payload = ? WHERE session_id = ? AND message_id = ? AND payload <> ?",
			string(payload), conv.SessionID, id, string(payload)); err != nil {
			return 0, fmt.Errorf("update message %s: %w", id, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversations SET
			message_count = (SELECT COUNT(*) FROM messages WHERE session_id = ?),
			started_at = COALESCE((SELECT MIN(timestamp) FROM messages WHERE session_id = ? AND timestamp <> ''), ''),
			summary = CASE WHEN summary = '' THEN ? ELSE summary END,
			updated_at = CASE WHEN ? > 0 THEN ? ELSE updated_at END
		WHERE session_id = ?`,
		conv.SessionID, conv.SessionID, conv.Summary(summaryLen), inserted, now, conv.SessionID)
	if err != nil {
		return 0, fmt.Errorf("update conversation %s: %w", conv.SessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// ListConversations returns stored conversations, most recently updated
// first. An empty projectPath lists every project.
func (s *Store) ListConversations(ctx context.Context, projectPath string) ([]ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, ai_tool, project_path, source_path, summary, message_count, started_at, updated_at
		FROM conversations
		WHERE ? = '' OR project_path = ?
		ORDER BY updated_at DESC, session_id`, projectPath, projectPath)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	out := []ConversationSummary{}
	for rows.Next() {
		var sum ConversationSummary
		var tool, started, updated string
		if err := rows.Scan(&sum.SessionID, &tool, &sum.ProjectPath, &sum.SourcePath, &sum.Summary, &sum.MessageCount, &started, &updated); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		sum.Tool = model.AiTool(tool)
		sum.StartedAt = parseTime(started)
		sum.UpdatedAt = parseTime(updated)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// GetConversation loads a conversation with its messages in import order.
func (s *Store) GetConversation(ctx context.Context, sessionID string) (*model.Conversation, error) {
	conv := &model.Conversation{SessionID: sessionID}
	var tool string
	err := s.db.QueryRowContext(ctx,
		"SELECT ai_tool, project_path, source_path FROM conversations WHERE session_id = ?",
		sessionID).Scan(&tool, &conv.ProjectPath, &conv.SourcePath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	conv.Tool = model.AiTool(tool)

	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM messages WHERE session_id = ? ORDER BY seq", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		var msg model.Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	conv.Append(msgs...)
	return conv, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
