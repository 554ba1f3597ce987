package model

// ChunkType tags a StreamChunk variant.
type ChunkType string

const (
	ChunkText       ChunkType = "text"
	ChunkDone       ChunkType = "done"
	ChunkError      ChunkType = "error"
	ChunkPermission ChunkType = "permission"
)

// AbortedMessage is the error message delivered when a user cancels a request.
const AbortedMessage = "aborted by user"

// StreamChunk is one unit of the normalized streaming vocabulary delivered to
// a client during a live chat request.
type StreamChunk struct {
	Type     ChunkType `json:"type"`
	Content  string    `json:"content,omitempty"`
	Message  string    `json:"message,omitempty"`
	Tool     string    `json:"tool,omitempty"`
	Patterns []string  `json:"patterns,omitempty"`
}

// TextChunk returns an incremental output fragment.
func TextChunk(content string) StreamChunk {
	return StreamChunk{Type: ChunkText, Content: content}
}

// DoneChunk returns the successful terminal chunk.
func DoneChunk() StreamChunk {
	return StreamChunk{Type: ChunkDone}
}

// ErrorChunk returns the failed terminal chunk.
func ErrorChunk(message string) StreamChunk {
	return StreamChunk{Type: ChunkError, Message: message}
}

// PermissionChunk returns a permission request forwarded from the CLI.
func PermissionChunk(tool string, patterns []string) StreamChunk {
	return StreamChunk{Type: ChunkPermission, Tool: tool, Patterns: patterns}
}

// IsTerminal reports whether c ends a request stream.
func (c StreamChunk) IsTerminal() bool {
	return c.Type == ChunkDone || c.Type == ChunkError
}

// TokenKind tags the intermediate tokens produced by a tool adapter.
type TokenKind int

const (
	TokenText TokenKind = iota
	TokenDone
	TokenError
	TokenPermission
)

// Token is the tool-neutral output of Adapter.ParseLine.
type Token struct {
	Kind     TokenKind
	Text     string
	Tool     string
	Patterns []string
}

// Chunk maps a token onto the canonical chunk vocabulary.
func (t Token) Chunk() StreamChunk {
	switch t.Kind {
	case TokenDone:
		return DoneChunk()
	case TokenError:
		return ErrorChunk(t.Text)
	case TokenPermission:
		return PermissionChunk(t.Tool, t.Patterns)
	default:
		return TextChunk(t.Text)
	}
}
